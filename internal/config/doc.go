// Package config manages the user's configuration file: the registry of
// known hubs and application preferences.
//
// The file lives in the platform config directory (XDG on Linux and macOS,
// LOCALAPPDATA on Windows) and is written atomically. Access tokens are
// never stored; AccessToken resolves them from the environment or an
// interactive prompt.
package config
