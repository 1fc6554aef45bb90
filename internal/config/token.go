package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// TokenEnvVar is the environment variable holding the hub access token.
// Tokens are never persisted to the configuration file.
const TokenEnvVar = "ENTRYFLOW_TOKEN"

// AccessToken resolves the hub access token: the environment variable wins,
// otherwise the user is prompted on the terminal with echo disabled. Fails
// when no token is set and stdin is not a terminal.
func AccessToken() (string, error) {
	if token := strings.TrimSpace(os.Getenv(TokenEnvVar)); token != "" {
		return token, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no access token: set %s or run interactively", TokenEnvVar)
	}

	fmt.Fprint(os.Stderr, "Access token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("no access token entered")
	}
	return token, nil
}
