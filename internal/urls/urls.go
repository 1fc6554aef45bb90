package urls

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultPort is the default hub API port
	DefaultPort = 8123

	// WebSocketPath is the hub's WebSocket API endpoint path
	WebSocketPath = "/api/websocket"
)

// NormalizeHubAddress converts a user-supplied hub address into a WebSocket
// API URL. Accepted inputs:
//
//	hub.local                    -> ws://hub.local:8123/api/websocket
//	hub.local:9000               -> ws://hub.local:9000/api/websocket
//	http://hub.local:8123        -> ws://hub.local:8123/api/websocket
//	https://hub.example.com      -> wss://hub.example.com/api/websocket
//	ws://hub.local:8123/api/websocket (already normalized, returned as-is)
func NormalizeHubAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("hub address is empty")
	}

	// Bare host[:port] forms have no scheme; default to plain ws
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid hub address %q: %w", addr, err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// Already a WebSocket scheme
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q (expected ws, wss, http, or https)", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("hub address %q has no host", addr)
	}

	if u.Port() == "" {
		u.Host = fmt.Sprintf("%s:%d", u.Hostname(), DefaultPort)
	}

	// Trailing slashes and empty paths both mean "use the API endpoint"
	if p := strings.TrimRight(u.Path, "/"); p == "" {
		u.Path = WebSocketPath
	}
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}

// Documentation URLs for guides and troubleshooting.

// GettingStarted is the quick start guide for new users.
const GettingStarted = "https://veldt.github.io/entryflow/getting-started/"

// AccessTokens explains how to create a long-lived access token on the hub.
const AccessTokens = "https://veldt.github.io/entryflow/access-tokens/"

// SimulatorGuide covers writing flow scripts for entryflow-sim.
const SimulatorGuide = "https://veldt.github.io/entryflow/simulator/"
