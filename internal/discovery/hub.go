package discovery

import (
	"fmt"
	"time"
)

// Hub represents a discovered hub on the network
type Hub struct {
	// Name is the mDNS instance name (e.g., "Home")
	Name string

	// Hostname is the mDNS hostname (e.g., "homeassistant.local.")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.1.10")
	IP string

	// Port is the web interface port (typically 8123)
	Port int

	// BaseURL is the advertised base URL from the TXT record, when present
	BaseURL string

	// Version is the advertised hub software version
	Version string

	// LocationName is the name the hub reports for itself (e.g., "Home")
	LocationName string

	// Metadata contains the remaining mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the hub was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the hub
func (h *Hub) String() string {
	name := h.LocationName
	if name == "" {
		name = h.Name
	}
	return fmt.Sprintf("Hub %s (%s) at %s:%d", name, h.Hostname, h.IP, h.Port)
}

// Address returns the address to dial: the advertised base URL when the hub
// provides one, otherwise ip:port.
func (h *Hub) Address() string {
	if h.BaseURL != "" {
		return h.BaseURL
	}
	return fmt.Sprintf("%s:%d", h.IP, h.Port)
}

// GetMetadata retrieves a TXT record value by key, or returns empty string if not found
func (h *Hub) GetMetadata(key string) string {
	if h.Metadata == nil {
		return ""
	}
	return h.Metadata[key]
}
