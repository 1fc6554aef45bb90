package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type hubs advertise
	ServiceType = "_home-assistant._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for hub discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default web interface port for hubs
	DefaultPort = 8123
)

// Scanner handles mDNS hub discovery
type Scanner struct {
	// Timeout is the maximum time to wait for hub discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForHubs discovers all hubs on the local network
func (s *Scanner) ScanForHubs() ([]*Hub, error) {
	return s.ScanForHubsWithContext(context.Background())
}

// ScanForHubsWithContext discovers hubs with a custom context
func (s *Scanner) ScanForHubsWithContext(ctx context.Context) ([]*Hub, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	hubs := make([]*Hub, 0)
	done := make(chan struct{})

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(done)
		for entry := range entries {
			hub := parseServiceEntry(entry)
			if hub != nil {
				hubs = append(hubs, hub)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// Wait for the timeout and for the entries channel to drain
	<-ctx.Done()
	<-done

	return hubs, nil
}

// parseServiceEntry converts a zeroconf service entry to a Hub
// Returns nil if the entry carries no usable address
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Hub {
	// Prefer IPv4
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	hub := &Hub{
		Name:         entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		BaseURL:      metadata["base_url"],
		Version:      metadata["version"],
		LocationName: metadata["location_name"],
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
	delete(metadata, "base_url")
	delete(metadata, "version")
	delete(metadata, "location_name")
	return hub
}

// ScanForHubs is a convenience function to scan with a custom timeout
func ScanForHubs(timeout time.Duration) ([]*Hub, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForHubs()
}

// QuickScan performs a fast scan with a 3-second timeout
func QuickScan() ([]*Hub, error) {
	return ScanForHubs(3 * time.Second)
}
