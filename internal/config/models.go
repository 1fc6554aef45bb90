package config

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Registry is the entire user configuration file. It stores known hubs and
// application preferences. Access tokens are never written here; they come
// from the environment or an interactive prompt.
type Registry struct {
	Version     int             `yaml:"version"`
	Hubs        map[string]*Hub `yaml:"hubs,omitempty"` // Keyed by registry id (UUID)
	Preferences *Preferences    `yaml:"preferences,omitempty"`
}

// Hub is one known hub. The registry id is stable across address changes so
// a hub that moves to a new IP keeps its name and history.
type Hub struct {
	Name         string    `yaml:"name,omitempty"`          // User-friendly name
	Address      string    `yaml:"address"`                 // Host, host:port, or full URL
	LocationName string    `yaml:"location_name,omitempty"` // Name the hub reports for itself
	HubVersion   string    `yaml:"hub_version,omitempty"`   // Last seen hub software version
	LastSeen     time.Time `yaml:"last_seen,omitempty"`     // Last discovery or connection time
}

// Preferences are application-wide user preferences.
type Preferences struct {
	DefaultHub  string `yaml:"default_hub,omitempty"` // Registry id used when no hub is named
	ScanTimeout int    `yaml:"scan_timeout"`          // mDNS discovery timeout in seconds
}

// NewRegistry creates a Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Hubs:    make(map[string]*Hub),
		Preferences: &Preferences{
			ScanTimeout: 10,
		},
	}
}

// GetHub retrieves a hub by registry id. Returns nil when absent.
func (r *Registry) GetHub(id string) *Hub {
	return r.Hubs[id]
}

// AddHub registers a new hub and returns its registry id.
func (r *Registry) AddHub(name, address string) string {
	if r.Hubs == nil {
		r.Hubs = make(map[string]*Hub)
	}

	id := uuid.NewString()
	r.Hubs[id] = &Hub{
		Name:    name,
		Address: address,
	}
	if r.Preferences == nil {
		r.Preferences = &Preferences{ScanTimeout: 10}
	}
	if r.Preferences.DefaultHub == "" {
		r.Preferences.DefaultHub = id
	}
	return id
}

// RemoveHub deletes a hub from the registry. The default hub preference is
// cleared when it pointed at the removed entry.
func (r *Registry) RemoveHub(id string) bool {
	if _, ok := r.Hubs[id]; !ok {
		return false
	}
	delete(r.Hubs, id)
	if r.Preferences != nil && r.Preferences.DefaultHub == id {
		r.Preferences.DefaultHub = ""
	}
	return true
}

// FindHub resolves a user-supplied reference to a registry entry. The
// reference can be a full or prefix registry id, a hub name, or an address.
// Returns an empty id when nothing matches or the prefix is ambiguous.
func (r *Registry) FindHub(ref string) (string, *Hub) {
	if hub, ok := r.Hubs[ref]; ok {
		return ref, hub
	}

	var matchID string
	var match *Hub
	for id, hub := range r.Hubs {
		if hub.Name == ref || hub.Address == ref {
			return id, hub
		}
		if strings.HasPrefix(id, ref) {
			if match != nil {
				return "", nil // ambiguous prefix
			}
			matchID, match = id, hub
		}
	}
	return matchID, match
}

// DefaultHub returns the configured default hub, or the only hub when just
// one is registered. Returns nil when no default can be determined.
func (r *Registry) DefaultHub() (string, *Hub) {
	if r.Preferences != nil && r.Preferences.DefaultHub != "" {
		if hub, ok := r.Hubs[r.Preferences.DefaultHub]; ok {
			return r.Preferences.DefaultHub, hub
		}
	}
	if len(r.Hubs) == 1 {
		for id, hub := range r.Hubs {
			return id, hub
		}
	}
	return "", nil
}

// SetDefaultHub marks a registered hub as the default.
func (r *Registry) SetDefaultHub(id string) bool {
	if _, ok := r.Hubs[id]; !ok {
		return false
	}
	if r.Preferences == nil {
		r.Preferences = &Preferences{ScanTimeout: 10}
	}
	r.Preferences.DefaultHub = id
	return true
}

// TouchHub records a successful contact with a hub.
func (r *Registry) TouchHub(id, locationName, hubVersion string) {
	hub, ok := r.Hubs[id]
	if !ok {
		return
	}
	hub.LastSeen = time.Now()
	if locationName != "" {
		hub.LocationName = locationName
	}
	if hubVersion != "" {
		hub.HubVersion = hubVersion
	}
}

// SortedIDs returns registry ids ordered by hub name, then address, for
// stable listings.
func (r *Registry) SortedIDs() []string {
	ids := make([]string, 0, len(r.Hubs))
	for id := range r.Hubs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.Hubs[ids[i]], r.Hubs[ids[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Address < b.Address
	})
	return ids
}
