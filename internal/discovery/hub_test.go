package discovery

import "testing"

func TestHub_String(t *testing.T) {
	hub := &Hub{
		Name:     "Home Assistant",
		Hostname: "homeassistant.local.",
		IP:       "192.168.1.10",
		Port:     8123,
	}
	want := "Hub Home Assistant (homeassistant.local.) at 192.168.1.10:8123"
	if hub.String() != want {
		t.Errorf("Hub.String() = %v, want %v", hub.String(), want)
	}

	hub.LocationName = "Home"
	want = "Hub Home (homeassistant.local.) at 192.168.1.10:8123"
	if hub.String() != want {
		t.Errorf("Hub.String() with location = %v, want %v", hub.String(), want)
	}
}

func TestHub_Address(t *testing.T) {
	tests := []struct {
		name string
		hub  *Hub
		want string
	}{
		{
			name: "base url preferred",
			hub:  &Hub{IP: "192.168.1.10", Port: 8123, BaseURL: "https://home.example.net:8123"},
			want: "https://home.example.net:8123",
		},
		{
			name: "ip and port fallback",
			hub:  &Hub{IP: "192.168.1.10", Port: 8123},
			want: "192.168.1.10:8123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hub.Address(); got != tt.want {
				t.Errorf("Hub.Address() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHub_GetMetadata(t *testing.T) {
	hub := &Hub{
		Metadata: map[string]string{
			"uuid":                  "abc123",
			"requires_api_password": "true",
		},
	}

	if got := hub.GetMetadata("uuid"); got != "abc123" {
		t.Errorf("GetMetadata(uuid) = %v", got)
	}
	if got := hub.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %v, want empty", got)
	}

	var nilHub Hub
	if got := nilHub.GetMetadata("anything"); got != "" {
		t.Errorf("GetMetadata() with nil map = %v, want empty", got)
	}
}
