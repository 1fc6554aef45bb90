package protocol

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestIDSequence(t *testing.T) {
	var seq IDSequence

	if got := seq.Next(); got != 1 {
		t.Errorf("first id = %d, want 1", got)
	}
	if got := seq.Next(); got != 2 {
		t.Errorf("second id = %d, want 2", got)
	}
}

func TestIDSequence_Concurrent(t *testing.T) {
	var seq IDSequence
	var wg sync.WaitGroup

	const n = 100
	ids := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- seq.Next()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("issued %d unique ids, want %d", len(seen), n)
	}
}

func TestBuildAuth(t *testing.T) {
	data, err := BuildAuth("token123")
	if err != nil {
		t.Fatalf("BuildAuth() error = %v", err)
	}

	var msg map[string]string
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["type"] != MsgTypeAuth {
		t.Errorf("type = %q, want %q", msg["type"], MsgTypeAuth)
	}
	if msg["access_token"] != "token123" {
		t.Errorf("access_token = %q, want token123", msg["access_token"])
	}
}

func TestBuildAuth_EmptyToken(t *testing.T) {
	if _, err := BuildAuth(""); err == nil {
		t.Error("BuildAuth(\"\") succeeded, want error")
	}
}

func TestBuildCommand(t *testing.T) {
	data, err := BuildCommand(5, "config_entries/flow/create", map[string]any{
		"handler": "knx",
	})
	if err != nil {
		t.Fatalf("BuildCommand() error = %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["id"] != float64(5) {
		t.Errorf("id = %v, want 5", msg["id"])
	}
	if msg["type"] != "config_entries/flow/create" {
		t.Errorf("type = %v", msg["type"])
	}
	if msg["handler"] != "knx" {
		t.Errorf("handler = %v, want knx", msg["handler"])
	}
}

func TestBuildCommand_Rejected(t *testing.T) {
	if _, err := BuildCommand(0, "x", nil); err == nil {
		t.Error("zero id accepted")
	}
	if _, err := BuildCommand(1, "", nil); err == nil {
		t.Error("empty type accepted")
	}
	if _, err := BuildCommand(1, "x", map[string]any{"id": 9}); err == nil {
		t.Error("payload id collision accepted")
	}
	if _, err := BuildCommand(1, "x", map[string]any{"type": "y"}); err == nil {
		t.Error("payload type collision accepted")
	}
}

func TestBuildSubscribe(t *testing.T) {
	data, err := BuildSubscribe(9, EventFlowProgressed)
	if err != nil {
		t.Fatalf("BuildSubscribe() error = %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["type"] != MsgTypeSubscribe {
		t.Errorf("type = %v, want %v", msg["type"], MsgTypeSubscribe)
	}
	if msg["event_type"] != EventFlowProgressed {
		t.Errorf("event_type = %v, want %v", msg["event_type"], EventFlowProgressed)
	}
}
