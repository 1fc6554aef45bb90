package flow

import (
	"encoding/json"
	"testing"
)

func TestStepType(t *testing.T) {
	valid := []StepType{StepForm, StepMenu, StepExternal, StepProgress, StepAbort, StepCreateEntry}
	for _, st := range valid {
		if !st.Valid() {
			t.Errorf("%q should be valid", st)
		}
	}
	if StepType("data_entry_flow_progressed").Valid() {
		t.Error("event type accepted as step type")
	}

	if !StepAbort.Terminal() || !StepCreateEntry.Terminal() {
		t.Error("abort and create_entry are terminal")
	}
	for _, st := range []StepType{StepForm, StepMenu, StepExternal, StepProgress} {
		if st.Terminal() {
			t.Errorf("%q should not be terminal", st)
		}
	}
}

func TestParseStep_Form(t *testing.T) {
	raw := `{
		"type": "form",
		"flow_id": "abc",
		"handler": "knx",
		"step_id": "user",
		"data_schema": [
			{"name": "host", "required": true},
			{"name": "port", "type": "integer", "default": 3671},
			{"name": "tunnel", "type": "select", "options": ["auto", "tcp", "udp"]}
		],
		"errors": {"base": "cannot_connect"}
	}`

	step, err := ParseStep([]byte(raw))
	if err != nil {
		t.Fatalf("ParseStep() error = %v", err)
	}
	if step.Type != StepForm {
		t.Errorf("Type = %v", step.Type)
	}
	if step.Handler != "knx" {
		t.Errorf("Handler = %q", step.Handler)
	}

	// Schema order must survive decoding.
	wantOrder := []string{"host", "port", "tunnel"}
	for i, name := range wantOrder {
		if step.Schema[i].Name != name {
			t.Errorf("Schema[%d] = %q, want %q", i, step.Schema[i].Name, name)
		}
	}
	if !step.Schema[0].Required {
		t.Error("host should be required")
	}
	if step.Errors["base"] != "cannot_connect" {
		t.Errorf("Errors = %v", step.Errors)
	}
}

func TestParseStep_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown type", `{"type":"wizardry","flow_id":"abc"}`},
		{"missing flow_id", `{"type":"form"}`},
		{"external without url", `{"type":"external","flow_id":"abc"}`},
		{"create_entry without result", `{"type":"create_entry","flow_id":"abc"}`},
		{"malformed json", `{"type":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStep([]byte(tt.raw)); err == nil {
				t.Error("ParseStep() succeeded, want error")
			}
		})
	}
}

func TestMenuOptions_ListForm(t *testing.T) {
	var opts MenuOptions
	if err := json.Unmarshal([]byte(`["manual","discovery","cloud"]`), &opts); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}

	want := []string{"manual", "discovery", "cloud"}
	if len(opts) != len(want) {
		t.Fatalf("len = %d, want %d", len(opts), len(want))
	}
	for i, id := range want {
		if opts[i].ID != id {
			t.Errorf("opts[%d].ID = %q, want %q (list order preserved)", i, opts[i].ID, id)
		}
		if opts[i].Label != id {
			t.Errorf("opts[%d].Label = %q, want id fallback", i, opts[i].Label)
		}
	}
}

func TestMenuOptions_MapForm(t *testing.T) {
	var opts MenuOptions
	if err := json.Unmarshal([]byte(`{"b":"Branch B","a":"Branch A"}`), &opts); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}

	// Map form is sorted by id for stable presentation.
	if opts[0].ID != "a" || opts[1].ID != "b" {
		t.Errorf("opts order = %v, want sorted by id", opts)
	}
	if opts[0].Label != "Branch A" {
		t.Errorf("label = %q", opts[0].Label)
	}
}

func TestMenuOptions_RoundTrip(t *testing.T) {
	opts := MenuOptions{{ID: "a", Label: "Branch A"}, {ID: "b", Label: "Branch B"}}
	data, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded MenuOptions
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ID != "a" || decoded[0].Label != "Branch A" {
		t.Errorf("round trip = %v", decoded)
	}
}

func TestStepClone(t *testing.T) {
	step := &Step{
		Type:        StepProgress,
		FlowID:      "abc",
		StepID:      "install",
		Progress:    0.25,
		Schema:      []Field{{Name: "host"}},
		Errors:      map[string]string{"base": "x"},
		MenuOptions: MenuOptions{{ID: "a", Label: "A"}},
		Result:      &EntryResult{EntryID: "e1"},
	}

	clone := step.Clone()
	clone.Progress = 0.75
	clone.Schema[0].Name = "changed"
	clone.Errors["base"] = "changed"
	clone.Result.EntryID = "changed"

	if step.Progress != 0.25 {
		t.Error("clone shares Progress")
	}
	if step.Schema[0].Name != "host" {
		t.Error("clone shares Schema backing array")
	}
	if step.Errors["base"] != "x" {
		t.Error("clone shares Errors map")
	}
	if step.Result.EntryID != "e1" {
		t.Error("clone shares Result pointer")
	}
}
