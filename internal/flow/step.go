package flow

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StepType identifies the kind of screen a flow step represents.
// Every step the server returns carries exactly one of these types.
type StepType string

const (
	// StepForm presents a schema of input fields to fill in and submit.
	StepForm StepType = "form"

	// StepMenu presents a fixed choice of branches; selecting one submits
	// {"next_step_id": option}.
	StepMenu StepType = "menu"

	// StepExternal hands off to an external URL (e.g. an OAuth consent
	// page); the flow advances via a push event, not user input.
	StepExternal StepType = "external"

	// StepProgress reports a long-running server-side action; the flow
	// advances via a push event and may receive fractional progress updates.
	StepProgress StepType = "progress"

	// StepAbort terminates the flow with a reason. Terminal.
	StepAbort StepType = "abort"

	// StepCreateEntry reports a successfully created entry. Terminal.
	StepCreateEntry StepType = "create_entry"
)

// Valid reports whether t is a step type this client understands.
func (t StepType) Valid() bool {
	switch t {
	case StepForm, StepMenu, StepExternal, StepProgress, StepAbort, StepCreateEntry:
		return true
	default:
		return false
	}
}

// Terminal reports whether a step of this type ends the flow. Closing a
// dialog on a terminal step must not delete the flow server-side; the flow
// is already gone.
func (t StepType) Terminal() bool {
	return t == StepAbort || t == StepCreateEntry
}

// Step is one screen of a data entry flow. The controller holds a single
// current Step and replaces it wholesale on every transition; a Step is
// never mutated in place.
type Step struct {
	// Type discriminates which variant fields below are meaningful.
	Type StepType `json:"type"`

	// FlowID is the opaque server-assigned flow identifier, stable for the
	// lifetime of one flow instance.
	FlowID string `json:"flow_id"`

	// Handler is the integration/domain that owns the flow server-side.
	Handler string `json:"handler"`

	// StepID names the current logical step within the handler.
	StepID string `json:"step_id,omitempty"`

	// Schema is the ordered list of input fields (form steps).
	Schema []Field `json:"data_schema,omitempty"`

	// Errors maps field names to error keys embedded in an otherwise
	// successful response (form steps). The "base" key is a step-wide error.
	Errors map[string]string `json:"errors,omitempty"`

	// MenuOptions is the ordered list of branch choices (menu steps).
	MenuOptions MenuOptions `json:"menu_options,omitempty"`

	// URL is the external page to open (external steps).
	URL string `json:"url,omitempty"`

	// ProgressAction names the server-side action in progress
	// (progress steps).
	ProgressAction string `json:"progress_action,omitempty"`

	// Progress is the fractional completion 0..1, negative when the server
	// reports no determinate progress (progress steps).
	Progress float64 `json:"progress,omitempty"`

	// Reason explains why the flow aborted (abort steps).
	Reason string `json:"reason,omitempty"`

	// Result summarizes the created entry (create_entry steps).
	Result *EntryResult `json:"result,omitempty"`

	// DescriptionPlaceholders are substituted into localized step
	// descriptions by the catalog.
	DescriptionPlaceholders map[string]string `json:"description_placeholders,omitempty"`
}

// EntryResult summarizes the entry created by a completed flow.
type EntryResult struct {
	EntryID string `json:"entry_id"`
	Title   string `json:"title,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// Validate checks the structural invariants of a decoded step.
func (s *Step) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("unknown step type %q", s.Type)
	}
	if s.FlowID == "" {
		return fmt.Errorf("step missing flow_id")
	}

	switch s.Type {
	case StepExternal:
		if s.URL == "" {
			return fmt.Errorf("external step missing url")
		}
	case StepCreateEntry:
		if s.Result == nil || s.Result.EntryID == "" {
			return fmt.Errorf("create_entry step missing result entry_id")
		}
	}

	return nil
}

// Clone returns a deep copy of the step. Used when a push event updates the
// progress value: the controller replaces the step with a modified clone
// rather than mutating the one renderers already hold.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}

	clone := *s
	if s.Schema != nil {
		clone.Schema = append([]Field(nil), s.Schema...)
	}
	if s.MenuOptions != nil {
		clone.MenuOptions = append(MenuOptions(nil), s.MenuOptions...)
	}
	if s.Errors != nil {
		clone.Errors = make(map[string]string, len(s.Errors))
		for k, v := range s.Errors {
			clone.Errors[k] = v
		}
	}
	if s.DescriptionPlaceholders != nil {
		clone.DescriptionPlaceholders = make(map[string]string, len(s.DescriptionPlaceholders))
		for k, v := range s.DescriptionPlaceholders {
			clone.DescriptionPlaceholders[k] = v
		}
	}
	if s.Result != nil {
		result := *s.Result
		clone.Result = &result
	}
	return &clone
}

// ParseStep decodes and validates a step payload from the server.
func ParseStep(data []byte) (*Step, error) {
	var step Step
	if err := json.Unmarshal(data, &step); err != nil {
		return nil, fmt.Errorf("malformed flow step: %w", err)
	}
	if err := step.Validate(); err != nil {
		return nil, err
	}
	return &step, nil
}

// MenuOption is one selectable branch of a menu step.
type MenuOption struct {
	// ID is the next_step_id submitted when the option is chosen.
	ID string

	// Label is the display label key; defaults to ID when the server sends
	// a bare list of option ids.
	Label string
}

// MenuOptions preserves the server's option order. The wire format is
// either an ordered array of option ids or an object of id -> label; the
// object form has no inherent order, so it is sorted by id for a stable
// presentation.
type MenuOptions []MenuOption

// UnmarshalJSON accepts both wire forms.
func (m *MenuOptions) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		opts := make(MenuOptions, 0, len(ids))
		for _, id := range ids {
			opts = append(opts, MenuOption{ID: id, Label: id})
		}
		*m = opts
		return nil
	}

	var labeled map[string]string
	if err := json.Unmarshal(data, &labeled); err != nil {
		return fmt.Errorf("menu_options is neither a list nor a map: %w", err)
	}

	opts := make(MenuOptions, 0, len(labeled))
	for id, label := range labeled {
		if label == "" {
			label = id
		}
		opts = append(opts, MenuOption{ID: id, Label: label})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].ID < opts[j].ID })
	*m = opts
	return nil
}

// MarshalJSON emits the map form when labels differ from ids, otherwise the
// list form.
func (m MenuOptions) MarshalJSON() ([]byte, error) {
	plain := true
	for _, opt := range m {
		if opt.Label != opt.ID {
			plain = false
			break
		}
	}

	if plain {
		ids := make([]string, 0, len(m))
		for _, opt := range m {
			ids = append(ids, opt.ID)
		}
		return json.Marshal(ids)
	}

	labeled := make(map[string]string, len(m))
	for _, opt := range m {
		labeled[opt.ID] = opt.Label
	}
	return json.Marshal(labeled)
}
