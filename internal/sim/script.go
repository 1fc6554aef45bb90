package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script describes the flow a simulated hub walks clients through. Scripts
// are YAML files: a handler name, a step graph, and optional localized
// strings served for that handler.
type Script struct {
	// Handler is the integration domain the script answers for
	Handler string `yaml:"handler"`

	// FirstStep is the step id served when a flow is created
	FirstStep string `yaml:"first_step"`

	// Steps is the step graph, keyed by step id
	Steps map[string]*ScriptStep `yaml:"steps"`

	// Strings is served verbatim for get_strings requests
	Strings map[string]string `yaml:"strings,omitempty"`
}

// ScriptStep is one node in the step graph.
type ScriptStep struct {
	// Type is the step type: form, menu, external, progress, abort, or
	// create_entry
	Type string `yaml:"type"`

	// Schema describes the form fields (form steps)
	Schema []ScriptField `yaml:"schema,omitempty"`

	// MenuOptions maps option ids to labels (menu steps)
	MenuOptions map[string]string `yaml:"menu_options,omitempty"`

	// URL is the page the user must visit (external steps)
	URL string `yaml:"url,omitempty"`

	// ProgressAction names what the hub is doing (progress steps)
	ProgressAction string `yaml:"progress_action,omitempty"`

	// Ticks is the sequence of progress values pushed before the step
	// advances (progress steps)
	Ticks []ProgressTick `yaml:"ticks,omitempty"`

	// AdvanceAfterMs delays the automatic advance of external steps
	AdvanceAfterMs int `yaml:"advance_after_ms,omitempty"`

	// Reason is the abort reason code (abort steps)
	Reason string `yaml:"reason,omitempty"`

	// Title is the created entry's title (create_entry steps)
	Title string `yaml:"title,omitempty"`

	// Next is the step served after this one when no route matches
	Next string `yaml:"next,omitempty"`

	// Routes are input-dependent transitions, checked in order on submit
	Routes []Route `yaml:"routes,omitempty"`
}

// ScriptField describes one form field.
type ScriptField struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type,omitempty"`
	Required bool     `yaml:"required,omitempty"`
	Default  any      `yaml:"default,omitempty"`
	Options  []string `yaml:"options,omitempty"`
}

// ProgressTick is one pushed progress value.
type ProgressTick struct {
	Progress float64 `yaml:"progress"`
	DelayMs  int     `yaml:"delay_ms,omitempty"`
}

// Route matches submitted input against expected values. A route with
// Errors re-serves the current step carrying those validation errors; a
// route with Next advances the flow.
type Route struct {
	// When lists input values that must all match for the route to fire.
	// An empty When matches any input.
	When map[string]any `yaml:"when,omitempty"`

	// Errors maps field names (or "base") to error codes
	Errors map[string]string `yaml:"errors,omitempty"`

	// Next is the step id to advance to
	Next string `yaml:"next,omitempty"`
}

var validStepTypes = map[string]bool{
	"form":         true,
	"menu":         true,
	"external":     true,
	"progress":     true,
	"abort":        true,
	"create_entry": true,
}

// LoadScript reads and validates a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates script YAML.
func ParseScript(data []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// Validate checks the step graph for dangling references and per-type
// required fields.
func (s *Script) Validate() error {
	if s.Handler == "" {
		return fmt.Errorf("script missing handler")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("script has no steps")
	}
	if _, ok := s.Steps[s.FirstStep]; !ok {
		return fmt.Errorf("first_step %q not defined", s.FirstStep)
	}

	for id, step := range s.Steps {
		if !validStepTypes[step.Type] {
			return fmt.Errorf("step %q has unknown type %q", id, step.Type)
		}

		switch step.Type {
		case "menu":
			if len(step.MenuOptions) == 0 {
				return fmt.Errorf("menu step %q has no options", id)
			}
			for option := range step.MenuOptions {
				if _, ok := s.Steps[option]; !ok {
					return fmt.Errorf("menu step %q references undefined step %q", id, option)
				}
			}
		case "external":
			if step.URL == "" {
				return fmt.Errorf("external step %q missing url", id)
			}
			if step.Next == "" {
				return fmt.Errorf("external step %q missing next", id)
			}
		case "progress":
			if step.Next == "" {
				return fmt.Errorf("progress step %q missing next", id)
			}
		case "abort":
			if step.Reason == "" {
				return fmt.Errorf("abort step %q missing reason", id)
			}
		}

		if step.Next != "" {
			if _, ok := s.Steps[step.Next]; !ok {
				return fmt.Errorf("step %q references undefined step %q", id, step.Next)
			}
		}
		for i, route := range step.Routes {
			if route.Next == "" && len(route.Errors) == 0 {
				return fmt.Errorf("step %q route %d has neither next nor errors", id, i)
			}
			if route.Next != "" {
				if _, ok := s.Steps[route.Next]; !ok {
					return fmt.Errorf("step %q route %d references undefined step %q", id, i, route.Next)
				}
			}
		}
	}
	return nil
}

// route resolves a submit against the step's routes. Returns the matched
// route, or nil when the default Next should be used.
func (step *ScriptStep) route(input map[string]any) *Route {
	for i := range step.Routes {
		route := &step.Routes[i]
		if route.matches(input) {
			return route
		}
	}
	return nil
}

func (r *Route) matches(input map[string]any) bool {
	for key, want := range r.When {
		got, ok := input[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
