package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/veldt/entryflow/internal/flow"
)

// FlowDomain selects which family of data entry flows a FlowService drives.
// All three share the same step semantics and differ only in command names
// and what the handler argument means.
type FlowDomain string

const (
	// DomainConfig sets up a new integration. The handler is the
	// integration domain, e.g. "knx".
	DomainConfig FlowDomain = "config"

	// DomainOptions reconfigures an existing entry. The handler is the
	// config entry id.
	DomainOptions FlowDomain = "options"

	// DomainRepairs walks the user through fixing a reported issue. The
	// handler is the issue id.
	DomainRepairs FlowDomain = "repairs"
)

// Valid reports whether d is a known flow domain.
func (d FlowDomain) Valid() bool {
	switch d {
	case DomainConfig, DomainOptions, DomainRepairs:
		return true
	}
	return false
}

// commandNames returns the four command types for the domain.
func (d FlowDomain) commandNames() (create, fetch, submit, remove string) {
	switch d {
	case DomainOptions:
		base := "config_entries/options/flow"
		return base + "/create", base + "/get", base + "/submit", base + "/delete"
	case DomainRepairs:
		base := "repairs/flow"
		return base + "/create", base + "/get", base + "/submit", base + "/delete"
	default:
		base := "config_entries/flow"
		return base + "/create", base + "/get", base + "/submit", base + "/delete"
	}
}

// handlerField returns the payload key the create command expects.
func (d FlowDomain) handlerField() string {
	switch d {
	case DomainOptions:
		return "entry_id"
	case DomainRepairs:
		return "issue_id"
	default:
		return "handler"
	}
}

// FlowService drives one domain of data entry flows over a hub connection.
// It satisfies flow.Client.
type FlowService struct {
	conn   *Conn
	domain FlowDomain
}

// Flows returns a FlowService for the given domain.
func (c *Conn) Flows(domain FlowDomain) (*FlowService, error) {
	if !domain.Valid() {
		return nil, fmt.Errorf("unknown flow domain %q", domain)
	}
	return &FlowService{conn: c, domain: domain}, nil
}

// ConfigFlows returns the service for integration setup flows.
func (c *Conn) ConfigFlows() *FlowService {
	return &FlowService{conn: c, domain: DomainConfig}
}

// Domain returns the flow domain this service drives.
func (s *FlowService) Domain() FlowDomain {
	return s.domain
}

// CreateFlow starts a new flow and returns its first step.
func (s *FlowService) CreateFlow(ctx context.Context, handler string) (*flow.Step, error) {
	if handler == "" {
		return nil, fmt.Errorf("handler must not be empty")
	}
	create, _, _, _ := s.domain.commandNames()
	result, err := s.conn.Call(ctx, create, map[string]any{
		s.domain.handlerField(): handler,
	})
	if err != nil {
		return nil, err
	}
	return flow.ParseStep(result)
}

// FetchFlow returns the current step of an existing flow.
func (s *FlowService) FetchFlow(ctx context.Context, flowID string) (*flow.Step, error) {
	if flowID == "" {
		return nil, fmt.Errorf("flow id must not be empty")
	}
	_, fetch, _, _ := s.domain.commandNames()
	result, err := s.conn.Call(ctx, fetch, map[string]any{"flow_id": flowID})
	if err != nil {
		return nil, err
	}
	return flow.ParseStep(result)
}

// SubmitStep advances the flow with user input and returns the next step.
func (s *FlowService) SubmitStep(ctx context.Context, flowID string, input map[string]any) (*flow.Step, error) {
	if flowID == "" {
		return nil, fmt.Errorf("flow id must not be empty")
	}
	_, _, submit, _ := s.domain.commandNames()
	payload := map[string]any{"flow_id": flowID}
	if input != nil {
		payload["user_input"] = input
	}
	result, err := s.conn.Call(ctx, submit, payload)
	if err != nil {
		return nil, err
	}
	return flow.ParseStep(result)
}

// DeleteFlow abandons an unfinished flow server-side.
func (s *FlowService) DeleteFlow(ctx context.Context, flowID string) error {
	if flowID == "" {
		return fmt.Errorf("flow id must not be empty")
	}
	_, _, _, remove := s.domain.commandNames()
	_, err := s.conn.Call(ctx, remove, map[string]any{"flow_id": flowID})
	return err
}

// ListFlowHandlers returns the integration domains that can start a config
// flow on this hub, sorted as the hub reports them.
func (c *Conn) ListFlowHandlers(ctx context.Context) ([]string, error) {
	result, err := c.Call(ctx, "config_entries/flow_handlers", nil)
	if err != nil {
		return nil, err
	}
	var handlers []string
	if err := json.Unmarshal(result, &handlers); err != nil {
		return nil, fmt.Errorf("malformed flow handler list: %w", err)
	}
	return handlers, nil
}

// GetStrings fetches the localized UI strings for one integration. The
// result maps dotted resource keys to display text, e.g.
// "config.step.user.title".
func (c *Conn) GetStrings(ctx context.Context, handler string) (map[string]string, error) {
	if handler == "" {
		return nil, fmt.Errorf("handler must not be empty")
	}
	result, err := c.Call(ctx, "get_strings", map[string]any{"handler": handler})
	if err != nil {
		return nil, err
	}
	var strings map[string]string
	if err := json.Unmarshal(result, &strings); err != nil {
		return nil, fmt.Errorf("malformed strings payload: %w", err)
	}
	return strings, nil
}
