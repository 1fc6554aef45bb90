package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type constants for the hub WebSocket API envelope.
// The envelope is a JSON object discriminated by its "type" field.
const (
	// Handshake messages (no "id" field)
	MsgTypeAuthRequired = "auth_required" // server -> client, first message on connect
	MsgTypeAuth         = "auth"          // client -> server, carries access token
	MsgTypeAuthOK       = "auth_ok"       // server -> client, handshake complete
	MsgTypeAuthInvalid  = "auth_invalid"  // server -> client, token rejected

	// Command messages (carry a client-assigned "id")
	MsgTypeResult      = "result" // command response (server -> client)
	MsgTypeSubscribe   = "subscribe_events"
	MsgTypeUnsubscribe = "unsubscribe_events"
	MsgTypeEvent       = "event" // server push, tagged with the subscription id
)

// Event types pushed by the hub while a flow is in an external or progress
// step. Both carry the flow_id of the flow they concern.
const (
	// EventFlowProgressed signals the flow advanced server-side and the
	// client should re-fetch the current step.
	EventFlowProgressed = "data_entry_flow_progressed"

	// EventFlowProgressUpdate carries a fractional progress value (0..1)
	// for the flow's current progress step.
	EventFlowProgressUpdate = "data_entry_flow_progress_update"
)

// ServerMessage is the decoded envelope of a message received from the hub.
// Exactly one of Result, Error, or Event is meaningful depending on Type and
// Success.
type ServerMessage struct {
	// Type discriminates the envelope (auth_required, auth_ok, result, event, ...)
	Type string `json:"type"`

	// ID echoes the client-assigned command id (0 for handshake messages)
	ID uint64 `json:"id,omitempty"`

	// Success is set on result envelopes
	Success bool `json:"success,omitempty"`

	// Result is the raw command result payload (valid when Success is true)
	Result json.RawMessage `json:"result,omitempty"`

	// Error is the command error payload (valid when Success is false)
	Error *ErrorPayload `json:"error,omitempty"`

	// Event is the push event payload on event envelopes
	Event *EventPayload `json:"event,omitempty"`

	// Message is a human-readable string on auth_invalid envelopes
	Message string `json:"message,omitempty"`

	// Version is the hub software version on auth_required/auth_ok envelopes
	Version string `json:"ha_version,omitempty"`
}

// ErrorPayload is the error object attached to a failed result envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnknownErrorMessage is shown when a server error payload carries no
// usable message.
const UnknownErrorMessage = "Unknown error occurred"

// DisplayMessage returns the error text to surface to the user, falling
// back to UnknownErrorMessage when the payload has none.
func (e *ErrorPayload) DisplayMessage() string {
	if e == nil || e.Message == "" {
		return UnknownErrorMessage
	}
	return e.Message
}

// EventPayload is the body of an event envelope.
type EventPayload struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// FlowEventData is the decoded data of the two flow push events.
type FlowEventData struct {
	FlowID string `json:"flow_id"`

	// Progress is only present on data_entry_flow_progress_update events.
	// Range 0..1.
	Progress float64 `json:"progress,omitempty"`
}

// ParseServerMessage decodes and validates a single envelope received from
// the hub.
func ParseServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed server message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("server message missing type field")
	}

	switch msg.Type {
	case MsgTypeResult:
		if msg.ID == 0 {
			return nil, fmt.Errorf("result message missing id")
		}
	case MsgTypeEvent:
		if msg.ID == 0 {
			return nil, fmt.Errorf("event message missing subscription id")
		}
		if msg.Event == nil {
			return nil, fmt.Errorf("event message missing event payload")
		}
	}

	return &msg, nil
}

// ParseFlowEvent decodes the flow event data carried by an event envelope.
// Returns an error for event types this client does not understand.
func ParseFlowEvent(ev *EventPayload) (*FlowEventData, error) {
	switch ev.EventType {
	case EventFlowProgressed, EventFlowProgressUpdate:
	default:
		return nil, fmt.Errorf("unexpected flow event type %q", ev.EventType)
	}

	var data FlowEventData
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return nil, fmt.Errorf("malformed flow event data: %w", err)
		}
	}
	if data.FlowID == "" {
		return nil, fmt.Errorf("flow event missing flow_id")
	}
	return &data, nil
}
