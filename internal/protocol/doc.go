// Package protocol defines the hub WebSocket API message envelope.
//
// The hub speaks a JSON message protocol over a single WebSocket connection.
// Every message is one JSON object discriminated by its "type" field.
//
// # Handshake
//
// On connect, the hub sends auth_required. The client answers with an auth
// message carrying a long-lived access token, and the hub replies auth_ok or
// auth_invalid:
//
//	S: {"type": "auth_required", "ha_version": "2026.8"}
//	C: {"type": "auth", "access_token": "eyJ..."}
//	S: {"type": "auth_ok", "ha_version": "2026.8"}
//
// # Commands
//
// After the handshake, the client sends command envelopes with strictly
// increasing ids. The hub answers each with exactly one result envelope
// echoing the id:
//
//	C: {"id": 1, "type": "config_entries/flow/create", "handler": "knx"}
//	S: {"id": 1, "type": "result", "success": true, "result": {...}}
//
// Failed commands carry success=false and an error payload with a code and
// message. ErrorPayload.DisplayMessage falls back to a generic message when
// the payload has none.
//
// # Events
//
// subscribe_events registers for push events of one event type. Events
// arrive as event envelopes tagged with the subscription id:
//
//	S: {"id": 2, "type": "event",
//	    "event": {"event_type": "data_entry_flow_progressed",
//	              "data": {"flow_id": "01J9..."}}}
//
// This package only defines and validates envelopes; connection handling
// lives in the hub package.
package protocol
