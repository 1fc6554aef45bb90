package protocol

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Message constructor library for building envelopes to send to the hub.
// Every command envelope carries a client-assigned, strictly increasing id;
// the hub rejects ids that do not increase within a connection.

// IDSequence issues monotonically increasing message ids for one
// connection. The zero value is ready to use; the first id issued is 1
// (id 0 is reserved for handshake messages).
type IDSequence struct {
	counter atomic.Uint64
}

// Next returns the next message id.
func (s *IDSequence) Next() uint64 {
	return s.counter.Add(1)
}

// BuildAuth constructs the auth handshake message. The access token is the
// only credential the hub accepts; it is never logged.
func BuildAuth(accessToken string) ([]byte, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is empty")
	}
	return json.Marshal(map[string]any{
		"type":         MsgTypeAuth,
		"access_token": accessToken,
	})
}

// BuildCommand constructs a command envelope of the given type with the
// given payload fields merged in. The "id" and "type" keys are owned by the
// envelope and must not appear in payload.
func BuildCommand(id uint64, msgType string, payload map[string]any) ([]byte, error) {
	if id == 0 {
		return nil, fmt.Errorf("command id must be nonzero")
	}
	if msgType == "" {
		return nil, fmt.Errorf("command type is empty")
	}

	envelope := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		if k == "id" || k == "type" {
			return nil, fmt.Errorf("payload field %q collides with envelope", k)
		}
		envelope[k] = v
	}
	envelope["id"] = id
	envelope["type"] = msgType

	return json.Marshal(envelope)
}

// BuildSubscribe constructs a subscribe_events command for one event type.
// The command id doubles as the subscription id on later event envelopes.
func BuildSubscribe(id uint64, eventType string) ([]byte, error) {
	return BuildCommand(id, MsgTypeSubscribe, map[string]any{
		"event_type": eventType,
	})
}

// BuildUnsubscribe constructs an unsubscribe_events command for a prior
// subscription.
func BuildUnsubscribe(id uint64, subscription uint64) ([]byte, error) {
	return BuildCommand(id, MsgTypeUnsubscribe, map[string]any{
		"subscription": subscription,
	})
}
