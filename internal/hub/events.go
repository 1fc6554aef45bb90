package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/veldt/entryflow/internal/flow"
	"github.com/veldt/entryflow/internal/logging"
	"github.com/veldt/entryflow/internal/protocol"
)

// FlowEvents adapts a connection's event subscriptions to flow.EventSource.
// It subscribes to both flow push event types and delivers them as decoded
// flow.Event values; the flow controller filters by flow id.
type FlowEvents struct {
	conn *Conn
}

// Events returns the flow event source for this connection.
func (c *Conn) Events() *FlowEvents {
	return &FlowEvents{conn: c}
}

// SubscribeFlowEvents subscribes to the two flow push event types. The stop
// function cancels both subscriptions and must be called exactly once.
func (e *FlowEvents) SubscribeFlowEvents(ctx context.Context, handler func(flow.Event)) (func(), error) {
	deliver := func(ev *protocol.EventPayload) {
		data, err := protocol.ParseFlowEvent(ev)
		if err != nil {
			logging.Debug("Ignoring malformed flow event", zap.Error(err))
			return
		}
		kind := flow.EventProgressed
		if ev.EventType == protocol.EventFlowProgressUpdate {
			kind = flow.EventProgressUpdate
		}
		handler(flow.Event{
			Kind:     kind,
			FlowID:   data.FlowID,
			Progress: data.Progress,
		})
	}

	stopProgressed, err := e.conn.SubscribeEvents(ctx, protocol.EventFlowProgressed, deliver)
	if err != nil {
		return nil, err
	}
	stopUpdates, err := e.conn.SubscribeEvents(ctx, protocol.EventFlowProgressUpdate, deliver)
	if err != nil {
		stopProgressed()
		return nil, err
	}

	return func() {
		stopProgressed()
		stopUpdates()
	}, nil
}
