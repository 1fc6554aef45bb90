package sim

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/veldt/entryflow/internal/logging"
	"github.com/veldt/entryflow/internal/protocol"
)

const (
	// simVersion is the hub version the simulator reports
	simVersion = "2025.8.0-sim"

	// defaultAdvanceDelay is how long an external step waits before it
	// advances on its own, standing in for the user finishing the
	// external authorization.
	defaultAdvanceDelay = 2 * time.Second
)

// Server is a scripted hub: it speaks the WebSocket API well enough to
// drive the wizard end to end, answering every flow command from a Script
// instead of real integrations.
type Server struct {
	script *Script
	token  string

	upgrader websocket.Upgrader

	mu       sync.Mutex
	flows    map[string]*flowState
	sessions map[*session]struct{}
}

type flowState struct {
	id       string
	stepID   string
	errors   map[string]string
	progress float64
}

// session is one client connection. Writes are serialized because timers
// push events concurrently with command replies.
type session struct {
	srv     *Server
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[uint64]string // subscription id -> event type
}

// NewServer builds a simulator for one script. Clients must authenticate
// with the given token.
func NewServer(script *Script, token string) *Server {
	return &Server{
		script:   script,
		token:    token,
		flows:    make(map[string]*flowState),
		sessions: make(map[*session]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the session until the client
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Upgrade failed", zap.Error(err))
		return
	}

	sess := &session{srv: s, ws: ws, subs: make(map[uint64]string)}
	if err := sess.handshake(); err != nil {
		logging.Debug("Handshake failed", zap.Error(err))
		_ = ws.Close()
		return
	}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	sess.run()

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	_ = ws.Close()
}

// ListenAndServe runs the simulator on addr until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/api/websocket", s)
	logging.Info("Simulator listening",
		zap.String("addr", addr),
		zap.String("handler", s.script.Handler),
	)
	return http.ListenAndServe(addr, mux)
}

func (sess *session) handshake() error {
	if err := sess.writeJSON(map[string]any{
		"type":       protocol.MsgTypeAuthRequired,
		"ha_version": simVersion,
	}); err != nil {
		return err
	}

	var auth struct {
		Type        string `json:"type"`
		AccessToken string `json:"access_token"`
	}
	if err := sess.ws.ReadJSON(&auth); err != nil {
		return err
	}
	if auth.Type != protocol.MsgTypeAuth || auth.AccessToken != sess.srv.token {
		_ = sess.writeJSON(map[string]any{
			"type":    protocol.MsgTypeAuthInvalid,
			"message": "Invalid access token",
		})
		return fmt.Errorf("invalid access token")
	}

	return sess.writeJSON(map[string]any{
		"type":       protocol.MsgTypeAuthOK,
		"ha_version": simVersion,
	})
}

func (sess *session) run() {
	for {
		var msg map[string]any
		if err := sess.ws.ReadJSON(&msg); err != nil {
			return
		}
		sess.dispatch(msg)
	}
}

func (sess *session) dispatch(msg map[string]any) {
	id, _ := msg["id"].(float64)
	msgID := uint64(id)
	msgType, _ := msg["type"].(string)
	srv := sess.srv

	switch msgType {
	case protocol.MsgTypeSubscribe:
		eventType, _ := msg["event_type"].(string)
		sess.mu.Lock()
		sess.subs[msgID] = eventType
		sess.mu.Unlock()
		sess.result(msgID, nil)

	case protocol.MsgTypeUnsubscribe:
		sub, _ := msg["subscription"].(float64)
		sess.mu.Lock()
		delete(sess.subs, uint64(sub))
		sess.mu.Unlock()
		sess.result(msgID, nil)

	case "config_entries/flow_handlers":
		sess.result(msgID, []string{srv.script.Handler})

	case "get_strings":
		handler, _ := msg["handler"].(string)
		if handler != srv.script.Handler {
			sess.result(msgID, map[string]string{})
			return
		}
		sess.result(msgID, srv.script.Strings)

	case "config_entries/flow/create":
		handler, _ := msg["handler"].(string)
		if handler != srv.script.Handler {
			sess.fail(msgID, "unknown_handler", fmt.Sprintf("No config flow for handler %q", handler))
			return
		}
		srv.createFlow(sess, msgID)

	case "config_entries/flow/get":
		flowID, _ := msg["flow_id"].(string)
		srv.getFlow(sess, msgID, flowID)

	case "config_entries/flow/submit":
		flowID, _ := msg["flow_id"].(string)
		input, _ := msg["user_input"].(map[string]any)
		srv.submitFlow(sess, msgID, flowID, input)

	case "config_entries/flow/delete":
		flowID, _ := msg["flow_id"].(string)
		srv.deleteFlow(sess, msgID, flowID)

	default:
		sess.fail(msgID, "unknown_command", fmt.Sprintf("Unknown command %q", msgType))
	}
}

func (s *Server) createFlow(sess *session, msgID uint64) {
	flow := &flowState{
		id:     uuid.NewString(),
		stepID: s.script.FirstStep,
	}
	step := s.script.Steps[flow.stepID]

	s.mu.Lock()
	if step.Type != "abort" && step.Type != "create_entry" {
		s.flows[flow.id] = flow
		s.startAsync(flow.id, step)
	}
	rendered := s.renderStep(flow, step)
	s.mu.Unlock()

	sess.result(msgID, rendered)
}

func (s *Server) getFlow(sess *session, msgID uint64, flowID string) {
	s.mu.Lock()
	flow, ok := s.flows[flowID]
	var rendered map[string]any
	if ok {
		step := s.script.Steps[flow.stepID]
		rendered = s.renderStep(flow, step)
		// Serving a terminal step ends the flow.
		if step.Type == "abort" || step.Type == "create_entry" {
			delete(s.flows, flowID)
		}
	}
	s.mu.Unlock()

	if !ok {
		sess.fail(msgID, "unknown_flow", "Flow not found")
		return
	}
	sess.result(msgID, rendered)
}

func (s *Server) submitFlow(sess *session, msgID uint64, flowID string, input map[string]any) {
	s.mu.Lock()
	flow, ok := s.flows[flowID]
	var step *ScriptStep
	if ok {
		step = s.script.Steps[flow.stepID]
	}
	s.mu.Unlock()

	if !ok {
		sess.fail(msgID, "unknown_flow", "Flow not found")
		return
	}

	switch step.Type {
	case "form":
		if route := step.route(input); route != nil {
			if len(route.Errors) > 0 {
				s.mu.Lock()
				flow.errors = route.Errors
				rendered := s.renderStep(flow, step)
				s.mu.Unlock()
				sess.result(msgID, rendered)
				return
			}
			s.moveTo(sess, msgID, flow, route.Next)
			return
		}
		if step.Next == "" {
			sess.fail(msgID, "unknown_step", "Step has nowhere to go")
			return
		}
		s.moveTo(sess, msgID, flow, step.Next)

	case "menu":
		option, _ := input["next_step_id"].(string)
		if _, ok := step.MenuOptions[option]; !ok {
			sess.fail(msgID, "invalid_option", fmt.Sprintf("Unknown menu option %q", option))
			return
		}
		s.moveTo(sess, msgID, flow, option)

	default:
		sess.fail(msgID, "invalid_step", fmt.Sprintf("Cannot submit a %s step", step.Type))
	}
}

// moveTo advances the flow and replies with the new step. Terminal steps
// remove the flow.
func (s *Server) moveTo(sess *session, msgID uint64, flow *flowState, next string) {
	step := s.script.Steps[next]

	s.mu.Lock()
	flow.stepID = next
	flow.errors = nil
	flow.progress = 0
	if step.Type == "abort" || step.Type == "create_entry" {
		delete(s.flows, flow.id)
	} else {
		s.startAsync(flow.id, step)
	}
	rendered := s.renderStep(flow, step)
	s.mu.Unlock()

	sess.result(msgID, rendered)
}

func (s *Server) deleteFlow(sess *session, msgID uint64, flowID string) {
	s.mu.Lock()
	_, ok := s.flows[flowID]
	delete(s.flows, flowID)
	s.mu.Unlock()

	if !ok {
		sess.fail(msgID, "unknown_flow", "Flow not found")
		return
	}
	sess.result(msgID, nil)
}

// startAsync kicks off the timers behind external and progress steps.
func (s *Server) startAsync(flowID string, step *ScriptStep) {
	switch step.Type {
	case "external":
		delay := defaultAdvanceDelay
		if step.AdvanceAfterMs > 0 {
			delay = time.Duration(step.AdvanceAfterMs) * time.Millisecond
		}
		go s.advanceLater(flowID, step, delay)

	case "progress":
		go s.runProgress(flowID, step)
	}
}

// advanceLater moves an external step forward once its delay elapses,
// unless the flow was deleted or already moved on.
func (s *Server) advanceLater(flowID string, from *ScriptStep, delay time.Duration) {
	time.Sleep(delay)

	if !s.advanceIfCurrent(flowID, from) {
		return
	}
	s.broadcast(protocol.EventFlowProgressed, map[string]any{"flow_id": flowID})
}

// runProgress pushes the scripted progress ticks, then advances.
func (s *Server) runProgress(flowID string, from *ScriptStep) {
	for _, tick := range from.Ticks {
		if tick.DelayMs > 0 {
			time.Sleep(time.Duration(tick.DelayMs) * time.Millisecond)
		}

		s.mu.Lock()
		flow, ok := s.flows[flowID]
		current := ok && s.script.Steps[flow.stepID] == from
		if current {
			flow.progress = tick.Progress
		}
		s.mu.Unlock()
		if !current {
			return
		}
		s.broadcast(protocol.EventFlowProgressUpdate, map[string]any{
			"flow_id":  flowID,
			"progress": tick.Progress,
		})
	}

	if !s.advanceIfCurrent(flowID, from) {
		return
	}
	s.broadcast(protocol.EventFlowProgressed, map[string]any{"flow_id": flowID})
}

// advanceIfCurrent moves the flow to from.Next when it still sits on the
// given step.
func (s *Server) advanceIfCurrent(flowID string, from *ScriptStep) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[flowID]
	if !ok || s.script.Steps[flow.stepID] != from {
		return false
	}
	flow.stepID = from.Next
	flow.errors = nil
	flow.progress = 0

	// Terminal steps stay fetchable until the client re-fetches after the
	// progressed event; chained async steps keep going.
	next := s.script.Steps[from.Next]
	if next.Type != "abort" && next.Type != "create_entry" {
		s.startAsync(flowID, next)
	}
	return true
}

// broadcast pushes an event to every session subscribed to its type.
func (s *Server) broadcast(eventType string, data map[string]any) {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.pushEvent(eventType, data)
	}
}

// renderStep builds the wire form of the flow's current step.
func (s *Server) renderStep(flow *flowState, step *ScriptStep) map[string]any {
	out := map[string]any{
		"type":    step.Type,
		"flow_id": flow.id,
		"handler": s.script.Handler,
	}

	switch step.Type {
	case "form":
		out["step_id"] = flow.stepID
		schema := make([]map[string]any, 0, len(step.Schema))
		for _, f := range step.Schema {
			field := map[string]any{"name": f.Name}
			if f.Type != "" {
				field["type"] = f.Type
			}
			if f.Required {
				field["required"] = true
			}
			if f.Default != nil {
				field["default"] = f.Default
			}
			if len(f.Options) > 0 {
				field["options"] = f.Options
			}
			schema = append(schema, field)
		}
		out["data_schema"] = schema
		if len(flow.errors) > 0 {
			out["errors"] = flow.errors
		}

	case "menu":
		out["step_id"] = flow.stepID
		out["menu_options"] = step.MenuOptions

	case "external":
		out["step_id"] = flow.stepID
		out["url"] = step.URL

	case "progress":
		out["step_id"] = flow.stepID
		out["progress_action"] = step.ProgressAction
		out["progress"] = flow.progress

	case "abort":
		out["reason"] = step.Reason

	case "create_entry":
		title := step.Title
		if title == "" {
			title = s.script.Handler
		}
		out["title"] = title
		out["result"] = map[string]any{
			"entry_id": uuid.NewString(),
			"title":    title,
			"domain":   s.script.Handler,
		}
	}
	return out
}

func (sess *session) result(id uint64, result any) {
	msg := map[string]any{
		"type":    protocol.MsgTypeResult,
		"id":      id,
		"success": true,
	}
	if result != nil {
		msg["result"] = result
	}
	if err := sess.writeJSON(msg); err != nil {
		logging.Debug("Failed to write result", zap.Error(err))
	}
}

func (sess *session) fail(id uint64, code, message string) {
	err := sess.writeJSON(map[string]any{
		"type":    protocol.MsgTypeResult,
		"id":      id,
		"success": false,
		"error":   map[string]any{"code": code, "message": message},
	})
	if err != nil {
		logging.Debug("Failed to write error result", zap.Error(err))
	}
}

func (sess *session) pushEvent(eventType string, data map[string]any) {
	sess.mu.Lock()
	var ids []uint64
	for id, et := range sess.subs {
		if et == eventType {
			ids = append(ids, id)
		}
	}
	sess.mu.Unlock()

	for _, id := range ids {
		err := sess.writeJSON(map[string]any{
			"type": protocol.MsgTypeEvent,
			"id":   id,
			"event": map[string]any{
				"event_type": eventType,
				"data":       data,
			},
		})
		if err != nil {
			logging.Debug("Failed to push event", zap.Error(err))
		}
	}
}

func (sess *session) writeJSON(v any) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.ws.WriteJSON(v)
}
