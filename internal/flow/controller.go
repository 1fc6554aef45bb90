package flow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/veldt/entryflow/internal/logging"
)

// DefaultLoadingDelay is how long an operation must be in flight before a
// loading indicator is announced. Round trips faster than this show no
// spinner at all.
const DefaultLoadingDelay = 250 * time.Millisecond

// Client is the flow-manager API contract the controller drives. The hub
// package provides implementations for each flow domain the host exposes
// (config entry setup, options, repairs).
type Client interface {
	// CreateFlow starts a new flow for the given handler and returns its
	// first step.
	CreateFlow(ctx context.Context, handler string) (*Step, error)

	// FetchFlow returns the current step of an existing flow.
	FetchFlow(ctx context.Context, flowID string) (*Step, error)

	// SubmitStep advances the flow with user input and returns the next step.
	SubmitStep(ctx context.Context, flowID string, input map[string]any) (*Step, error)

	// DeleteFlow abandons an unfinished flow server-side.
	DeleteFlow(ctx context.Context, flowID string) error
}

// EventKind discriminates the push events a flow can receive.
type EventKind int

const (
	// EventProgressed signals the flow advanced server-side; the current
	// step must be re-fetched.
	EventProgressed EventKind = iota

	// EventProgressUpdate carries a new fractional progress value for the
	// current progress step.
	EventProgressUpdate
)

// Event is a server push notification concerning one flow.
type Event struct {
	Kind     EventKind
	FlowID   string
	Progress float64
}

// EventSource delivers push events for external and progress steps. The
// returned stop function tears the subscription down; it must be safe to
// call exactly once.
type EventSource interface {
	SubscribeFlowEvents(ctx context.Context, handler func(Event)) (stop func(), err error)
}

// LoadingReason names what the dialog is waiting for.
type LoadingReason string

const (
	LoadingFlow LoadingReason = "loading_flow" // initial create/fetch
	LoadingStep LoadingReason = "loading_step" // step submission
)

// UpdateKind discriminates controller update notifications.
type UpdateKind int

const (
	// UpdateStep announces a new current step.
	UpdateStep UpdateKind = iota

	// UpdateLoading toggles the loading indicator.
	UpdateLoading

	// UpdateOpenURL asks the presenter to open an external URL. Emitted at
	// most once per external step.
	UpdateOpenURL

	// UpdateClosed is the final update before the channel closes.
	UpdateClosed
)

// Update is a notification pushed to the dialog presenter. The presenter
// never holds transport state; everything it needs arrives here or via the
// return values of controller methods.
type Update struct {
	Kind    UpdateKind
	Step    *Step
	Loading bool
	Reason  LoadingReason
	URL     string
}

// CloseResult reports how the dialog ended.
type CloseResult struct {
	// FlowFinished is true when the flow reached a terminal step
	// (create_entry or abort) before the dialog closed.
	FlowFinished bool

	// EntryID is the created entry's identifier when the flow finished
	// with create_entry.
	EntryID string
}

// DialogParams configures one dialog instance. Exactly one of StartHandler
// and ResumeFlowID must be set: StartHandler creates a new flow, ResumeFlowID
// attaches to an existing one whose lifecycle the caller owns (it is never
// deleted on close).
type DialogParams struct {
	Client Client

	// Events is optional; without it external and progress steps can only
	// advance through explicit re-fetching by the caller.
	Events EventSource

	StartHandler string
	ResumeFlowID string

	// OnClosed is invoked exactly once when the dialog closes.
	OnClosed func(CloseResult)
}

// Controller drives a single dialog instance through a server-side data
// entry flow. It owns the current step, replaces it wholesale on every
// transition, and guards every asynchronous completion with a generation
// token so a result resolved after the dialog closed is never applied.
type Controller struct {
	params       DialogParams
	loadingDelay time.Duration

	mu           sync.Mutex
	ctx          context.Context
	generation   uint64
	current      *Step
	opened       bool
	closed       bool
	submitting   bool
	unsubscribe  func()
	externalSeen map[string]bool

	updates chan Update
}

// Option customizes controller construction.
type Option func(*Controller)

// WithLoadingDelay overrides the loading indicator delay. Mainly for tests.
func WithLoadingDelay(d time.Duration) Option {
	return func(c *Controller) { c.loadingDelay = d }
}

// NewController validates params and builds a controller. The dialog is not
// opened yet; call Open to load the first step.
func NewController(params DialogParams, opts ...Option) (*Controller, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("flow: DialogParams.Client is required")
	}
	if (params.StartHandler == "") == (params.ResumeFlowID == "") {
		return nil, fmt.Errorf("flow: exactly one of StartHandler and ResumeFlowID must be set")
	}

	c := &Controller{
		params:       params,
		loadingDelay: DefaultLoadingDelay,
		ctx:          context.Background(),
		externalSeen: make(map[string]bool),
		updates:      make(chan Update, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Updates returns the stream of presenter notifications. The channel closes
// after the UpdateClosed notification.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Current returns the step the dialog is showing, or nil before the first
// load completes.
func (c *Controller) Current() *Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Closed reports whether the dialog has been closed.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Open loads the first step: CreateFlow when StartHandler is set, FetchFlow
// for a resumed flow. A failure here is fatal to the dialog; it closes
// itself and the error carries the message to surface.
func (c *Controller) Open(ctx context.Context) (*Step, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errClosed()
	}
	if c.opened {
		c.mu.Unlock()
		return nil, fmt.Errorf("flow: dialog already opened")
	}
	c.opened = true
	c.ctx = ctx
	gen := c.generation
	c.mu.Unlock()

	done := c.deferLoading(LoadingFlow, gen)
	var step *Step
	var err error
	if c.params.StartHandler != "" {
		step, err = c.params.Client.CreateFlow(ctx, c.params.StartHandler)
	} else {
		step, err = c.params.Client.FetchFlow(ctx, c.params.ResumeFlowID)
	}
	done()

	if err != nil {
		// Fatal: the dialog never got a step to show. Close without
		// touching the server (there is nothing to delete).
		c.abandon()
		return nil, NewCreateError(UserMessage(err), err)
	}

	if !c.apply(step, gen) {
		return nil, errClosed()
	}
	return step, nil
}

// Submit validates the user input against the current form step's schema
// and advances the flow. Validation failures never reach the network. A
// server-side failure is recoverable: the current step is retained so the
// user can correct input and resubmit.
func (c *Controller) Submit(ctx context.Context, input map[string]any) (*Step, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errClosed()
	}
	if c.current == nil || c.current.Type != StepForm {
		c.mu.Unlock()
		return nil, NewValidationError("current step does not accept form input")
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, errBusy()
	}
	if err := ValidateInput(c.current.Schema, input); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.submitting = true
	gen := c.generation
	flowID := c.current.FlowID
	c.mu.Unlock()

	return c.advance(ctx, gen, flowID, input)
}

// SelectMenuOption advances a menu step by submitting the chosen branch.
func (c *Controller) SelectMenuOption(ctx context.Context, optionID string) (*Step, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errClosed()
	}
	if c.current == nil || c.current.Type != StepMenu {
		c.mu.Unlock()
		return nil, NewValidationError("current step is not a menu")
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, errBusy()
	}
	valid := false
	for _, opt := range c.current.MenuOptions {
		if opt.ID == optionID {
			valid = true
			break
		}
	}
	if !valid {
		c.mu.Unlock()
		return nil, NewValidationError(fmt.Sprintf("menu has no option %q", optionID))
	}
	c.submitting = true
	gen := c.generation
	flowID := c.current.FlowID
	c.mu.Unlock()

	return c.advance(ctx, gen, flowID, map[string]any{"next_step_id": optionID})
}

// advance performs the SubmitStep round trip shared by Submit and
// SelectMenuOption.
func (c *Controller) advance(ctx context.Context, gen uint64, flowID string, input map[string]any) (*Step, error) {
	done := c.deferLoading(LoadingStep, gen)
	step, err := c.params.Client.SubmitStep(ctx, flowID, input)
	done()

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()

	if err != nil {
		// Recoverable: previous step stays current.
		return nil, NewSubmitError(flowID, UserMessage(err), err)
	}
	if !c.apply(step, gen) {
		return nil, errClosed()
	}
	return step, nil
}

// Close ends the dialog. The flow is deleted server-side unless it reached
// a terminal step or was resumed (the caller owns resumed flows). Close is
// effective exactly once; later calls report ErrKindClosed.
func (c *Controller) Close(ctx context.Context) (CloseResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return CloseResult{}, errClosed()
	}
	c.closed = true
	c.generation++
	unsub := c.unsubscribe
	c.unsubscribe = nil
	step := c.current
	c.sendLocked(Update{Kind: UpdateClosed})
	close(c.updates)
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}

	var result CloseResult
	if step != nil && step.Type.Terminal() {
		result.FlowFinished = true
		if step.Type == StepCreateEntry && step.Result != nil {
			result.EntryID = step.Result.EntryID
		}
	}

	var deleteErr error
	if step != nil && !step.Type.Terminal() && c.params.ResumeFlowID == "" {
		if err := c.params.Client.DeleteFlow(ctx, step.FlowID); err != nil {
			deleteErr = NewDeleteError(step.FlowID, err)
			logging.Warn("Failed to delete abandoned flow",
				zap.String("flow_id", step.FlowID),
				zap.Error(err),
			)
		}
	}

	if c.params.OnClosed != nil {
		c.params.OnClosed(result)
	}
	return result, deleteErr
}

// abandon closes the dialog after a fatal open failure. No step was ever
// shown, so there is no flow to delete.
func (c *Controller) abandon() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.sendLocked(Update{Kind: UpdateClosed})
	close(c.updates)
	c.mu.Unlock()

	if c.params.OnClosed != nil {
		c.params.OnClosed(CloseResult{})
	}
}

// apply installs a step as current if the dialog is still on the same
// generation. Returns false when the result is stale.
func (c *Controller) apply(step *Step, gen uint64) bool {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		live := c.generation
		c.mu.Unlock()
		logging.LogStaleResult(step.FlowID, gen, live)
		return false
	}

	from := "uninitialized"
	if c.current != nil {
		from = string(c.current.Type)
	}
	c.current = step
	logging.LogStepTransition(step.FlowID, from, string(step.Type), step.StepID)

	needSubscribe := false
	switch step.Type {
	case StepExternal, StepProgress:
		needSubscribe = c.unsubscribe == nil && c.params.Events != nil
	}

	if step.Type == StepExternal {
		key := step.FlowID + "/" + step.StepID
		if !c.externalSeen[key] {
			c.externalSeen[key] = true
			c.sendLocked(Update{Kind: UpdateOpenURL, URL: step.URL})
		}
	}

	c.sendLocked(Update{Kind: UpdateStep, Step: step})
	ctx := c.ctx
	c.mu.Unlock()

	if needSubscribe {
		c.subscribe(ctx, gen)
	}
	return true
}

// subscribe lazily creates the push event subscription the first time an
// external or progress step is shown.
func (c *Controller) subscribe(ctx context.Context, gen uint64) {
	stop, err := c.params.Events.SubscribeFlowEvents(ctx, c.handleEvent)
	if err != nil {
		logging.Warn("Failed to subscribe to flow events", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.closed || gen != c.generation || c.unsubscribe != nil {
		c.mu.Unlock()
		stop()
		return
	}
	c.unsubscribe = stop
	c.mu.Unlock()
}

// handleEvent processes one push event. Events for other flows are ignored
// outright.
func (c *Controller) handleEvent(ev Event) {
	c.mu.Lock()
	if c.closed || c.current == nil || ev.FlowID != c.current.FlowID {
		c.mu.Unlock()
		logging.Debug("Ignoring flow event for non-current flow",
			zap.String("event_flow_id", ev.FlowID),
		)
		return
	}
	gen := c.generation

	if ev.Kind == EventProgressUpdate {
		if c.current.Type != StepProgress {
			c.mu.Unlock()
			return
		}
		// Replace the step with a clone carrying the new value; the step
		// type does not change. Values outside 0..1 are clamped.
		clone := c.current.Clone()
		clone.Progress = min(max(ev.Progress, 0), 1)
		c.current = clone
		c.sendLocked(Update{Kind: UpdateStep, Step: clone})
		c.mu.Unlock()
		return
	}

	ctx := c.ctx
	flowID := ev.FlowID
	c.mu.Unlock()

	step, err := c.params.Client.FetchFlow(ctx, flowID)
	if err != nil {
		logging.Warn("Failed to re-fetch flow after progress event",
			zap.String("flow_id", flowID),
			zap.Error(err),
		)
		return
	}
	c.apply(step, gen)
}

// deferLoading arms the loading indicator timer. The returned function
// disarms it and, if the indicator was shown, announces its removal.
func (c *Controller) deferLoading(reason LoadingReason, gen uint64) func() {
	var fired atomic.Bool
	timer := time.AfterFunc(c.loadingDelay, func() {
		c.mu.Lock()
		if c.closed || gen != c.generation {
			c.mu.Unlock()
			return
		}
		fired.Store(true)
		c.sendLocked(Update{Kind: UpdateLoading, Loading: true, Reason: reason})
		c.mu.Unlock()
	})

	return func() {
		timer.Stop()
		if !fired.Load() {
			return
		}
		c.mu.Lock()
		if !c.closed && gen == c.generation {
			c.sendLocked(Update{Kind: UpdateLoading, Loading: false, Reason: reason})
		}
		c.mu.Unlock()
	}
}

// sendLocked pushes an update without blocking. The caller holds c.mu, so
// the channel cannot be closed concurrently. A full channel drops the
// update; presenters that fall this far behind re-sync from Current.
func (c *Controller) sendLocked(u Update) {
	select {
	case c.updates <- u:
	default:
		logging.Warn("Update channel full, dropping update",
			zap.Int("kind", int(u.Kind)),
		)
	}
}
