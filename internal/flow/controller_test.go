package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClient is a scriptable Client that records every call.
type fakeClient struct {
	mu sync.Mutex

	createFunc func(handler string) (*Step, error)
	fetchFunc  func(flowID string) (*Step, error)
	submitFunc func(flowID string, input map[string]any) (*Step, error)
	deleteErr  error

	createCalls []string
	fetchCalls  []string
	submitCalls []submitCall
	deleteCalls []string
}

type submitCall struct {
	flowID string
	input  map[string]any
}

func (f *fakeClient) CreateFlow(_ context.Context, handler string) (*Step, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, handler)
	fn := f.createFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("createFunc not set")
	}
	return fn(handler)
}

func (f *fakeClient) FetchFlow(_ context.Context, flowID string) (*Step, error) {
	f.mu.Lock()
	f.fetchCalls = append(f.fetchCalls, flowID)
	fn := f.fetchFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("fetchFunc not set")
	}
	return fn(flowID)
}

func (f *fakeClient) SubmitStep(_ context.Context, flowID string, input map[string]any) (*Step, error) {
	f.mu.Lock()
	f.submitCalls = append(f.submitCalls, submitCall{flowID: flowID, input: input})
	fn := f.submitFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("submitFunc not set")
	}
	return fn(flowID, input)
}

func (f *fakeClient) DeleteFlow(_ context.Context, flowID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, flowID)
	return f.deleteErr
}

func (f *fakeClient) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleteCalls)
}

func (f *fakeClient) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitCalls)
}

// fakeEvents is an EventSource that hands the test the event handler.
type fakeEvents struct {
	mu        sync.Mutex
	handler   func(Event)
	stopCount int
	subCount  int
}

func (f *fakeEvents) SubscribeFlowEvents(_ context.Context, handler func(Event)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	f.subCount++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.stopCount++
	}, nil
}

func (f *fakeEvents) emit(ev Event) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func formStep(flowID string) *Step {
	return &Step{
		Type:   StepForm,
		FlowID: flowID,
		StepID: "user",
		Schema: []Field{{Name: "host", Required: true}},
	}
}

func newTestController(t *testing.T, params DialogParams) *Controller {
	t.Helper()
	c, err := NewController(params, WithLoadingDelay(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return c
}

func TestNewController_ParamValidation(t *testing.T) {
	client := &fakeClient{}

	if _, err := NewController(DialogParams{Client: client}); err == nil {
		t.Error("neither StartHandler nor ResumeFlowID set: want error")
	}
	if _, err := NewController(DialogParams{Client: client, StartHandler: "knx", ResumeFlowID: "abc"}); err == nil {
		t.Error("both StartHandler and ResumeFlowID set: want error")
	}
	if _, err := NewController(DialogParams{StartHandler: "knx"}); err == nil {
		t.Error("missing client: want error")
	}
}

func TestOpen_StartFlow(t *testing.T) {
	client := &fakeClient{
		createFunc: func(handler string) (*Step, error) { return formStep("abc"), nil },
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})

	step, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if step.Type != StepForm || step.FlowID != "abc" {
		t.Errorf("Open() step = %+v", step)
	}
	if len(client.createCalls) != 1 || client.createCalls[0] != "knx" {
		t.Errorf("createCalls = %v, want [knx]", client.createCalls)
	}
}

func TestOpen_ResumeFlow(t *testing.T) {
	client := &fakeClient{
		fetchFunc: func(flowID string) (*Step, error) { return formStep(flowID), nil },
	}
	c := newTestController(t, DialogParams{Client: client, ResumeFlowID: "existing"})

	step, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if step.FlowID != "existing" {
		t.Errorf("FlowID = %q, want existing", step.FlowID)
	}
	if len(client.fetchCalls) != 1 {
		t.Errorf("fetchCalls = %v", client.fetchCalls)
	}
}

func TestOpen_CreateFailureClosesDialog(t *testing.T) {
	client := &fakeClient{
		createFunc: func(string) (*Step, error) { return nil, errors.New("handler not found") },
	}
	var closedResult *CloseResult
	c := newTestController(t, DialogParams{
		Client:       client,
		StartHandler: "knx",
		OnClosed: func(r CloseResult) {
			closedResult = &r
		},
	})

	_, err := c.Open(context.Background())
	if !IsCreateError(err) {
		t.Fatalf("Open() error = %v, want create error", err)
	}
	if !c.Closed() {
		t.Error("dialog should be closed after create failure")
	}
	if closedResult == nil {
		t.Fatal("OnClosed not invoked")
	}
	if closedResult.FlowFinished {
		t.Error("FlowFinished = true, want false")
	}
	if client.deleteCount() != 0 {
		t.Error("DeleteFlow called for a flow that was never created")
	}
}

func TestSubmit_RequiredFieldBlocked(t *testing.T) {
	client := &fakeClient{
		createFunc: func(string) (*Step, error) { return formStep("abc"), nil },
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := c.Submit(context.Background(), map[string]any{})
	if !IsValidationError(err) {
		t.Fatalf("Submit() error = %v, want validation error", err)
	}
	if UserMessage(err) != RequiredFieldsMessage {
		t.Errorf("message = %q, want %q", UserMessage(err), RequiredFieldsMessage)
	}
	if client.submitCount() != 0 {
		t.Error("SubmitStep was called despite blocked validation")
	}
}

func TestSubmit_FullScenario(t *testing.T) {
	// createFlow -> form; submit host -> create_entry; close -> callback,
	// no deleteFlow.
	client := &fakeClient{
		createFunc: func(string) (*Step, error) {
			return &Step{
				Type:   StepForm,
				FlowID: "abc",
				StepID: "user",
				Schema: []Field{{Name: "host", Required: true}},
			}, nil
		},
		submitFunc: func(flowID string, input map[string]any) (*Step, error) {
			return &Step{
				Type:   StepCreateEntry,
				FlowID: flowID,
				Result: &EntryResult{EntryID: "e1"},
			}, nil
		},
	}
	var closedResult *CloseResult
	c := newTestController(t, DialogParams{
		Client:       client,
		StartHandler: "knx",
		OnClosed:     func(r CloseResult) { closedResult = &r },
	})

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	step, err := c.Submit(context.Background(), map[string]any{"host": "1.2.3.4"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if step.Type != StepCreateEntry {
		t.Fatalf("step type = %v, want create_entry", step.Type)
	}

	call := client.submitCalls[0]
	if call.flowID != "abc" {
		t.Errorf("submit flowID = %q, want abc", call.flowID)
	}
	if call.input["host"] != "1.2.3.4" {
		t.Errorf("submit input = %v", call.input)
	}

	result, err := c.Close(context.Background())
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !result.FlowFinished || result.EntryID != "e1" {
		t.Errorf("CloseResult = %+v, want finished with e1", result)
	}
	if client.deleteCount() != 0 {
		t.Error("DeleteFlow called after create_entry")
	}
	if closedResult == nil || !closedResult.FlowFinished || closedResult.EntryID != "e1" {
		t.Errorf("OnClosed result = %+v", closedResult)
	}
}

func TestClose_EarlyDeletesFlowExactlyOnce(t *testing.T) {
	client := &fakeClient{
		createFunc: func(string) (*Step, error) { return formStep("abc"), nil },
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.deleteCount() != 1 {
		t.Fatalf("DeleteFlow called %d times, want 1", client.deleteCount())
	}

	// Second close is rejected and must not delete again.
	if _, err := c.Close(context.Background()); !IsClosedError(err) {
		t.Errorf("second Close() error = %v, want closed error", err)
	}
	if client.deleteCount() != 1 {
		t.Errorf("DeleteFlow called %d times after double close", client.deleteCount())
	}
}

func TestClose_ResumedFlowNeverDeleted(t *testing.T) {
	client := &fakeClient{
		fetchFunc: func(flowID string) (*Step, error) { return formStep(flowID), nil },
	}
	c := newTestController(t, DialogParams{Client: client, ResumeFlowID: "existing"})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.deleteCount() != 0 {
		t.Error("DeleteFlow called for a resumed flow")
	}
}

func TestClose_AbortStepNotDeleted(t *testing.T) {
	client := &fakeClient{
		createFunc: func(string) (*Step, error) {
			return &Step{Type: StepAbort, FlowID: "abc", Reason: "already_configured"}, nil
		},
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	result, err := c.Close(context.Background())
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !result.FlowFinished {
		t.Error("FlowFinished = false for abort, want true")
	}
	if result.EntryID != "" {
		t.Errorf("EntryID = %q for abort, want empty", result.EntryID)
	}
	if client.deleteCount() != 0 {
		t.Error("DeleteFlow called after abort")
	}
}

func TestSubmit_StaleResultRejected(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		createFunc: func(string) (*Step, error) { return formStep("abc"), nil },
		submitFunc: func(flowID string, input map[string]any) (*Step, error) {
			<-release
			return &Step{Type: StepCreateEntry, FlowID: flowID, Result: &EntryResult{EntryID: "late"}}, nil
		},
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), map[string]any{"host": "1.2.3.4"})
		errCh <- err
	}()

	// Wait for the submit to be in flight, then close the dialog.
	waitFor(t, func() bool { return client.submitCount() == 1 })
	if _, err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	close(release)
	if err := <-errCh; !IsClosedError(err) {
		t.Errorf("late submit error = %v, want closed error", err)
	}
	if step := c.Current(); step != nil && step.Type == StepCreateEntry {
		t.Error("stale create_entry step was applied after close")
	}
}

func TestSubmit_SequentialGuard(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		createFunc: func(string) (*Step, error) { return formStep("abc"), nil },
		submitFunc: func(flowID string, input map[string]any) (*Step, error) {
			<-release
			return formStep(flowID), nil
		},
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	go func() {
		_, _ = c.Submit(context.Background(), map[string]any{"host": "a"})
	}()
	waitFor(t, func() bool { return client.submitCount() == 1 })

	_, err := c.Submit(context.Background(), map[string]any{"host": "b"})
	if !IsBusyError(err) {
		t.Errorf("overlapping Submit() error = %v, want busy error", err)
	}
	close(release)
}

func TestSubmit_FailureKeepsCurrentStep(t *testing.T) {
	client := &fakeClient{
		createFunc: func(string) (*Step, error) { return formStep("abc"), nil },
		submitFunc: func(string, map[string]any) (*Step, error) {
			return nil, errors.New("cannot_connect")
		},
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})
	opened, err := c.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Submit(context.Background(), map[string]any{"host": "1.2.3.4"})
	if !IsSubmitError(err) {
		t.Fatalf("Submit() error = %v, want submit error", err)
	}
	if got := c.Current(); got != opened {
		t.Error("current step changed after failed submit")
	}

	// The user can resubmit.
	client.mu.Lock()
	client.submitFunc = func(flowID string, input map[string]any) (*Step, error) {
		return &Step{Type: StepCreateEntry, FlowID: flowID, Result: &EntryResult{EntryID: "e2"}}, nil
	}
	client.mu.Unlock()

	step, err := c.Submit(context.Background(), map[string]any{"host": "1.2.3.4"})
	if err != nil {
		t.Fatalf("resubmit error = %v", err)
	}
	if step.Type != StepCreateEntry {
		t.Errorf("resubmit step = %v", step.Type)
	}
}

func TestMenu_RoundTripPreservesSchema(t *testing.T) {
	schema := []Field{
		{Name: "host", Required: true},
		{Name: "port", Type: FieldInteger},
		{Name: "tls", Type: FieldBoolean},
	}
	client := &fakeClient{
		createFunc: func(string) (*Step, error) {
			return &Step{
				Type:        StepMenu,
				FlowID:      "abc",
				StepID:      "init",
				MenuOptions: MenuOptions{{ID: "manual", Label: "Manual setup"}, {ID: "discovery", Label: "Discover"}},
			}, nil
		},
		submitFunc: func(flowID string, input map[string]any) (*Step, error) {
			if input["next_step_id"] != "manual" {
				return nil, errors.New("unexpected option")
			}
			return &Step{Type: StepForm, FlowID: flowID, StepID: "manual", Schema: schema}, nil
		},
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	step, err := c.SelectMenuOption(context.Background(), "manual")
	if err != nil {
		t.Fatalf("SelectMenuOption() error = %v", err)
	}
	if step.Type != StepForm {
		t.Fatalf("step type = %v, want form", step.Type)
	}
	if len(step.Schema) != len(schema) {
		t.Fatalf("schema length = %d, want %d", len(step.Schema), len(schema))
	}
	for i, field := range schema {
		if step.Schema[i].Name != field.Name {
			t.Errorf("schema[%d] = %q, want %q (order must be preserved)", i, step.Schema[i].Name, field.Name)
		}
	}
}

func TestMenu_UnknownOptionRejected(t *testing.T) {
	client := &fakeClient{
		createFunc: func(string) (*Step, error) {
			return &Step{Type: StepMenu, FlowID: "abc", MenuOptions: MenuOptions{{ID: "a", Label: "A"}}}, nil
		},
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := c.SelectMenuOption(context.Background(), "nope"); !IsValidationError(err) {
		t.Errorf("SelectMenuOption(nope) error = %v, want validation error", err)
	}
	if client.submitCount() != 0 {
		t.Error("SubmitStep called for unknown menu option")
	}
}

func TestProgressEvents(t *testing.T) {
	events := &fakeEvents{}
	client := &fakeClient{
		createFunc: func(string) (*Step, error) {
			return &Step{Type: StepProgress, FlowID: "abc", StepID: "install", ProgressAction: "installing"}, nil
		},
		fetchFunc: func(flowID string) (*Step, error) {
			return &Step{Type: StepCreateEntry, FlowID: flowID, Result: &EntryResult{EntryID: "e1"}}, nil
		},
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx", Events: events})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Subscription is created lazily on first progress step.
	waitFor(t, func() bool {
		events.mu.Lock()
		defer events.mu.Unlock()
		return events.subCount == 1
	})

	// Progress update for another flow is ignored.
	events.emit(Event{Kind: EventProgressUpdate, FlowID: "other", Progress: 0.9})
	if got := c.Current(); got.Progress != 0 {
		t.Errorf("progress = %v after mismatched event, want 0", got.Progress)
	}

	// Matching progress update replaces the step in kind.
	events.emit(Event{Kind: EventProgressUpdate, FlowID: "abc", Progress: 0.5})
	got := c.Current()
	if got.Progress != 0.5 {
		t.Errorf("progress = %v, want 0.5", got.Progress)
	}
	if got.Type != StepProgress {
		t.Errorf("step type changed to %v on progress update", got.Type)
	}

	// Progressed event for another flow does not trigger a re-fetch.
	events.emit(Event{Kind: EventProgressed, FlowID: "other"})
	client.mu.Lock()
	fetches := len(client.fetchCalls)
	client.mu.Unlock()
	if fetches != 0 {
		t.Errorf("fetchCalls = %d after mismatched progressed event, want 0", fetches)
	}

	// Matching progressed event re-fetches and advances.
	events.emit(Event{Kind: EventProgressed, FlowID: "abc"})
	waitFor(t, func() bool {
		s := c.Current()
		return s != nil && s.Type == StepCreateEntry
	})

	// Closing tears the subscription down exactly once.
	if _, err := c.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	events.mu.Lock()
	defer events.mu.Unlock()
	if events.stopCount != 1 {
		t.Errorf("subscription stopped %d times, want 1", events.stopCount)
	}
}

func TestExternalStep_URLOpenedOnce(t *testing.T) {
	events := &fakeEvents{}
	external := &Step{Type: StepExternal, FlowID: "abc", StepID: "auth", URL: "https://example.com/authorize"}
	client := &fakeClient{
		createFunc: func(string) (*Step, error) { return external, nil },
		fetchFunc:  func(flowID string) (*Step, error) { return external.Clone(), nil },
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "spotify", Events: events})

	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	openCount := 0
	drainUpdates(c, func(u Update) {
		if u.Kind == UpdateOpenURL {
			openCount++
		}
	})
	if openCount != 1 {
		t.Fatalf("UpdateOpenURL emitted %d times after open, want 1", openCount)
	}

	// Re-applying the same external step (push-event re-fetch) must not
	// open the URL again.
	waitFor(t, func() bool {
		events.mu.Lock()
		defer events.mu.Unlock()
		return events.handler != nil
	})
	events.emit(Event{Kind: EventProgressed, FlowID: "abc"})
	waitFor(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return len(client.fetchCalls) == 1
	})

	drainUpdates(c, func(u Update) {
		if u.Kind == UpdateOpenURL {
			openCount++
		}
	})
	if openCount != 1 {
		t.Errorf("UpdateOpenURL emitted %d times total, want 1", openCount)
	}
}

func TestLoadingIndicator_Debounced(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		createFunc: func(string) (*Step, error) { return formStep("abc"), nil },
		submitFunc: func(flowID string, input map[string]any) (*Step, error) {
			<-release
			return &Step{Type: StepCreateEntry, FlowID: flowID, Result: &EntryResult{EntryID: "e1"}}, nil
		},
	}
	c := newTestController(t, DialogParams{Client: client, StartHandler: "knx"})
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	drainUpdates(c, nil)

	done := make(chan struct{})
	go func() {
		_, _ = c.Submit(context.Background(), map[string]any{"host": "x"})
		close(done)
	}()

	// Hold the submit well past the loading delay so the indicator fires.
	time.Sleep(50 * time.Millisecond)
	close(release)
	<-done

	var sawLoadingOn, sawLoadingOff bool
	drainUpdates(c, func(u Update) {
		if u.Kind == UpdateLoading {
			if u.Loading {
				sawLoadingOn = true
				if u.Reason != LoadingStep {
					t.Errorf("loading reason = %v, want %v", u.Reason, LoadingStep)
				}
			} else {
				sawLoadingOff = true
			}
		}
	})
	if !sawLoadingOn || !sawLoadingOff {
		t.Errorf("loading updates on=%v off=%v, want both", sawLoadingOn, sawLoadingOff)
	}
}

func TestLoadingIndicator_FastRoundTripShowsNothing(t *testing.T) {
	client := &fakeClient{
		createFunc: func(string) (*Step, error) { return formStep("abc"), nil },
		submitFunc: func(flowID string, input map[string]any) (*Step, error) {
			return &Step{Type: StepCreateEntry, FlowID: flowID, Result: &EntryResult{EntryID: "e1"}}, nil
		},
	}
	c, err := NewController(
		DialogParams{Client: client, StartHandler: "knx"},
		WithLoadingDelay(time.Hour),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Submit(context.Background(), map[string]any{"host": "x"}); err != nil {
		t.Fatal(err)
	}

	drainUpdates(c, func(u Update) {
		if u.Kind == UpdateLoading {
			t.Error("loading update emitted for sub-delay round trip")
		}
	})
}

// drainUpdates consumes all buffered updates, passing each to fn.
func drainUpdates(c *Controller, fn func(Update)) {
	for {
		select {
		case u, ok := <-c.Updates():
			if !ok {
				return
			}
			if fn != nil {
				fn(u)
			}
		default:
			return
		}
	}
}

// waitFor polls until cond holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}
