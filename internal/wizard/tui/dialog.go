package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"

	"github.com/veldt/entryflow/internal/catalog"
	"github.com/veldt/entryflow/internal/flow"
)

// Messages produced by the dialog screen
type flowUpdateMsg struct {
	update flow.Update
}

type flowChannelClosedMsg struct{}

type flowOpenedMsg struct {
	err error
}

type flowSubmittedMsg struct {
	err error
}

type browserOpenedMsg struct {
	url string
	err error
}

type dialogClosedMsg struct {
	result flow.CloseResult
	err    error
}

// fieldInput holds the edit state for one form field. Text-like fields use
// a textinput; booleans toggle and selects cycle through their options.
type fieldInput struct {
	field     flow.Field
	text      textinput.Model
	boolValue bool
	selectIdx int
	parseErr  string
}

// DialogModel drives a single flow dialog: it renders the controller's
// current step and feeds user input back through it.
type DialogModel struct {
	ctrl *flow.Controller

	// locFor resolves the localizer once the flow's handler is known; for
	// resumed flows that only happens with the first fetched step.
	locFor func(handler string) *catalog.Localizer
	loc    *catalog.Localizer

	step    *flow.Step
	inputs  []fieldInput
	focus   int
	cursor  int
	errMsg  string
	busy    bool
	loading bool
	reason  flow.LoadingReason
	openErr string

	closed      bool
	closeResult *flow.CloseResult

	spinner     spinner.Model
	progressBar progress.Model

	Width  int
	Height int
}

// NewDialogModel builds the dialog screen for an already-constructed
// controller. The controller has not been opened yet; Init does that.
func NewDialogModel(ctrl *flow.Controller, locFor func(handler string) *catalog.Localizer) DialogModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return DialogModel{
		ctrl:        ctrl,
		locFor:      locFor,
		spinner:     sp,
		progressBar: progress.New(progress.WithDefaultGradient()),
	}
}

// Init opens the flow and starts listening for controller updates.
func (m DialogModel) Init() tea.Cmd {
	return tea.Batch(
		m.openFlow(),
		m.waitForUpdate(),
		m.spinner.Tick,
	)
}

func (m DialogModel) openFlow() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		_, err := ctrl.Open(context.Background())
		return flowOpenedMsg{err: err}
	}
}

// waitForUpdate relays one controller update into the bubbletea loop. It is
// re-armed after every delivery until the channel closes.
func (m DialogModel) waitForUpdate() tea.Cmd {
	ch := m.ctrl.Updates()
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return flowChannelClosedMsg{}
		}
		return flowUpdateMsg{update: update}
	}
}

func (m DialogModel) closeDialog() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		result, err := ctrl.Close(context.Background())
		return dialogClosedMsg{result: result, err: err}
	}
}

// Update handles messages for the dialog screen
func (m DialogModel) Update(msg tea.Msg) (DialogModel, tea.Cmd) {
	switch msg := msg.(type) {
	case flowUpdateMsg:
		cmd := m.applyUpdate(msg.update)
		return m, tea.Batch(cmd, m.waitForUpdate())

	case flowChannelClosedMsg:
		return m, nil

	case flowOpenedMsg:
		if msg.err != nil {
			// Opening failed; the controller already closed itself.
			m.errMsg = flow.UserMessage(msg.err)
			m.closed = true
		}
		return m, nil

	case flowSubmittedMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = flow.UserMessage(msg.err)
		}
		return m, nil

	case browserOpenedMsg:
		if msg.err != nil {
			m.openErr = fmt.Sprintf("Could not open a browser; visit %s", msg.url)
		}
		return m, nil

	case dialogClosedMsg:
		m.closed = true
		m.closeResult = &msg.result
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Let the focused text input see everything else.
	if m.step != nil && m.step.Type == flow.StepForm && m.focus < len(m.inputs) {
		var cmd tea.Cmd
		m.inputs[m.focus].text, cmd = m.inputs[m.focus].text.Update(msg)
		return m, cmd
	}
	return m, nil
}

// applyUpdate folds one controller update into the screen state.
func (m *DialogModel) applyUpdate(update flow.Update) tea.Cmd {
	switch update.Kind {
	case flow.UpdateStep:
		m.setStep(update.Step)

	case flow.UpdateLoading:
		m.loading = update.Loading
		m.reason = update.Reason

	case flow.UpdateOpenURL:
		url := update.URL
		return func() tea.Msg {
			return browserOpenedMsg{url: url, err: browser.OpenURL(url)}
		}

	case flow.UpdateClosed:
		m.closed = true
	}
	return nil
}

// setStep swaps in a new current step and rebuilds the edit state.
func (m *DialogModel) setStep(step *flow.Step) {
	m.step = step
	if m.loc == nil && m.locFor != nil {
		m.loc = m.locFor(step.Handler)
	}
	m.errMsg = ""
	m.cursor = 0
	m.focus = 0
	m.openErr = ""

	if step.Type != flow.StepForm {
		m.inputs = nil
		return
	}

	m.inputs = make([]fieldInput, len(step.Schema))
	for i, field := range step.Schema {
		in := fieldInput{field: field}

		switch field.Type {
		case flow.FieldBoolean:
			if v, ok := field.Default.(bool); ok {
				in.boolValue = v
			}
		case flow.FieldSelect:
			if def, ok := field.Default.(string); ok {
				for idx, opt := range field.Options {
					if opt == def {
						in.selectIdx = idx
					}
				}
			}
		default:
			ti := textinput.New()
			ti.Prompt = "> "
			ti.PromptStyle = BlurredInputStyle
			ti.TextStyle = BlurredInputStyle
			if field.Type == flow.FieldPassword {
				ti.EchoMode = textinput.EchoPassword
			}
			if field.Default != nil {
				ti.SetValue(fmt.Sprint(field.Default))
			}
			in.text = ti
		}
		m.inputs[i] = in
	}
	m.setFocus(0)
}

// setFocus moves form focus. Exactly one input is focused at a time.
func (m *DialogModel) setFocus(idx int) {
	if len(m.inputs) == 0 {
		return
	}
	m.focus = (idx + len(m.inputs)) % len(m.inputs)
	for i := range m.inputs {
		in := &m.inputs[i]
		if in.field.Type == flow.FieldBoolean || in.field.Type == flow.FieldSelect {
			continue
		}
		if i == m.focus {
			in.text.Focus()
			in.text.PromptStyle = FocusedInputStyle
			in.text.TextStyle = FocusedInputStyle
		} else {
			in.text.Blur()
			in.text.PromptStyle = BlurredInputStyle
			in.text.TextStyle = BlurredInputStyle
		}
	}
}

func (m DialogModel) handleKey(msg tea.KeyMsg) (DialogModel, tea.Cmd) {
	if m.closed {
		return m, nil
	}

	// Terminal steps only wait for acknowledgement.
	if m.step != nil && m.step.Type.Terminal() {
		switch msg.String() {
		case "enter", "q", "esc":
			return m, m.closeDialog()
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		return m, m.closeDialog()
	}

	if m.step == nil || m.busy {
		return m, nil
	}

	switch m.step.Type {
	case flow.StepForm:
		return m.handleFormKey(msg)
	case flow.StepMenu:
		return m.handleMenuKey(msg)
	}
	return m, nil
}

func (m DialogModel) handleFormKey(msg tea.KeyMsg) (DialogModel, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		m.setFocus(m.focus + 1)
		return m, nil

	case "shift+tab", "up":
		m.setFocus(m.focus - 1)
		return m, nil

	case "enter":
		return m.submitForm()
	}

	if m.focus < len(m.inputs) {
		in := &m.inputs[m.focus]
		switch in.field.Type {
		case flow.FieldBoolean:
			if msg.String() == " " || msg.String() == "left" || msg.String() == "right" {
				in.boolValue = !in.boolValue
			}
			return m, nil

		case flow.FieldSelect:
			switch msg.String() {
			case "left":
				in.selectIdx = (in.selectIdx - 1 + len(in.field.Options)) % len(in.field.Options)
			case "right", " ":
				in.selectIdx = (in.selectIdx + 1) % len(in.field.Options)
			}
			return m, nil

		default:
			var cmd tea.Cmd
			in.text, cmd = in.text.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m DialogModel) handleMenuKey(msg tea.KeyMsg) (DialogModel, tea.Cmd) {
	options := m.step.MenuOptions
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(options)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(options) {
			option := options[m.cursor].ID
			m.busy = true
			ctrl := m.ctrl
			return m, func() tea.Msg {
				_, err := ctrl.SelectMenuOption(context.Background(), option)
				return flowSubmittedMsg{err: err}
			}
		}
	}
	return m, nil
}

// submitForm collects the form values and sends them through the
// controller. Parse failures stay local; nothing is sent until every typed
// field converts.
func (m DialogModel) submitForm() (DialogModel, tea.Cmd) {
	input := make(map[string]any, len(m.inputs))
	parseFailed := false

	for i := range m.inputs {
		in := &m.inputs[i]
		in.parseErr = ""

		switch in.field.Type {
		case flow.FieldBoolean:
			input[in.field.Name] = in.boolValue

		case flow.FieldSelect:
			if len(in.field.Options) > 0 {
				input[in.field.Name] = in.field.Options[in.selectIdx]
			}

		case flow.FieldInteger:
			raw := strings.TrimSpace(in.text.Value())
			if raw == "" {
				continue
			}
			v, err := strconv.Atoi(raw)
			if err != nil {
				in.parseErr = "must be a whole number"
				parseFailed = true
				continue
			}
			input[in.field.Name] = v

		case flow.FieldFloat:
			raw := strings.TrimSpace(in.text.Value())
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				in.parseErr = "must be a number"
				parseFailed = true
				continue
			}
			input[in.field.Name] = v

		default:
			raw := in.text.Value()
			if raw == "" {
				continue
			}
			input[in.field.Name] = raw
		}
	}

	if parseFailed {
		return m, nil
	}

	m.busy = true
	m.errMsg = ""
	ctrl := m.ctrl
	return m, func() tea.Msg {
		_, err := ctrl.Submit(context.Background(), input)
		return flowSubmittedMsg{err: err}
	}
}

// Closed reports whether the dialog has finished, and with what result.
func (m DialogModel) Closed() (bool, *flow.CloseResult) {
	return m.closed, m.closeResult
}

// View renders the dialog screen
func (m DialogModel) View() string {
	content := m.buildContent()
	return RenderApplicationContainer(content, m.helpText(), m.Width, m.Height)
}

func (m DialogModel) helpText() string {
	if m.step == nil {
		return "esc: cancel"
	}
	switch m.step.Type {
	case flow.StepForm:
		return "tab/shift+tab: move • enter: submit • esc: cancel"
	case flow.StepMenu:
		return "↑/↓: move • enter: select • esc: cancel"
	case flow.StepExternal, flow.StepProgress:
		return "esc: cancel"
	default:
		return "enter: finish"
	}
}

func (m DialogModel) buildContent() string {
	var b strings.Builder

	if m.step == nil {
		b.WriteString(RenderTitle("Starting flow..."))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " Contacting hub")
		if m.errMsg != "" {
			b.WriteString("\n\n")
			b.WriteString(RenderError(m.errMsg))
		}
		return b.String()
	}

	switch m.step.Type {
	case flow.StepForm:
		m.buildFormContent(&b)
	case flow.StepMenu:
		m.buildMenuContent(&b)
	case flow.StepExternal:
		m.buildExternalContent(&b)
	case flow.StepProgress:
		m.buildProgressContent(&b)
	case flow.StepAbort:
		m.buildAbortContent(&b)
	case flow.StepCreateEntry:
		m.buildEntryContent(&b)
	}

	if m.loading {
		b.WriteString("\n")
		label := "Working..."
		if m.reason == flow.LoadingFlow {
			label = "Loading flow..."
		}
		b.WriteString(m.spinner.View() + " " + SubtitleStyle.Render(label))
	}
	if m.errMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(RenderError(m.errMsg))
	}
	return b.String()
}

func (m DialogModel) buildFormContent(b *strings.Builder) {
	b.WriteString(RenderTitle(m.loc.StepTitle(m.step.StepID)))
	if desc := m.loc.StepDescription(m.step.StepID); desc != "" {
		b.WriteString("\n")
		b.WriteString(RenderSubtitle(desc))
	}
	b.WriteString("\n\n")

	for i := range m.inputs {
		in := &m.inputs[i]

		label := m.loc.FieldLabel(m.step.StepID, in.field.Name)
		b.WriteString("  " + FieldLabelStyle.Render(label))
		if in.field.Required {
			b.WriteString(RequiredStyle.Render(" *"))
		}
		b.WriteString("\n")

		switch in.field.Type {
		case flow.FieldBoolean:
			mark := "[ ]"
			if in.boolValue {
				mark = "[x]"
			}
			line := "  " + mark + " (space to toggle)"
			if i == m.focus {
				b.WriteString(FocusedInputStyle.Render(line))
			} else {
				b.WriteString(BlurredInputStyle.Render(line))
			}

		case flow.FieldSelect:
			choice := ""
			if len(in.field.Options) > 0 {
				choice = in.field.Options[in.selectIdx]
			}
			line := "  ◀ " + choice + " ▶"
			if i == m.focus {
				b.WriteString(FocusedInputStyle.Render(line))
			} else {
				b.WriteString(BlurredInputStyle.Render(line))
			}

		default:
			b.WriteString("  " + in.text.View())
		}

		// Server-side validation errors attach to fields by name.
		if fieldErr, ok := m.step.Errors[in.field.Name]; ok {
			b.WriteString("\n  " + FieldErrorStyle.Render("✗ "+m.loc.ErrorText(fieldErr)))
		}
		if in.parseErr != "" {
			b.WriteString("\n  " + FieldErrorStyle.Render("✗ "+in.parseErr))
		}
		b.WriteString("\n\n")
	}

	if baseErr, ok := m.step.Errors["base"]; ok {
		b.WriteString(FieldErrorStyle.Render("✗ " + m.loc.ErrorText(baseErr)))
		b.WriteString("\n")
	}
}

func (m DialogModel) buildMenuContent(b *strings.Builder) {
	b.WriteString(RenderTitle(m.loc.StepTitle(m.step.StepID)))
	if desc := m.loc.StepDescription(m.step.StepID); desc != "" {
		b.WriteString("\n")
		b.WriteString(RenderSubtitle(desc))
	}
	b.WriteString("\n\n")

	for i, option := range m.step.MenuOptions {
		label := m.loc.MenuOptionLabel(m.step.StepID, option.ID, option.Label)
		b.WriteString(RenderMenuItem(label, i == m.cursor))
		b.WriteString("\n")
	}
}

func (m DialogModel) buildExternalContent(b *strings.Builder) {
	b.WriteString(RenderTitle(m.loc.StepTitle(m.step.StepID)))
	b.WriteString("\n\n")
	b.WriteString("Finish this step in your browser:\n\n")
	b.WriteString(RenderInfo(m.step.URL))
	b.WriteString("\n")
	b.WriteString(m.spinner.View() + " Waiting for authorization to complete...")
	if m.openErr != "" {
		b.WriteString("\n\n")
		b.WriteString(WarningBoxStyle.Render(m.openErr))
	}
}

func (m DialogModel) buildProgressContent(b *strings.Builder) {
	b.WriteString(RenderTitle(m.loc.StepTitle(m.step.StepID)))
	b.WriteString("\n\n")

	if m.step.ProgressAction != "" {
		b.WriteString(m.loc.ProgressAction(m.step.ProgressAction))
		b.WriteString("\n\n")
	}
	b.WriteString("  " + m.progressBar.ViewAs(m.step.Progress))
	b.WriteString("\n")
}

func (m DialogModel) buildAbortContent(b *strings.Builder) {
	b.WriteString(RenderTitle("Flow Ended"))
	b.WriteString("\n\n")
	b.WriteString(WarningBoxStyle.Render(m.loc.AbortReason(m.step.Reason)))
	b.WriteString("\n\n")
	b.WriteString(MenuItemStyle.Render("  enter - Close"))
	b.WriteString("\n")
}

func (m DialogModel) buildEntryContent(b *strings.Builder) {
	b.WriteString(RenderTitle("✓ Setup Complete!"))
	b.WriteString("\n\n")

	if m.step.Result != nil {
		b.WriteString(SuccessBoxStyle.Render("Created: " + m.step.Result.Title))
		b.WriteString("\n")
		b.WriteString(SubtitleStyle.Render("entry id: " + m.step.Result.EntryID))
		b.WriteString("\n\n")
	}
	b.WriteString(MenuItemStyle.Render("  enter - Close"))
	b.WriteString("\n")
}
