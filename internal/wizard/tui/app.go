package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/veldt/entryflow/internal/catalog"
	"github.com/veldt/entryflow/internal/flow"
	"github.com/veldt/entryflow/internal/hub"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenHandlers Screen = "handlers"
	ScreenDialog   Screen = "dialog"
)

// Deps are the connected services the wizard runs against.
type Deps struct {
	Conn    *hub.Conn
	Catalog *catalog.Catalog
	Domain  hub.FlowDomain
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	deps Deps

	// Current screen state
	CurrentScreen Screen

	// Screen models
	HandlersModel HandlersModel
	DialogModel   DialogModel

	// LastResult carries how the dialog ended, for the CLI to report
	LastResult *flow.CloseResult
	LastError  error

	// UI state
	Width  int
	Height int

	quitting bool
}

// NewAppModel creates the wizard. With a start handler or resume flow id it
// jumps straight into the dialog; otherwise it opens the integration picker.
func NewAppModel(deps Deps, startHandler, resumeFlowID string) (AppModel, error) {
	model := AppModel{
		deps:          deps,
		CurrentScreen: ScreenHandlers,
	}

	if startHandler != "" || resumeFlowID != "" {
		dialog, err := model.newDialog(startHandler, resumeFlowID)
		if err != nil {
			return AppModel{}, err
		}
		model.CurrentScreen = ScreenDialog
		model.DialogModel = dialog
	} else {
		model.HandlersModel = NewHandlersModel(deps.Catalog)
	}
	return model, nil
}

// newDialog wires a flow controller for one dialog.
func (m AppModel) newDialog(startHandler, resumeFlowID string) (DialogModel, error) {
	svc, err := m.deps.Conn.Flows(m.deps.Domain)
	if err != nil {
		return DialogModel{}, err
	}

	ctrl, err := flow.NewController(flow.DialogParams{
		Client:       svc,
		Events:       m.deps.Conn.Events(),
		StartHandler: startHandler,
		ResumeFlowID: resumeFlowID,
	})
	if err != nil {
		return DialogModel{}, fmt.Errorf("failed to start dialog: %w", err)
	}

	deps := m.deps
	locFor := func(handler string) *catalog.Localizer {
		return deps.Catalog.Localizer(context.Background(), handler, deps.Domain)
	}

	dialog := NewDialogModel(ctrl, locFor)
	dialog.Width = m.Width
	dialog.Height = m.Height
	return dialog, nil
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenHandlers:
		return m.HandlersModel.Init()
	case ScreenDialog:
		return m.DialogModel.Init()
	default:
		return nil
	}
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.HandlersModel.Width = msg.Width
		m.HandlersModel.Height = msg.Height
		m.DialogModel.Width = msg.Width
		m.DialogModel.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Global quit handler
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if msg.String() == "esc" && m.CurrentScreen == ScreenHandlers {
			return m, tea.Quit
		}
	}

	return m.updateCurrentScreen(msg)
}

// updateCurrentScreen routes updates to the currently active screen
func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.CurrentScreen {
	case ScreenHandlers:
		m.HandlersModel, cmd = m.HandlersModel.Update(msg)

		// A chosen handler starts its dialog.
		if m.HandlersModel.Chosen != "" {
			handler := m.HandlersModel.Chosen
			m.HandlersModel.Chosen = ""
			dialog, err := m.newDialog(handler, "")
			if err != nil {
				m.LastError = err
				return m, tea.Quit
			}
			m.CurrentScreen = ScreenDialog
			m.DialogModel = dialog
			return m, m.DialogModel.Init()
		}

	case ScreenDialog:
		m.DialogModel, cmd = m.DialogModel.Update(msg)

		if closed, result := m.DialogModel.Closed(); closed {
			m.LastResult = result
			return m, tea.Quit
		}
	}

	return m, cmd
}

// quit closes a live dialog before leaving so abandoned flows get cleaned
// up server-side.
func (m AppModel) quit() (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, tea.Quit
	}
	m.quitting = true

	if m.CurrentScreen == ScreenDialog {
		if closed, _ := m.DialogModel.Closed(); !closed {
			return m, m.DialogModel.closeDialog()
		}
	}
	return m, tea.Quit
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenHandlers:
		return m.HandlersModel.View()
	case ScreenDialog:
		return m.DialogModel.View()
	default:
		return "Unknown screen"
	}
}

// Run starts the wizard and blocks until it exits. The returned model
// carries the dialog outcome.
func Run(deps Deps, startHandler, resumeFlowID string) (AppModel, error) {
	model, err := NewAppModel(deps, startHandler, resumeFlowID)
	if err != nil {
		return AppModel{}, err
	}

	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return AppModel{}, fmt.Errorf("wizard failed: %w", err)
	}

	app := final.(AppModel)
	if app.LastError != nil {
		return app, app.LastError
	}
	return app, nil
}
