package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/veldt/entryflow/internal/catalog"
)

type handlersLoadedMsg struct {
	handlers []string
	err      error
}

// HandlersModel is the integration picker: the list of handlers that can
// start a flow on this hub, narrowed by a filter as the user types.
type HandlersModel struct {
	catalog *catalog.Catalog

	handlers []string
	filtered []string
	cursor   int
	loading  bool
	errMsg   string

	filter  textinput.Model
	spinner spinner.Model

	// Chosen is the selected handler, set when the user confirms
	Chosen string

	Width  int
	Height int
}

// NewHandlersModel creates the picker screen
func NewHandlersModel(cat *catalog.Catalog) HandlersModel {
	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "type to filter"
	filter.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return HandlersModel{
		catalog: cat,
		loading: true,
		filter:  filter,
		spinner: sp,
	}
}

// Init starts loading the handler list
func (m HandlersModel) Init() tea.Cmd {
	cat := m.catalog
	load := func() tea.Msg {
		handlers, err := cat.Handlers(context.Background())
		return handlersLoadedMsg{handlers: handlers, err: err}
	}
	return tea.Batch(load, m.spinner.Tick)
}

// Update handles messages for the picker screen
func (m HandlersModel) Update(msg tea.Msg) (HandlersModel, tea.Cmd) {
	switch msg := msg.(type) {
	case handlersLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.handlers = msg.handlers
		m.applyFilter()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			if m.cursor < len(m.filtered) {
				m.Chosen = m.filtered[m.cursor]
			}
			return m, nil
		}

		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}
	return m, nil
}

func (m *HandlersModel) applyFilter() {
	needle := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if needle == "" {
		m.filtered = m.handlers
	} else {
		m.filtered = nil
		for _, h := range m.handlers {
			if strings.Contains(strings.ToLower(h), needle) {
				m.filtered = append(m.filtered, h)
			}
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = 0
	}
}

// View renders the picker screen
func (m HandlersModel) View() string {
	content := m.buildContent()
	helpText := "↑/↓: move • enter: start setup • esc: quit"
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m HandlersModel) buildContent() string {
	var b strings.Builder

	b.WriteString(RenderTitle("Add Integration"))
	b.WriteString("\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " Loading integrations...")
		return b.String()
	}
	if m.errMsg != "" {
		b.WriteString(RenderError(m.errMsg))
		return b.String()
	}

	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(RenderSubtitle("No integrations match"))
		b.WriteString("\n")
		return b.String()
	}

	// Cap the visible window so long lists stay on screen.
	visible := m.Height - 12
	if visible < 5 {
		visible = 5
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.filtered) {
		end = len(m.filtered)
	}

	for i := start; i < end; i++ {
		b.WriteString(RenderMenuItem(m.filtered[i], i == m.cursor))
		b.WriteString("\n")
	}
	if end < len(m.filtered) {
		b.WriteString(RenderSubtitle("  ..."))
		b.WriteString("\n")
	}
	return b.String()
}
