// Package tui provides a live terminal dashboard over the master query API.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/gridpulse/internal/client"
	"github.com/user/gridpulse/internal/model"
)

const refreshEvery = 2 * time.Second

// App is the TUI application.
type App struct {
	api *client.Client
}

// NewApp creates a TUI application talking to the given master.
func NewApp(api *client.Client) *App {
	return &App{api: api}
}

// Run starts the TUI and blocks until the user quits.
func (a *App) Run() error {
	p := tea.NewProgram(newModel(a.api), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type appModel struct {
	api       *client.Client
	dashboard *Dashboard
	spinner   spinner.Model
	ready     bool
	width     int
	height    int
	err       error
}

func newModel(api *client.Client) appModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	return appModel{
		api:     api,
		spinner: s,
	}
}

// Init initializes the model.
func (m appModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchStatus(m.api),
	)
}

// Update handles messages.
func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, fetchStatus(m.api)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.dashboard != nil {
			m.dashboard.SetSize(msg.Width, msg.Height)
		}

	case statusMsg:
		m.ready = true
		m.err = nil
		m.dashboard = NewDashboard(msg.status, m.width, m.height)
		return m, scheduleRefresh(m.api)

	case errMsg:
		m.err = msg.err
		return m, scheduleRefresh(m.api)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m appModel) View() string {
	if m.err != nil && !m.ready {
		return ErrorStyle.Render("Error: " + m.err.Error())
	}
	if !m.ready {
		return LoadingStyle.Render(m.spinner.View() + " Connecting to master...")
	}
	return m.dashboard.View()
}

// Messages
type statusMsg struct {
	status model.SystemStatus
}

type errMsg struct {
	err error
}

func fetchStatus(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()

		status, err := api.Status(ctx)
		if err != nil {
			return errMsg{err}
		}
		return statusMsg{status}
	}
}

func scheduleRefresh(api *client.Client) tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg {
		return fetchStatus(api)()
	})
}
