package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/andy/timeledger/internal/app"
	"github.com/andy/timeledger/internal/domain"
)

// Screen represents the current active screen
type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenTimer
	ScreenEntries
	ScreenClients
	ScreenInvoices
	ScreenAnalytics
)

// String returns the screen name
func (s Screen) String() string {
	switch s {
	case ScreenDashboard:
		return "Dashboard"
	case ScreenTimer:
		return "Timer"
	case ScreenEntries:
		return "Time Entries"
	case ScreenClients:
		return "Clients"
	case ScreenInvoices:
		return "Invoices"
	case ScreenAnalytics:
		return "Analytics"
	default:
		return "Unknown"
	}
}

// Model is the root Bubble Tea model
type Model struct {
	app           *app.App
	currentScreen Screen
	width         int
	height        int

	// Screen models, created on first visit
	screens map[Screen]tea.Model

	// First-run state
	checkedFirstRun bool

	// Quit confirmation
	quitMsg   string
	quitArmed bool
}

// New creates a new root model
func New(a *app.App) Model {
	return Model{
		app:           a,
		currentScreen: ScreenDashboard,
		screens:       map[Screen]tea.Model{ScreenDashboard: NewDashboardModel(a)},
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.checkFirstRun(), m.screens[ScreenDashboard].Init())
}

// checkFirstRun checks if any clients exist in the database
func (m *Model) checkFirstRun() tea.Cmd {
	return func() tea.Msg {
		clients, err := m.app.Clients.List(context.Background(), true)
		if err != nil {
			return firstRunCheckMsg{hasClients: true} // assume yes on error
		}
		return firstRunCheckMsg{hasClients: len(clients) > 0}
	}
}

func (m *Model) newScreen(screen Screen) tea.Model {
	switch screen {
	case ScreenDashboard:
		return NewDashboardModel(m.app)
	case ScreenTimer:
		return NewTimerModel(m.app)
	case ScreenEntries:
		return NewEntriesModel(m.app)
	case ScreenClients:
		return NewClientsModel(m.app)
	case ScreenInvoices:
		return NewInvoicesModel(m.app)
	case ScreenAnalytics:
		return NewAnalyticsModel(m.app)
	}
	return nil
}

// initScreen lazy-initializes a screen on first visit,
// and sends a RefreshDataMsg on subsequent visits so screens reload data.
func (m *Model) initScreen(screen Screen) tea.Cmd {
	if _, ok := m.screens[screen]; ok {
		return func() tea.Msg { return RefreshDataMsg{} }
	}
	s := m.newScreen(screen)
	if s == nil {
		return nil
	}
	m.screens[screen] = s
	return s.Init()
}

func (m *Model) switchTo(screen Screen) tea.Cmd {
	m.currentScreen = screen
	return m.initScreen(screen)
}

// InputCapturer is implemented by screens that capture keyboard input (e.g. text forms).
// When active, global navigation keys are suppressed.
type InputCapturer interface {
	IsCapturingInput() bool
}

// activeScreenCapturingInput returns true if the current screen is capturing text input
func (m *Model) activeScreenCapturingInput() bool {
	if ic, ok := m.screens[m.currentScreen].(InputCapturer); ok {
		return ic.IsCapturingInput()
	}
	return false
}

// hasRunningTimer reports whether the current user has a timer still counting
func (m *Model) hasRunningTimer() bool {
	timers, err := m.app.Timers.Active(context.Background(), domain.Scope{UserID: m.app.User.ID})
	if err != nil {
		return false
	}
	for _, t := range timers {
		if t.State == domain.TimerStateRunning {
			return true
		}
	}
	return false
}

// Update implements tea.Model - routes keys to screens
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Clear quit warning on any other keypress
		armed := m.quitArmed
		m.quitMsg = ""
		m.quitArmed = false

		// Skip global navigation when a screen is capturing text input
		if !m.activeScreenCapturingInput() {
			switch {
			case key.Matches(msg, DefaultKeyMap.Quit):
				// Timers keep running in the database, so quitting only needs a second press
				if !armed && m.hasRunningTimer() {
					m.quitMsg = "A timer is still running. Press q again to quit anyway."
					m.quitArmed = true
					return m, nil
				}
				return m, tea.Quit

			case key.Matches(msg, DefaultKeyMap.Dashboard):
				return m, m.switchTo(ScreenDashboard)
			case key.Matches(msg, DefaultKeyMap.Timer):
				return m, m.switchTo(ScreenTimer)
			case key.Matches(msg, DefaultKeyMap.Entries):
				return m, m.switchTo(ScreenEntries)
			case key.Matches(msg, DefaultKeyMap.Clients):
				return m, m.switchTo(ScreenClients)
			case key.Matches(msg, DefaultKeyMap.Invoices):
				return m, m.switchTo(ScreenInvoices)
			case key.Matches(msg, DefaultKeyMap.Analytics):
				return m, m.switchTo(ScreenAnalytics)
			}
		}

	case firstRunCheckMsg:
		if !m.checkedFirstRun && !msg.hasClients && m.app.User.IsAdmin() {
			m.checkedFirstRun = true
			initCmd := m.switchTo(ScreenClients)
			openFormCmd := func() tea.Msg { return OpenNewClientFormMsg{} }
			return m, tea.Batch(initCmd, openFormCmd)
		}
		m.checkedFirstRun = true
		return m, nil

	case SwitchScreenMsg:
		return m, m.switchTo(msg.Screen)
	}

	// Route message to current screen
	var cmd tea.Cmd
	if screen, ok := m.screens[m.currentScreen]; ok {
		m.screens[m.currentScreen], cmd = screen.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := headerStyle.Render("timeledger - " + m.currentScreen.String())
	if u := m.app.User; u != nil {
		header += subtitleStyle.Render(fmt.Sprintf("  %s (%s)", u.Name, u.Role))
	}

	content := "Loading..."
	if screen, ok := m.screens[m.currentScreen]; ok {
		content = screen.View()
	}
	if m.quitMsg != "" {
		content += "\n" + warningStyle.Render(m.quitMsg)
	}

	// border 2 + padding 4
	inner := max(m.width-6, 20)
	rule := subtitleStyle.Render(strings.Repeat("─", max(inner-12, 10)))

	body := strings.Join([]string{header, rule, "", content, "", rule, navFooter(DefaultKeyMap)}, "\n")
	frame := appBorderStyle.Width(inner).Height(m.height - 4)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, frame.Render(body))
}

// navFooter lists the global navigation keys
func navFooter(k KeyMap) string {
	parts := make([]string, 0, len(k.navBindings()))
	for _, b := range k.navBindings() {
		h := b.Help()
		parts = append(parts, "["+h.Key+"] "+h.Desc)
	}
	return footerStyle.Render(strings.Join(parts, "  "))
}

// Run starts the TUI
func Run(ctx context.Context, a *app.App) error {
	p := tea.NewProgram(New(a), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
