package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/andy/timeledger/internal/app"
	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

// TimerTickMsg is sent every second when timer is running (screen-local)
type TimerTickMsg struct{}

// tickTimer returns a command that sends TimerTickMsg every second
func tickTimer() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TimerTickMsg{}
	})
}

// timerDataMsg carries the active timers and startable projects
type timerDataMsg struct {
	timers   []service.ActiveTimer
	projects []*domain.Project
	err      error
}

// timerCommittedMsg is sent when a timer is stopped successfully
type timerCommittedMsg struct {
	entry *domain.TimeEntry
}

// TimerModel shows the user's active timers and the projects to start one on
type TimerModel struct {
	app       *app.App
	timers    []service.ActiveTimer
	projects  []*domain.Project
	cursor    int // selected timer
	err       error
	statusMsg string
}

// NewTimerModel creates a new TimerModel
func NewTimerModel(a *app.App) tea.Model {
	return &TimerModel{app: a}
}

// Init loads timers and projects
func (m *TimerModel) Init() tea.Cmd {
	return m.loadData()
}

func (m *TimerModel) loadData() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		timers, err := m.app.Timers.Active(ctx, domain.Scope{UserID: m.app.User.ID})
		if err != nil {
			return timerDataMsg{err: err}
		}
		active := domain.ProjectStatusActive
		projects, err := m.app.Projects.List(ctx, repository.ProjectFilter{Status: &active})
		return timerDataMsg{timers: timers, projects: projects, err: err}
	}
}

func (m *TimerModel) selected() *service.ActiveTimer {
	if m.cursor < 0 || m.cursor >= len(m.timers) {
		return nil
	}
	return &m.timers[m.cursor]
}

// Update handles key events and ticks
func (m *TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshDataMsg:
		return m, m.loadData()

	case timerDataMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		hadTimers := len(m.timers) > 0
		m.timers = msg.timers
		m.projects = msg.projects
		if m.cursor >= len(m.timers) {
			m.cursor = max(0, len(m.timers)-1)
		}
		if len(m.timers) > 0 && !hadTimers {
			return m, tickTimer()
		}
		return m, nil

	case timerCommittedMsg:
		m.statusMsg = fmt.Sprintf("Entry saved: %sh (%s)",
			msg.entry.Hours.StringFixed(2), formatMoney(msg.entry.Amount))
		return m, m.loadData()

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case TimerTickMsg:
		// Only continue ticking if we have an active timer
		if len(m.timers) == 0 {
			return m, nil
		}
		timers, err := m.app.Timers.Active(context.Background(), domain.Scope{UserID: m.app.User.ID})
		if err != nil {
			m.err = err
			return m, nil
		}
		// Timers may have been stopped externally (e.g. CLI)
		m.timers = timers
		if m.cursor >= len(m.timers) {
			m.cursor = max(0, len(m.timers)-1)
		}
		if len(m.timers) == 0 {
			return m, nil
		}
		return m, tickTimer()

	case tea.KeyMsg:
		m.err = nil
		m.statusMsg = ""

		switch {
		case key.Matches(msg, DefaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(m.timers)-1 {
				m.cursor++
			}
			return m, nil
		}

		switch msg.String() {
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			idx := int(msg.String()[0] - '1')
			if idx < len(m.projects) {
				return m, m.startTimer(m.projects[idx])
			}
		case "s":
			if len(m.projects) > 0 {
				return m, m.startTimer(m.projects[0])
			}
		case "p":
			if t := m.selected(); t != nil {
				return m, m.transition(func(ctx context.Context, id, userID int64) error {
					_, err := m.app.Timers.Pause(ctx, id, userID)
					return err
				}, t.Entry.ID)
			}
		case "u":
			if t := m.selected(); t != nil {
				return m, m.transition(func(ctx context.Context, id, userID int64) error {
					_, err := m.app.Timers.Resume(ctx, id, userID)
					return err
				}, t.Entry.ID)
			}
		case "x":
			if t := m.selected(); t != nil {
				return m, m.commitTimer(t.Entry.ID)
			}
		case "d":
			if t := m.selected(); t != nil {
				m.statusMsg = "Timer discarded"
				return m, m.transition(m.app.Timers.Discard, t.Entry.ID)
			}
		}
	}

	return m, nil
}

func (m *TimerModel) startTimer(project *domain.Project) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.app.Timers.Start(context.Background(), m.app.User.ID, project.ID, "", true); err != nil {
			return ErrorMsg{Err: err}
		}
		return m.loadData()()
	}
}

// transition runs a timer state change and reloads
func (m *TimerModel) transition(fn func(ctx context.Context, id, userID int64) error, id int64) tea.Cmd {
	return func() tea.Msg {
		if err := fn(context.Background(), id, m.app.User.ID); err != nil {
			return ErrorMsg{Err: err}
		}
		return m.loadData()()
	}
}

func (m *TimerModel) commitTimer(id int64) tea.Cmd {
	return func() tea.Msg {
		entry, err := m.app.Timers.Commit(context.Background(), id, m.app.User.ID)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return timerCommittedMsg{entry: entry}
	}
}

// View renders the timer screen
func (m *TimerModel) View() string {
	var b string
	b += titleStyle.Render("Timers") + "\n\n"
	if m.err != nil || m.statusMsg != "" {
		b += errorLine(m.err) + statusLine(m.statusMsg) + "\n"
	}

	if len(m.timers) == 0 {
		b += "No active timer.\n\n"
	}
	for i, t := range m.timers {
		b += m.renderTimer(t, i == m.cursor) + "\n"
	}

	b += "Start a timer on a project:\n\n"
	if m.projects == nil {
		b += "Loading projects...\n"
	} else if len(m.projects) == 0 {
		b += "No active projects. Add a client and project first.\n"
	} else {
		for i, p := range m.projects {
			if i >= 9 {
				break
			}
			b += fmt.Sprintf("[%d] %s / %s\n", i+1, p.ClientName, p.Name)
		}
	}

	b += "\n" + helpStyle.Render("Keys: 1-9/s=start  j/k=select  p=pause  u=resume  x=stop  d=discard")
	return b
}

func (m *TimerModel) renderTimer(t service.ActiveTimer, selected bool) string {
	stateStr := timerRunningStyle.Render("RUNNING")
	if t.State == domain.TimerStatePaused {
		stateStr = timerPausedStyle.Render("PAUSED")
	}

	indicator := "  "
	if selected {
		indicator = "> "
	}

	var b string
	b += fmt.Sprintf("%s%s  %s / %s\n", indicator, stateStr, t.Entry.ClientName, t.Entry.ProjectName)
	if t.Entry.Description != "" {
		b += fmt.Sprintf("    Description: %s\n", t.Entry.Description)
	}
	if t.Entry.TimerStart != nil {
		b += fmt.Sprintf("    Started: %s\n", t.Entry.TimerStart.Local().Format("2006-01-02 15:04:05"))
	}
	b += fmt.Sprintf("    Elapsed: %s\n", formatClock(t.Elapsed()))
	if t.Entry.IsBillable && t.Entry.Rate.IsPositive() {
		b += fmt.Sprintf("    Rate: %s/hr  Value accrued: %s\n",
			formatMoney(t.Entry.Rate), timerValueStyle.Render(formatMoney(t.AccruedValue)))
	}
	return b
}
