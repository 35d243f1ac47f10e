package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/app"
	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

// recentLimit caps the recent entries list
const recentLimit = 8

// DashboardModel represents the dashboard home screen
type DashboardModel struct {
	app *app.App

	// Data
	week          *service.Summary
	today         *service.Summary
	unbilled      decimal.Decimal
	timers        []service.ActiveTimer
	recentEntries []*domain.TimeEntry

	loading bool
	err     error
}

type dashboardDataMsg struct {
	week          *service.Summary
	today         *service.Summary
	unbilled      decimal.Decimal
	timers        []service.ActiveTimer
	recentEntries []*domain.TimeEntry
	err           error
}

// NewDashboardModel creates a new dashboard model
func NewDashboardModel(a *app.App) tea.Model {
	return &DashboardModel{
		app:     a,
		loading: true,
	}
}

func (m *DashboardModel) Init() tea.Cmd {
	return m.loadData()
}

func (m *DashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		scope := m.app.Scope()
		msg := dashboardDataMsg{}

		today := domain.CivilDate(time.Now())

		week, err := m.app.Analytics.Summary(ctx, scope, weekMonday(today), today)
		if err != nil {
			msg.err = fmt.Errorf("week summary: %w", err)
			return msg
		}
		msg.week = week

		day, err := m.app.Analytics.Summary(ctx, scope, today, today)
		if err != nil {
			msg.err = fmt.Errorf("daily summary: %w", err)
			return msg
		}
		msg.today = day

		groups, err := m.app.Invoices.UnbilledSummary(ctx, scope, nil)
		if err == nil {
			for _, g := range groups {
				msg.unbilled = msg.unbilled.Add(g.Amount)
			}
		}

		msg.timers, _ = m.app.Timers.Active(ctx, domain.Scope{UserID: m.app.User.ID})

		// Recent entries (last 7 days)
		from := today.AddDate(0, 0, -7)
		msg.recentEntries, _ = m.app.Entries.List(ctx, repository.EntryFilter{
			Scope: scope,
			From:  &from,
			To:    &today,
			Limit: recentLimit,
		})

		return msg
	}
}

func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		m.loading = false
		m.err = msg.err
		m.week = msg.week
		m.today = msg.today
		m.unbilled = msg.unbilled
		m.timers = msg.timers
		m.recentEntries = msg.recentEntries
		if len(m.timers) > 0 {
			return m, tickTimer()
		}
		return m, nil

	case TimerTickMsg:
		if len(m.timers) > 0 {
			// Refresh timer state
			timers, err := m.app.Timers.Active(context.Background(), domain.Scope{UserID: m.app.User.ID})
			if err == nil {
				m.timers = timers
			}
			return m, tickTimer()
		}
		return m, nil

	case RefreshDataMsg:
		m.loading = true
		return m, m.loadData()

	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Select) {
			target := ScreenEntries
			if len(m.timers) > 0 {
				target = ScreenTimer
			}
			return m, func() tea.Msg { return SwitchScreenMsg{Screen: target} }
		}
	}

	return m, nil
}

func (m *DashboardModel) View() string {
	if m.loading {
		return "Loading dashboard..."
	}

	if m.err != nil {
		return errorLine(m.err)
	}

	stats := fmt.Sprintf(
		"This Week:   %-12s  Revenue:      %s\nToday:       %-12s  Unbilled:     %s\nUtilization: %-12s",
		formatHours(m.week.Hours),
		formatMoney(m.week.Revenue),
		formatHours(m.today.Hours),
		formatMoney(m.unbilled),
		m.week.Utilization.StringFixed(0)+"%",
	)
	if m.app.User.IsAdmin() {
		stats += fmt.Sprintf("  Outstanding:  %s", formatMoney(m.week.Outstanding))
	}
	s := boxStyle.Render(stats) + "\n"

	// Active timers
	s += "\n"
	if len(m.timers) > 0 {
		s += m.renderActiveTimers()
	} else {
		s += subtitleStyle.Render("  No active timer") + "\n"
	}

	// Recent entries
	s += "\n" + m.renderRecentEntries()
	s += "\n" + helpStyle.Render("  enter: open timers or entries")

	return s
}

func (m *DashboardModel) renderActiveTimers() string {
	s := "  Active Timers\n"
	for _, t := range m.timers {
		stateStyle := timerRunningStyle
		if t.State == domain.TimerStatePaused {
			stateStyle = timerPausedStyle
		}
		s += fmt.Sprintf("  %s %s / %s - %s  [%s]\n",
			stateStyle.Render("●"),
			t.Entry.ClientName,
			t.Entry.ProjectName,
			t.Entry.Description,
			timerValueStyle.Render(formatClock(t.Elapsed())),
		)
	}
	return s
}

func (m *DashboardModel) renderRecentEntries() string {
	header := "  Recent Entries (Last 7 Days)\n"
	if len(m.recentEntries) == 0 {
		return header + subtitleStyle.Render("  No recent entries") + "\n"
	}

	s := header
	for _, entry := range m.recentEntries {
		s += fmt.Sprintf("  %-7s %-20s %6s  %s\n",
			entry.WorkDate.Format("Jan 2"),
			truncateStr(entry.ClientName, 20),
			formatHours(entry.Hours),
			truncateStr(entry.Description, 30),
		)
	}
	return s
}
