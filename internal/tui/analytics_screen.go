package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/app"
	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/service"
)

var (
	analyticsGranularities = []domain.Granularity{
		domain.GranularityMonth,
		domain.GranularityQuarter,
		domain.GranularityWeek,
	}
	analyticsEntities = []service.BreakdownEntity{
		service.BreakdownClient,
		service.BreakdownProject,
		service.BreakdownConsultant,
	}
)

const maxBar = 30

// AnalyticsModel shows revenue, hours and utilization for one calendar year
type AnalyticsModel struct {
	app         *app.App
	year        int
	granularity int // index into analyticsGranularities
	entity      int // index into analyticsEntities

	summary   *service.Summary
	series    []service.SeriesPoint
	breakdown []service.BreakdownRow

	loading bool
	err     error
}

type analyticsDataMsg struct {
	summary   *service.Summary
	series    []service.SeriesPoint
	breakdown []service.BreakdownRow
	err       error
}

// NewAnalyticsModel creates a new analytics screen model
func NewAnalyticsModel(a *app.App) tea.Model {
	return &AnalyticsModel{
		app:     a,
		year:    time.Now().Year(),
		loading: true,
	}
}

func (m *AnalyticsModel) Init() tea.Cmd {
	return m.loadData()
}

// window is the selected year, cut at today for the current one
func (m *AnalyticsModel) window() (time.Time, time.Time) {
	from := time.Date(m.year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(m.year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if today := domain.CivilDate(time.Now()); today.Before(to) {
		to = today
	}
	return from, to
}

func (m *AnalyticsModel) loadData() tea.Cmd {
	from, to := m.window()
	g := analyticsGranularities[m.granularity]
	entity := analyticsEntities[m.entity]

	return func() tea.Msg {
		ctx := context.Background()
		scope := m.app.Scope()

		summary, err := m.app.Analytics.Summary(ctx, scope, from, to)
		if err != nil {
			return analyticsDataMsg{err: err}
		}
		series, err := m.app.Analytics.RevenueSeries(ctx, scope, g, from, to)
		if err != nil {
			return analyticsDataMsg{err: err}
		}
		rows, err := m.app.Analytics.Breakdown(ctx, scope, entity, from, to, service.DefaultTopN)
		if err != nil {
			return analyticsDataMsg{err: err}
		}
		return analyticsDataMsg{summary: summary, series: series, breakdown: rows}
	}
}

func (m *AnalyticsModel) reload() (tea.Model, tea.Cmd) {
	m.loading = true
	return m, m.loadData()
}

func (m *AnalyticsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshDataMsg:
		return m.reload()

	case analyticsDataMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.summary = msg.summary
			m.series = msg.series
			m.breakdown = msg.breakdown
		}
		return m, nil

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}

		switch {
		case key.Matches(msg, DefaultKeyMap.Left), msg.String() == "[":
			m.year--
			return m.reload()

		case key.Matches(msg, DefaultKeyMap.Right), msg.String() == "]":
			if m.year < time.Now().Year() {
				m.year++
				return m.reload()
			}

		case msg.String() == "g":
			m.granularity = (m.granularity + 1) % len(analyticsGranularities)
			return m.reload()

		case msg.String() == "b":
			m.entity = (m.entity + 1) % len(analyticsEntities)
			return m.reload()
		}
	}

	return m, nil
}

func (m *AnalyticsModel) View() string {
	if m.loading {
		return titleStyle.Render("Analytics") + "\n\n  Loading..."
	}

	if m.err != nil {
		return titleStyle.Render("Analytics") + "\n\n" + errorLine(m.err)
	}

	var s string

	from, to := m.window()
	s += titleStyle.Render(fmt.Sprintf("Analytics %d", m.year)) + "\n"
	s += subtitleStyle.Render(fmt.Sprintf("  %s - %s", from.Format("Jan 2"), to.Format("Jan 2, 2006"))) + "\n\n"

	s += m.renderTotals()
	s += "\n"

	s += sectionStyle.Render("  Revenue by "+string(analyticsGranularities[m.granularity])) + "\n"
	s += m.renderSeries()
	s += "\n"

	s += sectionStyle.Render("  Top "+string(analyticsEntities[m.entity])+"s") + "\n"
	s += m.renderBreakdown()

	s += "\n" + helpStyle.Render("  h/l or [/]: prev/next year  g: granularity  b: breakdown by")

	return s
}

func (m *AnalyticsModel) renderTotals() string {
	sum := m.summary
	if sum == nil {
		return ""
	}

	s := sectionStyle.Render("  Totals") + "\n"
	s += fmt.Sprintf("    Hours:       %s  (%s billable)\n", formatHours(sum.Hours), formatHours(sum.BillableHours))
	s += fmt.Sprintf("    Revenue:     %s\n", formatMoney(sum.Revenue))
	s += fmt.Sprintf("    Invoiced:    %s\n", formatMoney(sum.InvoicedRevenue))
	s += fmt.Sprintf("    Unbilled:    %s\n", formatMoney(sum.UnbilledRevenue))
	if m.app.Scope().Privileged {
		s += fmt.Sprintf("    Outstanding: %s\n", formatMoney(sum.Outstanding))
	}

	if sum.Hours.IsPositive() {
		style := errorStyle
		switch {
		case sum.Utilization.GreaterThanOrEqual(decimal.NewFromInt(80)):
			style = successStyle
		case sum.Utilization.GreaterThanOrEqual(decimal.NewFromInt(50)):
			style = warningStyle
		}
		s += fmt.Sprintf("    Utilization: %s\n", style.Render(sum.Utilization.StringFixed(0)+"%"))
	}

	return s
}

func (m *AnalyticsModel) renderSeries() string {
	if len(m.series) == 0 {
		return subtitleStyle.Render("    No data") + "\n"
	}

	peak := decimal.Zero
	for _, p := range m.series {
		if p.Revenue.GreaterThan(peak) {
			peak = p.Revenue
		}
	}
	if peak.IsZero() {
		return subtitleStyle.Render("    No revenue recorded") + "\n"
	}

	labelStyle := lipgloss.NewStyle().Width(12)

	var s string
	for _, p := range m.series {
		bar := strings.Repeat("█", barWidth(p.Revenue, peak, maxBar))
		s += fmt.Sprintf("    %s %s %12s  %s\n",
			labelStyle.Render(p.Label),
			barStyle.Render(fmt.Sprintf("%-*s", maxBar, bar)),
			formatMoney(p.Revenue),
			subtitleStyle.Render(formatHours(p.Hours)),
		)
	}
	return s
}

func (m *AnalyticsModel) renderBreakdown() string {
	if len(m.breakdown) == 0 {
		return subtitleStyle.Render("    No entries") + "\n"
	}

	var s string
	for _, row := range m.breakdown {
		line := fmt.Sprintf("    %-24s  %8s  %12s  %5s%%",
			truncateStr(row.Name, 24),
			formatHours(row.Hours),
			formatMoney(row.Revenue),
			row.Utilization.StringFixed(0),
		)
		if row.ID == 0 {
			s += subtitleStyle.Render(line) + "\n"
		} else {
			s += line + "\n"
		}
	}
	return s
}

// barWidth scales value against peak into at most width cells
func barWidth(value, peak decimal.Decimal, width int) int {
	if !peak.IsPositive() || !value.IsPositive() {
		return 0
	}
	n := value.Mul(decimal.NewFromInt(int64(width))).Div(peak).IntPart()
	if n > int64(width) {
		return width
	}
	return int(n)
}
