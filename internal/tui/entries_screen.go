package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/app"
	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

type entryMode int

const (
	entryModeList          entryMode = iota
	entryModePickProject             // cursor-based project selection
	entryModeNew                     // text input form for entry details
	entryModeConfirmDelete           // y/n confirmation before delete
	entryModeReject                  // rejection reason input
)

// entry form field indices (after project is selected)
const (
	entryFieldDate = iota
	entryFieldHours
	entryFieldDescription
	entryFieldRate
)

// entriesWindowDays is how far back the list reaches
const entriesWindowDays = 30

// EntriesModel displays a scrollable list of time entries
type EntriesModel struct {
	app        *app.App
	entries    []*domain.TimeEntry
	cursor     int
	offset     int
	maxVisible int
	loading    bool
	err        error
	statusMsg  string

	// Form state
	mode          entryMode
	form          *form
	formProjects  []*domain.Project
	formProject   *domain.Project // selected project
	projectCursor int

	reasonInput textinput.Model
}

type entriesDataMsg struct {
	entries []*domain.TimeEntry
	err     error
}

type entrySavedMsg struct {
	err error
}

type entryProjectsMsg struct {
	projects []*domain.Project
	err      error
}

// entryActionMsg reports a workflow action on the selected entry
type entryActionMsg struct {
	status string
	err    error
}

// IsCapturingInput returns true when the text form or a confirmation is active
func (m *EntriesModel) IsCapturingInput() bool {
	return m.mode != entryModeList
}

// NewEntriesModel creates a new entries screen model
func NewEntriesModel(a *app.App) tea.Model {
	return &EntriesModel{
		app:        a,
		maxVisible: 15,
		loading:    true,
	}
}

func (m *EntriesModel) Init() tea.Cmd {
	return m.loadEntries()
}

func (m *EntriesModel) loadEntries() tea.Cmd {
	return func() tea.Msg {
		today := domain.CivilDate(time.Now())
		from := today.AddDate(0, 0, -entriesWindowDays)
		entries, err := m.app.Entries.List(context.Background(), repository.EntryFilter{
			Scope: m.app.Scope(),
			From:  &from,
		})
		return entriesDataMsg{entries: entries, err: err}
	}
}

func (m *EntriesModel) loadFormProjects() tea.Cmd {
	return func() tea.Msg {
		active := domain.ProjectStatusActive
		projects, err := m.app.Projects.List(context.Background(), repository.ProjectFilter{Status: &active})
		return entryProjectsMsg{projects: projects, err: err}
	}
}

func (m *EntriesModel) openForm() tea.Cmd {
	m.form = newForm(
		formField{label: "Date:", placeholder: "YYYY-MM-DD", limit: 10, width: 12},
		formField{label: "Hours:", placeholder: "1.5", limit: 6, width: 8},
		formField{label: "Description:", placeholder: "What did you work on?", limit: 200, width: 50},
		formField{label: "Rate ($/hr, blank for project rate):", placeholder: "project rate", limit: 10, width: 15},
	)
	m.form.set(entryFieldDate, domain.FormatDate(domain.CivilDate(time.Now())))
	m.mode = entryModeNew
	return m.form.start()
}

func (m *EntriesModel) saveEntry() tea.Cmd {
	project := m.formProject
	dateStr := m.form.value(entryFieldDate)
	hoursStr := m.form.value(entryFieldHours)
	desc := m.form.value(entryFieldDescription)
	rateStr := m.form.value(entryFieldRate)

	return func() tea.Msg {
		date, err := domain.ParseDate(dateStr)
		if err != nil {
			return entrySavedMsg{err: err}
		}

		hours, err := decimal.NewFromString(hoursStr)
		if err != nil {
			return entrySavedMsg{err: fmt.Errorf("invalid hours: %s", hoursStr)}
		}

		rate := domain.PendingRate()
		if rateStr != "" {
			r, err := decimal.NewFromString(rateStr)
			if err != nil {
				return entrySavedMsg{err: fmt.Errorf("invalid hourly rate: %s", rateStr)}
			}
			rate = domain.FixedRate(r)
		}

		_, err = m.app.Entries.Create(context.Background(), m.app.Scope(), service.NewEntry{
			ProjectID:   project.ID,
			WorkDate:    date,
			Hours:       hours,
			Description: desc,
			Rate:        rate,
		})
		return entrySavedMsg{err: err}
	}
}

// act runs a workflow action on the selected entry
func (m *EntriesModel) act(status string, fn func(ctx context.Context, scope domain.Scope, id int64) error) tea.Cmd {
	entry := m.entries[m.cursor]
	return func() tea.Msg {
		err := fn(context.Background(), m.app.Scope(), entry.ID)
		return entryActionMsg{status: status, err: err}
	}
}

func dropEntry(fn func(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error)) func(ctx context.Context, scope domain.Scope, id int64) error {
	return func(ctx context.Context, scope domain.Scope, id int64) error {
		_, err := fn(ctx, scope, id)
		return err
	}
}

func (m *EntriesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case entryModePickProject:
		return m.updatePickProject(msg)
	case entryModeNew:
		return m.updateForm(msg)
	case entryModeConfirmDelete:
		return m.updateConfirmDelete(msg)
	case entryModeReject:
		return m.updateReject(msg)
	}

	switch msg := msg.(type) {
	case RefreshDataMsg:
		m.loading = true
		return m, m.loadEntries()

	case entriesDataMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.entries = msg.entries
			if m.cursor >= len(m.entries) {
				m.cursor = max(0, len(m.entries)-1)
			}
		}
		return m, nil

	case entryActionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.statusMsg = msg.status
		return m, m.loadEntries()

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}
		m.statusMsg = ""
		m.err = nil

		switch {
		case key.Matches(msg, DefaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
			return m, nil
		case key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(m.entries)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.maxVisible {
					m.offset = m.cursor - m.maxVisible + 1
				}
			}
			return m, nil
		case key.Matches(msg, DefaultKeyMap.New):
			m.mode = entryModePickProject
			m.projectCursor = 0
			m.formProjects = nil
			return m, m.loadFormProjects()
		}

		if len(m.entries) == 0 {
			return m, nil
		}

		switch msg.String() {
		case "s":
			return m, m.act("Entry submitted", dropEntry(m.app.Entries.Submit))
		case "a":
			return m, m.act("Entry approved", dropEntry(m.app.Entries.Approve))
		case "o":
			return m, m.act("Entry reopened", dropEntry(m.app.Entries.Reopen))
		case "x":
			m.mode = entryModeReject
			m.reasonInput = textinput.New()
			m.reasonInput.Placeholder = "Reason for rejection"
			m.reasonInput.Width = 50
			return m, m.reasonInput.Focus()
		case "d":
			m.mode = entryModeConfirmDelete
			return m, nil
		}
	}

	return m, nil
}

func (m *EntriesModel) updatePickProject(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case entryProjectsMsg:
		if msg.err != nil {
			m.err = msg.err
			m.mode = entryModeList
			return m, nil
		}
		m.formProjects = msg.projects
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Up):
			if m.projectCursor > 0 {
				m.projectCursor--
			}
		case key.Matches(msg, DefaultKeyMap.Down):
			if m.projectCursor < len(m.formProjects)-1 {
				m.projectCursor++
			}
		case key.Matches(msg, DefaultKeyMap.Select):
			if m.projectCursor < len(m.formProjects) {
				m.formProject = m.formProjects[m.projectCursor]
				return m, m.openForm()
			}
		case msg.String() == "esc":
			m.mode = entryModeList
		}
	}
	return m, nil
}

func (m *EntriesModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case entrySavedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.mode = entryModeList
		m.err = nil
		m.statusMsg = "Entry saved"
		m.loading = true
		return m, m.loadEntries()

	case tea.KeyMsg:
		if msg.String() == "esc" {
			m.mode = entryModePickProject
			m.err = nil
			return m, nil
		}
	}

	cmd, submit := m.form.update(msg)
	if submit {
		return m, m.saveEntry()
	}
	return m, cmd
}

func (m *EntriesModel) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case entryActionMsg:
		m.mode = entryModeList
		return m.Update(msg)

	case tea.KeyMsg:
		if msg.String() == "y" {
			return m, m.act("Entry deleted", func(ctx context.Context, scope domain.Scope, id int64) error {
				return m.app.Entries.Delete(ctx, scope, id, "deleted from terminal UI")
			})
		}
		// Any other key cancels
		m.mode = entryModeList
	}
	return m, nil
}

func (m *EntriesModel) updateReject(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case entryActionMsg:
		m.mode = entryModeList
		return m.Update(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.mode = entryModeList
			return m, nil
		case "enter":
			reason := m.reasonInput.Value()
			return m, m.act("Entry rejected", func(ctx context.Context, scope domain.Scope, id int64) error {
				_, err := m.app.Entries.Reject(ctx, scope, id, reason)
				return err
			})
		}
	}

	var cmd tea.Cmd
	m.reasonInput, cmd = m.reasonInput.Update(msg)
	return m, cmd
}

func (m *EntriesModel) View() string {
	if m.loading {
		return "Loading entries..."
	}

	switch m.mode {
	case entryModePickProject:
		return m.viewPickProject()
	case entryModeNew:
		return m.viewForm()
	case entryModeConfirmDelete:
		return m.viewConfirm("Delete Entry", "Delete this entry? (y/n)")
	case entryModeReject:
		return m.viewConfirm("Reject Entry", "Reason: "+m.reasonInput.View())
	default:
		return m.viewList()
	}
}

func (m *EntriesModel) viewConfirm(title, prompt string) string {
	entry := m.entries[m.cursor]

	var s string
	s += titleStyle.Render(title) + "\n\n"
	s += fmt.Sprintf("  %s  %s  %s  %s\n\n",
		entry.WorkDate.Format("Jan 2"),
		entry.ClientName,
		formatHours(entry.Hours),
		truncateStr(entry.Description, 40),
	)
	s += warningStyle.Render("  "+prompt) + "\n"
	if m.err != nil {
		s += "\n" + errorLine(m.err)
	}
	return s
}

func (m *EntriesModel) viewList() string {
	var s string

	s += titleStyle.Render("Time Entries") + subtitleStyle.Render(fmt.Sprintf("  (last %d days)", entriesWindowDays)) + "\n"

	s += errorLine(m.err) + statusLine(m.statusMsg)

	if len(m.entries) == 0 {
		s += "\n" + subtitleStyle.Render("  No time entries yet. Press 'n' to add one.")
		return s
	}

	// Summary
	totalHours, totalValue := m.calcTotals()
	s += subtitleStyle.Render(fmt.Sprintf(
		"  %d entries  |  %s total  |  %s value",
		len(m.entries), formatHours(totalHours), formatMoney(totalValue),
	)) + "\n\n"

	// Column header
	s += subtitleStyle.Render(fmt.Sprintf(
		"     %-7s  %-18s  %-14s  %6s  %10s  %-9s  %s",
		"Date", "Client", "Performer", "Hours", "Amount", "Status", "Description",
	)) + "\n"

	end := m.offset + m.maxVisible
	if end > len(m.entries) {
		end = len(m.entries)
	}
	for i := m.offset; i < end; i++ {
		s += m.renderEntry(m.entries[i], i == m.cursor) + "\n"
	}

	// Scroll indicators
	if m.offset > 0 {
		s += subtitleStyle.Render("  ... more above") + "\n"
	}
	if end < len(m.entries) {
		s += subtitleStyle.Render("  ... more below") + "\n"
	}

	s += "\n" + helpStyle.Render("  j/k: navigate  n: new  s: submit  a: approve  x: reject  o: reopen  d: delete")

	return s
}

func (m *EntriesModel) viewPickProject() string {
	var s string
	s += titleStyle.Render("New Entry - Select Project") + "\n\n"

	if m.formProjects == nil {
		return s + "  Loading projects...\n"
	}
	if len(m.formProjects) == 0 {
		return s + "  No active projects.\n\n" + helpStyle.Render("  esc: cancel")
	}

	for i, p := range m.formProjects {
		indicator := "  "
		if i == m.projectCursor {
			indicator = "> "
		}

		rate := "client rate"
		if p.HourlyRate.Valid {
			rate = formatMoney(p.HourlyRate.Decimal) + "/hr"
		}
		line := fmt.Sprintf("%s%-20s  %-25s  %s", indicator, truncateStr(p.ClientName, 20), truncateStr(p.Name, 25), rate)

		if i == m.projectCursor {
			s += focusStyle.Render(line) + "\n"
		} else {
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("  j/k: navigate  enter: select  esc: cancel")

	return s
}

func (m *EntriesModel) viewForm() string {
	var s string

	name := ""
	if m.formProject != nil {
		name = m.formProject.ClientName + " / " + m.formProject.Name
	}
	s += titleStyle.Render(fmt.Sprintf("New Entry - %s", name)) + "\n\n"

	return s + errorLine(m.err) + m.form.view()
}

func (m *EntriesModel) renderEntry(entry *domain.TimeEntry, selected bool) string {
	// Lock indicator
	lock := "  "
	if entry.IsLocked() {
		lock = "🔒"
	}

	line := fmt.Sprintf("%s %-7s  %-18s  %-14s  %6s  %10s  %-9s  %s",
		lock,
		entry.WorkDate.Format("Jan 2"),
		truncateStr(entry.ClientName, 18),
		truncateStr(entry.PerformerLabel(), 14),
		formatHours(entry.Hours),
		formatMoney(entry.Amount),
		entry.Status,
		truncateStr(entry.Description, 30),
	)

	if selected {
		return "  " + selectedStyle.Render(line)
	}
	if !entry.IsBillable {
		return "  " + mutedStyle.Render(line)
	}
	return "  " + line
}

func (m *EntriesModel) calcTotals() (decimal.Decimal, decimal.Decimal) {
	totalHours := decimal.Zero
	totalValue := decimal.Zero
	for _, entry := range m.entries {
		totalHours = totalHours.Add(entry.Hours)
		totalValue = totalValue.Add(entry.Amount)
	}
	return totalHours, totalValue
}
