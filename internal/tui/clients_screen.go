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

type clientMode int

const (
	clientModeList clientMode = iota
	clientModeNew
	clientModeEdit
)

const (
	clientFieldName = iota
	clientFieldRate
	clientFieldEmail
	clientFieldNotes
)

// ClientsModel lists clients with this month's hours and revenue
type ClientsModel struct {
	app          *app.App
	clients      []*domain.Client
	monthlyStats map[int64]service.Metrics
	cursor       int
	showArchived bool
	loading      bool
	err          error
	statusMsg    string

	mode          clientMode
	form          *form
	editingID     int64 // 0 while creating
	autoNewClient bool  // open the form once data arrives
}

type clientsDataMsg struct {
	clients      []*domain.Client
	monthlyStats map[int64]service.Metrics
	err          error
}

type clientSavedMsg struct {
	status string
	err    error
}

// NewClientsModel creates a new clients screen model
func NewClientsModel(a *app.App) tea.Model {
	return &ClientsModel{
		app:          a,
		monthlyStats: make(map[int64]service.Metrics),
		loading:      true,
	}
}

// IsCapturingInput returns true while the form is open
func (m *ClientsModel) IsCapturingInput() bool {
	return m.mode != clientModeList
}

func (m *ClientsModel) Init() tea.Cmd {
	return m.loadClients()
}

func (m *ClientsModel) loadClients() tea.Cmd {
	showArchived := m.showArchived
	return func() tea.Msg {
		ctx := context.Background()

		clients, err := m.app.Clients.List(ctx, showArchived)
		if err != nil {
			return clientsDataMsg{err: err}
		}

		today := domain.CivilDate(time.Now())
		monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

		// One row per client; topN wide enough that nothing folds into Other
		rows, err := m.app.Analytics.Breakdown(ctx, m.app.Scope(), service.BreakdownClient, monthStart, today, len(clients)+1)
		if err != nil {
			return clientsDataMsg{err: err}
		}
		stats := make(map[int64]service.Metrics, len(rows))
		for _, row := range rows {
			stats[row.ID] = row.Metrics
		}

		return clientsDataMsg{
			clients:      clients,
			monthlyStats: stats,
		}
	}
}

func (m *ClientsModel) openForm(editing *domain.Client) tea.Cmd {
	m.form = newForm(
		formField{label: "Name:", placeholder: "Client name", limit: 100, width: 40},
		formField{label: "Billing rate ($/hr):", placeholder: "150.00", limit: 10, width: 15},
		formField{label: "Invoice email:", placeholder: "billing@example.com", limit: 100, width: 40},
		formField{label: "Notes:", placeholder: "Optional notes", limit: 200, width: 50},
	)
	m.mode = clientModeNew
	m.editingID = 0
	if editing != nil {
		m.mode = clientModeEdit
		m.editingID = editing.ID
		m.form.set(clientFieldName, editing.Name)
		if editing.BillingRate.Valid {
			m.form.set(clientFieldRate, editing.BillingRate.Decimal.StringFixed(2))
		}
		m.form.set(clientFieldEmail, editing.InvoiceEmail)
		m.form.set(clientFieldNotes, editing.Notes)
	}
	return m.form.start()
}

// clientFormPatch turns the form values into a patch; a blank rate clears it
func clientFormPatch(name, rateStr, email, notes string) (domain.ClientPatch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ClientPatch{}, domain.Invalid("name", "name is required")
	}

	patch := domain.ClientPatch{
		Name:         &name,
		InvoiceEmail: &email,
		Notes:        &notes,
		BillingRate:  domain.SetNull[decimal.Decimal](),
	}

	rateStr = strings.TrimPrefix(strings.TrimSpace(rateStr), "$")
	if rateStr != "" {
		rate, err := decimal.NewFromString(rateStr)
		if err != nil || rate.IsNegative() {
			return domain.ClientPatch{}, domain.Invalid("billing_rate", fmt.Sprintf("invalid rate: %s", rateStr))
		}
		patch.BillingRate = domain.SetTo(rate)
	}
	return patch, nil
}

func (m *ClientsModel) saveClient() tea.Cmd {
	editingID := m.editingID
	patch, err := clientFormPatch(
		m.form.value(clientFieldName),
		m.form.value(clientFieldRate),
		m.form.value(clientFieldEmail),
		m.form.value(clientFieldNotes),
	)

	return func() tea.Msg {
		if err != nil {
			return clientSavedMsg{err: err}
		}
		ctx := context.Background()

		if editingID > 0 {
			client, err := m.app.Clients.Update(ctx, editingID, patch)
			if err != nil {
				return clientSavedMsg{err: err}
			}
			return clientSavedMsg{status: "Saved: " + client.Name}
		}

		client := domain.NewClient(*patch.Name)
		client.Apply(patch)
		if err := m.app.Clients.Create(ctx, client); err != nil {
			return clientSavedMsg{err: err}
		}
		return clientSavedMsg{status: "Created: " + client.Name}
	}
}

func (m *ClientsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(OpenNewClientFormMsg); ok {
		if m.loading {
			m.autoNewClient = true
			return m, nil
		}
		return m, m.openForm(nil)
	}

	switch msg := msg.(type) {
	case clientsDataMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.clients = msg.clients
			m.monthlyStats = msg.monthlyStats
			if m.cursor >= len(m.clients) {
				m.cursor = max(0, len(m.clients)-1)
			}
		}
		if m.autoNewClient {
			m.autoNewClient = false
			return m, m.openForm(nil)
		}
		return m, nil

	case clientSavedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.mode = clientModeList
		m.err = nil
		m.statusMsg = msg.status
		m.loading = true
		return m, m.loadClients()
	}

	if m.mode != clientModeList {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case RefreshDataMsg:
		m.loading = true
		return m, m.loadClients()

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
			}
		case key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(m.clients)-1 {
				m.cursor++
			}
		case key.Matches(msg, DefaultKeyMap.New):
			return m, m.openForm(nil)
		case key.Matches(msg, DefaultKeyMap.Select):
			if m.cursor < len(m.clients) {
				return m, m.openForm(m.clients[m.cursor])
			}
		case msg.String() == "a":
			if m.cursor < len(m.clients) {
				return m, m.toggleArchive()
			}
		case msg.String() == "h":
			m.showArchived = !m.showArchived
			m.cursor = 0
			m.loading = true
			return m, m.loadClients()
		}
	}

	return m, nil
}

func (m *ClientsModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.mode = clientModeList
		m.err = nil
		return m, nil
	}
	cmd, submit := m.form.update(msg)
	if submit {
		return m, m.saveClient()
	}
	return m, cmd
}

func (m *ClientsModel) toggleArchive() tea.Cmd {
	client := m.clients[m.cursor]
	return func() tea.Msg {
		ctx := context.Background()

		if client.IsActive {
			return clientSavedMsg{status: "Archived: " + client.Name, err: m.app.Clients.Deactivate(ctx, client.ID)}
		}
		return clientSavedMsg{status: "Restored: " + client.Name, err: m.app.Clients.Reactivate(ctx, client.ID)}
	}
}

func (m *ClientsModel) View() string {
	if m.mode != clientModeList {
		return m.viewForm()
	}
	return m.viewList()
}

func (m *ClientsModel) viewForm() string {
	var s string

	switch {
	case m.mode == clientModeEdit:
		s += titleStyle.Render("Edit Client") + "\n\n"
	case len(m.clients) == 0:
		s += titleStyle.Render("Welcome to timeledger!") + "\n"
		s += subtitleStyle.Render("  Set up your first client to get started.") + "\n\n"
	default:
		s += titleStyle.Render("New Client") + "\n\n"
	}

	s += errorLine(m.err)
	return s + m.form.view()
}

func (m *ClientsModel) viewList() string {
	if m.loading {
		return "Loading clients..."
	}

	header := "Clients"
	if m.showArchived {
		header += subtitleStyle.Render("  (including archived)")
	}
	s := titleStyle.Render(header) + "\n\n"
	s += errorLine(m.err) + statusLine(m.statusMsg)

	if len(m.clients) == 0 {
		s += subtitleStyle.Render("  No clients yet. Press 'n' to add one, 'h' to show archived.") + "\n"
		return s
	}

	for i, client := range m.clients {
		s += m.renderClient(i, client) + "\n"
	}

	s += "\n" + helpStyle.Render("  j/k: navigate  n: new  enter: edit  a: archive/restore  h: show archived")

	return s
}

func (m *ClientsModel) renderClient(index int, client *domain.Client) string {
	selected := index == m.cursor

	name := client.Name
	if client.Code != "" {
		name += " [" + client.Code + "]"
	}
	if !client.IsActive {
		name += " (archived)"
	}

	rate := "no rate"
	if client.BillingRate.Valid {
		rate = formatMoney(client.BillingRate.Decimal) + "/hr"
	}

	stats := m.monthlyStats[client.ID]
	monthly := fmt.Sprintf("This month: %s  %s", formatHours(stats.Hours), formatMoney(stats.Revenue))

	contact := client.InvoiceEmail
	if contact == "" && client.Notes != "" {
		contact = truncateStr(client.Notes, 40)
	}

	indicator := "  "
	if selected {
		indicator = "> "
	}

	line1 := fmt.Sprintf("%s%s", indicator, name)
	line2 := fmt.Sprintf("    Rate: %s  |  Net %d  |  %s", rate, client.PaymentTerms, monthly)
	var line3 string
	if contact != "" {
		line3 = fmt.Sprintf("    %s", contact)
	}

	nameStyle := lipgloss.NewStyle()
	if !client.IsActive {
		nameStyle = mutedStyle
	}
	if selected {
		nameStyle = focusStyle
	}
	detailStyle := subtitleStyle

	result := nameStyle.Render(line1) + "\n" + detailStyle.Render(line2)
	if line3 != "" {
		result += "\n" + detailStyle.Render(line3)
	}

	return result
}
