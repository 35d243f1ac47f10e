package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/app"
	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/export"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

type invoiceViewMode int

const (
	invoiceViewList          invoiceViewMode = iota
	invoiceViewDetail                        // Viewing a single invoice
	invoiceViewConfirmDelete                 // y/n before deleting a draft
	invoiceViewGenPickClient                 // Step 1: pick client
	invoiceViewGenPreview                    // Step 2: preview entries
	invoiceViewGenSavePath                   // Step 3: choose PDF directory
)

// InvoicesModel displays invoices in list and detail views
type InvoicesModel struct {
	app       *app.App
	mode      invoiceViewMode
	invoices  []*domain.Invoice
	cursor    int
	selected  *domain.Invoice
	loading   bool
	err       error
	statusMsg string

	// Invoice generation state
	genGroups     []service.UnbilledGroup
	genCursor     int
	genGroup      *service.UnbilledGroup
	savePathInput textinput.Model
}

// IsCapturingInput returns true when the save path input or a confirmation is active
func (m *InvoicesModel) IsCapturingInput() bool {
	return m.mode == invoiceViewGenSavePath || m.mode == invoiceViewConfirmDelete
}

type invoicesDataMsg struct {
	invoices []*domain.Invoice
	err      error
}

type invoiceDetailMsg struct {
	invoice *domain.Invoice
	err     error
}

// invoiceChangedMsg reports a status, payment or export action on the open invoice
type invoiceChangedMsg struct {
	invoice *domain.Invoice
	status  string
	err     error
}

type invoiceDeletedMsg struct {
	number string
	err    error
}

// genGroupsMsg carries the clients that have unbilled time
type genGroupsMsg struct {
	groups []service.UnbilledGroup
	err    error
}

// genDoneMsg signals invoice generation completed
type genDoneMsg struct {
	invoice  *domain.Invoice
	filePath string
	err      error
}

// NewInvoicesModel creates a new invoices screen model
func NewInvoicesModel(a *app.App) tea.Model {
	return &InvoicesModel{
		app:     a,
		mode:    invoiceViewList,
		loading: true,
	}
}

func (m *InvoicesModel) Init() tea.Cmd {
	return m.loadInvoices()
}

func (m *InvoicesModel) loadInvoices() tea.Cmd {
	return func() tea.Msg {
		invoices, err := m.app.Invoices.ListInvoices(context.Background(), repository.InvoiceFilter{})
		return invoicesDataMsg{invoices: invoices, err: err}
	}
}

func (m *InvoicesModel) loadDetail(id int64) tea.Cmd {
	return func() tea.Msg {
		invoice, err := m.app.Invoices.GetInvoice(context.Background(), id)
		return invoiceDetailMsg{invoice: invoice, err: err}
	}
}

// loadGenGroups loads the clients that have approved, unbilled time
func (m *InvoicesModel) loadGenGroups() tea.Cmd {
	return func() tea.Msg {
		groups, err := m.app.Invoices.UnbilledSummary(context.Background(), m.app.Scope(), nil)
		return genGroupsMsg{groups: groups, err: err}
	}
}

// generateInvoice bills the previewed entries and writes the PDF into dir
func (m *InvoicesModel) generateInvoice(dir string) tea.Cmd {
	group := m.genGroup
	a := m.app

	return func() tea.Msg {
		ctx := context.Background()

		entryIDs := make([]int64, len(group.Entries))
		for i, e := range group.Entries {
			entryIDs[i] = e.ID
		}

		invoice, err := a.Invoices.CreateInvoice(ctx, service.CreateInvoiceRequest{
			ClientID: group.ClientID,
			EntryIDs: entryIDs,
		})
		if err != nil {
			return genDoneMsg{err: fmt.Errorf("create invoice: %w", err)}
		}

		// Reload with items and client for the PDF
		invoice, err = a.Invoices.GetInvoice(ctx, invoice.ID)
		if err != nil {
			return genDoneMsg{err: fmt.Errorf("reload invoice: %w", err)}
		}

		filePath, err := export.SaveInvoicePDF(dir, invoice, a.Issuer())
		if err != nil {
			return genDoneMsg{invoice: invoice, err: fmt.Errorf("write pdf: %w", err)}
		}

		return genDoneMsg{invoice: invoice, filePath: filePath}
	}
}

// changeInvoice runs fn against the open invoice
func (m *InvoicesModel) changeInvoice(status string, fn func(ctx context.Context, id int64) (*domain.Invoice, error)) tea.Cmd {
	id := m.selected.ID
	return func() tea.Msg {
		ctx := context.Background()
		if _, err := fn(ctx, id); err != nil {
			return invoiceChangedMsg{err: err}
		}
		invoice, err := m.app.Invoices.GetInvoice(ctx, id)
		return invoiceChangedMsg{invoice: invoice, status: status, err: err}
	}
}

func (m *InvoicesModel) savePDF() tea.Cmd {
	inv := m.selected
	dir := m.app.Config.Invoice.OutputDir
	issuer := m.app.Issuer()
	return func() tea.Msg {
		path, err := export.SaveInvoicePDF(dir, inv, issuer)
		return invoiceChangedMsg{invoice: inv, status: "Saved " + path, err: err}
	}
}

func (m *InvoicesModel) deleteInvoice() tea.Cmd {
	inv := m.selected
	return func() tea.Msg {
		err := m.app.Invoices.DeleteInvoice(context.Background(), inv.ID)
		return invoiceDeletedMsg{number: inv.InvoiceNumber, err: err}
	}
}

func (m *InvoicesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshDataMsg:
		m.loading = true
		return m, m.loadInvoices()

	case invoicesDataMsg:
		m.loading = false
		m.err = msg.err
		m.invoices = msg.invoices
		if m.cursor >= len(m.invoices) {
			m.cursor = max(0, len(m.invoices)-1)
		}
		return m, nil

	case invoiceDetailMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.selected = msg.invoice
		m.mode = invoiceViewDetail
		return m, nil

	case invoiceChangedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.selected = msg.invoice
		m.statusMsg = msg.status
		return m, m.loadInvoices()

	case invoiceDeletedMsg:
		m.loading = false
		m.mode = invoiceViewList
		m.selected = nil
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.statusMsg = fmt.Sprintf("Invoice %s deleted; its entries are unbilled again", msg.number)
		return m, m.loadInvoices()

	case genGroupsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.mode = invoiceViewList
			return m, nil
		}
		if len(msg.groups) == 0 {
			m.err = fmt.Errorf("no clients with approved unbilled time")
			m.mode = invoiceViewList
			return m, nil
		}
		m.genGroups = msg.groups
		m.genCursor = 0
		m.mode = invoiceViewGenPickClient
		return m, nil

	case genDoneMsg:
		m.loading = false
		m.mode = invoiceViewList
		m.genGroups = nil
		m.genGroup = nil
		if msg.err != nil {
			m.err = msg.err
			// The invoice may exist even though the PDF failed
			return m, m.loadInvoices()
		}
		m.statusMsg = fmt.Sprintf("Invoice %s created -> %s", msg.invoice.InvoiceNumber, msg.filePath)
		return m, m.loadInvoices()

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}

		switch m.mode {
		case invoiceViewList:
			return m.updateList(msg)
		case invoiceViewDetail:
			return m.updateDetail(msg)
		case invoiceViewConfirmDelete:
			return m.updateConfirmDelete(msg)
		case invoiceViewGenPickClient:
			return m.updateGenPickClient(msg)
		case invoiceViewGenPreview:
			return m.updateGenPreview(msg)
		case invoiceViewGenSavePath:
			return m.updateGenSavePath(msg)
		}
	}

	// Forward all non-key messages to save path input (for cursor blink, etc.)
	if m.mode == invoiceViewGenSavePath {
		var cmd tea.Cmd
		m.savePathInput, cmd = m.savePathInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *InvoicesModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil

	switch {
	case key.Matches(msg, DefaultKeyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, DefaultKeyMap.Down):
		if m.cursor < len(m.invoices)-1 {
			m.cursor++
		}
	case key.Matches(msg, DefaultKeyMap.Select):
		if len(m.invoices) > 0 {
			m.loading = true
			m.statusMsg = ""
			return m, m.loadDetail(m.invoices[m.cursor].ID)
		}
	case key.Matches(msg, DefaultKeyMap.New):
		m.loading = true
		m.statusMsg = ""
		return m, m.loadGenGroups()
	}

	return m, nil
}

func (m *InvoicesModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	svc := m.app.Invoices

	switch {
	case key.Matches(msg, DefaultKeyMap.Back):
		m.mode = invoiceViewList
		m.selected = nil
		m.statusMsg = ""
		return m, nil
	case msg.String() == "s":
		m.loading = true
		return m, m.changeInvoice("Marked as sent", func(ctx context.Context, id int64) (*domain.Invoice, error) {
			return svc.UpdateStatus(ctx, id, domain.InvoiceStatusSent)
		})
	case msg.String() == "x":
		m.loading = true
		return m, m.changeInvoice("Invoice cancelled", func(ctx context.Context, id int64) (*domain.Invoice, error) {
			return svc.UpdateStatus(ctx, id, domain.InvoiceStatusCancelled)
		})
	case msg.String() == "p":
		m.loading = true
		return m, m.changeInvoice("Marked as paid", func(ctx context.Context, id int64) (*domain.Invoice, error) {
			return svc.UpdatePayment(ctx, id, domain.PaymentStatusPaid, nil)
		})
	case msg.String() == "u":
		m.loading = true
		return m, m.changeInvoice("Marked as unpaid", func(ctx context.Context, id int64) (*domain.Invoice, error) {
			return svc.UpdatePayment(ctx, id, domain.PaymentStatusUnpaid, nil)
		})
	case msg.String() == "f":
		m.loading = true
		return m, m.savePDF()
	case msg.String() == "d":
		if !m.selected.CanDelete() {
			m.err = fmt.Errorf("only draft invoices can be deleted")
			return m, nil
		}
		m.mode = invoiceViewConfirmDelete
	}
	return m, nil
}

func (m *InvoicesModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "y" {
		m.loading = true
		return m, m.deleteInvoice()
	}
	// Any other key cancels
	m.mode = invoiceViewDetail
	return m, nil
}

func (m *InvoicesModel) updateGenPickClient(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, DefaultKeyMap.Back):
		m.mode = invoiceViewList
		m.genGroups = nil
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Up):
		if m.genCursor > 0 {
			m.genCursor--
		}
	case key.Matches(msg, DefaultKeyMap.Down):
		if m.genCursor < len(m.genGroups)-1 {
			m.genCursor++
		}
	case key.Matches(msg, DefaultKeyMap.Select):
		if len(m.genGroups) > 0 {
			m.genGroup = &m.genGroups[m.genCursor]
			m.mode = invoiceViewGenPreview
		}
	}
	return m, nil
}

func (m *InvoicesModel) updateGenPreview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, DefaultKeyMap.Back):
		m.mode = invoiceViewGenPickClient
		m.genGroup = nil
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Select):
		m.savePathInput = textinput.New()
		m.savePathInput.Placeholder = "directory for the PDF"
		m.savePathInput.Width = 60
		m.savePathInput.CharLimit = 256
		m.savePathInput.SetValue(m.app.Config.Invoice.OutputDir)

		m.mode = invoiceViewGenSavePath
		return m, m.savePathInput.Focus()
	}
	return m, nil
}

func (m *InvoicesModel) updateGenSavePath(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.mode = invoiceViewGenPreview
			return m, nil
		case "enter":
			dir := strings.TrimSpace(m.savePathInput.Value())
			if dir == "" {
				m.err = fmt.Errorf("save directory cannot be empty")
				return m, nil
			}
			m.loading = true
			return m, m.generateInvoice(dir)
		}
	}

	var cmd tea.Cmd
	m.savePathInput, cmd = m.savePathInput.Update(msg)
	return m, cmd
}

func (m *InvoicesModel) View() string {
	if m.loading {
		return "Loading..."
	}

	switch m.mode {
	case invoiceViewDetail, invoiceViewConfirmDelete:
		return m.viewDetail()
	case invoiceViewGenPickClient:
		return m.viewGenPickClient()
	case invoiceViewGenPreview:
		return m.viewGenPreview()
	case invoiceViewGenSavePath:
		return m.viewGenSavePath()
	default:
		return m.viewList()
	}
}

func (m *InvoicesModel) viewList() string {
	var s string
	s += titleStyle.Render("Invoices") + "\n\n"

	if m.statusMsg != "" || m.err != nil {
		s += statusLine(m.statusMsg) + errorLine(m.err) + "\n"
	}

	if len(m.invoices) == 0 && m.err == nil {
		s += subtitleStyle.Render("  No invoices yet. Press 'n' to generate one.")
		return s
	}

	s += subtitleStyle.Render(fmt.Sprintf(
		"  %-12s  %-20s  %-12s  %-12s  %12s  %-10s  %s",
		"Number", "Client", "Date", "Due", "Total", "Status", "Payment",
	)) + "\n"

	for i, inv := range m.invoices {
		clientName := "Unknown"
		if inv.Client != nil {
			clientName = inv.Client.Name
		}

		invLine := fmt.Sprintf("  %-12s  %-20s  %-12s  %-12s  %12s  ",
			inv.InvoiceNumber,
			truncateStr(clientName, 20),
			inv.InvoiceDate.Format("Jan 02, 2006"),
			inv.DueDate.Format("Jan 02, 2006"),
			formatMoney(inv.Total),
		)

		if i == m.cursor {
			s += selectedStyle.Render(invLine+fmt.Sprintf("%-10s  %s", inv.Status, inv.PaymentStatus)) + "\n"
		} else {
			s += invLine + statusBadge(inv.Status) + "  " + paymentBadge(inv.PaymentStatus) + "\n"
		}
	}

	s += "\n" + helpStyle.Render("  j/k: navigate  enter: view detail  n: new invoice")

	return s
}

func (m *InvoicesModel) viewDetail() string {
	inv := m.selected
	if inv == nil {
		return "No invoice selected"
	}

	var s string

	clientName := "Unknown"
	if inv.Client != nil {
		clientName = inv.Client.Name
	}

	s += titleStyle.Render(fmt.Sprintf("Invoice %s", inv.InvoiceNumber)) + "\n\n"
	s += fmt.Sprintf("  Client:   %s\n", clientName)
	s += fmt.Sprintf("  Date:     %s\n", inv.InvoiceDate.Format("Jan 02, 2006"))
	s += fmt.Sprintf("  Due:      %s\n", inv.DueDate.Format("Jan 02, 2006"))
	s += fmt.Sprintf("  Status:   %s\n", statusBadge(inv.Status))
	payment := paymentBadge(inv.PaymentStatus)
	if inv.PaymentDate != nil {
		payment += " on " + inv.PaymentDate.Format("Jan 02, 2006")
	}
	s += fmt.Sprintf("  Payment:  %s\n", payment)
	if inv.Notes != "" {
		s += fmt.Sprintf("  Notes:    %s\n", inv.Notes)
	}
	s += "\n"

	if len(inv.Items) == 0 {
		s += subtitleStyle.Render("  No line items") + "\n"
	} else {
		s += subtitleStyle.Render(fmt.Sprintf(
			"  %-35s  %8s  %10s  %12s",
			"Description", "Hours", "Rate", "Amount",
		)) + "\n"

		for _, item := range inv.Items {
			s += fmt.Sprintf("  %-35s  %8s  %10s  %12s\n",
				truncateStr(item.Description, 35),
				formatHours(item.Quantity),
				formatMoney(item.Rate),
				formatMoney(item.Amount),
			)
		}
	}

	s += "\n"
	s += fmt.Sprintf("  Subtotal:  %12s\n", formatMoney(inv.Subtotal))
	s += fmt.Sprintf("  Tax (%s%%): %12s\n", inv.TaxRate.String(), formatMoney(inv.TaxAmount))
	s += sectionStyle.Render(fmt.Sprintf("  Total:     %12s", formatMoney(inv.Total))) + "\n"

	if m.statusMsg != "" || m.err != nil {
		s += "\n" + statusLine(m.statusMsg) + errorLine(m.err)
	}

	if m.mode == invoiceViewConfirmDelete {
		s += "\n" + warningStyle.Render(
			"  Delete this draft and return its entries to unbilled? (y/n)") + "\n"
		return s
	}

	s += "\n" + helpStyle.Render("  s: sent  x: cancel  p: paid  u: unpaid  f: save PDF  d: delete draft  esc: back")

	return s
}

func (m *InvoicesModel) viewGenPickClient() string {
	var s string
	s += titleStyle.Render("New Invoice - Select Client") + "\n\n"

	if len(m.genGroups) == 0 {
		s += subtitleStyle.Render("  No clients with unbilled time") + "\n"
		s += "\n" + helpStyle.Render("  esc: back")
		return s
	}

	s += subtitleStyle.Render("  Clients with approved, unbilled time:") + "\n\n"

	for i, g := range m.genGroups {
		indicator := "  "
		if i == m.genCursor {
			indicator = "> "
		}

		clientLine := fmt.Sprintf("%s%-25s  %3d entries  %8s  %12s  %s - %s",
			indicator,
			truncateStr(g.ClientName, 25),
			g.EntryCount,
			formatHours(g.Hours),
			formatMoney(g.Amount),
			g.OldestDate.Format("Jan 02"),
			g.NewestDate.Format("Jan 02, 2006"),
		)

		if i == m.genCursor {
			s += focusStyle.Render(clientLine) + "\n"
		} else {
			s += clientLine + "\n"
		}
	}

	s += "\n" + helpStyle.Render("  j/k: navigate  enter: select  esc: cancel")

	return s
}

// previewTotals applies the configured tax percentage to the group amount
func (m *InvoicesModel) previewTotals() (subtotal, tax, total, rate decimal.Decimal) {
	rate, err := m.app.Config.TaxRate()
	if err != nil {
		rate = decimal.Zero
	}
	subtotal = m.genGroup.Amount
	tax = subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
	return subtotal, tax, subtotal.Add(tax), rate
}

func (m *InvoicesModel) viewGenPreview() string {
	var s string

	g := m.genGroup
	s += titleStyle.Render(fmt.Sprintf("New Invoice - %s", g.ClientName)) + "\n\n"

	if len(g.Entries) == 0 {
		s += subtitleStyle.Render("  No unbilled entries found") + "\n"
		s += "\n" + helpStyle.Render("  esc: back")
		return s
	}

	subtotal, tax, total, rate := m.previewTotals()

	s += fmt.Sprintf("  %d entries  |  %s  |  %s\n\n",
		g.EntryCount, formatHours(g.Hours), formatMoney(subtotal))

	s += subtitleStyle.Render(fmt.Sprintf(
		"  %-10s  %-16s  %-30s  %8s  %12s",
		"Date", "Performer", "Description", "Hours", "Amount",
	)) + "\n"

	for _, entry := range g.Entries {
		desc := entry.Description
		if desc == "" {
			desc = "(no description)"
		}

		s += fmt.Sprintf("  %-10s  %-16s  %-30s  %8s  %12s\n",
			entry.WorkDate.Format("Jan 02"),
			truncateStr(entry.PerformerLabel(), 16),
			truncateStr(desc, 30),
			formatHours(entry.Hours),
			formatMoney(entry.Amount),
		)
	}

	s += "\n"
	s += fmt.Sprintf("  %62s  %12s\n", "Subtotal:", formatMoney(subtotal))
	s += fmt.Sprintf("  %62s  %12s\n", fmt.Sprintf("Tax (%s%%):", rate.String()), formatMoney(tax))
	s += sectionStyle.Render(fmt.Sprintf("  %62s  %12s", "Total:", formatMoney(total))) + "\n"

	s += "\n" + warningStyle.Render(
		"  Press enter to generate the invoice and lock these entries") + "\n"
	s += helpStyle.Render("  esc: back to client selection")

	return s
}

func (m *InvoicesModel) viewGenSavePath() string {
	var s string

	g := m.genGroup
	s += titleStyle.Render(fmt.Sprintf("New Invoice - %s", g.ClientName)) + "\n\n"

	_, _, total, _ := m.previewTotals()
	s += fmt.Sprintf("  %d entries  |  %s  |  %s\n\n",
		g.EntryCount, formatHours(g.Hours), formatMoney(total))

	s += focusStyle.Render("  Save PDF to directory:") + "\n"
	s += "  " + m.savePathInput.View() + "\n"

	if m.err != nil {
		s += "\n" + errorLine(m.err)
	}

	s += "\n" + helpStyle.Render("  enter: generate and save  esc: back")

	return s
}

// statusBadge renders an invoice status with color
func statusBadge(status domain.InvoiceStatus) string {
	switch status {
	case domain.InvoiceStatusDraft:
		return mutedStyle.Render("DRAFT")
	case domain.InvoiceStatusSent:
		return titleStyle.Render("SENT")
	case domain.InvoiceStatusCancelled:
		return errorStyle.Render("CANCELLED")
	default:
		return string(status)
	}
}

func paymentBadge(status domain.PaymentStatus) string {
	switch status {
	case domain.PaymentStatusPaid:
		return successStyle.Render("PAID")
	case domain.PaymentStatusPartial:
		return warningStyle.Render("PARTIAL")
	case domain.PaymentStatusUnpaid:
		return mutedStyle.Render("UNPAID")
	default:
		return string(status)
	}
}
