package httpapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/export"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

func (s *Server) invoiceRoutes(r chi.Router) {
	// Consultants see their own unbilled work; everything else is admin only
	r.Get("/unbilled", s.unbilledSummary)

	r.Group(func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Get("/", s.listInvoices)
		r.Post("/", s.createInvoice)
		r.Get("/{id}", s.getInvoice)
		r.Delete("/{id}", s.deleteInvoice)
		r.Post("/{id}/status", s.updateInvoiceStatus)
		r.Post("/{id}/payment", s.updatePayment)
		r.Get("/{id}/pdf", s.invoicePDF)
	})
}

type createInvoiceRequest struct {
	ClientID    int64            `json:"client_id"`
	EntryIDs    []int64          `json:"entry_ids"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	InvoiceDate *string          `json:"invoice_date"`
	Notes       string           `json:"notes"`
}

type invoiceStatusRequest struct {
	Status domain.InvoiceStatus `json:"status"`
}

type paymentRequest struct {
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	PaymentDate   *string              `json:"payment_date"`
}

func (s *Server) unbilledSummary(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryInt64(r, "client_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	groups, err := s.svc.Invoices.UnbilledSummary(r.Context(), scopeOf(r), clientID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]unbilledView, 0, len(groups))
	for _, g := range groups {
		out = append(out, toUnbilledView(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	var filter repository.InvoiceFilter
	var err error
	if filter.ClientID, err = queryInt64(r, "client_id"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.From, err = queryDate(r, "from"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.InvoiceStatus(raw)
		if !status.Valid() {
			s.writeError(w, r, domain.Invalid("status", "unknown invoice status"))
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("payment_status"); raw != "" {
		status := domain.PaymentStatus(raw)
		if !status.Valid() {
			s.writeError(w, r, domain.Invalid("payment_status", "unknown payment status"))
			return
		}
		filter.PaymentStatus = &status
	}

	invoices, err := s.svc.Invoices.ListInvoices(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]invoiceView, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceView(inv))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := parseOptionalDate("invoice_date", req.InvoiceDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	invoice, err := s.svc.Invoices.CreateInvoice(r.Context(), service.CreateInvoiceRequest{
		ClientID:    req.ClientID,
		EntryIDs:    req.EntryIDs,
		TaxRate:     req.TaxRate,
		InvoiceDate: date,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceView(invoice))
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	invoice, err := s.svc.Invoices.GetInvoice(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceView(invoice))
}

func (s *Server) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Invoices.DeleteInvoice(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req invoiceStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	invoice, err := s.svc.Invoices.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceView(invoice))
}

func (s *Server) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := parseOptionalDate("payment_date", req.PaymentDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	invoice, err := s.svc.Invoices.UpdatePayment(r.Context(), id, req.PaymentStatus, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceView(invoice))
}

func (s *Server) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	invoice, err := s.svc.Invoices.GetInvoice(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Render fully before writing so failures still get a JSON error
	var buf bytes.Buffer
	if err := export.InvoicePDF(&buf, invoice, s.opts.Issuer); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, invoice.InvoiceNumber))
	_, _ = w.Write(buf.Bytes())
}
