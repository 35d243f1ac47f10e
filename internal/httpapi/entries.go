package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/export"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

func (s *Server) entryRoutes(r chi.Router) {
	r.Get("/", s.listEntries)
	r.Post("/", s.createEntry)
	r.Get("/export.csv", s.exportEntries)
	r.With(s.adminOnly).Post("/subcontractor", s.logSubcontractor)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", s.getEntry)
		r.Patch("/", s.updateEntry)
		r.Delete("/", s.deleteEntry)
		r.Get("/history", s.entryHistory)
		r.Post("/submit", s.entryAction(s.svc.Entries.Submit))
		r.Post("/approve", s.entryAction(s.svc.Entries.Approve))
		r.Post("/reopen", s.entryAction(s.svc.Entries.Reopen))
		r.Post("/reject", s.rejectEntry)
	})
}

type createEntryRequest struct {
	UserID      int64            `json:"user_id"`
	ProjectID   int64            `json:"project_id"`
	WorkDate    *string          `json:"work_date"`
	Hours       decimal.Decimal  `json:"hours"`
	Description string           `json:"description"`
	Billable    *bool            `json:"is_billable"`
	Rate        *decimal.Decimal `json:"rate"`
}

type subcontractorEntryRequest struct {
	SubcontractorID int64            `json:"subcontractor_id"`
	ProjectID       int64            `json:"project_id"`
	WorkDate        *string          `json:"work_date"`
	Hours           decimal.Decimal  `json:"hours"`
	Description     string           `json:"description"`
	Billable        *bool            `json:"is_billable"`
	Rate            *decimal.Decimal `json:"rate"`
}

type updateEntryRequest struct {
	domain.EntryPatch
	Reason string `json:"reason"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// workDate defaults to today in the business timezone
func workDate(raw *string) (time.Time, error) {
	d, err := parseOptionalDate("work_date", raw)
	if err != nil {
		return time.Time{}, err
	}
	if d == nil {
		return domain.CivilDate(time.Now()), nil
	}
	return *d, nil
}

func requestedRate(rate *decimal.Decimal) domain.Rate {
	if rate == nil {
		return domain.PendingRate()
	}
	return domain.FixedRate(*rate)
}

// entryFilter reads list filters from the query string
func entryFilter(r *http.Request) (repository.EntryFilter, error) {
	filter := repository.EntryFilter{Scope: scopeOf(r)}
	var err error

	ints := []struct {
		name string
		dst  **int64
	}{
		{"user_id", &filter.UserID},
		{"subcontractor_id", &filter.SubcontractorID},
		{"client_id", &filter.ClientID},
		{"project_id", &filter.ProjectID},
		{"invoice_id", &filter.InvoiceID},
	}
	for _, p := range ints {
		if *p.dst, err = queryInt64(r, p.name); err != nil {
			return filter, err
		}
	}
	if filter.From, err = queryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		return filter, err
	}

	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status := domain.EntryStatus(raw)
		if !status.Valid() {
			return filter, domain.Invalid("status", "unknown entry status")
		}
		filter.Status = &status
	}
	filter.UnbilledOnly = queryBool(r, "unbilled")
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, domain.Invalid("limit", "limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := entryFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.svc.Entries.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryViews(entries))
}

func (s *Server) exportEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := entryFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.svc.Entries.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="time-entries.csv"`)
	if err := export.EntriesCSV(w, entries); err != nil {
		// Headers are already sent
		s.log.Warn("failed to stream entries CSV", zap.Error(err))
	}
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := workDate(req.WorkDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entry, err := s.svc.Entries.Create(r.Context(), scopeOf(r), service.NewEntry{
		UserID:      req.UserID,
		ProjectID:   req.ProjectID,
		WorkDate:    date,
		Hours:       req.Hours,
		Description: req.Description,
		Billable:    req.Billable,
		Rate:        requestedRate(req.Rate),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryView(entry))
}

func (s *Server) logSubcontractor(w http.ResponseWriter, r *http.Request) {
	var req subcontractorEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := workDate(req.WorkDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entry, err := s.svc.Entries.LogSubcontractor(r.Context(), scopeOf(r), service.NewSubcontractorEntry{
		SubcontractorID: req.SubcontractorID,
		ProjectID:       req.ProjectID,
		WorkDate:        date,
		Hours:           req.Hours,
		Description:     req.Description,
		Billable:        req.Billable,
		Rate:            requestedRate(req.Rate),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryView(entry))
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.svc.Entries.Get(r.Context(), scopeOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry))
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.svc.Entries.Update(r.Context(), scopeOf(r), id, req.EntryPatch, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry))
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reason := r.URL.Query().Get("reason")
	if err := s.svc.Entries.Delete(r.Context(), scopeOf(r), id, reason); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) entryHistory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	history, err := s.svc.Entries.History(r.Context(), scopeOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]historyView, 0, len(history))
	for _, h := range history {
		out = append(out, historyView{
			FieldName: h.FieldName,
			OldValue:  h.OldValue,
			NewValue:  h.NewValue,
			Reason:    h.ChangeReason,
			ChangedAt: h.ChangedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type entryTransition func(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error)

// entryAction adapts a status transition with no body
func (s *Server) entryAction(fn entryTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		entry, err := fn(r.Context(), scopeOf(r), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryView(entry))
	}
}

func (s *Server) rejectEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.svc.Entries.Reject(r.Context(), scopeOf(r), id, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry))
}
