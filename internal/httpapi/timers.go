package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andy/timeledger/internal/domain"
)

func (s *Server) timerRoutes(r chi.Router) {
	r.Get("/", s.listTimers)
	r.Post("/", s.startTimer)
	r.Route("/{id}", func(r chi.Router) {
		r.Post("/pause", s.timerAction(s.svc.Timers.Pause))
		r.Post("/resume", s.timerAction(s.svc.Timers.Resume))
		r.Post("/commit", s.timerAction(s.svc.Timers.Commit))
		r.Post("/stop", s.timerAction(s.svc.Timers.Stop))
		r.Delete("/", s.discardTimer)
	})
}

type startTimerRequest struct {
	ProjectID   int64  `json:"project_id"`
	Description string `json:"description"`
	Billable    *bool  `json:"is_billable"`
}

func (s *Server) listTimers(w http.ResponseWriter, r *http.Request) {
	timers, err := s.svc.Timers.Active(r.Context(), scopeOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]timerView, 0, len(timers))
	for _, t := range timers {
		out = append(out, toTimerView(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) startTimer(w http.ResponseWriter, r *http.Request) {
	var req startTimerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	billable := req.Billable == nil || *req.Billable

	entry, err := s.svc.Timers.Start(r.Context(), scopeOf(r).UserID, req.ProjectID, req.Description, billable)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryView(entry))
}

type timerTransition func(ctx context.Context, id, userID int64) (*domain.TimeEntry, error)

// timerAction adapts a timer transition. Timers are always scoped to the caller.
func (s *Server) timerAction(fn timerTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		entry, err := fn(r.Context(), id, scopeOf(r).UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryView(entry))
	}
}

func (s *Server) discardTimer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Timers.Discard(r.Context(), id, scopeOf(r).UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
