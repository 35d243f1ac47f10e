package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/service"
)

func (s *Server) analyticsRoutes(r chi.Router) {
	r.Get("/summary", s.analyticsSummary)
	r.Get("/revenue", s.revenueSeries)
	r.Get("/breakdown", s.breakdown)
	r.Get("/stacked", s.stackedSeries)
}

type analyticsQuery struct {
	from        time.Time
	to          time.Time
	granularity domain.Granularity
	topN        int
}

// parseAnalyticsQuery reads from/to (default: January 1 through today),
// granularity (default month) and top (default 5).
func parseAnalyticsQuery(r *http.Request) (analyticsQuery, error) {
	today := domain.CivilDate(time.Now())
	q := analyticsQuery{
		from:        domain.NewDate(today.Year(), time.January, 1),
		to:          today,
		granularity: domain.GranularityMonth,
		topN:        service.DefaultTopN,
	}

	from, err := queryDate(r, "from")
	if err != nil {
		return q, err
	}
	if from != nil {
		q.from = *from
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return q, err
	}
	if to != nil {
		q.to = *to
	}
	if q.to.Before(q.from) {
		return q, domain.Invalid("to", "to must not be before from")
	}

	if raw := r.URL.Query().Get("granularity"); raw != "" {
		g, err := domain.ParseGranularity(raw)
		if err != nil {
			return q, err
		}
		q.granularity = g
	}
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, domain.Invalid("top", "top must be a positive integer")
		}
		q.topN = n
	}
	return q, nil
}

func (s *Server) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnalyticsQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.svc.Analytics.Summary(r.Context(), scopeOf(r), q.from, q.to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) revenueSeries(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnalyticsQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	points, err := s.svc.Analytics.RevenueSeries(r.Context(), scopeOf(r), q.granularity, q.from, q.to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) breakdown(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnalyticsQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	by := r.URL.Query().Get("by")
	if by == "" {
		by = string(service.BreakdownClient)
	}
	entity, err := service.ParseBreakdownEntity(by)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.svc.Analytics.Breakdown(r.Context(), scopeOf(r), entity, q.from, q.to, q.topN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) stackedSeries(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnalyticsQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	series, err := s.svc.Analytics.StackedSeries(r.Context(), scopeOf(r), q.granularity, q.from, q.to, q.topN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}
