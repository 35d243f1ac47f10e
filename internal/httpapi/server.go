// Package httpapi exposes the back office over JSON.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/andy/timeledger/internal/export"
	"github.com/andy/timeledger/internal/service"
)

// Services are the operations the API exposes
type Services struct {
	Clients   service.ClientService
	Projects  service.ProjectService
	People    service.PeopleService
	Entries   service.EntryService
	Timers    service.TimerService
	Invoices  service.InvoiceService
	Analytics service.AnalyticsService
	Import    service.ImportService
}

// Options configures the HTTP server
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Issuer       export.Issuer
}

type Server struct {
	svc    Services
	opts   Options
	log    *zap.Logger
	router chi.Router
}

// New builds the API server and its routes
func New(svc Services, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{svc: svc, opts: opts, log: log}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.identify)

		r.Route("/clients", s.clientRoutes)
		r.Route("/projects", s.projectRoutes)
		r.Route("/subcontractors", s.subcontractorRoutes)
		r.Route("/users", s.userRoutes)
		r.Route("/time-entries", s.entryRoutes)
		r.Route("/timers", s.timerRoutes)
		r.Route("/invoices", s.invoiceRoutes)
		r.Route("/analytics", s.analyticsRoutes)
		r.Route("/import", func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/analyze", s.analyzeImport)
			r.Post("/run", s.runImport)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
