package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"seo_article_orchestrator/pipeline"
)

// StatusSource provides the latest run report.
type StatusSource interface {
	Snapshot() pipeline.Report
}

// Server exposes health, metrics and run status while a run is in progress.
type Server struct {
	status   StatusSource
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	started  time.Time
	http     *http.Server
}

func New(status StatusSource, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	if status == nil {
		return nil, errors.New("status source required")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		status:   status,
		gatherer: gatherer,
		logger:   logger,
		started:  time.Now(),
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/status/{tenant}", s.handleTenantStatus)
	})
	return r
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("status server listening", zap.String("addr", addr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// --- Handlers ---

type healthResp struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type statusResp struct {
	Published int                     `json:"published"`
	Failed    int                     `json:"failed"`
	Tenants   []pipeline.TenantReport `json:"tenants"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{Status: "ok", Uptime: time.Since(s.started).Round(time.Second).String()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := s.status.Snapshot()
	writeJSON(w, http.StatusOK, statusResp{
		Published: report.Published(),
		Failed:    report.Failed(),
		Tenants:   report.Tenants,
	})
}

func (s *Server) handleTenantStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tenant")
	for _, t := range s.status.Snapshot().Tenants {
		if t.TenantID == id {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not processed yet"})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
