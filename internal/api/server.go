// Package api exposes the review workflow over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/monitoring"
	"github.com/R204570/LexAudit-Flow/internal/pipeline"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

// Resolver applies review decisions.
type Resolver interface {
	Resolve(ctx context.Context, id string, d model.Decision, managerID string) (*model.Resolution, error)
}

// Runner runs the detection pipeline.
type Runner interface {
	Run(ctx context.Context, url string) (*pipeline.Report, error)
	Process(ctx context.Context, docs []string) *pipeline.Report
}

// StatsCollector summarizes the review queue.
type StatsCollector interface {
	Collect(ctx context.Context, lookbackHours int) (*monitoring.Snapshot, error)
}

// Config holds the settings the handlers need.
type Config struct {
	HighlightedDir string
	RawDir         string
	CORSOrigins    []string
	Analysis       bool
	LookbackHours  int
}

// Server holds handler dependencies.
type Server struct {
	store    store.Store
	resolver Resolver
	runner   Runner
	stats    StatsCollector
	cfg      Config
}

// New creates a Server. runner may be nil when the pipeline is unavailable.
func New(st store.Store, resolver Resolver, runner Runner, cfg Config) *Server {
	if cfg.LookbackHours <= 0 {
		cfg.LookbackHours = 24
	}
	return &Server{
		store:    st,
		resolver: resolver,
		runner:   runner,
		stats:    monitoring.NewCollector(st),
		cfg:      cfg,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	r.Get("/tax-schemes", s.listItems)
	r.Route("/updates", func(r chi.Router) {
		r.Get("/", s.listUpdates)
		r.Get("/{id}", s.getUpdate)
		r.Post("/{id}/accept", s.resolveUpdate)
	})
	r.Get("/evidence/{filename}", s.serveEvidence)
	r.Post("/crawl", s.crawl)
	r.Post("/analyze", s.analyze)
	r.Get("/audit-logs", s.listAudit)
	r.Get("/stats", s.getStats)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
