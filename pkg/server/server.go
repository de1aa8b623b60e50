// Package server exposes the review pipeline over HTTP.
//
// Credentials flow through, never into, this layer: the SCM token arrives in
// the Authorization header and the model key in the request body; both live
// for the duration of one request.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rediverio/reviewd/pkg/ai"
	"github.com/rediverio/reviewd/pkg/connectors"
	"github.com/rediverio/reviewd/pkg/connectors/github"
	"github.com/rediverio/reviewd/pkg/connectors/gitlab"
	"github.com/rediverio/reviewd/pkg/errors"
	"github.com/rediverio/reviewd/pkg/health"
	"github.com/rediverio/reviewd/pkg/logging"
	"github.com/rediverio/reviewd/pkg/metrics"
	"github.com/rediverio/reviewd/pkg/pipeline"
	"github.com/rediverio/reviewd/pkg/redact"
	"github.com/rediverio/reviewd/pkg/store"
)

// Version is set at build time.
var Version = "dev"

// SCMFactory builds a code-host connector for one request's token.
type SCMFactory func(provider, token, baseURL string) (connectors.SCM, error)

// AnalyzerFactory builds an analysis client for one request's settings.
type AnalyzerFactory func(cfg ai.Config) (pipeline.Analyzer, error)

// Config holds server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// GitLabBaseURL points at a self-hosted GitLab, if any.
	GitLabBaseURL string

	// ReadTimeout and WriteTimeout bound each HTTP exchange.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the default server settings.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // review runs are slow
	}
}

// Server wires the handlers to the pipeline, store and probes.
type Server struct {
	config  *Config
	store   *store.Store
	health  *health.Handler
	logger  logging.Logger
	metrics metrics.Collector

	newSCM      SCMFactory
	newAnalyzer AnalyzerFactory

	// filter backs the standalone /api/security/check endpoint; review
	// runs build their own per-request filters.
	filter *redact.Filter

	httpServer *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(s *Server) {
		if c != nil {
			s.metrics = c
		}
	}
}

// WithSCMFactory overrides connector construction (tests, custom hosts).
func WithSCMFactory(f SCMFactory) Option {
	return func(s *Server) {
		if f != nil {
			s.newSCM = f
		}
	}
}

// WithAnalyzerFactory overrides analyzer construction.
func WithAnalyzerFactory(f AnalyzerFactory) Option {
	return func(s *Server) {
		if f != nil {
			s.newAnalyzer = f
		}
	}
}

// New creates the server.
func New(cfg *Config, st *store.Store, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	filter, _ := redact.NewFilter(nil) // only custom patterns can fail

	s := &Server{
		config:  cfg,
		store:   st,
		logger:  &logging.NopLogger{},
		metrics: &metrics.NopCollector{},
		filter:  filter,
	}
	s.newSCM = s.defaultSCMFactory
	s.newAnalyzer = func(aiCfg ai.Config) (pipeline.Analyzer, error) {
		return ai.NewClient(aiCfg, s.logger)
	}

	for _, opt := range opts {
		opt(s)
	}

	s.health = health.NewHandler(health.WithVersion(Version))
	if st != nil {
		s.health.Register("store", &health.StoreCheck{
			PingFunc: func(ctx context.Context) error {
				_, err := st.ListRecent(ctx, 1)
				return err
			},
		})
	}
	s.health.Register("memory", &health.RuntimeMemoryCheck{})
	s.health.Register("disk", &health.DiskCheck{MinFreePercent: 5})

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Health returns the probe handler, e.g. to register extra checks.
func (s *Server) Health() *health.Handler {
	return s.health
}

func (s *Server) defaultSCMFactory(provider, token, baseURL string) (connectors.SCM, error) {
	switch provider {
	case "github", "":
		return github.NewConnector(&connectors.Config{Token: token, BaseURL: baseURL})
	case "gitlab":
		if baseURL == "" {
			baseURL = s.config.GitLabBaseURL
		}
		return gitlab.NewConnector(&connectors.Config{Token: token, BaseURL: baseURL})
	default:
		return nil, errors.E(errors.KindInvalidInput, "server.newSCM",
			fmt.Sprintf("unknown provider: %s", provider))
	}
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/review", s.instrument("/api/review", s.handleReview))
	mux.Handle("GET /api/repos/{owner}/{repo}/pulls/{number}/analyze",
		s.instrument("/api/repos/pulls/analyze", s.handleAnalyze))
	mux.Handle("POST /api/security/check", s.instrument("/api/security/check", s.handleSecurityCheck))
	mux.Handle("GET /api/reviews/{id}", s.instrument("/api/reviews/get", s.handleGetReview))
	mux.Handle("GET /api/reviews", s.instrument("/api/reviews/list", s.handleListReviews))

	mux.Handle("GET /healthz", s.health.LivenessHandler())
	mux.Handle("GET /readyz", s.health.ReadinessHandler())
	mux.Handle("GET /health", s.health.HealthHandler())
	mux.Handle("GET /metrics", s.metrics.Handler())

	return mux
}

// instrument wraps a handler with request counting.
func (s *Server) instrument(path string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		s.metrics.CounterInc(metrics.HTTPRequestsTotal.Name,
			"path", path, "status", strconv.Itoa(sw.status))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Run serves until the context is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", s.config.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
