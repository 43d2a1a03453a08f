package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute"
	"github.com/swarmroute/swarmroute/analytics"
	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/internal/metrics"
	"github.com/swarmroute/swarmroute/internal/server"
	"github.com/swarmroute/swarmroute/internal/telemetry"
	"github.com/swarmroute/swarmroute/orchestrator"
	"github.com/swarmroute/swarmroute/session"
	"github.com/swarmroute/swarmroute/types"
)

// Server wires the engine behind the HTTP API and the metrics listener.
type Server struct {
	cfg            *config.Config
	logger         *zap.Logger
	engine         *swarmroute.Engine
	store          session.Store
	collector      *metrics.Collector
	httpManager    *server.Manager
	metricsManager *server.Manager
	otelProviders  *telemetry.Providers
	eventLog       orchestrator.EventLog

	// executeEnabled is false when no invoker endpoint is configured.
	// Routing endpoints stay available either way.
	executeEnabled bool
}

// metricsNamespace prefixes all Prometheus metric names. Overridden per
// test to keep registrations distinct on the default registry.
var metricsNamespace = "swarmroute"

// NewServer builds the full serving stack from configuration.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) (*Server, error) {
	collector := metrics.NewCollector(metricsNamespace, logger)

	dir, err := buildDirectory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build specialist directory: %w", err)
	}

	store, err := session.NewStore(cfg.Session, logger)
	if err != nil {
		return nil, fmt.Errorf("build session store: %w", err)
	}

	sink, err := analytics.NewSink(cfg.Analytics, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build analytics sink: %w", err)
	}

	executeEnabled := cfg.Invoker.Endpoint != ""
	var invoker orchestrator.Invoker
	if executeEnabled {
		invoker = orchestrator.NewHTTPInvoker(cfg.Invoker.Endpoint, cfg.Invoker.Timeout, logger)
	} else {
		logger.Info("no invoker endpoint configured, execution endpoints disabled")
		invoker = orchestrator.InvokerFunc(func(context.Context, string, map[string]any) (string, error) {
			return "", fmt.Errorf("no invoker configured")
		})
	}

	eventLog := orchestrator.NewZapEventLog(logger)

	engine, err := swarmroute.New(dir, invoker,
		swarmroute.WithConfig(cfg),
		swarmroute.WithSessionStore(store),
		swarmroute.WithAnalytics(sink),
		swarmroute.WithEventLog(eventLog),
		swarmroute.WithMetrics(collector),
		swarmroute.WithLogger(logger),
	)
	if err != nil {
		store.Close()
		sink.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		engine:         engine,
		store:          store,
		collector:      collector,
		otelProviders:  otelProviders,
		eventLog:       eventLog,
		executeEnabled: executeEnabled,
	}

	handler := s.buildHandler()
	s.httpManager = server.NewManager(handler, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	s.metricsManager = server.NewManager(metricsMux, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	return s, nil
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/route", s.handleRoute)
	mux.HandleFunc("POST /v1/execute", s.handleExecute)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /v1/specialists", s.handleListSpecialists)
	mux.HandleFunc("GET /v1/analytics/top-paths", s.handleTopPaths)
	mux.HandleFunc("GET /v1/analytics/success-rate", s.handleSuccessRate)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /version", s.handleVersion)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		RateLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Auth.Enabled {
		middlewares = append(middlewares,
			JWTAuth(s.cfg.Auth, []string{"/healthz", "/version"}, s.logger))
	}
	return Chain(mux, middlewares...)
}

// Start brings up the API and metrics listeners. Non-blocking.
func (s *Server) Start() error {
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	s.logger.Info("api server listening", zap.String("addr", s.httpManager.Addr()))

	if err := s.metricsManager.Start(); err != nil {
		s.shutdownHTTP()
		return fmt.Errorf("start metrics server: %w", err)
	}
	s.logger.Info("metrics server listening", zap.String("addr", s.metricsManager.Addr()))

	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then tears the stack
// down in reverse order of startup.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.metricsManager.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics server shutdown", zap.Error(err))
	}
	if err := s.engine.Close(); err != nil {
		s.logger.Warn("engine close", zap.Error(err))
	}
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}
}

func (s *Server) shutdownHTTP() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpManager.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown", zap.Error(err))
	}
}

type routeRequest struct {
	Query string `json:"query"`
}

type executeRequest struct {
	Query       string `json:"query"`
	MaxHandoffs int    `json:"max_handoffs,omitempty"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "query is required")
		return
	}

	decision := s.engine.Route(req.Query)
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if !s.executeEnabled {
		writeError(w, http.StatusServiceUnavailable, "EXECUTION_DISABLED",
			"no invoker endpoint configured, only routing is available")
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "query is required")
		return
	}

	result, err := s.engine.RouteAndExecute(r.Context(), req.Query, req.MaxHandoffs)
	if result == nil {
		s.logger.Error("execute failed before session creation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errCode(err), "session could not be started")
		return
	}

	// Failed sessions still return their durable record; the caller reads
	// the status and failure cause from the body.
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no such session")
			return
		}
		s.logger.Error("load session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errCode(err), "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListSpecialists(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"specialists": s.engine.Specialists(),
	})
}

func (s *Server) handleTopPaths(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer")
			return
		}
		limit = n
	}

	paths, err := s.engine.Analytics().TopPaths(r.Context(), limit)
	if err != nil {
		s.logger.Error("top paths query", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errCode(err), "failed to query handoff paths")
		return
	}
	if paths == nil {
		paths = []analytics.PathCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"paths": paths})
}

func (s *Server) handleSuccessRate(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "window must be a duration such as 24h")
			return
		}
		window = d
	}

	rate, err := s.engine.Analytics().SuccessRate(r.Context(), window)
	if err != nil {
		s.logger.Error("success rate query", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errCode(err), "failed to compute success rate")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success_rate": rate,
		"window":       window.String(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// errCode extracts the structured code when err is a *types.Error.
func errCode(err error) string {
	var structured *types.Error
	if errors.As(err, &structured) {
		return string(structured.Code)
	}
	return "INTERNAL"
}
