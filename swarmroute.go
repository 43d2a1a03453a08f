// Package swarmroute provides the top-level entry point for the handoff
// orchestration core: classify a raw query, select a routing strategy
// against the specialist directory, and optionally drive the session to
// completion over the specialist invocation boundary.
//
// Usage:
//
//	import "github.com/swarmroute/swarmroute"
//
//	engine, err := swarmroute.New(dir, invoker)
//	decision := engine.Route("How do I configure SPF records?")
//	result, err := engine.RouteAndExecute(ctx, "How do I configure SPF records?", 5)
//
// Route is pure: calling it any number of times performs no invocation,
// writes no session state, and returns the same decision for the same
// query and directory contents.
package swarmroute

import (
	"context"

	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/analytics"
	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/directory"
	"github.com/swarmroute/swarmroute/internal/metrics"
	"github.com/swarmroute/swarmroute/orchestrator"
	"github.com/swarmroute/swarmroute/routing"
	"github.com/swarmroute/swarmroute/session"
	"github.com/swarmroute/swarmroute/types"
)

// ExecuteResult is the outcome of a full routing pipeline run.
type ExecuteResult struct {
	SessionID     string                    `json:"session_id"`
	Decision      types.RoutingDecision     `json:"decision"`
	FinalOutput   string                    `json:"final_output"`
	Chain         []types.HandoffChainEntry `json:"chain"`
	TotalHandoffs int                       `json:"total_handoffs"`
	Status        types.SessionStatus       `json:"status"`
	FailureCause  string                    `json:"failure_cause,omitempty"`
}

// Engine wires the classifier, selector, directory, orchestrator, session
// store, and analytics sink into one facade.
type Engine struct {
	classifier *routing.Classifier
	selector   *routing.Selector
	directory  directory.Directory
	orch       *orchestrator.Orchestrator
	store      session.Store
	sink       analytics.Sink
	collector  *metrics.Collector
	logger     *zap.Logger
	cfg        config.RoutingConfig
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	cfg       *config.Config
	store     session.Store
	sink      analytics.Sink
	events    orchestrator.EventLog
	collector *metrics.Collector
	logger    *zap.Logger
}

// WithConfig supplies a full configuration instead of the defaults.
func WithConfig(cfg *config.Config) EngineOption {
	return func(o *engineOptions) { o.cfg = cfg }
}

// WithSessionStore overrides the session store (default: in-memory).
func WithSessionStore(store session.Store) EngineOption {
	return func(o *engineOptions) { o.store = store }
}

// WithAnalytics sets the pattern analytics sink (default: in-memory).
func WithAnalytics(sink analytics.Sink) EngineOption {
	return func(o *engineOptions) { o.sink = sink }
}

// WithEventLog sets the orchestrator's operational event sink.
func WithEventLog(events orchestrator.EventLog) EngineOption {
	return func(o *engineOptions) { o.events = events }
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector *metrics.Collector) EngineOption {
	return func(o *engineOptions) { o.collector = collector }
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = logger }
}

// New creates an Engine over the given specialist directory and invocation
// boundary.
func New(dir directory.Directory, invoker orchestrator.Invoker, opts ...EngineOption) (*Engine, error) {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.store == nil {
		o.store = session.NewMemoryStore(o.logger)
	}
	if o.sink == nil {
		o.sink = analytics.NewMemorySink(o.logger)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(o.logger),
		orchestrator.WithMetrics(o.collector),
		orchestrator.WithMaxHandoffs(o.cfg.Routing.MaxHandoffs),
		orchestrator.WithHandoffsEnabled(o.cfg.Routing.HandoffsEnabled),
	}
	if o.events != nil {
		orchOpts = append(orchOpts, orchestrator.WithEventLog(o.events))
	}

	return &Engine{
		classifier: routing.NewClassifier(o.cfg.Routing, o.logger),
		selector:   routing.NewSelector(o.cfg.Routing, dir, o.logger),
		directory:  dir,
		orch:       orchestrator.New(dir, o.store, invoker, orchOpts...),
		store:      o.store,
		sink:       o.sink,
		collector:  o.collector,
		logger:     o.logger.With(zap.String("component", "engine")),
		cfg:        o.cfg.Routing,
	}, nil
}

// Route classifies the query and selects a strategy without executing
// anything. Callers may inspect the decision before committing to
// execution.
func (e *Engine) Route(query string) types.RoutingDecision {
	intent := e.classifier.Classify(query)
	decision := e.selector.Select(intent)

	e.collector.RecordClassification(string(intent.Category))
	e.collector.RecordRoutingDecision(string(decision.Strategy))
	return decision
}

// RouteAndExecute runs the full pipeline: classify, select, orchestrate
// to a terminal state, and record the finished session with the analytics
// sink. maxHandoffs overrides the configured budget when positive.
//
// A guard trip is a partial success: the result carries the chain and
// status MAX_HANDOFFS_REACHED with a nil error. The error is non-nil only
// for FAILED sessions and is always a *types.Error.
func (e *Engine) RouteAndExecute(ctx context.Context, query string, maxHandoffs int) (*ExecuteResult, error) {
	decision := e.Route(query)

	sess, execErr := e.orch.Execute(ctx, &decision, maxHandoffs)
	if sess == nil {
		return nil, execErr
	}

	if recErr := e.sink.Record(context.WithoutCancel(ctx), sess); recErr != nil {
		// analytics is advisory, never the session's fate
		e.logger.Warn("record session analytics",
			zap.String("session_id", sess.SessionID),
			zap.Error(recErr))
	}

	result := &ExecuteResult{
		SessionID:     sess.SessionID,
		Decision:      decision,
		FinalOutput:   sess.FinalOutput,
		Chain:         sess.Chain,
		TotalHandoffs: sess.TotalHandoffs(),
		Status:        sess.Status,
		FailureCause:  sess.FailureCause,
	}
	return result, execErr
}

// Session returns the durable record of a past session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*types.Session, error) {
	return e.store.Get(ctx, sessionID)
}

// Specialists lists the directory's descriptors sorted by ID.
func (e *Engine) Specialists() []directory.Descriptor {
	return e.directory.List()
}

// Analytics exposes the pattern analytics sink for aggregate queries.
func (e *Engine) Analytics() analytics.Sink {
	return e.sink
}

// Close releases the engine's stores.
func (e *Engine) Close() error {
	if err := e.store.Close(); err != nil {
		return err
	}
	return e.sink.Close()
}
