// Package orchestrator drives the turn-by-turn execution loop: invoke the
// current specialist, parse its output for a handoff declaration, enrich
// the shared context, switch specialists, and stop on completion, failure,
// or the handoff budget.
//
// Scheduling is single-threaded cooperative per session. Turns run
// strictly sequentially because turn n+1 depends on the parsed output of
// turn n; the specialist invocation is the sole suspension point. Many
// sessions may run concurrently on one Orchestrator since all per-session
// state is local to Execute.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/directory"
	"github.com/swarmroute/swarmroute/handoff"
	"github.com/swarmroute/swarmroute/internal/metrics"
	"github.com/swarmroute/swarmroute/session"
	"github.com/swarmroute/swarmroute/types"
)

// Orchestrator executes routing decisions against the specialist
// invocation boundary, recording every transition durably before the next
// turn begins.
type Orchestrator struct {
	directory       directory.Directory
	store           session.Store
	invoker         Invoker
	events          EventLog
	collector       *metrics.Collector
	tracer          trace.Tracer
	logger          *zap.Logger
	maxHandoffs     int
	handoffsEnabled bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventLog sets the operational event sink.
func WithEventLog(events EventLog) Option {
	return func(o *Orchestrator) {
		if events != nil {
			o.events = events
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *Orchestrator) { o.collector = collector }
}

// WithMaxHandoffs sets the default per-session handoff budget.
func WithMaxHandoffs(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxHandoffs = n
		}
	}
}

// WithHandoffsEnabled sets the feature flag read once at session start.
// When disabled, specialist output is taken verbatim as the final answer
// and any declaration block in it is ignored.
func WithHandoffsEnabled(enabled bool) Option {
	return func(o *Orchestrator) { o.handoffsEnabled = enabled }
}

// DefaultMaxHandoffs bounds a session when no explicit budget is given.
const DefaultMaxHandoffs = 5

// New creates an Orchestrator over the given directory, session store,
// and invocation boundary.
func New(dir directory.Directory, store session.Store, invoker Invoker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		directory:       dir,
		store:           store,
		invoker:         invoker,
		events:          NopEventLog{},
		tracer:          otel.Tracer("swarmroute/orchestrator"),
		logger:          zap.NewNop(),
		maxHandoffs:     DefaultMaxHandoffs,
		handoffsEnabled: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	return o
}

// Execute runs one session to a terminal state. maxHandoffs overrides the
// configured budget when positive; the budget is fixed at session start
// and later configuration changes never affect an in-flight session.
//
// The returned session is always terminal when non-nil. The error is
// non-nil only for FAILED sessions and is always a *types.Error; a guard
// trip is a partial success, not an error.
func (o *Orchestrator) Execute(ctx context.Context, decision *types.RoutingDecision, maxHandoffs int) (*types.Session, error) {
	if maxHandoffs <= 0 {
		maxHandoffs = o.maxHandoffs
	}

	sessionID := uuid.NewString()
	sess, err := o.store.Create(ctx, sessionID, o.handoffsEnabled)
	if err != nil {
		return nil, types.NewError(types.ErrSessionPersistence, "create session").WithCause(err)
	}

	o.logger.Info("session started",
		zap.String("session_id", sessionID),
		zap.String("strategy", string(decision.Strategy)),
		zap.String("initial_specialist", decision.InitialSpecialist),
		zap.Int("max_handoffs", maxHandoffs))

	// The decision's initial specialist is unvalidated input just like a
	// handoff target: resolve it before the first invocation so a decision
	// referencing an unknown identifier fails instead of running.
	initial, err := o.directory.Resolve(decision.InitialSpecialist)
	if err != nil {
		cause := asStructured(err, types.ErrSpecialistNotFound, "unresolved initial specialist")
		return o.fail(ctx, sess, cause)
	}

	current := initial.ID
	turnContext := cloneContext(decision.Context)

	for {
		// Cancellation applies at turn boundaries only; a running
		// invocation is opaque and cannot be interrupted mid-flight.
		if ctx.Err() != nil {
			cause := types.NewError(types.ErrSessionCancelled, "cancelled at turn boundary").WithCause(ctx.Err())
			return o.fail(ctx, sess, cause)
		}

		turn, err := o.runTurn(ctx, sess.SessionID, current, turnContext)
		if err != nil {
			cause := types.NewError(types.ErrInvocationFailed, "specialist invocation failed").
				WithSpecialist(current).
				WithCause(err)
			return o.fail(ctx, sess, cause)
		}

		if !sess.HandoffsEnabled {
			return o.complete(ctx, sess, current, turn.OutputText)
		}

		decl, rawParseErr := handoff.ExtractHandoff(turn.OutputText)
		if rawParseErr != nil {
			parseErr := asStructured(rawParseErr, types.ErrHandoffParse, "malformed handoff declaration")
			o.events.Emit(Event{
				Type:           EventHandoffFailed,
				Timestamp:      time.Now().UTC(),
				SessionID:      sess.SessionID,
				FromSpecialist: current,
				Error:          parseErr.Error(),
			})
			o.collector.RecordHandoffFailure("parse_error")
			return o.fail(ctx, sess, parseErr)
		}
		if decl == nil {
			return o.complete(ctx, sess, current, turn.OutputText)
		}
		turn.Handoff = decl

		target, err := o.directory.Resolve(turn.Handoff.ToSpecialist)
		if err != nil {
			cause := asStructured(err, types.ErrSpecialistNotFound, "unresolved handoff target")
			o.events.Emit(Event{
				Type:           EventHandoffFailed,
				Timestamp:      time.Now().UTC(),
				SessionID:      sess.SessionID,
				FromSpecialist: current,
				ToSpecialist:   turn.Handoff.ToSpecialist,
				Error:          cause.Error(),
			})
			o.collector.RecordHandoffFailure("specialist_not_found")
			return o.fail(ctx, sess, cause)
		}

		// Self-handoffs count toward the same budget; the guard exists
		// exactly to bound accidental loops, A→B→A ping-pong included.
		if sess.TotalHandoffs()+1 > maxHandoffs {
			return o.guardTrip(ctx, sess, current, target.ID, turn.OutputText)
		}

		// Last-writer-wins merge: the handoff's values overwrite any
		// earlier values under the same key.
		for k, v := range turn.Handoff.Context {
			turnContext[k] = v
		}

		entry := types.HandoffChainEntry{
			FromSpecialist: current,
			ToSpecialist:   target.ID,
			Reason:         turn.Handoff.Reason,
			ContextSize:    contextSize(turnContext),
			Timestamp:      time.Now().UTC(),
		}
		if err := o.store.Append(ctx, sess.SessionID, entry); err != nil {
			cause := types.NewError(types.ErrSessionPersistence, "append chain entry").WithCause(err)
			return o.fail(ctx, sess, cause)
		}
		sess.Chain = append(sess.Chain, entry)

		o.events.Emit(Event{
			Type:           EventHandoffTriggered,
			Timestamp:      entry.Timestamp,
			SessionID:      sess.SessionID,
			FromSpecialist: current,
			ToSpecialist:   target.ID,
			Reason:         entry.Reason,
		})
		o.collector.RecordHandoff(current, target.ID)
		o.logger.Debug("handoff",
			zap.String("session_id", sess.SessionID),
			zap.String("from", current),
			zap.String("to", target.ID),
			zap.Int("chain_length", sess.TotalHandoffs()))

		current = target.ID
	}
}

// runTurn invokes one specialist inside a span and reports its latency.
// The returned TurnResult carries no Handoff yet; Execute attaches one
// after parsing the output.
func (o *Orchestrator) runTurn(ctx context.Context, sessionID, specialistID string, turnContext map[string]any) (*types.TurnResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.turn",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("specialist.id", specialistID),
		))
	defer span.End()

	start := time.Now()
	output, err := o.invoker.Invoke(ctx, specialistID, turnContext)
	duration := time.Since(start)
	o.collector.ObserveTurnDuration(specialistID, duration)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &types.TurnResult{
		SpecialistID: specialistID,
		OutputText:   output,
		Duration:     duration,
	}, nil
}

func (o *Orchestrator) complete(ctx context.Context, sess *types.Session, current, output string) (*types.Session, error) {
	if err := o.store.Finalize(ctx, sess.SessionID, types.StatusCompleted, output, ""); err != nil {
		cause := types.NewError(types.ErrSessionPersistence, "finalize session").WithCause(err)
		return o.fail(ctx, sess, cause)
	}
	sess.Status = types.StatusCompleted
	sess.FinalOutput = output

	o.events.Emit(Event{
		Type:           EventSessionCompleted,
		Timestamp:      time.Now().UTC(),
		SessionID:      sess.SessionID,
		FromSpecialist: current,
	})
	o.collector.RecordSessionOutcome(string(types.StatusCompleted), sess.TotalHandoffs())
	o.logger.Info("session completed",
		zap.String("session_id", sess.SessionID),
		zap.Int("total_handoffs", sess.TotalHandoffs()))
	return sess, nil
}

// guardTrip finalizes the session as a partial success: the chain built so
// far and the last specialist's output are preserved for the caller.
func (o *Orchestrator) guardTrip(ctx context.Context, sess *types.Session, from, to, output string) (*types.Session, error) {
	cause := types.NewError(types.ErrMaxHandoffsExceeded, "handoff budget exhausted").WithSpecialist(to)
	if err := o.store.Finalize(ctx, sess.SessionID, types.StatusMaxHandoffsReached, output, cause.Error()); err != nil {
		persistCause := types.NewError(types.ErrSessionPersistence, "finalize session").WithCause(err)
		return o.fail(ctx, sess, persistCause)
	}
	sess.Status = types.StatusMaxHandoffsReached
	sess.FinalOutput = output
	sess.FailureCause = cause.Error()

	o.events.Emit(Event{
		Type:           EventMaxHandoffsReached,
		Timestamp:      time.Now().UTC(),
		SessionID:      sess.SessionID,
		FromSpecialist: from,
		ToSpecialist:   to,
	})
	o.collector.RecordGuardTrip()
	o.collector.RecordSessionOutcome(string(types.StatusMaxHandoffsReached), sess.TotalHandoffs())
	o.logger.Warn("max handoffs reached",
		zap.String("session_id", sess.SessionID),
		zap.String("blocked_target", to),
		zap.Int("total_handoffs", sess.TotalHandoffs()))
	return sess, nil
}

// fail finalizes the session as FAILED with a structured cause. A
// finalize failure here is logged, not surfaced: the original cause is
// the one the caller needs. Finalize runs on an uncancelled context so a
// cancelled session still gets a durable terminal record.
func (o *Orchestrator) fail(ctx context.Context, sess *types.Session, cause *types.Error) (*types.Session, error) {
	ctx = context.WithoutCancel(ctx)
	if err := o.store.Finalize(ctx, sess.SessionID, types.StatusFailed, "", cause.Error()); err != nil {
		o.logger.Error("finalize failed session",
			zap.String("session_id", sess.SessionID),
			zap.Error(err))
	}
	sess.Status = types.StatusFailed
	sess.FailureCause = cause.Error()

	o.collector.RecordSessionOutcome(string(types.StatusFailed), sess.TotalHandoffs())
	o.logger.Warn("session failed",
		zap.String("session_id", sess.SessionID),
		zap.String("code", string(cause.Code)),
		zap.Error(cause))
	return sess, cause
}

// asStructured returns err as a *types.Error, wrapping it under code when
// the source did not already produce one.
func asStructured(err error, code types.ErrorCode, message string) *types.Error {
	var structured *types.Error
	if errors.As(err, &structured) {
		return structured
	}
	return types.NewError(code, message).WithCause(err)
}

func cloneContext(src map[string]any) map[string]any {
	merged := make(map[string]any, len(src))
	for k, v := range src {
		merged[k] = v
	}
	return merged
}

// contextSize is the byte size of the JSON-serialized context.
func contextSize(turnContext map[string]any) int {
	data, err := json.Marshal(turnContext)
	if err != nil {
		return 0
	}
	return len(data)
}
