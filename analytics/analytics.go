// Package analytics aggregates historical handoff chains for routing
// tuning. One write per completed session, read-mostly afterwards.
// Writes are append-only; historical records are never updated in place.
package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/types"
)

// PathCount is one observed handoff edge with its frequency.
type PathCount struct {
	FromSpecialist string `json:"from_specialist"`
	ToSpecialist   string `json:"to_specialist"`
	Count          int64  `json:"count"`
}

// Sink receives finalized sessions and answers aggregate queries.
// Read operations tolerate an empty history: they return zeros or empty
// slices, never an error for "no data yet". Callers inject a Sink; there
// is no package-level singleton.
type Sink interface {
	// Record appends one finalized session. Running sessions are
	// rejected; the chain and outcome are written append-only.
	Record(ctx context.Context, sess *types.Session) error
	// TopPaths returns the most frequent handoff edges, most common
	// first. Ties order by from then to specialist ID.
	TopPaths(ctx context.Context, limit int) ([]PathCount, error)
	// SuccessRate returns the fraction of sessions recorded within the
	// window that completed successfully. A non-positive window means
	// all history. Empty history yields 0.
	SuccessRate(ctx context.Context, window time.Duration) (float64, error)
	Close() error
}

// NewSink builds the sink selected by cfg.
func NewSink(cfg config.AnalyticsConfig, logger *zap.Logger) (Sink, error) {
	if !cfg.Enabled {
		return NewNopSink(), nil
	}
	switch cfg.Type {
	case "memory", "":
		return NewMemorySink(logger), nil
	case "database":
		return NewDatabaseSink(cfg.Database, logger)
	default:
		return nil, fmt.Errorf("unknown analytics store: %s", cfg.Type)
	}
}

// NopSink discards everything. Used when analytics is disabled.
type NopSink struct{}

func NewNopSink() *NopSink { return &NopSink{} }

func (*NopSink) Record(context.Context, *types.Session) error { return nil }

func (*NopSink) TopPaths(context.Context, int) ([]PathCount, error) {
	return []PathCount{}, nil
}

func (*NopSink) SuccessRate(context.Context, time.Duration) (float64, error) {
	return 0, nil
}

func (*NopSink) Close() error { return nil }

func errNotFinalized(sess *types.Session) error {
	return fmt.Errorf("session %s is not finalized (status %s)", sess.SessionID, sess.Status)
}
