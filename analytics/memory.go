package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/types"
)

type pathKey struct {
	from string
	to   string
}

type outcome struct {
	status     types.SessionStatus
	recordedAt time.Time
}

// MemorySink keeps aggregates in memory. Writes are serialized; reads may
// run concurrently.
type MemorySink struct {
	paths    map[pathKey]int64
	outcomes []outcome
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewMemorySink creates an in-memory analytics sink.
func NewMemorySink(logger *zap.Logger) *MemorySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemorySink{
		paths:  make(map[pathKey]int64),
		logger: logger.With(zap.String("component", "analytics"), zap.String("backend", "memory")),
	}
}

func (s *MemorySink) Record(ctx context.Context, sess *types.Session) error {
	if !sess.Status.Terminal() {
		return errNotFinalized(sess)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range sess.Chain {
		s.paths[pathKey{from: entry.FromSpecialist, to: entry.ToSpecialist}]++
	}
	s.outcomes = append(s.outcomes, outcome{status: sess.Status, recordedAt: time.Now().UTC()})
	s.logger.Debug("session recorded",
		zap.String("session_id", sess.SessionID),
		zap.String("status", string(sess.Status)),
		zap.Int("handoffs", sess.TotalHandoffs()))
	return nil
}

func (s *MemorySink) TopPaths(ctx context.Context, limit int) ([]PathCount, error) {
	s.mu.RLock()
	counts := make([]PathCount, 0, len(s.paths))
	for key, n := range s.paths {
		counts = append(counts, PathCount{FromSpecialist: key.from, ToSpecialist: key.to, Count: n})
	}
	s.mu.RUnlock()

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		if counts[i].FromSpecialist != counts[j].FromSpecialist {
			return counts[i].FromSpecialist < counts[j].FromSpecialist
		}
		return counts[i].ToSpecialist < counts[j].ToSpecialist
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

func (s *MemorySink) SuccessRate(ctx context.Context, window time.Duration) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().UTC().Add(-window)
	}
	var total, completed int
	for _, o := range s.outcomes {
		if !cutoff.IsZero() && o.recordedAt.Before(cutoff) {
			continue
		}
		total++
		if o.status == types.StatusCompleted {
			completed++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(completed) / float64(total), nil
}

func (s *MemorySink) Close() error { return nil }
