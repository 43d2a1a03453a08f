// Package session provides the durable session recorder. The orchestrator
// owns a session in memory while it runs; the store owns the durable copy
// and is the only writer to it. Every append must be durable before the
// orchestrator proceeds to the next turn, so a crash between turns never
// loses chain history.
//
// Supported backends, mirroring the deployment ladder:
//   - Memory: development and tests (default)
//   - File: single-node production, atomic write-then-rename per session
//   - Redis: distributed deployments
//   - Database: gorm-backed SQL (sqlite, postgres, mysql)
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/types"
)

// Common errors
var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("session already exists")
	ErrStoreClosed   = errors.New("session store is closed")
	ErrFinalized     = errors.New("session already finalized")
)

// Store records sessions durably. Implementations must make Append durable
// before returning; concurrent sessions are isolated by session ID
// (single writer per session, not single writer global).
type Store interface {
	// Create registers a new session in state running. HandoffsEnabled is
	// read once at session start and fixed for the session's lifetime.
	Create(ctx context.Context, sessionID string, handoffsEnabled bool) (*types.Session, error)
	// Append durably adds one chain entry to the session.
	Append(ctx context.Context, sessionID string, entry types.HandoffChainEntry) error
	// Finalize moves the session to a terminal status with its final
	// output and, for failures, a structured cause.
	Finalize(ctx context.Context, sessionID string, status types.SessionStatus, output, cause string) error
	// Get returns the durable copy of a session.
	Get(ctx context.Context, sessionID string) (*types.Session, error)
	// Ping reports store health.
	Ping(ctx context.Context) error
	// Close releases the store. Further calls return ErrStoreClosed.
	Close() error
}

// NewStore builds the store selected by cfg.Type.
func NewStore(cfg config.SessionConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case config.SessionStoreMemory, "":
		return NewMemoryStore(logger), nil
	case config.SessionStoreFile:
		return NewFileStore(cfg.BaseDir, logger)
	case config.SessionStoreRedis:
		return NewRedisStore(cfg.Redis, logger)
	case config.SessionStoreDatabase:
		return NewDatabaseStore(cfg.Database, logger)
	default:
		return nil, fmt.Errorf("unknown session store type: %s", cfg.Type)
	}
}

func newSession(sessionID string, handoffsEnabled bool) *types.Session {
	now := time.Now().UTC()
	return &types.Session{
		SessionID:       sessionID,
		Chain:           []types.HandoffChainEntry{},
		HandoffsEnabled: handoffsEnabled,
		Status:          types.StatusRunning,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func cloneSession(s *types.Session) *types.Session {
	copied := *s
	copied.Chain = make([]types.HandoffChainEntry, len(s.Chain))
	copy(copied.Chain, s.Chain)
	return &copied
}
