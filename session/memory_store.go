package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/types"
)

// MemoryStore keeps sessions in memory. For development and tests.
type MemoryStore struct {
	sessions map[string]*types.Session
	logger   *zap.Logger
	closed   bool
	mu       sync.RWMutex
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		sessions: make(map[string]*types.Session),
		logger:   logger.With(zap.String("component", "session_store"), zap.String("backend", "memory")),
	}
}

func (s *MemoryStore) Create(ctx context.Context, sessionID string, handoffsEnabled bool) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if _, ok := s.sessions[sessionID]; ok {
		return nil, ErrAlreadyExists
	}
	sess := newSession(sessionID, handoffsEnabled)
	s.sessions[sessionID] = sess
	return cloneSession(sess), nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, entry types.HandoffChainEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.Status.Terminal() {
		return ErrFinalized
	}
	sess.Chain = append(sess.Chain, entry)
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Finalize(ctx context.Context, sessionID string, status types.SessionStatus, output, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.Status.Terminal() {
		return ErrFinalized
	}
	sess.Status = status
	sess.FinalOutput = output
	sess.FailureCause = cause
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
