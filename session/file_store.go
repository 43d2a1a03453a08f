package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/types"
)

// FileStore persists one JSON file per session under baseDir/sessions.
// Writes are atomic: write to a temp file, then rename. Suitable for
// single-node production deployments.
type FileStore struct {
	baseDir string
	logger  *zap.Logger
	closed  bool
	mu      sync.Mutex
}

// NewFileStore creates a file-backed session store rooted at baseDir.
func NewFileStore(baseDir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Join(baseDir, "sessions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session store directory: %w", err)
	}
	return &FileStore{
		baseDir: dir,
		logger:  logger.With(zap.String("component", "session_store"), zap.String("backend", "file")),
	}, nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID+".json")
}

// save writes the session atomically: temp file then rename.
func (s *FileStore) save(sess *types.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(sess.SessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) load(sessionID string) (*types.Session, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session record %s: %w", sessionID, err)
	}
	return &sess, nil
}

func (s *FileStore) Create(ctx context.Context, sessionID string, handoffsEnabled bool) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if _, err := os.Stat(s.path(sessionID)); err == nil {
		return nil, ErrAlreadyExists
	}
	sess := newSession(sessionID, handoffsEnabled)
	if err := s.save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *FileStore) Append(ctx context.Context, sessionID string, entry types.HandoffChainEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	sess, err := s.load(sessionID)
	if err != nil {
		return err
	}
	if sess.Status.Terminal() {
		return ErrFinalized
	}
	sess.Chain = append(sess.Chain, entry)
	sess.UpdatedAt = time.Now().UTC()
	return s.save(sess)
}

func (s *FileStore) Finalize(ctx context.Context, sessionID string, status types.SessionStatus, output, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	sess, err := s.load(sessionID)
	if err != nil {
		return err
	}
	if sess.Status.Terminal() {
		return ErrFinalized
	}
	sess.Status = status
	sess.FinalOutput = output
	sess.FailureCause = cause
	sess.UpdatedAt = time.Now().UTC()
	return s.save(sess)
}

func (s *FileStore) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.load(sessionID)
}

func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
