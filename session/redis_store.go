package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/types"
)

// RedisStore persists sessions as JSON values keyed by session ID.
// Suitable for distributed deployments where several router instances
// share one analytics/audit surface.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(cfg config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "swarmroute:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "session:",
		logger:    logger.With(zap.String("component", "session_store"), zap.String("backend", "redis")),
	}, nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keyPrefix == "" {
		keyPrefix = "swarmroute:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "session:",
		logger:    logger.With(zap.String("component", "session_store"), zap.String("backend", "redis")),
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*types.Session, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
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

func (s *RedisStore) save(ctx context.Context, sess *types.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sess.SessionID), data, 0).Err()
}

func (s *RedisStore) Create(ctx context.Context, sessionID string, handoffsEnabled bool) (*types.Session, error) {
	sess := newSession(sessionID, handoffsEnabled)
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	ok, err := s.client.SetNX(ctx, s.key(sessionID), data, 0).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyExists
	}
	return sess, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, entry types.HandoffChainEntry) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status.Terminal() {
		return ErrFinalized
	}
	sess.Chain = append(sess.Chain, entry)
	sess.UpdatedAt = time.Now().UTC()
	return s.save(ctx, sess)
}

func (s *RedisStore) Finalize(ctx context.Context, sessionID string, status types.SessionStatus, output, cause string) error {
	sess, err := s.load(ctx, sessionID)
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
	return s.save(ctx, sess)
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	return s.load(ctx, sessionID)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
