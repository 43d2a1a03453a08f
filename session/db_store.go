package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/types"
)

// sessionRecord is the SQL shape of one session. The chain is stored as a
// JSON column: it is read and written whole, never queried by entry.
type sessionRecord struct {
	SessionID       string `gorm:"primaryKey;column:session_id"`
	HandoffsEnabled bool
	Status          string
	FinalOutput     string
	FailureCause    string
	Chain           string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (sessionRecord) TableName() string { return "sessions" }

// DatabaseStore persists sessions via gorm. Driver selection follows the
// configured DSN: sqlite, postgres, or mysql.
type DatabaseStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDatabaseStore opens the configured database and migrates the schema.
func NewDatabaseStore(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseStore, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate session schema: %w", err)
	}
	return NewDatabaseStoreWithDB(db, logger), nil
}

// NewDatabaseStoreWithDB wraps an existing gorm handle; used by tests.
func NewDatabaseStoreWithDB(db *gorm.DB, logger *zap.Logger) *DatabaseStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseStore{
		db:     db,
		logger: logger.With(zap.String("component", "session_store"), zap.String("backend", "database")),
	}
}

func openDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "mysql":
		return mysql.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

func toRecord(sess *types.Session) (*sessionRecord, error) {
	chain, err := json.Marshal(sess.Chain)
	if err != nil {
		return nil, err
	}
	return &sessionRecord{
		SessionID:       sess.SessionID,
		HandoffsEnabled: sess.HandoffsEnabled,
		Status:          string(sess.Status),
		FinalOutput:     sess.FinalOutput,
		FailureCause:    sess.FailureCause,
		Chain:           string(chain),
		CreatedAt:       sess.CreatedAt,
		UpdatedAt:       sess.UpdatedAt,
	}, nil
}

func fromRecord(rec *sessionRecord) (*types.Session, error) {
	var chain []types.HandoffChainEntry
	if rec.Chain != "" {
		if err := json.Unmarshal([]byte(rec.Chain), &chain); err != nil {
			return nil, fmt.Errorf("corrupt session record %s: %w", rec.SessionID, err)
		}
	}
	if chain == nil {
		chain = []types.HandoffChainEntry{}
	}
	return &types.Session{
		SessionID:       rec.SessionID,
		Chain:           chain,
		HandoffsEnabled: rec.HandoffsEnabled,
		FinalOutput:     rec.FinalOutput,
		FailureCause:    rec.FailureCause,
		Status:          types.SessionStatus(rec.Status),
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}, nil
}

func (s *DatabaseStore) Create(ctx context.Context, sessionID string, handoffsEnabled bool) (*types.Session, error) {
	sess := newSession(sessionID, handoffsEnabled)
	rec, err := toRecord(sess)
	if err != nil {
		return nil, err
	}
	result := s.db.WithContext(ctx).Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyExists
		}
		return nil, result.Error
	}
	return sess, nil
}

// mutate loads, transforms, and saves a session record inside one
// transaction so appends are durable and ordered per session.
func (s *DatabaseStore) mutate(ctx context.Context, sessionID string, fn func(*types.Session) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec sessionRecord
		if err := tx.First(&rec, "session_id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		sess, err := fromRecord(&rec)
		if err != nil {
			return err
		}
		if sess.Status.Terminal() {
			return ErrFinalized
		}
		if err := fn(sess); err != nil {
			return err
		}
		sess.UpdatedAt = time.Now().UTC()
		updated, err := toRecord(sess)
		if err != nil {
			return err
		}
		return tx.Save(updated).Error
	})
}

func (s *DatabaseStore) Append(ctx context.Context, sessionID string, entry types.HandoffChainEntry) error {
	return s.mutate(ctx, sessionID, func(sess *types.Session) error {
		sess.Chain = append(sess.Chain, entry)
		return nil
	})
}

func (s *DatabaseStore) Finalize(ctx context.Context, sessionID string, status types.SessionStatus, output, cause string) error {
	return s.mutate(ctx, sessionID, func(sess *types.Session) error {
		sess.Status = status
		sess.FinalOutput = output
		sess.FailureCause = cause
		return nil
	})
}

func (s *DatabaseStore) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	var rec sessionRecord
	if err := s.db.WithContext(ctx).First(&rec, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromRecord(&rec)
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (s *DatabaseStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
