package analytics

import (
	"context"
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

// handoffPatternRecord is one observed transition. Append-only.
type handoffPatternRecord struct {
	ID             uint   `gorm:"primaryKey"`
	SessionID      string `gorm:"index"`
	FromSpecialist string `gorm:"index:idx_path"`
	ToSpecialist   string `gorm:"index:idx_path"`
	Reason         string
	RecordedAt     time.Time `gorm:"index"`
}

func (handoffPatternRecord) TableName() string { return "handoff_patterns" }

// sessionOutcomeRecord is one finalized session's result. Append-only.
type sessionOutcomeRecord struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"index"`
	Status     string
	Handoffs   int
	RecordedAt time.Time `gorm:"index"`
}

func (sessionOutcomeRecord) TableName() string { return "session_outcomes" }

// DatabaseSink persists pattern history via gorm so aggregates survive
// restarts and can be shared across router instances.
type DatabaseSink struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDatabaseSink opens the configured database and migrates the schema.
func NewDatabaseSink(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseSink, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open analytics database: %w", err)
	}
	if err := db.AutoMigrate(&handoffPatternRecord{}, &sessionOutcomeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate analytics schema: %w", err)
	}
	return NewDatabaseSinkWithDB(db, logger), nil
}

// NewDatabaseSinkWithDB wraps an existing gorm handle; used by tests.
func NewDatabaseSinkWithDB(db *gorm.DB, logger *zap.Logger) *DatabaseSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseSink{
		db:     db,
		logger: logger.With(zap.String("component", "analytics"), zap.String("backend", "database")),
	}
}

func (s *DatabaseSink) Record(ctx context.Context, sess *types.Session) error {
	if !sess.Status.Terminal() {
		return errNotFinalized(sess)
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range sess.Chain {
			rec := handoffPatternRecord{
				SessionID:      sess.SessionID,
				FromSpecialist: entry.FromSpecialist,
				ToSpecialist:   entry.ToSpecialist,
				Reason:         entry.Reason,
				RecordedAt:     now,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return tx.Create(&sessionOutcomeRecord{
			SessionID:  sess.SessionID,
			Status:     string(sess.Status),
			Handoffs:   sess.TotalHandoffs(),
			RecordedAt: now,
		}).Error
	})
}

func (s *DatabaseSink) TopPaths(ctx context.Context, limit int) ([]PathCount, error) {
	query := s.db.WithContext(ctx).
		Model(&handoffPatternRecord{}).
		Select("from_specialist, to_specialist, count(*) as count").
		Group("from_specialist, to_specialist").
		Order("count DESC, from_specialist ASC, to_specialist ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	counts := []PathCount{}
	if err := query.Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *DatabaseSink) SuccessRate(ctx context.Context, window time.Duration) (float64, error) {
	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().UTC().Add(-window)
	}

	var total int64
	totalQuery := s.db.WithContext(ctx).Model(&sessionOutcomeRecord{})
	if !cutoff.IsZero() {
		totalQuery = totalQuery.Where("recorded_at >= ?", cutoff)
	}
	if err := totalQuery.Count(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	var completed int64
	completedQuery := s.db.WithContext(ctx).Model(&sessionOutcomeRecord{}).
		Where("status = ?", string(types.StatusCompleted))
	if !cutoff.IsZero() {
		completedQuery = completedQuery.Where("recorded_at >= ?", cutoff)
	}
	if err := completedQuery.Count(&completed).Error; err != nil {
		return 0, err
	}
	return float64(completed) / float64(total), nil
}

func (s *DatabaseSink) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
