package orchestrator

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types emitted by the orchestrator.
const (
	EventHandoffTriggered   = "handoff_triggered"
	EventHandoffFailed      = "handoff_failed"
	EventMaxHandoffsReached = "max_handoffs_reached"
	EventSessionCompleted   = "session_completed"
)

// Event is one operational occurrence. The event log is not authoritative
// state; it may be lossy under crash but gives operators a timeline.
type Event struct {
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	SessionID      string    `json:"session_id"`
	FromSpecialist string    `json:"from_specialist,omitempty"`
	ToSpecialist   string    `json:"to_specialist,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// EventLog receives orchestrator events. Implementations must never block
// the calling turn; Emit has no error return on purpose.
type EventLog interface {
	Emit(event Event)
}

// NopEventLog discards events.
type NopEventLog struct{}

func (NopEventLog) Emit(Event) {}

// ZapEventLog writes each event as one structured log line.
type ZapEventLog struct {
	logger *zap.Logger
}

func NewZapEventLog(logger *zap.Logger) *ZapEventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapEventLog{logger: logger.With(zap.String("component", "event_log"))}
}

func (l *ZapEventLog) Emit(event Event) {
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("session_id", event.SessionID),
	}
	if event.FromSpecialist != "" {
		fields = append(fields, zap.String("from_specialist", event.FromSpecialist))
	}
	if event.ToSpecialist != "" {
		fields = append(fields, zap.String("to_specialist", event.ToSpecialist))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	l.logger.Info(event.Type, fields...)
}

// FileEventLog appends one JSON line per event. Write failures are logged
// and dropped so a full disk never stalls a session.
type FileEventLog struct {
	file   *os.File
	logger *zap.Logger
	mu     sync.Mutex
}

func NewFileEventLog(path string, logger *zap.Logger) (*FileEventLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileEventLog{
		file:   file,
		logger: logger.With(zap.String("component", "event_log")),
	}, nil
}

func (l *FileEventLog) Emit(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("drop event", zap.Error(err))
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		l.logger.Warn("drop event", zap.String("type", event.Type), zap.Error(err))
	}
}

func (l *FileEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
