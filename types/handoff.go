package types

import "time"

// Handoff is a structured request, extracted from one specialist turn's
// output, to transfer control to another specialist with enriched context.
// ToSpecialist is trimmed but not validated at parse time; the orchestrator
// resolves it against the directory before use.
type Handoff struct {
	ToSpecialist string         `json:"to_specialist"`
	Reason       string         `json:"reason"`
	Context      map[string]any `json:"context,omitempty"`
	EmittedAt    time.Time      `json:"emitted_at"`
}

// TurnResult is the outcome of invoking one specialist.
type TurnResult struct {
	SpecialistID string        `json:"specialist_id"`
	OutputText   string        `json:"output_text"`
	Handoff      *Handoff      `json:"handoff,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// HandoffChainEntry records one transition within a session.
type HandoffChainEntry struct {
	FromSpecialist string    `json:"from_specialist"`
	ToSpecialist   string    `json:"to_specialist"`
	Reason         string    `json:"reason"`
	ContextSize    int       `json:"context_size"`
	Timestamp      time.Time `json:"timestamp"`
}

// SessionStatus is the orchestrator state machine's terminal-or-running state.
type SessionStatus string

const (
	StatusRunning            SessionStatus = "running"
	StatusCompleted          SessionStatus = "completed"
	StatusMaxHandoffsReached SessionStatus = "max_handoffs_reached"
	StatusFailed             SessionStatus = "failed"
)

// Terminal reports whether the status is absorbing.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusMaxHandoffsReached || s == StatusFailed
}

// Session is the durable record of one orchestrated query. The orchestrator
// owns it exclusively while running; the session store owns the durable copy.
// Chain is append-only.
type Session struct {
	SessionID       string              `json:"session_id"`
	Chain           []HandoffChainEntry `json:"chain"`
	HandoffsEnabled bool                `json:"handoffs_enabled"`
	FinalOutput     string              `json:"final_output,omitempty"`
	Status          SessionStatus       `json:"status"`
	FailureCause    string              `json:"failure_cause,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// TotalHandoffs returns the number of recorded transitions.
func (s *Session) TotalHandoffs() int {
	return len(s.Chain)
}
