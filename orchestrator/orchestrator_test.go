package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmroute/swarmroute/directory"
	"github.com/swarmroute/swarmroute/session"
	"github.com/swarmroute/swarmroute/types"
)

func newTestDirectory() *directory.MemoryDirectory {
	dir := directory.NewMemoryDirectory(nil)
	for _, id := range []string{"dns_specialist", "email_specialist", "azure_specialist", "general_specialist"} {
		dir.Register(directory.Descriptor{ID: id, SupportsHandoff: true})
	}
	return dir
}

func testDecision(initial string) *types.RoutingDecision {
	return &types.RoutingDecision{
		Strategy:             types.StrategySingle,
		InitialSpecialist:    initial,
		CandidateSpecialists: []string{initial},
		Confidence:           0.9,
		Context:              map[string]any{"query": "test query"},
	}
}

func handoffText(to, reason string, bullets ...string) string {
	text := "Working on it.\n\nHANDOFF DECLARATION:\nTo: " + to + "\nReason: " + reason
	if len(bullets) > 0 {
		text += "\nContext:"
		for _, b := range bullets {
			text += "\n  - " + b
		}
	}
	return text + "\n"
}

// scriptedInvoker replays a fixed output per specialist, or a sequence
// when a specialist is invoked more than once.
type scriptedInvoker struct {
	outputs map[string][]string
	calls   []string
	mu      sync.Mutex
}

func newScriptedInvoker() *scriptedInvoker {
	return &scriptedInvoker{outputs: make(map[string][]string)}
}

func (s *scriptedInvoker) script(specialistID string, outputs ...string) {
	s.outputs[specialistID] = append(s.outputs[specialistID], outputs...)
}

func (s *scriptedInvoker) Invoke(ctx context.Context, specialistID string, _ map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, specialistID)
	queue := s.outputs[specialistID]
	if len(queue) == 0 {
		return "", fmt.Errorf("no scripted output for %s", specialistID)
	}
	out := queue[0]
	s.outputs[specialistID] = queue[1:]
	return out, nil
}

func TestExecuteCompletesWithoutHandoff(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := newScriptedInvoker()
	invoker.script("dns_specialist", "Your SPF record should list your sending servers.")

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, sess.Status)
	assert.Equal(t, "Your SPF record should list your sending servers.", sess.FinalOutput)
	assert.Zero(t, sess.TotalHandoffs())

	durable, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, durable.Status)
}

func TestExecuteSingleHandoff(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := newScriptedInvoker()
	invoker.script("dns_specialist", handoffText("email_specialist", "DKIM selector questions", "Domain: example.com"))
	invoker.script("email_specialist", "DKIM selector rotated.")

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, sess.Status)
	assert.Equal(t, "DKIM selector rotated.", sess.FinalOutput)
	require.Equal(t, 1, sess.TotalHandoffs())
	assert.Equal(t, "dns_specialist", sess.Chain[0].FromSpecialist)
	assert.Equal(t, "email_specialist", sess.Chain[0].ToSpecialist)
	assert.Equal(t, "DKIM selector questions", sess.Chain[0].Reason)
	assert.Positive(t, sess.Chain[0].ContextSize)
	assert.Equal(t, []string{"dns_specialist", "email_specialist"}, invoker.calls)

	// the durable copy matches the in-memory result
	durable, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, 1, durable.TotalHandoffs())
	assert.Equal(t, "email_specialist", durable.Chain[0].ToSpecialist)
}

func TestExecuteHandoffTargetNormalized(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := newScriptedInvoker()
	invoker.script("dns_specialist", handoffText("Email Specialist", "formatting varies"))
	invoker.script("email_specialist", "done")

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.NoError(t, err)
	require.Equal(t, 1, sess.TotalHandoffs())
	assert.Equal(t, "email_specialist", sess.Chain[0].ToSpecialist)
}

func TestExecuteUnknownInitialSpecialist(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := newScriptedInvoker()

	dir := directory.NewMemoryDirectory(nil)
	dir.Register(directory.Descriptor{ID: "dns_specialist", SupportsHandoff: true})

	orch := New(dir, store, invoker)
	sess, err := orch.Execute(ctx, testDecision("general_specialist"), 0)
	require.Error(t, err)

	var structured *types.Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, types.ErrSpecialistNotFound, structured.Code)
	assert.Contains(t, structured.KnownSpecialists, "dns_specialist")

	// nothing was invoked on behalf of the unknown identifier
	assert.Empty(t, invoker.calls)

	require.NotNil(t, sess)
	assert.Equal(t, types.StatusFailed, sess.Status)

	durable, getErr := store.Get(ctx, sess.SessionID)
	require.NoError(t, getErr)
	assert.Equal(t, types.StatusFailed, durable.Status)
}

func TestExecuteInitialSpecialistNormalized(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := newScriptedInvoker()
	invoker.script("dns_specialist", "answered")

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("DNS Specialist"), 0)
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, sess.Status)
	assert.Equal(t, []string{"dns_specialist"}, invoker.calls)
}

func TestExecuteContextMergeLastWriterWins(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)

	var gotContext map[string]any
	invoker := InvokerFunc(func(_ context.Context, specialistID string, turnContext map[string]any) (string, error) {
		switch specialistID {
		case "dns_specialist":
			return handoffText("email_specialist", "escalate", "Domain: example.com", "Severity: low"), nil
		case "email_specialist":
			return handoffText("azure_specialist", "cloud side", "Severity: high"), nil
		default:
			gotContext = turnContext
			return "resolved", nil
		}
	})

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, sess.Status)

	require.NotNil(t, gotContext)
	assert.Equal(t, "example.com", gotContext["domain"])
	// the second handoff's value overwrites the first
	assert.Equal(t, "high", gotContext["severity"])
	assert.Equal(t, "test query", gotContext["query"])
}

func TestExecutePingPongTripsGuard(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)

	// A and B alternate forever; the budget must stop them.
	invoker := InvokerFunc(func(_ context.Context, specialistID string, _ map[string]any) (string, error) {
		if specialistID == "dns_specialist" {
			return handoffText("email_specialist", "your turn"), nil
		}
		return handoffText("dns_specialist", "no, yours"), nil
	})

	const budget = 5
	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), budget)
	require.NoError(t, err, "guard trip is a partial success, not an error")

	assert.Equal(t, types.StatusMaxHandoffsReached, sess.Status)
	assert.Equal(t, budget, sess.TotalHandoffs())
	assert.NotEmpty(t, sess.FinalOutput, "last turn output is preserved")
	assert.Contains(t, sess.FailureCause, "MAX_HANDOFFS_EXCEEDED")

	// chain alternates strictly
	for i, entry := range sess.Chain {
		if i%2 == 0 {
			assert.Equal(t, "dns_specialist", entry.FromSpecialist)
			assert.Equal(t, "email_specialist", entry.ToSpecialist)
		} else {
			assert.Equal(t, "email_specialist", entry.FromSpecialist)
			assert.Equal(t, "dns_specialist", entry.ToSpecialist)
		}
	}

	durable, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMaxHandoffsReached, durable.Status)
	assert.Equal(t, budget, durable.TotalHandoffs())
}

func TestExecuteSelfHandoffCountsTowardGuard(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)

	invoker := InvokerFunc(func(_ context.Context, _ string, _ map[string]any) (string, error) {
		return handoffText("dns_specialist", "still thinking"), nil
	})

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 3)
	require.NoError(t, err)

	assert.Equal(t, types.StatusMaxHandoffsReached, sess.Status)
	assert.Equal(t, 3, sess.TotalHandoffs())
	for _, entry := range sess.Chain {
		assert.Equal(t, "dns_specialist", entry.FromSpecialist)
		assert.Equal(t, "dns_specialist", entry.ToSpecialist)
	}
}

func TestExecuteUnknownTargetFails(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := newScriptedInvoker()
	invoker.script("dns_specialist", handoffText("quantum_specialist", "who?"))

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.Error(t, err)

	assert.Equal(t, types.StatusFailed, sess.Status)
	assert.Equal(t, types.ErrSpecialistNotFound, types.GetErrorCode(err))

	var structured *types.Error
	require.ErrorAs(t, err, &structured)
	assert.Contains(t, structured.KnownSpecialists, "dns_specialist")
	assert.Contains(t, structured.KnownSpecialists, "email_specialist")
}

func TestExecuteParseErrorFailsNotSilent(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := newScriptedInvoker()
	// marker present but To missing: an authoring bug, never "no handoff"
	invoker.script("dns_specialist", "HANDOFF DECLARATION:\nReason: forgot the target\n")

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.Error(t, err)

	assert.Equal(t, types.StatusFailed, sess.Status)
	assert.Equal(t, types.ErrHandoffParse, types.GetErrorCode(err))
}

func TestExecuteInvocationFailureFails(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := InvokerFunc(func(_ context.Context, _ string, _ map[string]any) (string, error) {
		return "", errors.New("upstream timeout")
	})

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.Error(t, err)

	assert.Equal(t, types.StatusFailed, sess.Status)
	assert.Equal(t, types.ErrInvocationFailed, types.GetErrorCode(err))
	assert.Contains(t, sess.FailureCause, "upstream timeout")
}

func TestExecuteCancellationAtTurnBoundary(t *testing.T) {
	store := session.NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())

	// cancel after the first turn returns; the second turn must not run
	invoker := InvokerFunc(func(_ context.Context, specialistID string, _ map[string]any) (string, error) {
		cancel()
		return handoffText("email_specialist", "continuing"), nil
	})

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.Error(t, err)

	assert.Equal(t, types.StatusFailed, sess.Status)
	assert.Equal(t, types.ErrSessionCancelled, types.GetErrorCode(err))

	// the partial chain already appended is retained for inspection
	durable, getErr := store.Get(context.Background(), sess.SessionID)
	require.NoError(t, getErr)
	assert.Equal(t, types.StatusFailed, durable.Status)
	assert.Equal(t, 1, durable.TotalHandoffs())
}

func TestExecutePersistenceFailureAborts(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := newScriptedInvoker()
	invoker.script("dns_specialist", handoffText("email_specialist", "escalate"))

	failing := &appendFailingStore{Store: store}
	orch := New(newTestDirectory(), failing, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.Error(t, err)

	assert.Equal(t, types.StatusFailed, sess.Status)
	assert.Equal(t, types.ErrSessionPersistence, types.GetErrorCode(err))
}

// appendFailingStore delegates everything except Append.
type appendFailingStore struct {
	session.Store
}

func (s *appendFailingStore) Append(context.Context, string, types.HandoffChainEntry) error {
	return errors.New("disk full")
}

func TestExecuteHandoffsDisabledTreatsDeclarationAsCompletion(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	output := handoffText("email_specialist", "would hand off")
	invoker := newScriptedInvoker()
	invoker.script("dns_specialist", output)

	orch := New(newTestDirectory(), store, invoker, WithHandoffsEnabled(false))
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, sess.Status)
	assert.Equal(t, output, sess.FinalOutput)
	assert.Zero(t, sess.TotalHandoffs())
	assert.False(t, sess.HandoffsEnabled)
}

func TestExecuteDefaultBudget(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := InvokerFunc(func(_ context.Context, _ string, _ map[string]any) (string, error) {
		return handoffText("dns_specialist", "loop"), nil
	})

	orch := New(newTestDirectory(), store, invoker)
	sess, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxHandoffs, sess.TotalHandoffs())
}

func TestExecuteEmitsEvents(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := newScriptedInvoker()
	invoker.script("dns_specialist", handoffText("email_specialist", "escalate"))
	invoker.script("email_specialist", "done")

	events := &capturingEventLog{}
	orch := New(newTestDirectory(), store, invoker, WithEventLog(events))
	_, err := orch.Execute(ctx, testDecision("dns_specialist"), 0)
	require.NoError(t, err)

	require.Len(t, events.events, 2)
	assert.Equal(t, EventHandoffTriggered, events.events[0].Type)
	assert.Equal(t, "dns_specialist", events.events[0].FromSpecialist)
	assert.Equal(t, "email_specialist", events.events[0].ToSpecialist)
	assert.Equal(t, EventSessionCompleted, events.events[1].Type)
}

type capturingEventLog struct {
	events []Event
	mu     sync.Mutex
}

func (l *capturingEventLog) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func TestConcurrentSessionsIsolated(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(nil)
	invoker := InvokerFunc(func(_ context.Context, specialistID string, _ map[string]any) (string, error) {
		if specialistID == "dns_specialist" {
			return handoffText("email_specialist", "escalate"), nil
		}
		return "done", nil
	})

	orch := New(newTestDirectory(), store, invoker)

	var wg sync.WaitGroup
	results := make([]*types.Session, 8)
	execErrs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], execErrs[n] = orch.Execute(ctx, testDecision("dns_specialist"), 0)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, sess := range results {
		require.NoError(t, execErrs[i])
		require.NotNil(t, sess)
		assert.Equal(t, types.StatusCompleted, sess.Status)
		assert.Equal(t, 1, sess.TotalHandoffs())
		assert.False(t, seen[sess.SessionID], "session IDs must be unique")
		seen[sess.SessionID] = true
	}
}
