package orchestrator

import "context"

// Invoker is the external specialist execution contract. The orchestrator
// does not know how the output text is produced, only that it may contain
// a handoff declaration block. An invocation error, including a timeout
// surfaced by the implementation, fails the session; it is never treated
// as "no handoff".
type Invoker interface {
	Invoke(ctx context.Context, specialistID string, context map[string]any) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, specialistID string, context map[string]any) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, specialistID string, context map[string]any) (string, error) {
	return f(ctx, specialistID, context)
}
