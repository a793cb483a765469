package contract

import (
	"context"
	"time"
)

// Interpreter turns free text into a typed Interpretation. Implementations
// must contain model failures: a timeout or schema-invalid response comes
// back as {IntentUnknown, 0}, never as raw model output.
type Interpreter interface {
	Extract(ctx context.Context, text string, now time.Time) (Interpretation, error)
}

// Generator restyles a fully resolved template into natural phrasing. It must
// not add or alter any data token already present in the text; callers verify
// and fall back to the input on a mismatch.
type Generator interface {
	Humanize(ctx context.Context, action Action, resolvedText string) (string, error)
}

// ToolExecutor performs the side-effecting operations selected by the
// decision engine. A timed-out call reports failure, never assumed success.
type ToolExecutor interface {
	Execute(ctx context.Context, tool string, args map[string]string) ToolResult
}

// Knowledge answers FAQ topics from a static catalog.
type Knowledge interface {
	Answer(topic string) (string, bool)
}

// GuardOutcome is the idempotency guard's verdict for one message id.
type GuardOutcome string

const (
	GuardFresh     GuardOutcome = "fresh"
	GuardDuplicate GuardOutcome = "duplicate"
)

// IdempotencyGuard deduplicates retried webhook deliveries. Accept is an
// atomic test-and-mark; an unreachable backing store surfaces as
// ErrStoreUnavailable rather than a silent fresh.
type IdempotencyGuard interface {
	Accept(ctx context.Context, messageID string) (GuardOutcome, error)
	Commit(ctx context.Context, messageID string) error
	Release(ctx context.Context, messageID string) error
}

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker serializes pipeline runs per customer between state read and write.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// DeadLetter is one irrecoverably failed message, kept for offline replay.
type DeadLetter struct {
	MessageID   string
	ErrorKind   string
	ErrorDetail string
	Payload     string
	TraceID     string
}

// DeadLetterSink persists failed messages. Sink failures are logged, never
// propagated: dead-lettering must not break the reply path.
type DeadLetterSink interface {
	Record(ctx context.Context, dl DeadLetter) error
}
