package cleaner

import (
	"time"

	"github.com/biot9999/newtdata/internal/telegram"
)

// DecisionKind says what an executor should do with a failed attempt.
type DecisionKind int

const (
	// DecisionRetry: wait Decision.Wait, then repeat the same call.
	DecisionRetry DecisionKind = iota
	// DecisionDegrade: repeat once in the narrower self-only mode.
	DecisionDegrade
	// DecisionSkip: the desired end state already holds; record skipped.
	DecisionSkip
	// DecisionFatal: record failed and move on to the next target.
	DecisionFatal
	// DecisionAbort: the session is dead; end the whole job.
	DecisionAbort
)

// Decision is the classification of one failure.
type Decision struct {
	Kind   DecisionKind
	Wait   time.Duration
	Reason string
}

// RetryPolicy classifies platform failures into retry decisions. It is
// pure and synchronous: it never sleeps, so executors stay testable
// without real waits.
type RetryPolicy struct {
	// MaxAttempts bounds retries per (target, action), flood waits
	// included. Once exceeded the failure becomes fatal for the target.
	MaxAttempts int
	// NetworkBackoff is the fixed pause before retrying a transient
	// network failure. Distinct from platform-demanded waits.
	NetworkBackoff time.Duration
}

// DefaultRetryPolicy returns the policy used by production jobs.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxRetries,
		NetworkBackoff: 2 * time.Second,
	}
}

// Classify maps a failed attempt to a decision. attempt is 1-based;
// degraded reports whether the self-only fallback was already spent for
// this target.
func (p RetryPolicy) Classify(action ActionType, err error, attempt int, degraded bool) Decision {
	if telegram.IsAuthTerminated(err) {
		return Decision{Kind: DecisionAbort, Reason: err.Error()}
	}

	if wait, ok := telegram.AsFloodWait(err); ok {
		if attempt >= p.MaxAttempts {
			return Decision{Kind: DecisionFatal, Reason: "flood wait of " + wait.String() + " exceeded retry budget"}
		}
		return Decision{Kind: DecisionRetry, Wait: wait, Reason: err.Error()}
	}

	if telegram.IsPermissionDenied(err) {
		// Only history deletion has a narrower mode to fall back to,
		// and only once per target.
		if action == ActionDeleteHistory && !degraded {
			return Decision{Kind: DecisionDegrade, Reason: "self_only"}
		}
		return Decision{Kind: DecisionFatal, Reason: err.Error()}
	}

	if telegram.IsNotFound(err) {
		// The peer is gone or we are no longer in it; the cleanup goal
		// for this target is already met.
		return Decision{Kind: DecisionSkip, Reason: err.Error()}
	}

	if telegram.IsTransient(err) {
		if attempt >= p.MaxAttempts {
			return Decision{Kind: DecisionFatal, Reason: err.Error()}
		}
		return Decision{Kind: DecisionRetry, Wait: p.NetworkBackoff, Reason: err.Error()}
	}

	return Decision{Kind: DecisionFatal, Reason: err.Error()}
}
