package domain

import "fmt"

// OutcomeKind discriminates the result of executing one ingestion-pipeline stage.
type OutcomeKind string

const (
	// OutcomeOK means the stage produced its output and the artifact should advance.
	OutcomeOK OutcomeKind = "ok"
	// OutcomeSoftFail means the stage completed but the artifact must go to
	// PENDING_REVIEW; this is a successful job completion from the queue's
	// point of view.
	OutcomeSoftFail OutcomeKind = "soft_fail"
	// OutcomeHardFail means the artifact must go to FAILED; no further
	// automatic retries of this stage are useful.
	OutcomeHardFail OutcomeKind = "hard_fail"
	// OutcomeTransient means the underlying error is retryable; the queue
	// substrate should reschedule the job with backoff.
	OutcomeTransient OutcomeKind = "transient"
)

// StageOutcome is the discriminated result a stage handler returns instead
// of relying on exceptions/plain errors to distinguish retry-worthy failures
// from terminal ones.
type StageOutcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

// Ok builds a successful stage outcome.
func Ok() StageOutcome { return StageOutcome{Kind: OutcomeOK} }

// SoftFail builds a stage outcome that parks the artifact in PENDING_REVIEW.
func SoftFail(reason string) StageOutcome {
	return StageOutcome{Kind: OutcomeSoftFail, Reason: reason}
}

// HardFail builds a stage outcome that terminates the artifact as FAILED.
func HardFail(reason string, err error) StageOutcome {
	return StageOutcome{Kind: OutcomeHardFail, Reason: reason, Err: err}
}

// Transient builds a stage outcome that should be retried with backoff.
func Transient(reason string, err error) StageOutcome {
	return StageOutcome{Kind: OutcomeTransient, Reason: reason, Err: err}
}

// Error implements the error interface so a StageOutcome can be returned
// directly from a queue processor function.
func (o StageOutcome) Error() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %s: %v", o.Kind, o.Reason, o.Err)
	}
	return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
}

// Unwrap exposes the wrapped error, if any, for errors.Is/errors.As.
func (o StageOutcome) Unwrap() error { return o.Err }

// IsTerminal reports whether the outcome should not be retried by the queue.
func (o StageOutcome) IsTerminal() bool {
	return o.Kind == OutcomeOK || o.Kind == OutcomeSoftFail || o.Kind == OutcomeHardFail
}
