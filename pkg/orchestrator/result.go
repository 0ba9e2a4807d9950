package orchestrator

import (
	"context"
	stderrors "errors"
	"time"

	"ighashtag/pkg/errors"
)

// Outcome classifies how a scrape ended
type Outcome string

const (
	// OutcomePersisted means a CSV file was written
	OutcomePersisted Outcome = "persisted"
	// OutcomeEmpty means the run succeeded with no records; no file is written
	OutcomeEmpty Outcome = "empty"
	// OutcomeFailed means a stage failed before anything was written
	OutcomeFailed Outcome = "failed"
	// OutcomeRunFailed means the run ended FAILED, ABORTED or TIMED-OUT
	OutcomeRunFailed Outcome = "run_failed"
	// OutcomeTimedOut means the run outlived the polling bound
	OutcomeTimedOut Outcome = "timed_out"
	// OutcomeCancelled means the invocation was interrupted
	OutcomeCancelled Outcome = "cancelled"
)

// Result summarizes one invocation
type Result struct {
	InvocationID string
	Outcome      Outcome
	Stage        errors.Stage
	Err          error
	RunID        string
	DatasetID    string
	Rows         int
	Path         string
	Duration     time.Duration
}

// Succeeded reports whether the scrape ended without a failure. An empty
// dataset counts as success.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomePersisted || r.Outcome == OutcomeEmpty
}

func (r Result) fail(err error) Result {
	r.Err = err
	r.Stage = errors.StageOf(err)

	switch {
	case stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded):
		r.Outcome = OutcomeCancelled
	case errors.IsType(err, errors.ErrorTypeRunFailed):
		r.Outcome = OutcomeRunFailed
	case errors.IsType(err, errors.ErrorTypeTimedOut):
		r.Outcome = OutcomeTimedOut
	default:
		r.Outcome = OutcomeFailed
	}
	return r
}
