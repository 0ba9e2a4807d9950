package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ighashtag/pkg/apify"
	"ighashtag/pkg/checkpoint"
	"ighashtag/pkg/config"
	"ighashtag/pkg/errors"
	"ighashtag/pkg/logger"
	"ighashtag/pkg/posts"
	"ighashtag/pkg/retry"
	"ighashtag/pkg/storage"
)

// Writer persists a CSV artifact and returns its final path
type Writer interface {
	WriteCSV(name string, header []string, rows [][]string) (string, error)
}

// CheckpointStore remembers an in-flight run between invocations
type CheckpointStore interface {
	Load() (*checkpoint.Checkpoint, error)
	Create(invocationID, runID string, hashtags []string, resultsLimit int) (*checkpoint.Checkpoint, error)
	UpdateStatus(cp *checkpoint.Checkpoint, status string) error
	Delete() error
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// RunHandle identifies a submitted run
type RunHandle struct {
	RunID string
}

// DatasetHandle identifies the dataset of a succeeded run
type DatasetHandle struct {
	RunID     string
	DatasetID string
}

// Observer is told about run progress as it happens. Calls are made from
// the goroutine running the orchestrator.
type Observer interface {
	RunAttached(runID string, hashtags []string)
	StatusObserved(runID string, status apify.RunStatus, attempt int)
	Finished(result Result)
}

type nopObserver struct{}

func (nopObserver) RunAttached(string, []string)                {}
func (nopObserver) StatusObserved(string, apify.RunStatus, int) {}
func (nopObserver) Finished(Result)                             {}

// PersistResult describes what TransformAndPersist produced
type PersistResult struct {
	Outcome Outcome
	Path    string
	Rows    int
}

// Orchestrator drives one scrape: submit, wait, fetch, transform, write
type Orchestrator struct {
	cfg          *config.Config
	client       apify.API
	writer       Writer
	checkpoints  CheckpointStore
	resume       bool
	logger       logger.Logger
	now          func() time.Time
	sleep        Sleeper
	observer     Observer
	invocationID string
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the base logger; every line gets the invocation id
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSleeper replaces the wait between status polls
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithCheckpoints enables run bookkeeping. With resume set, a stored run
// for the same request is re-attached instead of submitting a new one.
func WithCheckpoints(store CheckpointStore, resume bool) Option {
	return func(o *Orchestrator) {
		o.checkpoints = store
		o.resume = resume
	}
}

// WithObserver reports run progress to obs
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithInvocationID fixes the id attached to log lines and checkpoints
func WithInvocationID(id string) Option {
	return func(o *Orchestrator) { o.invocationID = id }
}

// New creates an orchestrator. cfg is the only source of settings and
// credentials; nothing is read from the environment here.
func New(cfg *config.Config, client apify.API, writer Writer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		client:   client,
		writer:   writer,
		now:      time.Now,
		sleep:    retry.Wait,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.invocationID == "" {
		o.invocationID = uuid.New().String()
	}
	o.logger = logger.ForInvocation(o.logger, o.invocationID)
	return o
}

// InvocationID returns the id tagging this orchestrator's log lines
func (o *Orchestrator) InvocationID() string {
	return o.invocationID
}

// Submit starts one actor run for hashtags. The proxy is always enabled.
func (o *Orchestrator) Submit(ctx context.Context, hashtags []string, resultsLimit int, sessionCredential string) (RunHandle, error) {
	hashtags = config.NormalizeHashtags(hashtags)
	if len(hashtags) == 0 {
		return RunHandle{}, errors.SubmissionError(errors.New(errors.ErrorTypeValidation, 0, "at least one hashtag is required"))
	}
	if resultsLimit <= 0 {
		return RunHandle{}, errors.SubmissionError(errors.New(errors.ErrorTypeValidation, 0, "results limit must be positive"))
	}

	o.logger.InfoWithFields(fmt.Sprintf("Scraping hashtags: %s", strings.Join(hashtags, ", ")), map[string]interface{}{
		"results_limit": resultsLimit,
	})

	run, err := o.client.StartRun(ctx, apify.RunInput{
		Hashtags:     hashtags,
		ResultsLimit: resultsLimit,
		SessionID:    sessionCredential,
		Proxy:        apify.ProxyConfig{UseApifyProxy: true},
	})
	if err != nil {
		return RunHandle{}, errors.SubmissionError(err)
	}

	o.logger.InfoWithFields("Hashtag scraper started", map[string]interface{}{
		"run_id": run.ID,
	})

	return RunHandle{RunID: run.ID}, nil
}

// AwaitCompletion polls the run until it is terminal. The dataset id comes
// from the same response that reported SUCCEEDED. Any failed poll ends the
// wait; so do poll.timeout and poll.max_attempts when set.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, handle RunHandle) (DatasetHandle, error) {
	return o.await(ctx, handle, nil)
}

func (o *Orchestrator) await(ctx context.Context, handle RunHandle, cp *checkpoint.Checkpoint) (DatasetHandle, error) {
	poll := o.cfg.Poll
	start := o.now()

	for attempt := 1; ; attempt++ {
		run, err := o.client.GetRun(ctx, handle.RunID)
		if err != nil {
			return DatasetHandle{}, errors.StatusCheckError(err)
		}

		logger.LogRunStatus(o.logger, handle.RunID, string(run.Status), attempt)
		o.observer.StatusObserved(handle.RunID, run.Status, attempt)
		o.recordStatus(cp, run.Status)

		if run.Status.IsTerminal() {
			if !run.Status.IsSuccess() {
				return DatasetHandle{}, errors.RunFailedError(handle.RunID, string(run.Status))
			}
			if run.DefaultDatasetID == "" {
				return DatasetHandle{}, errors.StatusCheckError(
					errors.New(errors.ErrorTypeParsing, 0, "succeeded run carries no dataset id"))
			}
			return DatasetHandle{RunID: handle.RunID, DatasetID: run.DefaultDatasetID}, nil
		}

		if poll.MaxAttempts > 0 && attempt >= poll.MaxAttempts {
			return DatasetHandle{}, errors.TimedOutError(handle.RunID, attempt)
		}
		if poll.Timeout > 0 && o.now().Sub(start)+poll.Interval > poll.Timeout {
			return DatasetHandle{}, errors.TimedOutError(handle.RunID, attempt)
		}

		o.logger.DebugWithFields("Waiting before next status check", map[string]interface{}{
			"run_id":   handle.RunID,
			"interval": poll.Interval.String(),
		})
		if err := o.sleep(ctx, poll.Interval); err != nil {
			return DatasetHandle{}, &errors.Error{
				Type:    errors.ErrorTypeUnknown,
				Stage:   errors.StageStatusCheck,
				Message: "wait for run cancelled",
				Err:     err,
			}
		}
	}
}

// FetchDataset reads every item of the dataset in one call
func (o *Orchestrator) FetchDataset(ctx context.Context, handle DatasetHandle) ([]apify.PostRecord, error) {
	records, err := o.client.GetDatasetItems(ctx, handle.DatasetID)
	if err != nil {
		return nil, errors.DatasetFetchError(err)
	}

	o.logger.InfoWithFields("Dataset fetched", map[string]interface{}{
		"dataset_id": handle.DatasetID,
		"records":    len(records),
	})
	if len(records) > 0 {
		o.logger.DebugWithFields("Sample keys in each item", map[string]interface{}{
			"keys": records[0].Keys(),
		})
	}

	return records, nil
}

// TransformAndPersist flattens records and writes them as one CSV file.
// An empty destination selects the configured or timestamped default name.
// No file is written for an empty record sequence.
func (o *Orchestrator) TransformAndPersist(records []apify.PostRecord, destination string) (PersistResult, error) {
	if len(records) == 0 {
		o.logger.Info("No data to save.")
		return PersistResult{Outcome: OutcomeEmpty}, nil
	}

	if destination == "" {
		destination = o.destination()
	}

	rows := posts.Flatten(records)
	path, err := o.writer.WriteCSV(destination, posts.Header(), posts.Records(rows))
	if err != nil {
		return PersistResult{}, errors.PersistError(err)
	}

	o.logger.InfoWithFields("Post data saved", map[string]interface{}{
		"path": path,
		"rows": len(rows),
	})

	return PersistResult{Outcome: OutcomePersisted, Path: path, Rows: len(rows)}, nil
}

// Run performs the whole scrape described by the configuration. It never
// panics on remote failures; the outcome and failing stage are reported in
// the result.
func (o *Orchestrator) Run(ctx context.Context) Result {
	started := o.now()
	result := Result{InvocationID: o.invocationID}
	finish := func(r Result) Result {
		r.Duration = o.now().Sub(started)
		logger.LogMetrics(o.logger, "scrape", map[string]interface{}{
			"outcome":     string(r.Outcome),
			"rows":        r.Rows,
			"duration_ms": r.Duration.Milliseconds(),
		})
		o.observer.Finished(r)
		return r
	}

	if err := o.cfg.CheckCredentials(); err != nil {
		logger.LogStageFailure(o.logger, string(errors.StageConfiguration), err)
		return finish(result.fail(err))
	}

	hashtags := config.NormalizeHashtags(o.cfg.Scrape.Hashtags)
	limit := o.cfg.Scrape.ResultsLimit

	handle, cp, err := o.attachOrSubmit(ctx, hashtags, limit)
	if err != nil {
		logger.LogStageFailure(o.logger, string(errors.StageOf(err)), err)
		return finish(result.fail(err))
	}
	result.RunID = handle.RunID
	o.observer.RunAttached(handle.RunID, hashtags)

	dataset, err := o.await(ctx, handle, cp)
	if err != nil {
		logger.LogStageFailure(o.logger, string(errors.StageOf(err)), err)
		if errors.IsType(err, errors.ErrorTypeRunFailed) {
			o.clearCheckpoint()
		}
		return finish(result.fail(err))
	}
	result.DatasetID = dataset.DatasetID
	o.clearCheckpoint()

	records, err := o.FetchDataset(ctx, dataset)
	if err != nil {
		logger.LogStageFailure(o.logger, string(errors.StageDatasetFetch), err)
		return finish(result.fail(err))
	}

	persisted, err := o.TransformAndPersist(records, "")
	if err != nil {
		logger.LogStageFailure(o.logger, string(errors.StagePersist), err)
		return finish(result.fail(err))
	}

	result.Outcome = persisted.Outcome
	result.Path = persisted.Path
	result.Rows = persisted.Rows
	return finish(result)
}

// attachOrSubmit re-attaches to a checkpointed run when resuming, and
// submits a new run otherwise
func (o *Orchestrator) attachOrSubmit(ctx context.Context, hashtags []string, limit int) (RunHandle, *checkpoint.Checkpoint, error) {
	if o.checkpoints != nil {
		existing, err := o.checkpoints.Load()
		switch {
		case err != nil:
			o.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
		case existing != nil && o.resume && existing.Matches(hashtags, limit):
			o.logger.InfoWithFields("Resuming run from checkpoint", map[string]interface{}{
				"run_id":              existing.RunID,
				"first_invocation_id": existing.InvocationID,
			})
			return RunHandle{RunID: existing.RunID}, existing, nil
		case existing != nil && o.resume:
			o.logger.WarnWithFields("Checkpoint is for a different request, submitting a new run", map[string]interface{}{
				"run_id": existing.RunID,
			})
		case existing != nil:
			o.logger.WarnWithFields("Previous run was not collected; use --resume to re-attach", map[string]interface{}{
				"run_id": existing.RunID,
			})
		}
	}

	handle, err := o.Submit(ctx, hashtags, limit, o.cfg.Apify.SessionID)
	if err != nil {
		return RunHandle{}, nil, err
	}

	var cp *checkpoint.Checkpoint
	if o.checkpoints != nil {
		cp, err = o.checkpoints.Create(o.invocationID, handle.RunID, hashtags, limit)
		if err != nil {
			o.logger.WithError(err).Warn("Failed to save checkpoint")
			cp = nil
		}
	}
	return handle, cp, nil
}

func (o *Orchestrator) recordStatus(cp *checkpoint.Checkpoint, status apify.RunStatus) {
	if o.checkpoints == nil || cp == nil {
		return
	}
	if err := o.checkpoints.UpdateStatus(cp, string(status)); err != nil {
		o.logger.WithError(err).Warn("Failed to update checkpoint")
	}
}

func (o *Orchestrator) clearCheckpoint() {
	if o.checkpoints == nil {
		return
	}
	if err := o.checkpoints.Delete(); err != nil {
		o.logger.WithError(err).Warn("Failed to delete checkpoint")
	}
}

// destination picks the configured file name or expands the pattern
func (o *Orchestrator) destination() string {
	if o.cfg.Output.FileName != "" {
		return o.cfg.Output.FileName
	}
	return storage.FileNameFromPattern(o.cfg.Output.FileNamePattern, o.now())
}
