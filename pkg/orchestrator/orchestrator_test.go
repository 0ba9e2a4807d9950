package orchestrator

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ighashtag/internal/apifytest"
	"ighashtag/pkg/apify"
	"ighashtag/pkg/checkpoint"
	"ighashtag/pkg/config"
	"ighashtag/pkg/errors"
	"ighashtag/pkg/logger"
	"ighashtag/pkg/posts"
	"ighashtag/pkg/storage"
)

// fakeClock advances only when the orchestrator sleeps
type fakeClock struct {
	t      time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	c.t = c.t.Add(d)
	return ctx.Err()
}

// pollStep is one scripted GetRun answer
type pollStep struct {
	run apify.Run
	err error
}

// fakeAPI scripts the platform without HTTP
type fakeAPI struct {
	startErr   error
	polls      []pollStep
	items      []apify.PostRecord
	datasetErr error

	starts  int
	gets    int
	fetched []string
	inputs  []apify.RunInput
}

func (f *fakeAPI) StartRun(ctx context.Context, input apify.RunInput) (*apify.Run, error) {
	f.starts++
	f.inputs = append(f.inputs, input)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &apify.Run{ID: "run-1", Status: apify.StatusReady}, nil
}

func (f *fakeAPI) GetRun(ctx context.Context, runID string) (*apify.Run, error) {
	f.gets++
	idx := f.gets - 1
	if idx >= len(f.polls) {
		idx = len(f.polls) - 1
	}
	step := f.polls[idx]
	if step.err != nil {
		return nil, step.err
	}
	run := step.run
	return &run, nil
}

func (f *fakeAPI) GetDatasetItems(ctx context.Context, datasetID string) ([]apify.PostRecord, error) {
	f.fetched = append(f.fetched, datasetID)
	if f.datasetErr != nil {
		return nil, f.datasetErr
	}
	return f.items, nil
}

func (f *fakeAPI) calls() int {
	return f.starts + f.gets + len(f.fetched)
}

func running(datasetID string) pollStep {
	return pollStep{run: apify.Run{ID: "run-1", Status: apify.StatusRunning, DefaultDatasetID: datasetID}}
}

func observed(status apify.RunStatus, datasetID string) pollStep {
	return pollStep{run: apify.Run{ID: "run-1", Status: status, DefaultDatasetID: datasetID}}
}

func sampleRecords() []apify.PostRecord {
	return []apify.PostRecord{
		{"ownerUsername": "a", "caption": "Great food 📍Jubilee Hills #foodie", "likesCount": 10, "hashtags": []any{"foodie"}},
		{"ownerUsername": "b", "caption": "📍Banjara Hills\n#hyderabad", "commentsCount": 2},
		{"ownerUsername": "c"},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Apify.Token = "token-abc"
	cfg.Apify.SessionID = "session-xyz"
	cfg.Output.Directory = t.TempDir()
	cfg.Poll.Timeout = 0
	return cfg
}

type harness struct {
	orch   *Orchestrator
	clock  *fakeClock
	log    *logger.TestLogger
	outDir string
}

func newHarness(t *testing.T, cfg *config.Config, api apify.API, opts ...Option) *harness {
	t.Helper()
	writer, err := storage.NewManager(cfg.Output.Directory)
	require.NoError(t, err)

	clock := newFakeClock()
	log := logger.NewTestLogger()
	base := []Option{
		WithClock(clock.Now),
		WithSleeper(clock.Sleep),
		WithLogger(log),
		WithInvocationID("inv-test"),
	}
	return &harness{
		orch:   New(cfg, api, writer, append(base, opts...)...),
		clock:  clock,
		log:    log,
		outDir: cfg.Output.Directory,
	}
}

func (h *harness) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.outDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunMissingCredentialsMakesNoCalls(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		session string
		want    string
	}{
		{"no token", "", "s", "APIFY_TOKEN must be set"},
		{"no session", "t", "", "SESSION_ID must be set"},
		{"neither", "", "", "APIFY_TOKEN and SESSION_ID must be set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apifytest.NewServer()
			defer srv.Close()

			cfg := testConfig(t)
			cfg.Apify.Token = tt.token
			cfg.Apify.SessionID = tt.session
			cfg.Apify.BaseURL = srv.URL()

			h := newHarness(t, cfg, apify.NewClient(cfg.Apify, apify.WithLogger(logger.NewTestLogger())))
			result := h.orch.Run(context.Background())

			assert.Equal(t, OutcomeFailed, result.Outcome)
			assert.Equal(t, errors.StageConfiguration, result.Stage)
			assert.ErrorContains(t, result.Err, tt.want)
			assert.Equal(t, 0, srv.Requests())
			assert.Empty(t, h.files(t))
		})
	}
}

func TestRunFetchesOnceUsingTerminalDatasetID(t *testing.T) {
	nonTerminal := []apify.RunStatus{apify.StatusReady, apify.StatusRunning, apify.StatusTimingOut, apify.StatusAborting}

	for n := 0; n <= 5; n++ {
		t.Run(fmt.Sprintf("%d_polls_before_success", n), func(t *testing.T) {
			var steps []pollStep
			for i := 0; i < n; i++ {
				steps = append(steps, observed(nonTerminal[i%len(nonTerminal)], fmt.Sprintf("stale-%d", i)))
			}
			steps = append(steps, observed(apify.StatusSucceeded, "ds-final"))

			api := &fakeAPI{polls: steps, items: sampleRecords()}
			h := newHarness(t, testConfig(t), api)

			result := h.orch.Run(context.Background())

			require.Equal(t, OutcomePersisted, result.Outcome, "err: %v", result.Err)
			assert.Equal(t, []string{"ds-final"}, api.fetched)
			assert.Equal(t, n+1, api.gets)
			assert.Equal(t, n, h.clock.sleeps)
			assert.Equal(t, "ds-final", result.DatasetID)
		})
	}
}

func TestRunFailedStatusesSkipFetch(t *testing.T) {
	for _, status := range []apify.RunStatus{apify.StatusFailed, apify.StatusAborted, apify.StatusTimedOut} {
		t.Run(string(status), func(t *testing.T) {
			api := &fakeAPI{
				polls: []pollStep{running(""), running(""), observed(status, "ds-1")},
				items: sampleRecords(),
			}
			h := newHarness(t, testConfig(t), api)

			result := h.orch.Run(context.Background())

			assert.Equal(t, OutcomeRunFailed, result.Outcome)
			assert.Equal(t, errors.StageStatusCheck, result.Stage)
			assert.ErrorContains(t, result.Err, string(status))
			assert.Empty(t, api.fetched)
			assert.Empty(t, h.files(t))
			assert.False(t, result.Succeeded())
		})
	}
}

func TestRunPollFailureAtAnyIteration(t *testing.T) {
	transportErr := errors.New(errors.ErrorTypeNetwork, 0, "network error: connection reset")

	for k := 1; k <= 5; k++ {
		t.Run(fmt.Sprintf("fails_on_poll_%d", k), func(t *testing.T) {
			var steps []pollStep
			for i := 1; i < k; i++ {
				steps = append(steps, running(""))
			}
			steps = append(steps, pollStep{err: transportErr}, observed(apify.StatusSucceeded, "ds-1"))

			api := &fakeAPI{polls: steps, items: sampleRecords()}
			h := newHarness(t, testConfig(t), api)

			result := h.orch.Run(context.Background())

			assert.Equal(t, OutcomeFailed, result.Outcome)
			assert.Equal(t, errors.StageStatusCheck, result.Stage)
			assert.True(t, errors.IsType(result.Err, errors.ErrorTypeNetwork))
			assert.Equal(t, k, api.gets)
			assert.Empty(t, api.fetched)
			assert.Empty(t, h.files(t))
			assert.Zero(t, result.Rows)
		})
	}
}

func TestRunPollHTTPFailureOverTheWire(t *testing.T) {
	srv := apifytest.NewServer()
	defer srv.Close()
	srv.SetStatuses("RUNNING", "RUNNING", "SUCCEEDED")
	srv.FailPoll(2, http.StatusBadGateway)
	srv.SetDataset(apifytest.SamplePosts())

	cfg := testConfig(t)
	cfg.Apify.BaseURL = srv.URL()
	h := newHarness(t, cfg, apify.NewClient(cfg.Apify, apify.WithLogger(logger.NewTestLogger())))

	result := h.orch.Run(context.Background())

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, errors.StageStatusCheck, result.Stage)
	assert.Equal(t, 1, srv.Submits())
	assert.Equal(t, 2, srv.Polls())
	assert.Empty(t, srv.DatasetFetches())
	assert.Empty(t, h.files(t))
}

func TestRunEndToEndOverTheWire(t *testing.T) {
	srv := apifytest.NewServer()
	defer srv.Close()
	srv.SetRun("run-9", "ds-9")
	srv.SetStatuses("READY", "RUNNING", "SUCCEEDED")
	srv.SetDataset(apifytest.SamplePosts())

	cfg := testConfig(t)
	cfg.Apify.BaseURL = srv.URL()
	cfg.Scrape.Hashtags = []string{"#hyderabadfoodie", " indianfoodie "}
	h := newHarness(t, cfg, apify.NewClient(cfg.Apify, apify.WithLogger(logger.NewTestLogger())))

	result := h.orch.Run(context.Background())

	require.Equal(t, OutcomePersisted, result.Outcome, "err: %v", result.Err)
	assert.Equal(t, "run-9", result.RunID)
	assert.Equal(t, []string{"ds-9"}, srv.DatasetFetches())
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, filepath.Join(h.outDir, "hashtag_posts_20240305_070829.csv"), result.Path)

	input := srv.LastInput()
	assert.Equal(t, []interface{}{"hyderabadfoodie", "indianfoodie"}, input["hashtags"])
	assert.Equal(t, float64(30), input["resultsLimit"])
	assert.Equal(t, "session-xyz", input["instagramScraperSessionId"])
	assert.Equal(t, map[string]interface{}{"useApifyProxy": true}, input["proxy"])
	for _, token := range srv.Tokens() {
		assert.Equal(t, "token-abc", token)
	}

	records := readCSV(t, result.Path)
	require.Len(t, records, 4)
	assert.Equal(t, posts.Header(), records[0])
	assert.Equal(t, "Jubilee Hills", records[1][7])
}

func TestRunRowCountMatchesRecords(t *testing.T) {
	for n := 1; n <= 4; n++ {
		t.Run(fmt.Sprintf("%d_records", n), func(t *testing.T) {
			var items []apify.PostRecord
			for i := 0; i < n; i++ {
				items = append(items, apify.PostRecord{
					"ownerUsername": fmt.Sprintf("user%d", i),
					"caption":       fmt.Sprintf("post %d 📍Place %d", i, i),
					"likesCount":    i * 100,
				})
			}
			api := &fakeAPI{polls: []pollStep{observed(apify.StatusSucceeded, "ds")}, items: items}
			h := newHarness(t, testConfig(t), api)

			result := h.orch.Run(context.Background())
			require.Equal(t, OutcomePersisted, result.Outcome)

			records := readCSV(t, result.Path)
			require.Len(t, records, n+1)
			assert.Equal(t, n, result.Rows)
			for i, row := range posts.Flatten(items) {
				assert.Equal(t, row.Record(), records[i+1])
			}
		})
	}
}

func TestRunEmptyDatasetWritesNothing(t *testing.T) {
	api := &fakeAPI{polls: []pollStep{observed(apify.StatusSucceeded, "ds")}}
	h := newHarness(t, testConfig(t), api)

	result := h.orch.Run(context.Background())

	assert.Equal(t, OutcomeEmpty, result.Outcome)
	assert.NoError(t, result.Err)
	assert.True(t, result.Succeeded())
	assert.Empty(t, result.Path)
	assert.Empty(t, h.files(t))
	assert.True(t, h.log.HasMessage("No data to save."))
}

func TestTransformAndPersistIsIdempotent(t *testing.T) {
	api := &fakeAPI{}
	h := newHarness(t, testConfig(t), api)

	first, err := h.orch.TransformAndPersist(sampleRecords(), "first.csv")
	require.NoError(t, err)
	second, err := h.orch.TransformAndPersist(sampleRecords(), "second.csv")
	require.NoError(t, err)

	a, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	b, err := os.ReadFile(second.Path)
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.True(t, bytes.Equal(a, b))
	assert.Equal(t, 0, api.calls())
}

func TestTransformAndPersistUsesConfiguredFileName(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.FileName = "fixed.csv"
	h := newHarness(t, cfg, &fakeAPI{})

	res, err := h.orch.TransformAndPersist(sampleRecords(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.outDir, "fixed.csv"), res.Path)
	assert.True(t, h.log.HasMessage("Post data saved"))
}

type failingWriter struct{}

func (failingWriter) WriteCSV(string, []string, [][]string) (string, error) {
	return "", fmt.Errorf("disk full")
}

func TestRunPersistFailure(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{polls: []pollStep{observed(apify.StatusSucceeded, "ds")}, items: sampleRecords()}
	orch := New(cfg, api, failingWriter{}, WithLogger(logger.NewTestLogger()))

	result := orch.Run(context.Background())

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, errors.StagePersist, result.Stage)
	assert.ErrorContains(t, result.Err, "disk full")
}

func TestRunSubmitFailure(t *testing.T) {
	srv := apifytest.NewServer()
	defer srv.Close()
	srv.FailSubmit(http.StatusUnauthorized)

	cfg := testConfig(t)
	cfg.Apify.BaseURL = srv.URL()
	h := newHarness(t, cfg, apify.NewClient(cfg.Apify, apify.WithLogger(logger.NewTestLogger())))

	result := h.orch.Run(context.Background())

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, errors.StageSubmit, result.Stage)
	assert.True(t, errors.IsType(result.Err, errors.ErrorTypeAuth))
	assert.Equal(t, 0, srv.Polls())
	assert.Empty(t, h.files(t))
}

func TestRunDatasetFetchFailure(t *testing.T) {
	api := &fakeAPI{
		polls:      []pollStep{observed(apify.StatusSucceeded, "ds")},
		datasetErr: errors.New(errors.ErrorTypeServerError, 500, "server error"),
	}
	h := newHarness(t, testConfig(t), api)

	result := h.orch.Run(context.Background())

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, errors.StageDatasetFetch, result.Stage)
	assert.Equal(t, []string{"ds"}, api.fetched)
	assert.Empty(t, h.files(t))
}

func TestSubmitValidatesInput(t *testing.T) {
	api := &fakeAPI{}
	h := newHarness(t, testConfig(t), api)

	_, err := h.orch.Submit(context.Background(), []string{" ", "#"}, 10, "s")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, errors.StageSubmit, errors.StageOf(err))

	_, err = h.orch.Submit(context.Background(), []string{"food"}, 0, "s")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	assert.Equal(t, 0, api.calls())

	handle, err := h.orch.Submit(context.Background(), []string{"#food"}, 5, "s")
	require.NoError(t, err)
	assert.Equal(t, "run-1", handle.RunID)
	require.Len(t, api.inputs, 1)
	assert.Equal(t, []string{"food"}, api.inputs[0].Hashtags)
	assert.True(t, api.inputs[0].Proxy.UseApifyProxy)
	assert.True(t, h.log.HasMessage("Scraping hashtags: food"))
}

func TestAwaitCompletionMaxAttempts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Poll.MaxAttempts = 3
	api := &fakeAPI{polls: []pollStep{running("")}}
	h := newHarness(t, cfg, api)

	_, err := h.orch.AwaitCompletion(context.Background(), RunHandle{RunID: "run-1"})

	assert.True(t, errors.IsType(err, errors.ErrorTypeTimedOut))
	assert.Equal(t, 3, api.gets)
	assert.Equal(t, 2, h.clock.sleeps)
}

func TestRunPollTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Poll.Interval = 10 * time.Second
	cfg.Poll.Timeout = 30 * time.Second
	api := &fakeAPI{polls: []pollStep{running("")}}
	h := newHarness(t, cfg, api)

	result := h.orch.Run(context.Background())

	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Equal(t, errors.StageStatusCheck, result.Stage)
	assert.Equal(t, 4, api.gets)
	assert.Empty(t, api.fetched)
	assert.Empty(t, h.files(t))
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{polls: []pollStep{running("")}}

	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, cfg, api, WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	result := h.orch.Run(ctx)

	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 1, api.gets)
	assert.Empty(t, api.fetched)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	cpDir := t.TempDir()
	key := checkpoint.Key(cfg.Scrape.Hashtags, cfg.Scrape.ResultsLimit)

	store, err := checkpoint.NewManagerInDir(cpDir, key, logger.NewTestLogger())
	require.NoError(t, err)

	// first invocation is interrupted while the run is still going
	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeAPI{polls: []pollStep{running("")}}
	h1 := newHarness(t, cfg, first,
		WithCheckpoints(store, false),
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}))
	result := h1.orch.Run(ctx)
	require.Equal(t, OutcomeCancelled, result.Outcome)

	saved, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "run-1", saved.RunID)
	assert.Equal(t, "RUNNING", saved.Status)

	// second invocation re-attaches without submitting
	second := &fakeAPI{polls: []pollStep{observed(apify.StatusSucceeded, "ds")}, items: sampleRecords()}
	h2 := newHarness(t, cfg, second, WithCheckpoints(store, true))
	result = h2.orch.Run(context.Background())

	require.Equal(t, OutcomePersisted, result.Outcome, "err: %v", result.Err)
	assert.Equal(t, 0, second.starts)
	assert.Equal(t, "run-1", result.RunID)
	left, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, left)
}

func TestRunWithoutResumeSubmitsNewRun(t *testing.T) {
	cfg := testConfig(t)
	store, err := checkpoint.NewManagerInDir(t.TempDir(), "k", logger.NewTestLogger())
	require.NoError(t, err)
	_, err = store.Create("old", "run-old", config.NormalizeHashtags(cfg.Scrape.Hashtags), cfg.Scrape.ResultsLimit)
	require.NoError(t, err)

	api := &fakeAPI{polls: []pollStep{observed(apify.StatusFailed, "")}}
	h := newHarness(t, cfg, api, WithCheckpoints(store, false))

	result := h.orch.Run(context.Background())

	assert.Equal(t, OutcomeRunFailed, result.Outcome)
	assert.Equal(t, 1, api.starts)
	assert.True(t, h.log.HasMessage("Previous run was not collected; use --resume to re-attach"))
	left, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, left)
}

func TestLogLinesCarryInvocationID(t *testing.T) {
	api := &fakeAPI{polls: []pollStep{observed(apify.StatusSucceeded, "ds")}, items: sampleRecords()}
	h := newHarness(t, testConfig(t), api)

	result := h.orch.Run(context.Background())
	require.Equal(t, OutcomePersisted, result.Outcome)
	assert.Equal(t, "inv-test", result.InvocationID)

	messages := h.log.GetMessages()
	require.NotEmpty(t, messages)
	for _, m := range messages {
		assert.Equal(t, "inv-test", m.Fields["invocation_id"], m.Message)
	}
}

func TestNewGeneratesInvocationID(t *testing.T) {
	orch := New(testConfig(t), &fakeAPI{}, failingWriter{}, WithLogger(logger.NewTestLogger()))
	assert.Len(t, orch.InvocationID(), 36)
}

type recordingObserver struct {
	attached []string
	statuses []apify.RunStatus
	finished []Outcome
}

func (r *recordingObserver) RunAttached(runID string, hashtags []string) {
	r.attached = append(r.attached, runID)
}

func (r *recordingObserver) StatusObserved(runID string, status apify.RunStatus, attempt int) {
	r.statuses = append(r.statuses, status)
}

func (r *recordingObserver) Finished(result Result) {
	r.finished = append(r.finished, result.Outcome)
}

func TestObserverSeesProgress(t *testing.T) {
	api := &fakeAPI{
		polls: []pollStep{running(""), observed(apify.StatusSucceeded, "ds-1")},
		items: sampleRecords(),
	}
	obs := &recordingObserver{}
	h := newHarness(t, testConfig(t), api, WithObserver(obs))

	result := h.orch.Run(context.Background())

	require.Equal(t, OutcomePersisted, result.Outcome)
	assert.Equal(t, []string{"run-1"}, obs.attached)
	assert.Equal(t, []apify.RunStatus{apify.StatusRunning, apify.StatusSucceeded}, obs.statuses)
	assert.Equal(t, []Outcome{OutcomePersisted}, obs.finished)
}

func TestObserverFinishedOnConfigurationFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Apify.Token = ""
	obs := &recordingObserver{}
	h := newHarness(t, cfg, &fakeAPI{}, WithObserver(obs))

	h.orch.Run(context.Background())

	assert.Empty(t, obs.attached)
	assert.Equal(t, []Outcome{OutcomeFailed}, obs.finished)
}
