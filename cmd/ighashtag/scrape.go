package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ighashtag/pkg/apify"
	"ighashtag/pkg/auth"
	"ighashtag/pkg/checkpoint"
	"ighashtag/pkg/config"
	"ighashtag/pkg/errors"
	"ighashtag/pkg/logger"
	"ighashtag/pkg/orchestrator"
	"ighashtag/pkg/ratelimit"
	"ighashtag/pkg/retry"
	"ighashtag/pkg/storage"
	"ighashtag/pkg/ui"
	"ighashtag/pkg/ui/tui"
)

// Exit codes used with --strict
const (
	exitStrictFailure = 2
	exitInterrupted   = 130
)

var (
	// Scrape command flags
	hashtagList  []string
	resultsLimit int
	outputDir    string
	outputFile   string
	pollInterval time.Duration
	pollTimeout  time.Duration
	maxRetries   int
	rateLimit    int
	profile      string
	resumeRun    bool
	strictExit   bool
	useTUI       bool
)

// newCredentialManager is replaced in tests to keep the system keychain out
var newCredentialManager = auth.NewManager

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape [hashtag...]",
	Short: "Scrape hashtag posts into a CSV file",
	Long: `Start one run of the hosted hashtag scraper, wait for it to finish and
write every post of its dataset to a CSV file.

Hashtags come from the arguments, --hashtag, the config file, or the built-in
defaults, in that order. A run that succeeds with no posts writes no file.

By default the exit code is 0 even when a stage fails; the failing stage is
printed and logged. Use --strict to exit non-zero instead.`,
	Example: `  # Scrape the default hashtags
  ighashtag

  # Scrape two hashtags, 50 posts each, into ./out
  ighashtag scrape biryani hyderabadfoodie --limit 50 --output ./out

  # Re-attach to a run an interrupted invocation left behind
  ighashtag scrape biryani --resume

  # Watch the run in an interactive view
  ighashtag scrape biryani --tui`,
	Args: cobra.ArbitraryArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	addScrapeFlags(scrapeCmd.Flags())
	// root runs a scrape too
	addScrapeFlags(rootCmd.Flags())
}

func addScrapeFlags(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&hashtagList, "hashtag", "t", nil, "hashtag to scrape, repeatable or comma separated")
	fs.IntVarP(&resultsLimit, "limit", "l", 0, "maximum results per hashtag")
	fs.StringVarP(&outputDir, "output", "o", "", "output directory for the CSV file")
	fs.StringVar(&outputFile, "file", "", "CSV file name (default: hashtag_posts_<timestamp>.csv)")
	fs.DurationVar(&pollInterval, "poll-interval", 0, "wait between run status checks")
	fs.DurationVar(&pollTimeout, "poll-timeout", 0, "give up waiting for the run after this long (0 waits forever)")
	fs.IntVar(&maxRetries, "max-retries", 0, "attempts per platform request, 1 disables retries")
	fs.IntVar(&rateLimit, "rate-limit", 0, "platform requests per minute")
	fs.StringVar(&profile, "profile", auth.DefaultProfile, "stored credential profile")
	fs.BoolVar(&resumeRun, "resume", false, "re-attach to the run left by an interrupted invocation")
	fs.BoolVar(&strictExit, "strict", false, "exit non-zero when the scrape fails")
	fs.BoolVar(&useTUI, "tui", false, "show an interactive run view")
}

// collectFlags turns the flags the user actually set into config overrides
func collectFlags(fs *pflag.FlagSet, args []string) map[string]interface{} {
	flags := make(map[string]interface{})

	tags := append([]string(nil), args...)
	if fs.Changed("hashtag") {
		tags = append(tags, hashtagList...)
	}
	if normalized := config.NormalizeHashtags(tags); len(normalized) > 0 {
		flags["hashtags"] = normalized
	}

	if fs.Changed("limit") {
		flags["results-limit"] = resultsLimit
	}
	if fs.Changed("output") {
		flags["output"] = outputDir
	}
	if fs.Changed("file") {
		flags["file"] = outputFile
	}
	if fs.Changed("poll-interval") {
		flags["poll-interval"] = pollInterval
	}
	if fs.Changed("poll-timeout") {
		flags["poll-timeout"] = pollTimeout
	}
	if fs.Changed("max-retries") {
		flags["max-retries"] = maxRetries
	}
	if fs.Changed("rate-limit") {
		flags["rate-limit"] = rateLimit
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	return flags
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, collectFlags(cmd.Flags(), args))
	if err != nil {
		result := configLoadFailure(err)
		reportResult(result)
		return exitFor(result, strictExit)
	}

	newCredentialManager().Apply(cfg, profile)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if useTUI {
		return scrapeWithTUI(ctx, cfg)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err)
		return &exitError{code: 1, err: err}
	}

	ui.PrintBanner()
	result := executeScrape(ctx, cfg, scrapeOptions{
		Resume: resumeRun,
		Logger: logger.GetLogger(),
	})
	reportResult(result)
	return exitFor(result, strictExit)
}

func scrapeWithTUI(ctx context.Context, cfg *config.Config) error {
	log, err := logger.NewFileOnly(&cfg.Logging)
	if err != nil {
		ui.PrintError("Failed to initialize logger", err)
		return &exitError{code: 1, err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := tui.NewTUI(config.NormalizeHashtags(cfg.Scrape.Hashtags), cancel)
	done := make(chan orchestrator.Result, 1)
	go func() {
		done <- executeScrape(ctx, cfg, scrapeOptions{
			Resume:   resumeRun,
			Logger:   logger.WithHook(log, view.LogHook()),
			Observer: view,
		})
	}()

	if err := view.Start(); err != nil {
		cancel()
		ui.PrintError("Terminal UI failed", err)
	}

	result := <-done
	reportResult(result)
	return exitFor(result, strictExit)
}

// scrapeOptions wires one invocation; zero values pick production defaults
type scrapeOptions struct {
	Resume        bool
	CheckpointDir string
	Logger        logger.Logger
	Observer      orchestrator.Observer
	HTTPClient    *http.Client
	Clock         func() time.Time
}

// executeScrape builds the client, writer and checkpoint store for cfg and
// runs one scrape
func executeScrape(ctx context.Context, cfg *config.Config, opts scrapeOptions) orchestrator.Result {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	invocationID := uuid.New().String()
	log := logger.ForInvocation(opts.Logger, invocationID)

	clientOpts := []apify.Option{
		apify.WithLimiter(ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)),
		apify.WithRetryPolicy(retry.FromConfig(cfg.Retry, log)),
		apify.WithLogger(log),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, apify.WithHTTPClient(opts.HTTPClient))
	}
	client := apify.NewClient(cfg.Apify, clientOpts...)

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(opts.Logger),
		orchestrator.WithInvocationID(invocationID),
	}
	if opts.Observer != nil {
		orchOpts = append(orchOpts, orchestrator.WithObserver(opts.Observer))
	}
	if opts.Clock != nil {
		orchOpts = append(orchOpts, orchestrator.WithClock(opts.Clock))
	}
	if store := openCheckpoints(cfg, opts, log); store != nil {
		orchOpts = append(orchOpts, orchestrator.WithCheckpoints(store, opts.Resume))
	}

	writer, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		persistErr := errors.PersistError(err)
		logger.LogStageFailure(log, string(errors.StagePersist), persistErr)
		result := orchestrator.Result{
			InvocationID: invocationID,
			Outcome:      orchestrator.OutcomeFailed,
			Stage:        errors.StagePersist,
			Err:          persistErr,
		}
		if opts.Observer != nil {
			opts.Observer.Finished(result)
		}
		return result
	}

	return orchestrator.New(cfg, client, writer, orchOpts...).Run(ctx)
}

// configLoadFailure reports a config file, environment or validation error
// as a failed configuration stage, so it exits like any other failure
func configLoadFailure(err error) orchestrator.Result {
	return orchestrator.Result{
		Outcome: orchestrator.OutcomeFailed,
		Stage:   errors.StageConfiguration,
		Err: &errors.Error{
			Type:    errors.ErrorTypeValidation,
			Stage:   errors.StageConfiguration,
			Message: "failed to load configuration",
			Err:     err,
		},
	}
}

// openCheckpoints returns nil when no checkpoint directory is usable; the
// scrape then runs without resume support
func openCheckpoints(cfg *config.Config, opts scrapeOptions, log logger.Logger) orchestrator.CheckpointStore {
	key := checkpoint.Key(config.NormalizeHashtags(cfg.Scrape.Hashtags), cfg.Scrape.ResultsLimit)

	var (
		store *checkpoint.Manager
		err   error
	)
	if opts.CheckpointDir != "" {
		store, err = checkpoint.NewManagerInDir(opts.CheckpointDir, key, log)
	} else {
		store, err = checkpoint.NewManager(key, log)
	}
	if err != nil {
		log.WithError(err).Warn("Checkpoints disabled")
		return nil
	}
	return store
}

func reportResult(result orchestrator.Result) {
	switch result.Outcome {
	case orchestrator.OutcomePersisted:
		ui.PrintSuccess(fmt.Sprintf("Saved %d posts to %s", result.Rows, result.Path))
	case orchestrator.OutcomeEmpty:
		ui.PrintWarning("Run succeeded without posts, no file written")
	case orchestrator.OutcomeCancelled:
		ui.PrintWarning("Scrape cancelled", result.Err)
		if result.RunID != "" {
			ui.Println("Re-attach to run " + result.RunID + " with --resume")
		}
	default:
		ui.PrintError(fmt.Sprintf("Scrape failed at %s", result.Stage), result.Err)
		if errors.IsType(result.Err, errors.ErrorTypeConfiguration) {
			ui.Println("Run 'ighashtag auth guide' to see where the credentials come from.")
		}
	}
}

// exitFor maps a result to the command's exit status. Without strict every
// outcome exits 0 and the failure is only reported on the console.
func exitFor(result orchestrator.Result, strict bool) error {
	switch {
	case result.Succeeded() || !strict:
		return nil
	case result.Outcome == orchestrator.OutcomeCancelled:
		return &exitError{code: exitInterrupted, err: result.Err}
	default:
		return &exitError{code: exitStrictFailure, err: result.Err}
	}
}
