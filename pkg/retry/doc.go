// Package retry provides backoff and retry logic for transient failures of
// platform API calls.
//
// The default policy runs an operation once. Retrying is opt-in through the
// retry section of the configuration, and only typed network, rate limit and
// server errors are retried:
//
//	policy := retry.FromConfig(cfg.Retry, log)
//	run, err := retry.DoWithResult(ctx, func(ctx context.Context) (*apify.Run, error) {
//		return client.GetRun(ctx, runID)
//	}, policy)
package retry
