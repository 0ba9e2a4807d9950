// Package apify is a small client for the hosted actor platform that runs
// the Instagram hashtag scraper.
//
// It covers the three calls a scrape needs: start a run, read a run's
// status and read every item of the run's default dataset. Failures come
// back as typed *errors.Error values and the API token is redacted from
// anything that reaches the logs.
//
//	client := apify.NewClient(cfg.Apify,
//		apify.WithLimiter(ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)),
//		apify.WithRetryPolicy(retry.FromConfig(cfg.Retry, log)),
//	)
//	run, err := client.StartRun(ctx, apify.RunInput{Hashtags: []string{"indianfoodie"}, ResultsLimit: 30})
package apify
