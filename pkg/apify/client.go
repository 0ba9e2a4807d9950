package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ighashtag/pkg/config"
	"ighashtag/pkg/errors"
	"ighashtag/pkg/logger"
	"ighashtag/pkg/ratelimit"
	"ighashtag/pkg/retry"
)

const userAgent = "ighashtag/1.0"

// API is the subset of the platform the scrape needs
type API interface {
	StartRun(ctx context.Context, input RunInput) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	GetDatasetItems(ctx context.Context, datasetID string) ([]PostRecord, error)
}

// Client talks to the actor platform REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	actorID    string
	token      string
	limiter    ratelimit.Limiter
	retry      *retry.Policy
	logger     logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter sets the outbound rate limiter
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetryPolicy sets the per-request retry policy
func WithRetryPolicy(p *retry.Policy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the client logger
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a platform client from the apify configuration section
func NewClient(cfg config.ApifyConfig, opts ...Option) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	actorID := cfg.ActorID
	if actorID == "" {
		actorID = DefaultActorID
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trimBase(cfg.BaseURL),
		actorID:    actorID,
		token:      cfg.Token,
		limiter:    ratelimit.Unlimited(),
		retry:      retry.NoRetry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.GetLogger()
	}
	return c
}

// StartRun submits a new actor run with the given input
func (c *Client) StartRun(ctx context.Context, input RunInput) (*Run, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeValidation, 0, fmt.Sprintf("failed to encode run input: %v", err))
	}

	endpoint := RunsURL(c.baseURL, c.actorID, c.token)
	c.logger.DebugWithFields("starting actor run", map[string]interface{}{
		"actor":         c.actorID,
		"hashtags":      input.Hashtags,
		"results_limit": input.ResultsLimit,
	})

	env, err := fetchJSON[runEnvelope](ctx, c, c.submitPolicy(), http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if env.Data.ID == "" {
		return nil, errors.New(errors.ErrorTypeParsing, 0, "run response carries no run id")
	}

	return &env.Data, nil
}

// GetRun fetches the current state of a run
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	env, err := fetchJSON[runEnvelope](ctx, c, c.retry, http.MethodGet, RunURL(c.baseURL, runID, c.token), nil)
	if err != nil {
		return nil, err
	}
	if env.Data.Status == "" {
		return nil, errors.New(errors.ErrorTypeParsing, 0, "run response carries no status")
	}
	if env.Data.ID == "" {
		env.Data.ID = runID
	}
	return &env.Data, nil
}

// GetDatasetItems fetches every item of a dataset in a single response,
// preserving the platform's order
func (c *Client) GetDatasetItems(ctx context.Context, datasetID string) ([]PostRecord, error) {
	items, err := fetchJSON[[]PostRecord](ctx, c, c.retry, http.MethodGet, DatasetItemsURL(c.baseURL, datasetID, c.token), nil)
	if err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("fetched dataset items", map[string]interface{}{
		"dataset_id": datasetID,
		"items":      len(items),
	})

	return items, nil
}

// submitPolicy is the retry policy for starting a run. Only a 429 proves the
// platform rejected the request; after a timeout or a 5xx the run may already
// exist, and submitting again would start a second paid run.
func (c *Client) submitPolicy() *retry.Policy {
	if c.retry == nil {
		return retry.NoRetry()
	}
	p := *c.retry
	p.RetryIf = func(err error) bool {
		return errors.IsType(err, errors.ErrorTypeRateLimit) && retry.DefaultRetryIf(err)
	}
	return &p
}

// fetchJSON sends one request through the limiter and retry policy p and
// decodes the JSON response into a T
func fetchJSON[T any](ctx context.Context, c *Client, p *retry.Policy, method, endpoint string, body []byte) (T, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (T, error) {
		var target T
		if err := c.limiter.Wait(ctx); err != nil {
			return target, &errors.Error{Type: errors.ErrorTypeNetwork, Message: "rate limiter wait aborted", Err: err}
		}

		data, err := c.send(ctx, method, endpoint, body)
		if err != nil {
			return target, err
		}

		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&target); err != nil {
			preview := string(data)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
				"url":          RedactURL(endpoint),
				"error":        err.Error(),
				"body_preview": preview,
			})
			return target, errors.New(errors.ErrorTypeParsing, 0, fmt.Sprintf("failed to parse JSON: %v", err))
		}
		return target, nil
	}, p)
}

// send performs the HTTP exchange and returns the body of a 2xx response
func (c *Client) send(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, fmt.Sprintf("failed to create request: %v", RedactURL(err.Error())))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		// url.Error embeds the full URL, token included
		msg := RedactURL(err.Error())
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":      method,
			"url":         RedactURL(endpoint),
			"error":       msg,
			"duration_ms": elapsed,
		})
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %s", msg),
			Err:     ctx.Err(),
		}
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, method, RedactURL(endpoint), resp.StatusCode, elapsed)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("failed to read response body: %s", RedactURL(err.Error())),
			Err:     ctx.Err(),
		}
	}

	if err := checkStatus(resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

// checkStatus maps a non-2xx status to a typed error
func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	detail := platformMessage(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.ErrorTypeAuth, status, withDetail("authentication failed", detail))
	case status == http.StatusNotFound:
		return errors.New(errors.ErrorTypeNotFound, status, withDetail("resource not found", detail))
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ErrorTypeRateLimit, status, withDetail("rate limit exceeded", detail))
	case status >= 500:
		return errors.New(errors.ErrorTypeServerError, status, withDetail("server error", detail))
	default:
		return errors.New(errors.ErrorTypeUnknown, status, withDetail(fmt.Sprintf("unexpected status code: %d", status), detail))
	}
}

// platformMessage pulls error.message out of a platform error body
func platformMessage(body []byte) string {
	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error.Message
}

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}
