package fec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/molly/follow-the-crypto-backend/internal/logger"
)

// BaseURL is the production FEC API root.
const BaseURL = "https://api.open.fec.gov/v1"

const (
	defaultTimeout  = 30 * time.Second
	defaultInterval = 20 * time.Second
	defaultMaxTries = 5
)

// Fetcher is the fetch primitive consumed by the rest of the pipeline.
// Implementations return an error once retries are exhausted; callers must
// abort the current recipient's pass on error rather than looping on the
// same page.
type Fetcher interface {
	Fetch(ctx context.Context, description, path string, params url.Values, v any) error
}

// Client fetches from the FEC API with API-key injection and constant-interval
// retry. HTTP 422 and 5xx responses are treated as permanent failures.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	interval   time.Duration
	maxTries   uint64
}

// NewClient builds a Client with production defaults.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		apiKey:     apiKey,
		baseURL:    BaseURL,
		interval:   defaultInterval,
		maxTries:   defaultMaxTries,
	}
}

// Fetch GETs path with the given params, injecting the API key, and decodes
// the JSON body into v. Transient failures (network errors, timeouts,
// unexpected statuses like 429) are retried up to the attempt cap.
func (c *Client) Fetch(ctx context.Context, description, path string, params url.Values, v any) error {
	log := logger.FromContext(ctx)

	q := url.Values{}
	for k, vals := range params {
		for _, val := range vals {
			if val != "" {
				q.Add(k, val)
			}
		}
	}
	q.Set("api_key", c.apiKey)
	reqURL := c.baseURL + path + "?" + q.Encode()

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", description, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return backoff.Permanent(fmt.Errorf("fetch %s: decoding response: %w", description, err))
			}
			return nil
		case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode >= 500:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("fetch %s: HTTP %d: %s", description, resp.StatusCode, body))
		default:
			return fmt.Errorf("fetch %s: HTTP %d", description, resp.StatusCode)
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.interval), c.maxTries-1),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Str("description", description).Msg("FEC fetch failed, retrying")
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return fmt.Errorf("fetch %s: %w", description, err)
	}
	return nil
}
