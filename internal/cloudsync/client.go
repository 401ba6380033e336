// Package cloudsync pushes and pulls export snapshots against a
// remote blob endpoint, keyed by user. Calls are wrapped in a
// circuit breaker and retried with backoff.
package cloudsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bankfeed-dev/bankfeed/internal/config"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/observability"
)

// ErrNoSnapshot indicates the endpoint holds no snapshot for the
// user yet.
var ErrNoSnapshot = errors.New("cloudsync: no snapshot for user")

// Client talks to the sync endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	user       string
	cb         *gobreaker.CircuitBreaker
	retry      RetryConfig
	metrics    *observability.Metrics
}

func NewClient(cfg config.SyncConfig, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   cfg.Endpoint,
		user:       cfg.User,
		cb:         newCircuitBreaker("cloudsync"),
		retry:      DefaultRetryConfig(),
		metrics:    metrics,
	}
}

// Enabled reports whether sync is configured at all.
func (c *Client) Enabled() bool {
	return c.endpoint != "" && c.user != ""
}

// Push uploads a snapshot payload for the configured user.
func (c *Client) Push(ctx context.Context, payload []byte) error {
	log := logger.FromContext(ctx)

	_, err := c.cb.Execute(func() (any, error) {
		return nil, retryWithBackoff(ctx, c.retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.blobURL(), bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
				return fmt.Errorf("sync endpoint returned status %d", resp.StatusCode)
			}
			return nil
		})
	})
	if err != nil {
		c.metrics.IncrSyncError()
		return fmt.Errorf("pushing snapshot: %w", err)
	}

	log.Info().Str("user", c.user).Int("size_bytes", len(payload)).Msg("snapshot pushed")
	return nil
}

// Pull downloads the latest snapshot payload for the configured
// user. ErrNoSnapshot marks an empty remote, not a failure.
func (c *Client) Pull(ctx context.Context) ([]byte, error) {
	log := logger.FromContext(ctx)

	result, err := c.cb.Execute(func() (any, error) {
		var payload []byte
		err := retryWithBackoff(ctx, c.retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.blobURL(), nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return ErrNoSnapshot
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("sync endpoint returned status %d", resp.StatusCode)
			}

			payload, err = io.ReadAll(resp.Body)
			return err
		})
		return payload, err
	})
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			c.metrics.IncrSyncError()
		}
		return nil, fmt.Errorf("pulling snapshot: %w", err)
	}

	payload := result.([]byte)
	log.Info().Str("user", c.user).Int("size_bytes", len(payload)).Msg("snapshot pulled")
	return payload, nil
}

func (c *Client) blobURL() string {
	return fmt.Sprintf("%s/v1/snapshots/%s", c.endpoint, url.PathEscape(c.user))
}
