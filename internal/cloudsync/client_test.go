package cloudsync

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfeed-dev/bankfeed/internal/config"
	"github.com/bankfeed-dev/bankfeed/internal/observability"
)

func newTestClient(endpoint string) *Client {
	c := NewClient(config.SyncConfig{Endpoint: endpoint, User: "alice"}, observability.NewMetrics())
	c.retry = RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return c
}

func TestPushUploadsPayload(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.Push(context.Background(), []byte(`{"version":"1.2"}`)))
	assert.Equal(t, "/v1/snapshots/alice", gotPath)
	assert.JSONEq(t, `{"version":"1.2"}`, string(gotBody))
}

func TestPullReturnsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"1.2"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	payload, err := c.Pull(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.2"}`, string(payload))
}

func TestPullMissingSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Pull(context.Background())
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestPullMissingSnapshotDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 6; i++ {
		_, err := c.Pull(context.Background())
		require.ErrorIs(t, err, ErrNoSnapshot, "missing snapshot must not trip the breaker")
	}
	assert.Equal(t, int32(6), calls.Load(), "one request per Pull, no retries")
}

func TestPushRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.Push(context.Background(), []byte(`{}`)))
	assert.Equal(t, int32(2), calls.Load())
}

func TestPushRespectsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv.URL)
	err := c.Push(ctx, []byte(`{}`))
	require.ErrorIs(t, err, context.Canceled)
}

func TestEnabled(t *testing.T) {
	assert.False(t, NewClient(config.SyncConfig{}, observability.NewMetrics()).Enabled())
	assert.False(t, NewClient(config.SyncConfig{Endpoint: "https://x"}, observability.NewMetrics()).Enabled())
	assert.True(t, NewClient(config.SyncConfig{Endpoint: "https://x", User: "u"}, observability.NewMetrics()).Enabled())
}
