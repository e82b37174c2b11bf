package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocabr/observatory/internal/domain"
)

func newTestClient(t *testing.T, cfg HTTPClientConfig) *HTTPClient {
	t.Helper()
	client := NewHTTPClient(cfg, zerolog.Nop(), nil)
	client.backoffUnit = time.Millisecond
	return client
}

func TestHTTPClient_Get_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, HTTPClientConfig{Source: "test"})
	body, err := client.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPClient_Get_ClientErrorIsPermanent(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, HTTPClientConfig{Source: "test"})
	_, err := client.Get(context.Background(), server.URL, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchPermanent)

	var permErr *domain.PermanentFetchError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, http.StatusNotFound, permErr.StatusCode)
	assert.Equal(t, int32(1), attempts.Load(), "4xx must not be retried")
}

func TestHTTPClient_Get_MalformedURL(t *testing.T) {
	client := newTestClient(t, HTTPClientConfig{Source: "test"})
	_, err := client.Get(context.Background(), "://not-a-url", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchPermanent)
}

func TestHTTPClient_Get_RateLimitedThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client := newTestClient(t, HTTPClientConfig{Source: "test"})
	body, err := client.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestHTTPClient_Get_GivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, HTTPClientConfig{Source: "test", MaxAttempts: 3})
	_, err := client.Get(context.Background(), server.URL, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchRetryable)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPClient_Get_SetsUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client := newTestClient(t, HTTPClientConfig{Source: "test", UserAgent: "observatory-test/1.0"})
	_, err := client.Get(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, "observatory-test/1.0", gotAgent)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "delta seconds", value: "30", want: 30 * time.Second},
		{name: "zero", value: "0", want: 0},
		{name: "empty", value: "", want: 0},
		{name: "garbage", value: "soon", want: 0},
		{name: "negative", value: "-5", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value))
		})
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	assert.Greater(t, got, 50*time.Minute)

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), parseRetryAfter(past))
}

func TestHTTPClientConfig_ApplyDefaults(t *testing.T) {
	cfg := HTTPClientConfig{RateLimit: 10}
	cfg.applyDefaults()

	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 1, cfg.BurstSize)
	assert.NotEmpty(t, cfg.UserAgent)
}
