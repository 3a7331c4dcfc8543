// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	RetryBaseDelay = time.Millisecond
}

// statusScript replies with codes in order, repeating the last one, and
// records every request body it sees.
type statusScript struct {
	mu     sync.Mutex
	codes  []int
	bodies []string
}

func (s *statusScript) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, string(b))
	n := len(s.bodies)
	s.mu.Unlock()

	code := s.codes[min(n, len(s.codes))-1]
	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "0")
	}
	w.WriteHeader(code)
}

func (s *statusScript) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		codes      []int
		maxRetries int
		wantStatus int
		wantCalls  int
	}{
		{"first attempt succeeds", []int{200}, 5, 200, 1},
		{"rate limited twice", []int{429, 429, 200}, 5, 200, 3},
		{"unavailable with retry-after", []int{503, 200}, 2, 200, 2},
		{"retries exhausted", []int{429}, 3, 429, 4},
		{"default retry budget", []int{429}, 0, 429, 6},
		{"server error not retried", []int{500}, 5, 500, 1},
		{"not found not retried", []int{404, 200}, 5, 404, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := &statusScript{codes: tt.codes}
			ts := httptest.NewServer(script)
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			require.NoError(t, err)

			resp, err := DoWithRetry(context.Background(), ts.Client(), req, tt.maxRetries, nil)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, script.calls())
		})
	}
}

func TestDoWithRetryResendsBody(t *testing.T) {
	script := &statusScript{codes: []int{429, 200}}
	ts := httptest.NewServer(script)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(`{"query":"self-rag"}`))
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), ts.Client(), req, 3, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{`{"query":"self-rag"}`, `{"query":"self-rag"}`}, script.bodies)
}

func TestDoWithRetryCancelledDuringBackoff(t *testing.T) {
	ts := httptest.NewServer(&statusScript{codes: []int{429}})
	defer ts.Close()

	old := RetryBaseDelay
	RetryBaseDelay = time.Second
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(ctx, ts.Client(), req, 5, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		retryAfter string
		attempt    int
		want       time.Duration
	}{
		{"", 0, RetryBaseDelay},
		{"", 3, 8 * RetryBaseDelay},
		{"7", 3, 7 * time.Second},
		{"99999", 0, maxRetryAfter},
		{"soon", 1, 2 * RetryBaseDelay},
	}
	for _, tt := range tests {
		resp := &http.Response{Header: http.Header{}}
		if tt.retryAfter != "" {
			resp.Header.Set("Retry-After", tt.retryAfter)
		}
		if got := retryDelay(resp, tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%q, %d) = %v, want %v", tt.retryAfter, tt.attempt, got, tt.want)
		}
	}
}
