// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

const defaultTimeout = 30 * time.Second

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.URL, e.Code)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.URL, e.Code, e.Body)
}

// Requester sends requests with a fixed User-Agent and the retry policy of
// DoWithRetry.
type Requester struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
	Logger     *slog.Logger
}

// NewRequester builds a Requester from the shared HTTP settings.
func NewRequester(cfg types.HTTPConfig, maxRetries int, logger *slog.Logger) Requester {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Requester{
		Client:     &http.Client{Timeout: timeout},
		UserAgent:  cfg.UserAgent,
		MaxRetries: maxRetries,
		Logger:     logger,
	}
}

// Do sends req and returns the response when its status is 2xx. Any other
// status is returned as a *StatusError with the body closed.
func (r Requester) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if r.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	resp, err := DoWithRetry(ctx, r.Client, req, r.MaxRetries, r.Logger)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.Redacted(), Body: string(bytes.TrimSpace(body))}
	}
	return resp, nil
}

// GetJSON fetches url and decodes the JSON response into out.
func (r Requester) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return r.doJSON(ctx, req, header, out)
}

// PostJSON sends body as JSON to url and decodes the JSON response into out.
func (r Requester) PostJSON(ctx context.Context, url string, header http.Header, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return r.doJSON(ctx, req, header, out)
}

func (r Requester) doJSON(ctx context.Context, req *http.Request, header http.Header, out any) error {
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", req.URL.Host, err)
	}
	return nil
}
