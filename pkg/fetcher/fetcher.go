package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/MomPansy/seasense-ingest/pkg/tracing"
)

// Result captures a single upstream fetch attempt. StatusCode is 0 when no
// HTTP response was received at all. A non-nil ErrDetail marks the attempt
// failed; Payload is only set on success.
type Result struct {
	StatusCode  int
	Payload     json.RawMessage
	ErrDetail   *string
	RequestedAt time.Time
}

// Success reports whether the attempt produced a usable payload.
func (r Result) Success() bool {
	return r.ErrDetail == nil
}

type Fetcher struct {
	client *http.Client
	apiKey string
	logger ectologger.Logger
}

// New builds a fetcher with a bounded request timeout. A single attempt is
// made per call; retries are the caller's concern.
func New(apiKey string, timeout time.Duration, logger ectologger.Logger) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		apiKey: apiKey,
		logger: logger,
	}
}

// Fetch performs one GET against the upstream endpoint. It never returns an
// error for upstream failures; those are reported through the Result so the
// caller can persist the attempt either way. The only error return is a
// malformed request that could not be attempted.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "fetcher.Fetcher.Fetch")
	defer span.End()

	result := Result{RequestedAt: time.Now().UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return result, err
	}
	req.Header.Set("apikey", f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.WithContext(ctx).WithError(err).WithField("endpoint", endpoint).Warn("Upstream request failed")
		detail := err.Error()
		result.ErrDetail = &detail
		return result, nil
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		detail := fmt.Sprintf("reading response body: %s", err)
		result.ErrDetail = &detail
		return result, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.WithContext(ctx).WithFields(map[string]any{
			"endpoint":    endpoint,
			"status_code": resp.StatusCode,
		}).Warn("Upstream returned non-success status")
		detail := string(body)
		if detail == "" {
			detail = resp.Status
		}
		result.ErrDetail = &detail
		return result, nil
	}

	if !json.Valid(body) {
		detail := "upstream returned malformed JSON"
		result.ErrDetail = &detail
		return result, nil
	}

	result.Payload = json.RawMessage(body)
	return result, nil
}
