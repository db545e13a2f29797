// Package extractor implements domain.ItemExtractor: a provider-agnostic
// HTTP client that posts OCR'd text to an item-extraction service and
// parses its JSON response into RawExtractedItem candidates, wrapped in a
// circuit breaker so a stuck extractor degrades to transient job retries
// instead of hanging the worker pool.
package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// HTTPExtractor calls an external extractor.extract_items(text) collaborator
// (SPEC_FULL.md §6) over HTTP, expecting a JSON array response.
type HTTPExtractor struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPExtractor constructs an HTTPExtractor.
func NewHTTPExtractor(baseURL string, timeout time.Duration) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExtractor{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

func backoffPolicy(ctx domain.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = 2 * time.Second
	expo.MaxElapsedTime = 5 * time.Second
	return backoff.WithContext(expo, ctx)
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractedLine struct {
	Name       string  `json:"name"`
	Quantity   any     `json:"quantity"`
	Unit       string  `json:"unit"`
	Confidence float64 `json:"confidence"`
}

// ExtractItems implements domain.ItemExtractor. Transient upstream
// failures are retried with exponential backoff before the job is parked
// for the queue's own retry schedule; schema and client errors fail fast.
func (e *HTTPExtractor) ExtractItems(ctx domain.Context, text string) ([]domain.RawExtractedItem, error) {
	body, err := json.Marshal(extractRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	var lines []extractedLine
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract_items", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build extract request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout {
			return domain.ErrUpstreamTimeout
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("%w: extractor status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("%w: extractor status %d", domain.ErrUpstreamUnavailable, resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err))
		}
		return nil
	}

	if err := backoff.Retry(op, backoffPolicy(ctx)); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Unwrap()
		}
		return nil, err
	}

	items := make([]domain.RawExtractedItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.RawExtractedItem{
			Name:       l.Name,
			Quantity:   l.Quantity,
			Unit:       l.Unit,
			Confidence: l.Confidence,
		})
	}
	return items, nil
}
