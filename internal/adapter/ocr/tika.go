// Package ocr implements domain.OCRProvider: a primary Apache Tika HTTP
// client for scanned-document text extraction, a PDF-native fallback for
// when Tika is down, and a circuit breaker composing the two.
package ocr

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// TikaClient extracts text from raw document bytes via Apache Tika's
// PUT /tika endpoint. See https://tika.apache.org/server/ for API details.
type TikaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTikaClient constructs a TikaClient with the given base URL and timeout.
func NewTikaClient(baseURL string, timeout time.Duration) *TikaClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TikaClient{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: &http.Client{Timeout: timeout}}
}

// ExtractText implements domain.OCRProvider.
func (c *TikaClient) ExtractText(ctx domain.Context, mimeType string, data []byte) (domain.OCRResult, error) {
	if len(data) == 0 {
		return domain.OCRResult{}, fmt.Errorf("%w: empty document", domain.ErrBlobNotFound)
	}

	url := c.baseURL + "/tika"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("build tika request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout {
		return domain.OCRResult{}, domain.ErrUpstreamTimeout
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.OCRResult{}, fmt.Errorf("%w: tika status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("read tika response: %w", err)
	}

	text := strings.Join(strings.Fields(string(body)), " ")
	return domain.OCRResult{Text: text}, nil
}
