package ocr

import (
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// BreakerProvider wraps a primary domain.OCRProvider (Tika) with a circuit
// breaker, falling back to a secondary provider (the PDF text-layer reader)
// for PDF artifacts whenever the primary call fails, including while the
// breaker is open.
type BreakerProvider struct {
	primary  domain.OCRProvider
	fallback domain.OCRProvider // optional
	breaker  *gobreaker.CircuitBreaker
}

// NewBreakerProvider constructs a BreakerProvider. fallback may be nil.
func NewBreakerProvider(name string, primary, fallback domain.OCRProvider, maxFailures uint32, openTimeout time.Duration) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerStatus(name, int(to))
		},
	}
	return &BreakerProvider{primary: primary, fallback: fallback, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// ExtractText implements domain.OCRProvider.
func (b *BreakerProvider) ExtractText(ctx domain.Context, mimeType string, data []byte) (domain.OCRResult, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.primary.ExtractText(ctx, mimeType, data)
	})
	if err == nil {
		return out.(domain.OCRResult), nil
	}

	if b.fallback != nil && strings.Contains(strings.ToLower(mimeType), "pdf") {
		result, fallbackErr := b.fallback.ExtractText(ctx, mimeType, data)
		if fallbackErr == nil {
			return result, nil
		}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.OCRResult{}, domain.ErrUpstreamUnavailable
	}
	return domain.OCRResult{}, err
}
