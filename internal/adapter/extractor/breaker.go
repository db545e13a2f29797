package extractor

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// BreakerExtractor wraps a domain.ItemExtractor with a circuit breaker,
// using the same trip settings as internal/adapter/ocr's breaker. It has no
// fallback extractor.
type BreakerExtractor struct {
	next    domain.ItemExtractor
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerExtractor constructs a BreakerExtractor.
func NewBreakerExtractor(name string, next domain.ItemExtractor, maxFailures uint32, openTimeout time.Duration) *BreakerExtractor {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerStatus(name, int(to))
		},
	}
	return &BreakerExtractor{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// ExtractItems implements domain.ItemExtractor.
func (b *BreakerExtractor) ExtractItems(ctx domain.Context, text string) ([]domain.RawExtractedItem, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.ExtractItems(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.ErrUpstreamUnavailable
		}
		return nil, err
	}
	return out.([]domain.RawExtractedItem), nil
}
