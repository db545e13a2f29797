package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

type fakeExtractor struct {
	items []domain.RawExtractedItem
	err   error
}

func (f *fakeExtractor) ExtractItems(ctx domain.Context, text string) ([]domain.RawExtractedItem, error) {
	return f.items, f.err
}

func TestBreakerExtractor_PassesThroughOnSuccess(t *testing.T) {
	next := &fakeExtractor{items: []domain.RawExtractedItem{{Name: "Rice"}}}
	b := NewBreakerExtractor("extractor", next, 3, time.Second)

	items, err := b.ExtractItems(context.Background(), "2 kg rice")
	if err != nil || len(items) != 1 || items[0].Name != "Rice" {
		t.Fatalf("expected passthrough success, got items=%v err=%v", items, err)
	}
}

func TestBreakerExtractor_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &fakeExtractor{err: errors.New("extractor down")}
	b := NewBreakerExtractor("extractor", next, 1, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := b.ExtractItems(context.Background(), "x"); err == nil {
			t.Fatalf("expected error on attempt %d", i)
		}
	}
	_, err := b.ExtractItems(context.Background(), "x")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected open breaker to surface ErrUpstreamUnavailable, got %v", err)
	}
}
