package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

type fakeProvider struct {
	result domain.OCRResult
	err    error
	calls  int
}

func (f *fakeProvider) ExtractText(ctx domain.Context, mimeType string, data []byte) (domain.OCRResult, error) {
	f.calls++
	return f.result, f.err
}

func TestBreakerProvider_PassesThroughOnSuccess(t *testing.T) {
	primary := &fakeProvider{result: domain.OCRResult{Text: "hello"}}
	b := NewBreakerProvider("ocr", primary, nil, 3, time.Second)

	result, err := b.ExtractText(context.Background(), "text/plain", []byte("x"))
	if err != nil || result.Text != "hello" {
		t.Fatalf("expected passthrough success, got result=%v err=%v", result, err)
	}
}

func TestBreakerProvider_FallsBackToPDFExtractorOnFailure(t *testing.T) {
	primary := &fakeProvider{err: errors.New("tika down")}
	fallback := &fakeProvider{result: domain.OCRResult{Text: "from pdf layer"}}
	b := NewBreakerProvider("ocr", primary, fallback, 3, time.Second)

	result, err := b.ExtractText(context.Background(), "application/pdf", []byte("x"))
	if err != nil || result.Text != "from pdf layer" {
		t.Fatalf("expected fallback success, got result=%v err=%v", result, err)
	}
}

func TestBreakerProvider_OpensAfterConsecutiveFailures(t *testing.T) {
	primary := &fakeProvider{err: errors.New("tika down")}
	b := NewBreakerProvider("ocr", primary, nil, 1, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := b.ExtractText(context.Background(), "text/plain", []byte("x")); err == nil {
			t.Fatalf("expected error on attempt %d", i)
		}
	}
	if !errors.Is(lastErr(t, b), domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected open breaker to surface ErrUpstreamUnavailable")
	}
}

func lastErr(t *testing.T, b *BreakerProvider) error {
	t.Helper()
	_, err := b.ExtractText(context.Background(), "text/plain", []byte("x"))
	return err
}
