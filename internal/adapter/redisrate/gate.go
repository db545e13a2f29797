package redisrate

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// Gate is the per-provider rate-limit front door: it tries the shared Redis
// bucket first and falls back to an in-process golang.org/x/time/rate
// limiter whenever Redis is unreachable, so a Redis outage degrades to
// per-process throttling instead of removing the limit entirely.
type Gate struct {
	redisLimiter *RedisLuaLimiter
	fallback     *rate.Limiter
	key          string
}

// NewGate builds a Gate for one logical key. redisLimiter may be nil.
func NewGate(redisLimiter *RedisLuaLimiter, key string, perSecond float64, burst int) *Gate {
	if burst <= 0 {
		burst = 1
	}
	return &Gate{redisLimiter: redisLimiter, fallback: rate.NewLimiter(rate.Limit(perSecond), burst), key: key}
}

// Wait blocks until one token is available, preferring the Redis bucket and
// degrading to the in-process limiter on Redis errors.
func (g *Gate) Wait(ctx domain.Context) error {
	if g.redisLimiter != nil {
		allowed, retryAfter, err := g.redisLimiter.Allow(ctx, g.key, 1)
		if err == nil {
			if allowed {
				return nil
			}
			timer := time.NewTimer(retryAfter)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		slog.Warn("redis rate limiter unavailable, falling back to in-process limiter", slog.String("key", g.key), slog.Any("error", err))
	}
	return g.fallback.Wait(ctx)
}

// OCRProvider wraps a domain.OCRProvider with rate limiting.
type OCRProvider struct {
	Next domain.OCRProvider
	Gate *Gate
}

func (p OCRProvider) ExtractText(ctx domain.Context, mimeType string, data []byte) (domain.OCRResult, error) {
	if err := p.Gate.Wait(ctx); err != nil {
		return domain.OCRResult{}, err
	}
	return p.Next.ExtractText(ctx, mimeType, data)
}

// ItemExtractor wraps a domain.ItemExtractor with rate limiting.
type ItemExtractor struct {
	Next domain.ItemExtractor
	Gate *Gate
}

func (e ItemExtractor) ExtractItems(ctx domain.Context, text string) ([]domain.RawExtractedItem, error) {
	if err := e.Gate.Wait(ctx); err != nil {
		return nil, err
	}
	return e.Next.ExtractItems(ctx, text)
}
