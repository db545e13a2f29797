package pipeline

import (
	"fmt"
	"strings"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

const (
	patternBaseConfidence = 0.8
	patternMaxBonus       = 0.2
)

// MatchProduct attempts EXACT, then PATTERN, then FUZZY strategies in order
// against the catalog, stopping at the first candidate. threshold gates
// whether the resulting NormalizedItem needs human review.
func MatchProduct(ctx domain.Context, catalog domain.CatalogRepository, item domain.ExtractedItem, threshold float64) (domain.NormalizedItem, error) {
	lower := LowerKey(item.RawName)

	if p, ok, err := catalog.FindExact(ctx, lower); err != nil {
		return domain.NormalizedItem{}, fmt.Errorf("op=pipeline.normalize.exact: %w", err)
	} else if ok {
		return finalize(item, p.ID, domain.MatchExact, 1.0, threshold), nil
	}

	if candidates, err := catalog.FindByPattern(ctx, lower); err != nil {
		return domain.NormalizedItem{}, fmt.Errorf("op=pipeline.normalize.pattern: %w", err)
	} else if len(candidates) > 0 {
		best := candidates[0]
		bestConf := patternConfidence(lower, best)
		for _, c := range candidates[1:] {
			if conf := patternConfidence(lower, c); conf > bestConf {
				best, bestConf = c, conf
			}
		}
		return finalize(item, best.ID, domain.MatchPattern, bestConf, threshold), nil
	}

	scored, err := catalog.FindByTrigram(ctx, lower, 5)
	if err != nil {
		return domain.NormalizedItem{}, fmt.Errorf("op=pipeline.normalize.fuzzy: %w", err)
	}
	if len(scored) > 0 {
		best := scored[0]
		for _, c := range scored[1:] {
			if c.Similarity > best.Similarity {
				best = c
			}
		}
		return finalize(item, best.Product.ID, domain.MatchFuzzy, best.Similarity, threshold), nil
	}

	return finalize(item, "", domain.MatchNone, 0, threshold), nil
}

func patternConfidence(lower string, p domain.Product) float64 {
	nameLen := len(p.CanonicalName)
	matchLen := substringMatchLen(lower, strings.ToLower(p.CanonicalName))
	for _, alias := range p.Aliases {
		if l := substringMatchLen(lower, strings.ToLower(alias)); l > matchLen {
			matchLen = l
			nameLen = len(alias)
		}
	}
	if nameLen == 0 {
		return patternBaseConfidence
	}
	bonus := patternMaxBonus * (float64(matchLen) / float64(nameLen))
	conf := patternBaseConfidence + bonus
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func substringMatchLen(query, candidate string) int {
	if strings.Contains(candidate, query) || strings.Contains(query, candidate) {
		if len(query) < len(candidate) {
			return len(query)
		}
		return len(candidate)
	}
	return 0
}

func finalize(item domain.ExtractedItem, productID string, kind domain.MatchKind, confidence, threshold float64) domain.NormalizedItem {
	n := domain.NormalizedItem{
		Extracted:       item,
		MatchKind:       kind,
		MatchConfidence: confidence,
	}
	if confidence >= threshold && productID != "" {
		n.ProductID = productID
		n.NeedsReview = false
	} else {
		n.ProductID = ""
		n.NeedsReview = true
	}
	return n
}
