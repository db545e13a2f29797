package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

type fakeCatalog struct {
	exact   map[string]domain.Product
	pattern map[string][]domain.Product
	fuzzy   map[string][]domain.ScoredProduct
}

func (f *fakeCatalog) FindExact(ctx domain.Context, lowerName string) (domain.Product, bool, error) {
	p, ok := f.exact[lowerName]
	return p, ok, nil
}

func (f *fakeCatalog) FindByPattern(ctx domain.Context, lowerName string) ([]domain.Product, error) {
	return f.pattern[lowerName], nil
}

func (f *fakeCatalog) FindByTrigram(ctx domain.Context, lowerName string, limit int) ([]domain.ScoredProduct, error) {
	return f.fuzzy[lowerName], nil
}

func (f *fakeCatalog) Get(ctx domain.Context, productID string) (domain.Product, error) {
	return domain.Product{ID: productID}, nil
}

func TestMatchProduct_ExactMatchHasConfidence1(t *testing.T) {
	cat := &fakeCatalog{exact: map[string]domain.Product{"basmati rice": {ID: "p1", CanonicalName: "Basmati Rice"}}}
	n, err := MatchProduct(context.Background(), cat, domain.ExtractedItem{RawName: "Basmati Rice"}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchExact, n.MatchKind)
	assert.Equal(t, "p1", n.ProductID)
	assert.False(t, n.NeedsReview)
}

func TestMatchProduct_NoMatchNeedsReview(t *testing.T) {
	cat := &fakeCatalog{}
	n, err := MatchProduct(context.Background(), cat, domain.ExtractedItem{RawName: "Unobtainium"}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchNone, n.MatchKind)
	assert.True(t, n.NeedsReview)
	assert.Empty(t, n.ProductID)
}

func TestMatchProduct_FuzzyBelowThresholdNeedsReview(t *testing.T) {
	cat := &fakeCatalog{fuzzy: map[string][]domain.ScoredProduct{
		"riceo": {{Product: domain.Product{ID: "p2", CanonicalName: "Rice"}, Similarity: 0.5}},
	}}
	n, err := MatchProduct(context.Background(), cat, domain.ExtractedItem{RawName: "Riceo"}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchFuzzy, n.MatchKind)
	assert.True(t, n.NeedsReview)
}
