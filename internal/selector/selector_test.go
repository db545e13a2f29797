package selector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesalehub/orderbackbone/internal/config"
	"github.com/wholesalehub/orderbackbone/internal/domain"
)

type fakeVendorRepo struct {
	candidates []domain.VendorCandidate
}

func (f *fakeVendorRepo) EligibleForProduct(ctx domain.Context, productID string, quantity float64, at time.Time) ([]domain.VendorCandidate, error) {
	return f.candidates, nil
}

func defaultWeights() config.SelectorWeights {
	return config.SelectorWeights{Reliability: 0.40, Price: 0.30, Fulfillment: 0.20, Response: 0.10}
}

func TestSelect_RanksByCompositeScoreDescending(t *testing.T) {
	repo := &fakeVendorRepo{candidates: []domain.VendorCandidate{
		{
			Vendor:  domain.Vendor{ID: "cheap-low-reliability", Active: true},
			Listing: domain.VendorProduct{VendorID: "cheap-low-reliability", Price: 10, Available: true, Stock: 100},
			Metrics: domain.VendorMetrics{VendorID: "cheap-low-reliability", ReliabilityScore: 65, AssignedN: 50, DeliveredN: 10, DeliveredOKN: 5},
		},
		{
			Vendor:  domain.Vendor{ID: "expensive-high-reliability", Active: true},
			Listing: domain.VendorProduct{VendorID: "expensive-high-reliability", Price: 20, Available: true, Stock: 100},
			Metrics: domain.VendorMetrics{VendorID: "expensive-high-reliability", ReliabilityScore: 95, AssignedN: 50, DeliveredN: 10, DeliveredOKN: 10},
		},
	}}

	sel := New(repo, defaultWeights(), 60, 10, 5)
	d, err := sel.Select(context.Background(), "prod-1", 5, time.Now())
	require.NoError(t, err)
	require.Len(t, d.TopK, 2)
	// cheap: 0.4*0.65 + 0.3*1 + 0.2*0.5 + 0.1*0.5 = 0.71
	// expensive: 0.4*0.95 + 0.3*0 + 0.2*1 + 0.1*0.5 = 0.63
	assert.Equal(t, "cheap-low-reliability", d.TopK[0].Candidate.Vendor.ID)
}

func TestSelect_NewVendorGracePeriodBypassesFloor(t *testing.T) {
	repo := &fakeVendorRepo{candidates: []domain.VendorCandidate{
		{
			Vendor:  domain.Vendor{ID: "brand-new", Active: true},
			Listing: domain.VendorProduct{VendorID: "brand-new", Price: 10, Available: true, Stock: 100},
			Metrics: domain.VendorMetrics{VendorID: "brand-new", ReliabilityScore: 10, AssignedN: 2},
		},
	}}
	sel := New(repo, defaultWeights(), 60, 10, 5)
	d, err := sel.Select(context.Background(), "prod-1", 5, time.Now())
	require.NoError(t, err)
	assert.Len(t, d.TopK, 1)
}

func TestSelect_NoEligibleVendorsReturnsSentinel(t *testing.T) {
	repo := &fakeVendorRepo{candidates: []domain.VendorCandidate{
		{
			Vendor:  domain.Vendor{ID: "below-floor", Active: true},
			Listing: domain.VendorProduct{VendorID: "below-floor", Price: 10, Available: true, Stock: 100},
			Metrics: domain.VendorMetrics{VendorID: "below-floor", ReliabilityScore: 10, AssignedN: 50},
		},
	}}
	sel := New(repo, defaultWeights(), 60, 10, 5)
	_, err := sel.Select(context.Background(), "prod-1", 5, time.Now())
	assert.ErrorIs(t, err, domain.ErrNoEligibleVendors)
}

func TestSplit_GroupsItemsBySharedTopVendor(t *testing.T) {
	decisions := []Decision{
		{ProductID: "a", TopK: []Scored{{Candidate: domain.VendorCandidate{Vendor: domain.Vendor{ID: "v1"}}}}},
		{ProductID: "b", TopK: []Scored{{Candidate: domain.VendorCandidate{Vendor: domain.Vendor{ID: "v1"}}}}},
		{ProductID: "c", TopK: []Scored{{Candidate: domain.VendorCandidate{Vendor: domain.Vendor{ID: "v2"}}}}},
	}
	groups := Split(decisions)
	require.Len(t, groups, 2)
	assert.Equal(t, "v1", groups[0].VendorID)
	assert.ElementsMatch(t, []string{"a", "b"}, groups[0].Items)
	assert.Equal(t, "v2", groups[1].VendorID)
}
