// Package selector implements component C: ranking eligible vendors for a
// product by a weighted composite score, and grouping per-product choices
// into per-vendor sub-orders.
package selector

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/config"
	"github.com/wholesalehub/orderbackbone/internal/domain"
)

const responseDecayTau = 1800.0 // seconds, 30 min

// Scored pairs a vendor candidate with its composite score and the score
// components that produced it, for decision logging.
type Scored struct {
	Candidate       domain.VendorCandidate
	Score           float64
	Reliability     float64
	PriceScore      float64
	Fulfillment     float64
	ResponseScore   float64
}

// Decision is one selector call's full audit trail.
type Decision struct {
	ProductID       string
	Quantity        float64
	Weights         config.SelectorWeights
	Considered      []Scored
	TopK            []Scored
}

// Selector ranks eligible vendors for one product using a weighted
// composite score.
type Selector struct {
	Vendors        domain.VendorRepository
	Weights        config.SelectorWeights
	MinReliability float64
	SeedSamples    int
	TopK           int
}

// New constructs a Selector.
func New(vendors domain.VendorRepository, weights config.SelectorWeights, minReliability float64, seedSamples, topK int) *Selector {
	if topK <= 0 {
		topK = 5
	}
	return &Selector{Vendors: vendors, Weights: weights, MinReliability: minReliability, SeedSamples: seedSamples, TopK: topK}
}

// Select returns the ranked, eligible, top-K vendors for productID at
// quantity and the full decision trail for audit logging.
func (s *Selector) Select(ctx domain.Context, productID string, quantity float64, at time.Time) (Decision, error) {
	candidates, err := s.Vendors.EligibleForProduct(ctx, productID, quantity, at)
	if err != nil {
		return Decision{}, fmt.Errorf("op=selector.select: %w", err)
	}

	// Reliability floor, with a new-vendor grace period below SeedSamples.
	var eligible []domain.VendorCandidate
	for _, c := range candidates {
		if c.Metrics.AssignedN < int64(s.SeedSamples) || c.Metrics.ReliabilityScore >= s.MinReliability {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return Decision{ProductID: productID, Quantity: quantity, Weights: s.Weights}, fmt.Errorf("op=selector.select: %w", domain.ErrNoEligibleVendors)
	}

	priceMin, priceMax := priceRange(eligible)
	scored := make([]Scored, 0, len(eligible))
	for _, c := range eligible {
		sc := s.score(c, priceMin, priceMax)
		scored = append(scored, sc)
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Reliability != b.Reliability {
			return a.Reliability > b.Reliability
		}
		if a.Candidate.Listing.Price != b.Candidate.Listing.Price {
			return a.Candidate.Listing.Price < b.Candidate.Listing.Price
		}
		return a.Candidate.Vendor.ID < b.Candidate.Vendor.ID
	})

	k := s.TopK
	if k > len(scored) {
		k = len(scored)
	}
	topK := scored[:k]

	scores := make([]float64, len(scored))
	for i, sc := range scored {
		scores[i] = sc.Score
	}
	observability.ObserveSelection(len(eligible), scores)

	return Decision{ProductID: productID, Quantity: quantity, Weights: s.Weights, Considered: scored, TopK: topK}, nil
}

func (s *Selector) score(c domain.VendorCandidate, priceMin, priceMax float64) Scored {
	reliability := c.Metrics.ReliabilityScore / 100
	priceScore := normalizePrice(c.Listing.Price, priceMin, priceMax)
	fulfillment := c.Metrics.DeliverySuccessRate()
	responseScore := 0.5
	if c.Metrics.RespondedN > 0 {
		responseScore = math.Exp(-c.Metrics.AvgResponseTimeSeconds() / responseDecayTau)
	}
	score := s.Weights.Reliability*reliability + s.Weights.Price*priceScore + s.Weights.Fulfillment*fulfillment + s.Weights.Response*responseScore
	return Scored{
		Candidate:     c,
		Score:         score,
		Reliability:   reliability,
		PriceScore:    priceScore,
		Fulfillment:   fulfillment,
		ResponseScore: responseScore,
	}
}

func priceRange(candidates []domain.VendorCandidate) (min, max float64) {
	if len(candidates) == 0 {
		return 0, 0
	}
	min, max = candidates[0].Listing.Price, candidates[0].Listing.Price
	for _, c := range candidates[1:] {
		if c.Listing.Price < min {
			min = c.Listing.Price
		}
		if c.Listing.Price > max {
			max = c.Listing.Price
		}
	}
	return min, max
}

func normalizePrice(price, min, max float64) float64 {
	const epsilon = 1e-9
	spread := max - min
	if spread < epsilon {
		return 1.0
	}
	return 1 - (price-min)/spread
}

// VendorGroup is one vendor's sub-order after splitting a multi-item request.
type VendorGroup struct {
	VendorID string
	Items    []string // product IDs
}

// Split groups per-product top choices into per-vendor sub-orders by
// unioning items that share the same top-ranked vendor. Deterministic given
// the same decisions slice (decisions must already be ordered by productID
// by the caller for a stable group order).
func Split(decisions []Decision) []VendorGroup {
	order := make([]string, 0, len(decisions))
	groups := map[string]*VendorGroup{}
	for _, d := range decisions {
		if len(d.TopK) == 0 {
			continue
		}
		vendorID := d.TopK[0].Candidate.Vendor.ID
		g, ok := groups[vendorID]
		if !ok {
			g = &VendorGroup{VendorID: vendorID}
			groups[vendorID] = g
			order = append(order, vendorID)
		}
		g.Items = append(g.Items, d.ProductID)
	}
	out := make([]VendorGroup, 0, len(order))
	for _, vendorID := range order {
		out = append(out, *groups[vendorID])
	}
	return out
}
