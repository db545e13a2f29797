package vendormetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

type fakeRepo struct {
	applied map[string]domain.VendorMetrics
	seen    map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{applied: map[string]domain.VendorMetrics{}, seen: map[string]bool{}}
}

func (f *fakeRepo) Get(ctx domain.Context, vendorID string) (domain.VendorMetrics, error) {
	return f.applied[vendorID], nil
}

func (f *fakeRepo) WasApplied(ctx domain.Context, eventID string) (bool, error) {
	return f.seen[eventID], nil
}

func (f *fakeRepo) Apply(ctx domain.Context, event domain.VendorMetricsEvent) (domain.VendorMetrics, error) {
	if f.seen[event.EventID] {
		return f.applied[event.VendorID], nil
	}
	f.seen[event.EventID] = true
	m := f.applied[event.VendorID]
	m.VendorID = event.VendorID
	switch event.Kind {
	case domain.EventAssigned:
		m.AssignedN++
	case domain.EventResponded:
		m.RespondedN++
		if event.Response == "ACCEPT" {
			m.AcceptedN++
		}
	case domain.EventDelivered:
		m.DeliveredN++
		if event.Success {
			m.DeliveredOKN++
		}
	case domain.EventCancelled:
		if event.ByVendor {
			m.CancelledByVendorN++
		}
	}
	m.ReliabilityScore = 50
	f.applied[event.VendorID] = m
	return m, nil
}

func TestReportEvent_AppliesAndIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	s := NewService(repo)

	event := domain.VendorMetricsEvent{EventID: "e1", Kind: domain.EventAssigned, VendorID: "v1", At: time.Now()}
	m, err := s.ReportEvent(context.Background(), event)
	require.NoError(t, err)
	assert.EqualValues(t, 1, m.AssignedN)

	m2, err := s.ReportEvent(context.Background(), event)
	require.NoError(t, err)
	assert.EqualValues(t, 1, m2.AssignedN)
}

func TestReportEvent_RejectsUnknownKind(t *testing.T) {
	repo := newFakeRepo()
	s := NewService(repo)
	_, err := s.ReportEvent(context.Background(), domain.VendorMetricsEvent{EventID: "e1", Kind: "bogus", VendorID: "v1"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestReportEvent_RejectsMissingIDs(t *testing.T) {
	repo := newFakeRepo()
	s := NewService(repo)
	_, err := s.ReportEvent(context.Background(), domain.VendorMetricsEvent{Kind: domain.EventAssigned, VendorID: "v1"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
