// Package vendormetrics implements component D: applying order-lifecycle
// events to a vendor's accumulated reputation and exposing the result for
// the selector and observability layers.
package vendormetrics

import (
	"fmt"

	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// Service validates and applies VendorMetricsEvents against a
// domain.VendorMetricsRepository.
type Service struct {
	Repo domain.VendorMetricsRepository
}

// NewService constructs a Service bound to the given repository.
func NewService(repo domain.VendorMetricsRepository) *Service {
	return &Service{Repo: repo}
}

// ReportEvent applies event idempotently (keyed on EventID) and records the
// resulting reliability score and event-kind counters.
func (s *Service) ReportEvent(ctx domain.Context, event domain.VendorMetricsEvent) (domain.VendorMetrics, error) {
	if event.EventID == "" || event.VendorID == "" {
		return domain.VendorMetrics{}, fmt.Errorf("op=vendormetrics.report_event: %w", domain.ErrInvalidArgument)
	}
	switch event.Kind {
	case domain.EventAssigned, domain.EventResponded, domain.EventDelivered, domain.EventCancelled:
	default:
		return domain.VendorMetrics{}, fmt.Errorf("op=vendormetrics.report_event: unknown event kind %q: %w", event.Kind, domain.ErrInvalidArgument)
	}

	m, err := s.Repo.Apply(ctx, event)
	if err != nil {
		return domain.VendorMetrics{}, fmt.Errorf("op=vendormetrics.report_event: %w", err)
	}

	observability.RecordVendorMetricsEvent(string(event.Kind))
	observability.RecordVendorReliability(event.VendorID, m.ReliabilityScore)
	return m, nil
}
