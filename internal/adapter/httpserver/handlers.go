package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wholesalehub/orderbackbone/internal/config"
	"github.com/wholesalehub/orderbackbone/internal/domain"
	"github.com/wholesalehub/orderbackbone/internal/usecase"
	"github.com/wholesalehub/orderbackbone/internal/vendormetrics"
)

var validate = validator.New()

// Server aggregates the dependencies the HTTP handlers call into.
type Server struct {
	Cfg      config.Config
	Ingest   usecase.IngestService
	Metrics  *vendormetrics.Service
	DBCheck  func(ctx context.Context) error
}

// NewServer constructs a Server with all handler dependencies wired.
func NewServer(cfg config.Config, ingest usecase.IngestService, metrics *vendormetrics.Service, dbCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Ingest: ingest, Metrics: metrics, DBCheck: dbCheck}
}

type ingestRequest struct {
	RetailerID      string `json:"retailer_id" validate:"required"`
	BlobRef         string `json:"blob_ref" validate:"required"`
	SourceMessageID string `json:"source_message_id"`
}

// IngestHandler implements ingest(retailer_id, blob_ref, source_message_id?) -> artifact_id (SPEC_FULL.md §6).
func (s *Server) IngestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument))
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err))
			return
		}

		artifactID, err := s.Ingest.Ingest(r.Context(), req.RetailerID, req.BlobRef, req.SourceMessageID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"artifact_id": artifactID})
	}
}

type eventRequest struct {
	EventID  string `json:"event_id" validate:"required"`
	Kind     string `json:"kind" validate:"required,oneof=assigned responded delivered cancelled"`
	VendorID string `json:"vendor_id" validate:"required"`
	OrderID  string `json:"order_id"`
	Response string `json:"response"`
	Success  bool   `json:"success"`
	ByVendor bool   `json:"by_vendor"`
}

// ReportEventHandler implements report_event(event) for the four
// VendorMetrics events (SPEC_FULL.md §6).
func (s *Server) ReportEventHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument))
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err))
			return
		}

		event := domain.VendorMetricsEvent{
			EventID:  req.EventID,
			Kind:     domain.VendorMetricsEventKind(req.Kind),
			VendorID: req.VendorID,
			OrderID:  req.OrderID,
			At:       time.Now().UTC(),
			Response: req.Response,
			Success:  req.Success,
			ByVendor: req.ByVendor,
		}
		metrics, err := s.Metrics.ReportEvent(r.Context(), event)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"vendor_id":         metrics.VendorID,
			"reliability_score": metrics.ReliabilityScore,
		})
	}
}

// HealthzHandler reports process liveness unconditionally.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes the database before reporting readiness.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"db": false, "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"db": true})
	}
}
