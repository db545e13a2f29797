// Package domain defines core entities, ports, and domain-specific errors
// for the wholesale order-processing backbone.
package domain

import (
	"context"
	"errors"
	"time"
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// Error taxonomy (sentinels). Handlers wrap these with %w so callers can
// distinguish transient from terminal outcomes via errors.Is.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrRateLimited          = errors.New("rate limited")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrUpstreamTimeout      = errors.New("upstream timeout")
	ErrSchemaInvalid        = errors.New("schema invalid")
	ErrInternal             = errors.New("internal error")
	ErrBlobNotFound         = errors.New("blob not found")
	ErrNoEligibleVendors    = errors.New("no eligible vendors")
)

// ArtifactStatus is the lifecycle state of an UploadedArtifact.
type ArtifactStatus string

// Artifact status values. Advance monotonically except for the two
// non-terminal "parking" states PendingReview and Failed.
const (
	StatusReceived      ArtifactStatus = "RECEIVED"
	StatusOCRDone       ArtifactStatus = "OCR_DONE"
	StatusExtracted     ArtifactStatus = "EXTRACTED"
	StatusNormalized    ArtifactStatus = "NORMALIZED"
	StatusBroadcast     ArtifactStatus = "BROADCAST"
	StatusCompleted     ArtifactStatus = "COMPLETED"
	StatusPendingReview ArtifactStatus = "PENDING_REVIEW"
	StatusFailed        ArtifactStatus = "FAILED"
)

// Stage names, used as processing_log stage labels. All stages run on the
// single ingestion queue.
const (
	StageOCR        = "OCR"
	StageExtract    = "EXTRACT"
	StageNormalize  = "NORMALIZE"
	StageBroadcast  = "BROADCAST"
	StageFinalize   = "FINALIZE"
)

// MatchKind records which normalization strategy produced a NormalizedItem.
type MatchKind string

const (
	MatchExact   MatchKind = "EXACT"
	MatchPattern MatchKind = "PATTERN"
	MatchFuzzy   MatchKind = "FUZZY"
	MatchNone    MatchKind = "NONE"
)

// ExtractedItem is one line item as returned by the EXTRACT stage, after cleaning.
type ExtractedItem struct {
	RawName    string  `validate:"required"`
	Quantity   float64 `validate:"gt=0"`
	Unit       string  // canonical unit token, or "" if unknown
	Confidence float64 `validate:"gte=0,lte=1"`
}

// NormalizedItem is an ExtractedItem after catalog matching.
type NormalizedItem struct {
	Extracted       ExtractedItem
	ProductID       string // empty when unmatched
	MatchKind       MatchKind
	MatchConfidence float64
	NeedsReview     bool
}

// UploadedArtifact is the durable record of one ingestion attempt.
type UploadedArtifact struct {
	ID              string
	RetailerID      string
	BlobRef         string
	SourceMessageID string // empty if not webhook-sourced
	Status          ArtifactStatus
	RawText         string
	ExtractedItems  []ExtractedItem
	NormalizedItems []NormalizedItem
	LastError       string
	AttemptCounts   map[string]int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Product is a read-only catalog entity.
type Product struct {
	ID            string
	CanonicalName string
	Aliases       []string
	Unit          string
	Category      string
}

// WorkingHours bounds the local hours during which a vendor accepts RFQs.
// Zero value (Start == End) means "no restriction".
type WorkingHours struct {
	Start time.Duration // offset from local midnight
	End   time.Duration
}

// Vendor is a read-only wholesaler entity.
type Vendor struct {
	ID               string
	Active           bool
	WorkingHours     WorkingHours
	ServiceRadiusKm  float64
	Lat, Lon         float64
}

// VendorProduct is the read-only per-vendor catalog listing.
type VendorProduct struct {
	VendorID        string
	ProductID       string
	Price           float64
	Stock           float64
	Available       bool
	LastRestockedAt time.Time
}

// VendorMetrics is the accumulated, cached reputation of one vendor.
type VendorMetrics struct {
	VendorID                string
	AssignedN               int64
	RespondedN              int64
	AcceptedN               int64
	DeliveredN              int64
	DeliveredOKN            int64
	CancelledByVendorN      int64
	ResponseTimeSumSeconds  float64
	ReliabilityScore        float64 // [0,100], recomputed on every Apply
	LastUpdated             time.Time
}

// AcceptanceRate returns accepted_n / max(assigned_n, 1).
func (m VendorMetrics) AcceptanceRate() float64 {
	return float64(m.AcceptedN) / float64(max64(m.AssignedN, 1))
}

// DeliverySuccessRate returns delivered_ok_n / max(delivered_n, 1).
func (m VendorMetrics) DeliverySuccessRate() float64 {
	return float64(m.DeliveredOKN) / float64(max64(m.DeliveredN, 1))
}

// CancellationRate returns cancelled_by_vendor_n / max(assigned_n, 1).
func (m VendorMetrics) CancellationRate() float64 {
	return float64(m.CancelledByVendorN) / float64(max64(m.AssignedN, 1))
}

// AvgResponseTimeSeconds returns response_time_sum_seconds / max(responded_n, 1).
func (m VendorMetrics) AvgResponseTimeSeconds() float64 {
	return m.ResponseTimeSumSeconds / float64(max64(m.RespondedN, 1))
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// BroadcastStatus is the lifecycle of one RFQBroadcast row.
type BroadcastStatus string

const (
	BroadcastSent      BroadcastStatus = "SENT"
	BroadcastResponded BroadcastStatus = "RESPONDED"
	BroadcastAccepted  BroadcastStatus = "ACCEPTED"
	BroadcastRejected  BroadcastStatus = "REJECTED"
	BroadcastExpired   BroadcastStatus = "EXPIRED"
)

// RFQBroadcast is an append-only record of one per-vendor RFQ decision.
type RFQBroadcast struct {
	ID                 string
	UploadedArtifactID string
	RetailerID         string
	ProductID          string
	VendorID           string
	RequestedQty       float64
	Unit               string
	Status             BroadcastStatus
	VendorRank         int
	ScoreSnapshot      float64
	WeightsSnapshot    string // JSON-encoded weights in force at decision time
	CreatedAt          time.Time
	RespondedAt        *time.Time
}

// JobState is the lifecycle state of a queued Job.
type JobState string

const (
	JobWaiting   JobState = "WAITING"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
	JobDLQ       JobState = "DLQ"
)

// Job is one unit of work tracked by the queue substrate (component A).
type Job struct {
	ID             string
	QueueName      string
	Payload        []byte
	IdempotencyKey string // empty means no dedupe key
	State          JobState
	Attempt        int
	MaxAttempts    int
	Priority       int
	NextRunAt      time.Time
	LockedBy       string
	LockExpiresAt  time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProcessingLogEntry is one append-only audit line for an artifact.
type ProcessingLogEntry struct {
	ID         string // ULID, monotonic within an artifact
	ArtifactID string
	Stage      string
	Level      string // "info" | "warn" | "error"
	Message    string
	Details    string
	At         time.Time
}

// WebhookDedupeEntry prevents duplicate ingestion from retried webhooks.
type WebhookDedupeEntry struct {
	Source     string
	ExternalID string
	ArtifactID string
	CreatedAt  time.Time
}

// OutboxRow is one pending (or dispatched) external side effect, written in
// the same transaction as the state change that produced it.
type OutboxRow struct {
	ID          string
	ArtifactID  string
	Target      string // dispatch target name, e.g. "vendor-notify"
	Payload     []byte
	Dispatched  bool
	CreatedAt   time.Time
	DispatchedAt *time.Time
}

// VendorMetricsEventKind enumerates the order-lifecycle events component D consumes.
type VendorMetricsEventKind string

const (
	EventAssigned  VendorMetricsEventKind = "assigned"
	EventResponded VendorMetricsEventKind = "responded"
	EventDelivered VendorMetricsEventKind = "delivered"
	EventCancelled VendorMetricsEventKind = "cancelled"
)

// VendorMetricsEvent is one order-lifecycle command applied to component D.
// EventID is the idempotency key: applying the same EventID twice is a no-op.
type VendorMetricsEvent struct {
	EventID    string
	Kind       VendorMetricsEventKind
	VendorID   string
	OrderID    string
	At         time.Time
	Response   string // "ACCEPT" | "REJECT", only for EventResponded
	Success    bool   // only for EventDelivered
	ByVendor   bool   // only for EventCancelled
}
