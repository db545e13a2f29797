package domain

import "time"

// ArtifactRepository persists UploadedArtifact state transitions (component E).
type ArtifactRepository interface {
	Create(ctx Context, a UploadedArtifact) (string, error)
	Get(ctx Context, id string) (UploadedArtifact, error)
	// Update performs an optimistic-concurrency write: it fails with
	// ErrConflict if the stored UpdatedAt does not match expectedUpdatedAt.
	Update(ctx Context, a UploadedArtifact, expectedUpdatedAt time.Time) error
	FindBySourceMessageID(ctx Context, source, externalID string) (UploadedArtifact, bool, error)
	RegisterWebhookDedupe(ctx Context, entry WebhookDedupeEntry) error
}

// ProcessingLogRepository appends and lists audit entries for an artifact.
type ProcessingLogRepository interface {
	Append(ctx Context, entry ProcessingLogEntry) error
	ListByArtifact(ctx Context, artifactID string) ([]ProcessingLogEntry, error)
}

// CatalogRepository is the read-only product catalog (normalization source).
type CatalogRepository interface {
	FindExact(ctx Context, lowerName string) (Product, bool, error)
	FindByPattern(ctx Context, lowerName string) ([]Product, error)
	FindByTrigram(ctx Context, lowerName string, limit int) ([]ScoredProduct, error)
	Get(ctx Context, productID string) (Product, error)
}

// ScoredProduct pairs a Product with a fuzzy-match similarity in [0,1].
type ScoredProduct struct {
	Product    Product
	Similarity float64
}

// VendorRepository is the read-only vendor/vendor-product catalog.
type VendorRepository interface {
	EligibleForProduct(ctx Context, productID string, quantity float64, at time.Time) ([]VendorCandidate, error)
}

// VendorCandidate bundles a Vendor with its listing for one product, used by the selector.
type VendorCandidate struct {
	Vendor  Vendor
	Listing VendorProduct
	Metrics VendorMetrics
}

// VendorMetricsRepository persists component D's state.
type VendorMetricsRepository interface {
	Get(ctx Context, vendorID string) (VendorMetrics, error)
	// Apply applies one event idempotently (keyed on EventID) and returns the
	// updated metrics. Implementations lock the vendor row for the duration.
	Apply(ctx Context, event VendorMetricsEvent) (VendorMetrics, error)
	WasApplied(ctx Context, eventID string) (bool, error)
}

// BroadcastRepository persists RFQBroadcast rows (component B/E).
type BroadcastRepository interface {
	Create(ctx Context, b RFQBroadcast) (string, error)
	ExistsActive(ctx Context, artifactID, productID, vendorID string) (bool, error)
	ListByArtifact(ctx Context, artifactID string) ([]RFQBroadcast, error)
}

// OutboxRepository persists and dispatches transactional outbox rows (component E).
type OutboxRepository interface {
	Enqueue(ctx Context, row OutboxRow) error
	ClaimBatch(ctx Context, limit int) ([]OutboxRow, error)
	MarkDispatched(ctx Context, id string) error
}

// JobQueue is the durable job-queue substrate (component A).
type JobQueue interface {
	Enqueue(ctx Context, queueName string, payload []byte, opts EnqueueOptions) (string, error)
	ClaimNext(ctx Context, queueName, workerID string, now time.Time, jobTimeout time.Duration) (Job, bool, error)
	Ack(ctx Context, jobID string) error
	Nack(ctx Context, jobID string, cause error) error
	Reap(ctx Context, now time.Time) (int, error)
	RetryFromDLQ(ctx Context, jobID string) error
}

// EnqueueOptions configures one Enqueue call.
type EnqueueOptions struct {
	IdempotencyKey string
	Delay          time.Duration
	MaxAttempts    int
	Priority       int
}

// BlobStore fetches raw artifact bytes by opaque reference.
type BlobStore interface {
	Get(ctx Context, blobRef string) ([]byte, error)
}

// OCRProvider extracts raw text (and optional per-line confidence) from artifact bytes.
type OCRProvider interface {
	ExtractText(ctx Context, mimeType string, data []byte) (OCRResult, error)
}

// OCRResult is the output of an OCRProvider call.
type OCRResult struct {
	Text               string
	PerLineConfidences []float64
}

// ItemExtractor turns raw text into loosely-typed candidate line items.
type ItemExtractor interface {
	ExtractItems(ctx Context, text string) ([]RawExtractedItem, error)
}

// RawExtractedItem is the provider's loosely-typed output before cleaning.
type RawExtractedItem struct {
	Name       string
	Quantity   any // string, int, or float64; cleaned downstream
	Unit       string
	Confidence float64
}

// Notifier dispatches one outbox payload to an external collaborator.
type Notifier interface {
	Send(ctx Context, target string, payload []byte) error
}

// CreditGate optionally checks and reserves retailer credit before broadcast.
type CreditGate interface {
	CheckAndReserve(ctx Context, retailerID string, amount float64) error
}

// SafeModeGate reports whether new ingestion enqueues are currently suspended.
type SafeModeGate interface {
	Enabled(ctx Context) (bool, error)
}
