package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wholesalehub/orderbackbone/internal/config"
	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// VendorMetricsRepo persists component D's accumulated reputation counters
// and recomputes ReliabilityScore on every Apply under a row lock, grounded
// on the same tx/committed-flag transaction pattern used by the queue repo.
type VendorMetricsRepo struct {
	Pool         PgxPool
	Weights      config.MetricsWeights
	SeedSamples  int
	NeutralPrior float64
}

// NewVendorMetricsRepo constructs a VendorMetricsRepo with the given pool,
// scoring weights, and cold-start blend parameters.
func NewVendorMetricsRepo(p PgxPool, weights config.MetricsWeights, seedSamples int, neutralPrior float64) *VendorMetricsRepo {
	return &VendorMetricsRepo{Pool: p, Weights: weights, SeedSamples: seedSamples, NeutralPrior: neutralPrior}
}

func (r *VendorMetricsRepo) Get(ctx domain.Context, vendorID string) (domain.VendorMetrics, error) {
	tracer := otel.Tracer("repo.vendor_metrics")
	ctx, span := tracer.Start(ctx, "vendor_metrics.Get")
	defer span.End()

	q := `SELECT vendor_id, assigned_n, responded_n, accepted_n, delivered_n, delivered_ok_n, cancelled_by_vendor_n, response_time_sum_seconds, reliability_score, last_updated
	      FROM vendor_metrics WHERE vendor_id=$1`
	row := r.Pool.QueryRow(ctx, q, vendorID)
	m, err := scanVendorMetrics(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.VendorMetrics{VendorID: vendorID}, nil
		}
		return domain.VendorMetrics{}, err
	}
	return m, nil
}

func (r *VendorMetricsRepo) WasApplied(ctx domain.Context, eventID string) (bool, error) {
	tracer := otel.Tracer("repo.vendor_metrics")
	ctx, span := tracer.Start(ctx, "vendor_metrics.WasApplied")
	defer span.End()

	q := `SELECT 1 FROM vendor_metrics_events WHERE event_id=$1`
	row := r.Pool.QueryRow(ctx, q, eventID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("op=vendor_metrics.was_applied: %w", err)
	}
	return true, nil
}

// Apply applies one VendorMetricsEvent idempotently: it records the event id
// in vendor_metrics_events (unique), upserts the raw counters, then
// recomputes ReliabilityScore from the weighted blend of component rates.
func (r *VendorMetricsRepo) Apply(ctx domain.Context, event domain.VendorMetricsEvent) (domain.VendorMetrics, error) {
	tracer := otel.Tracer("repo.vendor_metrics")
	ctx, span := tracer.Start(ctx, "vendor_metrics.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "vendor_metrics"),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.VendorMetrics{}, fmt.Errorf("op=vendor_metrics.apply.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	insQ := `INSERT INTO vendor_metrics_events (event_id, vendor_id, kind, at) VALUES ($1,$2,$3,$4) ON CONFLICT (event_id) DO NOTHING`
	tag, err := tx.Exec(ctx, insQ, event.EventID, event.VendorID, event.Kind, event.At)
	if err != nil {
		return domain.VendorMetrics{}, fmt.Errorf("op=vendor_metrics.apply.insert_event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already applied; return the current metrics unchanged.
		row := tx.QueryRow(ctx, `SELECT vendor_id, assigned_n, responded_n, accepted_n, delivered_n, delivered_ok_n, cancelled_by_vendor_n, response_time_sum_seconds, reliability_score, last_updated FROM vendor_metrics WHERE vendor_id=$1 FOR UPDATE`, event.VendorID)
		m, serr := scanVendorMetrics(row)
		if serr != nil && !errors.Is(serr, domain.ErrNotFound) {
			return domain.VendorMetrics{}, serr
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return domain.VendorMetrics{}, fmt.Errorf("op=vendor_metrics.apply.commit_dup: %w", commitErr)
		}
		committed = true
		m.VendorID = event.VendorID
		return m, nil
	}

	upsertQ := `INSERT INTO vendor_metrics (vendor_id, assigned_n, responded_n, accepted_n, delivered_n, delivered_ok_n, cancelled_by_vendor_n, response_time_sum_seconds, reliability_score, last_updated)
	            VALUES ($1,0,0,0,0,0,0,0,0,$2)
	            ON CONFLICT (vendor_id) DO NOTHING`
	if _, err := tx.Exec(ctx, upsertQ, event.VendorID, event.At); err != nil {
		return domain.VendorMetrics{}, fmt.Errorf("op=vendor_metrics.apply.seed_row: %w", err)
	}

	row := tx.QueryRow(ctx, `SELECT vendor_id, assigned_n, responded_n, accepted_n, delivered_n, delivered_ok_n, cancelled_by_vendor_n, response_time_sum_seconds, reliability_score, last_updated FROM vendor_metrics WHERE vendor_id=$1 FOR UPDATE`, event.VendorID)
	m, err := scanVendorMetrics(row)
	if err != nil {
		return domain.VendorMetrics{}, fmt.Errorf("op=vendor_metrics.apply.lock_row: %w", err)
	}

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
	// priceTerm (catalog-wide price percentile) requires a cross-vendor join
	// this per-event update does not have; treat as unknown (0) here, per the
	// "0 if unknown" fallback. The selector computes its own price_score
	// against the live eligible set at decision time, which is the term that
	// actually drives vendor choice.
	observed := r.Weights.Compute(m, 0)
	// Compute returns [0,100] while NeutralPrior is a [0,1] fraction, so the
	// blend runs on the [0,1] scale and is scaled back afterwards.
	m.ReliabilityScore = 100 * config.ColdStartBlend(observed/100, m.AssignedN, r.SeedSamples, r.NeutralPrior)
	m.LastUpdated = event.At

	updQ := `UPDATE vendor_metrics SET assigned_n=$1, responded_n=$2, accepted_n=$3, delivered_n=$4, delivered_ok_n=$5, cancelled_by_vendor_n=$6, reliability_score=$7, last_updated=$8 WHERE vendor_id=$9`
	if _, err := tx.Exec(ctx, updQ, m.AssignedN, m.RespondedN, m.AcceptedN, m.DeliveredN, m.DeliveredOKN, m.CancelledByVendorN, m.ReliabilityScore, m.LastUpdated, event.VendorID); err != nil {
		return domain.VendorMetrics{}, fmt.Errorf("op=vendor_metrics.apply.update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.VendorMetrics{}, fmt.Errorf("op=vendor_metrics.apply.commit: %w", err)
	}
	committed = true
	return m, nil
}

func scanVendorMetrics(row pgx.Row) (domain.VendorMetrics, error) {
	var m domain.VendorMetrics
	var lastUpdated time.Time
	if err := row.Scan(&m.VendorID, &m.AssignedN, &m.RespondedN, &m.AcceptedN, &m.DeliveredN, &m.DeliveredOKN, &m.CancelledByVendorN, &m.ResponseTimeSumSeconds, &m.ReliabilityScore, &lastUpdated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VendorMetrics{}, fmt.Errorf("op=vendor_metrics.scan: %w", domain.ErrNotFound)
		}
		return domain.VendorMetrics{}, fmt.Errorf("op=vendor_metrics.scan: %w", err)
	}
	m.LastUpdated = lastUpdated
	return m, nil
}
