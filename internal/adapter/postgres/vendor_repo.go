package postgres

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// VendorRepo is the read-only vendor/vendor-product catalog joined against
// the cached vendor_metrics table for selector consumption.
type VendorRepo struct{ Pool PgxPool }

// NewVendorRepo constructs a VendorRepo with the given pool.
func NewVendorRepo(p PgxPool) *VendorRepo { return &VendorRepo{Pool: p} }

// EligibleForProduct returns active vendors carrying productID with enough
// stock, currently within working hours, joined with their cached metrics.
// Working-hours filtering happens here (service radius is not applied);
// reliability-floor and scoring happen in the selector.
func (r *VendorRepo) EligibleForProduct(ctx domain.Context, productID string, quantity float64, at time.Time) ([]domain.VendorCandidate, error) {
	tracer := otel.Tracer("repo.vendor")
	ctx, span := tracer.Start(ctx, "vendor.EligibleForProduct")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "vendor_products"),
	)

	q := `SELECT
	        v.id, v.active, v.working_hours_start_sec, v.working_hours_end_sec, v.service_radius_km, v.lat, v.lon,
	        vp.vendor_id, vp.product_id, vp.price, vp.stock, vp.available, vp.last_restocked_at,
	        COALESCE(vm.assigned_n,0), COALESCE(vm.responded_n,0), COALESCE(vm.accepted_n,0),
	        COALESCE(vm.delivered_n,0), COALESCE(vm.delivered_ok_n,0), COALESCE(vm.cancelled_by_vendor_n,0),
	        COALESCE(vm.response_time_sum_seconds,0), COALESCE(vm.reliability_score,0), COALESCE(vm.last_updated, now())
	      FROM vendor_products vp
	      JOIN vendors v ON v.id = vp.vendor_id
	      LEFT JOIN vendor_metrics vm ON vm.vendor_id = v.id
	      WHERE vp.product_id=$1 AND vp.available=true AND vp.stock >= $2 AND v.active=true`
	rows, err := r.Pool.Query(ctx, q, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("op=vendor.eligible_for_product: %w", err)
	}
	defer rows.Close()

	var out []domain.VendorCandidate
	for rows.Next() {
		var c domain.VendorCandidate
		var startSec, endSec int64
		if err := rows.Scan(
			&c.Vendor.ID, &c.Vendor.Active, &startSec, &endSec, &c.Vendor.ServiceRadiusKm, &c.Vendor.Lat, &c.Vendor.Lon,
			&c.Listing.VendorID, &c.Listing.ProductID, &c.Listing.Price, &c.Listing.Stock, &c.Listing.Available, &c.Listing.LastRestockedAt,
			&c.Metrics.AssignedN, &c.Metrics.RespondedN, &c.Metrics.AcceptedN,
			&c.Metrics.DeliveredN, &c.Metrics.DeliveredOKN, &c.Metrics.CancelledByVendorN,
			&c.Metrics.ResponseTimeSumSeconds, &c.Metrics.ReliabilityScore, &c.Metrics.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("op=vendor.eligible_for_product.scan: %w", err)
		}
		c.Vendor.WorkingHours = domain.WorkingHours{Start: time.Duration(startSec) * time.Second, End: time.Duration(endSec) * time.Second}
		c.Metrics.VendorID = c.Vendor.ID
		if withinWorkingHours(c.Vendor.WorkingHours, at) {
			out = append(out, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=vendor.eligible_for_product.rows: %w", err)
	}
	return out, nil
}

func withinWorkingHours(wh domain.WorkingHours, at time.Time) bool {
	if wh.Start == wh.End {
		return true
	}
	midnight := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	offset := at.Sub(midnight)
	return offset >= wh.Start && offset <= wh.End
}
