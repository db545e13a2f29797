package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// CatalogRepo is the read-only product catalog used by the NORMALIZE stage,
// backed by a products table with a pg_trgm GIN index on lower(canonical_name)
// for fuzzy lookups.
type CatalogRepo struct{ Pool PgxPool }

// NewCatalogRepo constructs a CatalogRepo with the given pool.
func NewCatalogRepo(p PgxPool) *CatalogRepo { return &CatalogRepo{Pool: p} }

func (r *CatalogRepo) FindExact(ctx domain.Context, lowerName string) (domain.Product, bool, error) {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.FindExact")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "products"),
	)

	q := `SELECT id, canonical_name, aliases, unit, category FROM products WHERE lower(canonical_name)=$1 LIMIT 1`
	row := r.Pool.QueryRow(ctx, q, lowerName)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, err
	}
	return p, true, nil
}

func (r *CatalogRepo) FindByPattern(ctx domain.Context, lowerName string) ([]domain.Product, error) {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.FindByPattern")
	defer span.End()

	q := `SELECT id, canonical_name, aliases, unit, category FROM products WHERE $1 = ANY(lower_aliases) LIMIT 10`
	rows, err := r.Pool.Query(ctx, q, lowerName)
	if err != nil {
		return nil, fmt.Errorf("op=catalog.find_by_pattern: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (r *CatalogRepo) FindByTrigram(ctx domain.Context, lowerName string, limit int) ([]domain.ScoredProduct, error) {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.FindByTrigram")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "SELECT"))

	q := `SELECT id, canonical_name, aliases, unit, category, similarity(lower(canonical_name), $1) AS sim
	      FROM products
	      WHERE lower(canonical_name) % $1
	      ORDER BY sim DESC
	      LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, lowerName, limit)
	if err != nil {
		return nil, fmt.Errorf("op=catalog.find_by_trigram: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredProduct
	for rows.Next() {
		var p domain.Product
		var sim float64
		if err := rows.Scan(&p.ID, &p.CanonicalName, &p.Aliases, &p.Unit, &p.Category, &sim); err != nil {
			return nil, fmt.Errorf("op=catalog.find_by_trigram.scan: %w", err)
		}
		out = append(out, domain.ScoredProduct{Product: p, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=catalog.find_by_trigram.rows: %w", err)
	}
	return out, nil
}

func (r *CatalogRepo) Get(ctx domain.Context, productID string) (domain.Product, error) {
	tracer := otel.Tracer("repo.catalog")
	ctx, span := tracer.Start(ctx, "catalog.Get")
	defer span.End()

	q := `SELECT id, canonical_name, aliases, unit, category FROM products WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, productID)
	return scanProduct(row)
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.CanonicalName, &p.Aliases, &p.Unit, &p.Category); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("op=catalog.scan: %w", domain.ErrNotFound)
		}
		return domain.Product{}, fmt.Errorf("op=catalog.scan: %w", err)
	}
	return p, nil
}

func scanProducts(rows pgx.Rows) ([]domain.Product, error) {
	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.CanonicalName, &p.Aliases, &p.Unit, &p.Category); err != nil {
			return nil, fmt.Errorf("op=catalog.scan_many: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=catalog.scan_many.rows: %w", err)
	}
	return out, nil
}
