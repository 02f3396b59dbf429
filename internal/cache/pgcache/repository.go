package pgcache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreamware/shipquote/internal/quote"
)

// Metadata describes the request a quote set was computed for.
type Metadata struct {
	PickupDate  time.Time
	Fingerprint string
	Origin      string
	Destination string
	WeightKg    float64
	Fragile     bool
}

// MetadataFor extracts the persisted metadata of req.
func MetadataFor(req quote.Request) Metadata {
	return Metadata{
		Fingerprint: req.Fingerprint(),
		Origin:      req.Origin,
		Destination: req.Destination,
		WeightKg:    req.WeightKg,
		PickupDate:  req.PickupDay(),
		Fragile:     req.Fragile,
	}
}

// Repository stores quote sets in Postgres.
type Repository struct {
	Pool *pgxpool.Pool
	Now  func() time.Time // nil means time.Now
}

func (r *Repository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

var quoteColumns = []string{
	"quote_set_id", "position", "provider_id", "provider_name", "price", "currency",
	"min_days", "max_days", "transport_mode", "estimated_days", "is_cheapest", "is_fastest",
}

// SaveMany writes quotes as one set in a single transaction and returns the
// id of the new set. An empty slice writes nothing and returns uuid.Nil.
func (r *Repository) SaveMany(ctx context.Context, quotes []quote.Quote, meta Metadata) (uuid.UUID, error) {
	if len(quotes) == 0 {
		return uuid.Nil, nil
	}

	id := uuid.New()
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO quote_sets (id, fingerprint, origin, destination, weight_kg, pickup_date, fragile, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, meta.Fingerprint, meta.Origin, meta.Destination, meta.WeightKg,
		meta.PickupDate, meta.Fragile, r.now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert quote set: %w", err)
	}

	rows := make([][]any, len(quotes))
	for i, q := range quotes {
		rows[i] = []any{
			id, i, q.ProviderID, q.ProviderName, q.Price, q.Currency,
			q.MinDays, q.MaxDays, q.TransportMode, q.EstimatedDays, q.IsCheapest, q.IsFastest,
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"quotes"}, quoteColumns, pgx.CopyFromRows(rows)); err != nil {
		return uuid.Nil, fmt.Errorf("copy quotes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// FindCached returns the newest set stored under fingerprint after since, in
// the order it was saved. It returns an empty slice when there is none.
func (r *Repository) FindCached(ctx context.Context, fingerprint string, since time.Time) ([]quote.Quote, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT q.provider_id, q.provider_name, q.price, q.currency, q.min_days, q.max_days,
		        q.transport_mode, q.estimated_days, q.is_cheapest, q.is_fastest
		 FROM quotes q
		 JOIN (
		     SELECT id FROM quote_sets
		     WHERE fingerprint = $1 AND created_at > $2
		     ORDER BY created_at DESC
		     LIMIT 1
		 ) s ON s.id = q.quote_set_id
		 ORDER BY q.position`,
		fingerprint, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("find cached quotes: %w", err)
	}
	defer rows.Close()

	quotes := []quote.Quote{}
	for rows.Next() {
		var q quote.Quote
		if err := rows.Scan(
			&q.ProviderID, &q.ProviderName, &q.Price, &q.Currency, &q.MinDays, &q.MaxDays,
			&q.TransportMode, &q.EstimatedDays, &q.IsCheapest, &q.IsFastest,
		); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// DeleteOlderThan removes sets created before cutoff and returns how many
// were removed.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM quote_sets WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old quote sets: %w", err)
	}
	return tag.RowsAffected(), nil
}
