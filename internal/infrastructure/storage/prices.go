package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"PriceWatch/internal/domain"
)

// InsertObservation appends a price observation. History rows are never updated.
// Generated IDs are time-ordered UUIDs, so the ID breaks ties between observations
// stamped in the same millisecond.
func (s *SQLStore) InsertObservation(ctx context.Context, obs domain.PriceObservation) error {
	if obs.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("observation id: %w", err)
		}
		obs.ID = id.String()
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = s.now()
	}

	insert := s.sb.Insert("price_history").
		Columns("id", "listing_id", "price", "currency", "observed_at").
		Values(obs.ID, obs.ListingID, obs.Price.StringFixed(2), string(obs.Currency), toMillis(obs.ObservedAt))
	if _, err := s.exec(ctx, insert); err != nil {
		return fmt.Errorf("insert observation for %s: %w: %w", obs.ListingID, domain.ErrPersistence, err)
	}
	return nil
}

// LatestObservation returns the most recent observation or domain.ErrNotFound.
func (s *SQLStore) LatestObservation(ctx context.Context, listingID string) (domain.PriceObservation, error) {
	row, err := s.queryRow(ctx, s.sb.Select("id", "listing_id", "price", "currency", "observed_at").
		From("price_history").
		Where(sq.Eq{"listing_id": listingID}).
		OrderBy("observed_at DESC", "id DESC").
		Limit(1))
	if err != nil {
		return domain.PriceObservation{}, err
	}

	var (
		obs        domain.PriceObservation
		currency   string
		observedAt int64
	)
	err = row.Scan(&obs.ID, &obs.ListingID, &obs.Price, &currency, &observedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PriceObservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("latest observation: %w", err)
	}
	obs.Currency = domain.Currency(currency)
	obs.ObservedAt = fromMillis(observedAt)
	return obs, nil
}

// PriceStats aggregates the whole history of a listing. An empty history yields zero stats.
func (s *SQLStore) PriceStats(ctx context.Context, listingID string) (domain.PriceStats, error) {
	row, err := s.queryRow(ctx, s.sb.Select("MIN(price)", "MAX(price)", "AVG(price)", "COUNT(*)").
		From("price_history").
		Where(sq.Eq{"listing_id": listingID}))
	if err != nil {
		return domain.PriceStats{}, err
	}

	var (
		minPrice, maxPrice, avgPrice decimal.NullDecimal
		stats                        domain.PriceStats
	)
	if err := row.Scan(&minPrice, &maxPrice, &avgPrice, &stats.Count); err != nil {
		return domain.PriceStats{}, fmt.Errorf("price stats: %w", err)
	}
	if stats.Count == 0 {
		return domain.PriceStats{}, nil
	}
	stats.Min = minPrice.Decimal
	stats.Max = maxPrice.Decimal
	stats.Avg = avgPrice.Decimal.Round(2)
	return stats, nil
}
