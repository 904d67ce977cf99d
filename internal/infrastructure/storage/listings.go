package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"PriceWatch/internal/domain"
)

var listingColumns = []string{"id", "url", "selector", "title", "status", "last_checked_at", "created_at"}

// CreateListing inserts a listing; tracking the same URL twice returns the existing row.
func (s *SQLStore) CreateListing(ctx context.Context, listing domain.Listing) (domain.Listing, error) {
	listing.URL = strings.TrimSpace(listing.URL)
	if listing.URL == "" {
		return domain.Listing{}, fmt.Errorf("listing url is required")
	}
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	if listing.Status == "" {
		listing.Status = domain.StatusActive
	}
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = s.now()
	}

	insert := s.sb.Insert("listings").
		Columns("id", "url", "selector", "title", "status", "created_at").
		Values(listing.ID, listing.URL, listing.Selector, listing.Title, string(listing.Status), toMillis(listing.CreatedAt)).
		Suffix("ON CONFLICT (url) DO NOTHING")
	if _, err := s.exec(ctx, insert); err != nil {
		return domain.Listing{}, fmt.Errorf("insert listing: %w: %w", domain.ErrPersistence, err)
	}

	return s.getListing(ctx, sq.Eq{"url": listing.URL})
}

// GetListing loads a listing by id.
func (s *SQLStore) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	return s.getListing(ctx, sq.Eq{"id": id})
}

func (s *SQLStore) getListing(ctx context.Context, where sq.Eq) (domain.Listing, error) {
	row, err := s.queryRow(ctx, s.sb.Select(listingColumns...).From("listings").Where(where))
	if err != nil {
		return domain.Listing{}, err
	}
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// ListCheckable returns listings that are active or in error, oldest check first.
func (s *SQLStore) ListCheckable(ctx context.Context) ([]domain.Listing, error) {
	query, args, err := s.sb.Select(listingColumns...).
		From("listings").
		Where(sq.Eq{"status": []string{string(domain.StatusActive), string(domain.StatusError)}}).
		OrderBy("COALESCE(last_checked_at, 0) ASC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return listings, nil
}

// CountByStatus counts listings in the given lifecycle state.
func (s *SQLStore) CountByStatus(ctx context.Context, status domain.ListingStatus) (int, error) {
	n, err := s.count(ctx, s.sb.Select("COUNT(*)").From("listings").Where(sq.Eq{"status": string(status)}))
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// UpdateStatus sets the lifecycle state.
func (s *SQLStore) UpdateStatus(ctx context.Context, id string, status domain.ListingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid listing status %q", status)
	}
	return s.updateListing(ctx, id, map[string]interface{}{"status": string(status)})
}

// UpdateSelector stores a newly learned CSS selector.
func (s *SQLStore) UpdateSelector(ctx context.Context, id, selector string) error {
	return s.updateListing(ctx, id, map[string]interface{}{"selector": selector})
}

// TouchLastChecked records the time of the last saved observation.
func (s *SQLStore) TouchLastChecked(ctx context.Context, id string, at time.Time) error {
	return s.updateListing(ctx, id, map[string]interface{}{"last_checked_at": toMillis(at)})
}

func (s *SQLStore) updateListing(ctx context.Context, id string, values map[string]interface{}) error {
	res, err := s.exec(ctx, s.sb.Update("listings").SetMap(values).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update listing %s: %w: %w", id, domain.ErrPersistence, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (domain.Listing, error) {
	var (
		l           domain.Listing
		status      string
		lastChecked sql.NullInt64
		createdAt   int64
	)
	if err := row.Scan(&l.ID, &l.URL, &l.Selector, &l.Title, &status, &lastChecked, &createdAt); err != nil {
		return domain.Listing{}, err
	}
	l.Status = domain.ListingStatus(status)
	l.CreatedAt = fromMillis(createdAt)
	if lastChecked.Valid {
		t := fromMillis(lastChecked.Int64)
		l.LastCheckedAt = &t
	}
	return l, nil
}
