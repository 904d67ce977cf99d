package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"PriceWatch/internal/domain"
)

// InsertErrorEvent logs a failed check.
func (s *SQLStore) InsertErrorEvent(ctx context.Context, event domain.ErrorEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}

	insert := s.sb.Insert("error_events").
		Columns("id", "listing_id", "message", "stack_trace", "attempt_number", "created_at").
		Values(event.ID, event.ListingID, event.Message, event.StackTrace, event.AttemptNumber, toMillis(event.CreatedAt))
	if _, err := s.exec(ctx, insert); err != nil {
		return fmt.Errorf("insert error event: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// CountErrorEvents counts a listing's error events created at or after since.
func (s *SQLStore) CountErrorEvents(ctx context.Context, listingID string, since time.Time) (int, error) {
	n, err := s.count(ctx, s.sb.Select("COUNT(*)").
		From("error_events").
		Where(sq.Eq{"listing_id": listingID}).
		Where(sq.GtOrEq{"created_at": toMillis(since)}))
	if err != nil {
		return 0, fmt.Errorf("count error events: %w", err)
	}
	return n, nil
}

// InsertSystemEvent appends to the system event log.
func (s *SQLStore) InsertSystemEvent(ctx context.Context, event domain.SystemEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}

	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(event.Metadata); err != nil {
			return fmt.Errorf("encode event metadata: %w", err)
		}
	}

	insert := s.sb.Insert("system_events").
		Columns("id", "listing_id", "event_type", "message", "metadata", "created_at").
		Values(event.ID, event.ListingID, string(event.Type), event.Message, string(metadata), toMillis(event.CreatedAt))
	if _, err := s.exec(ctx, insert); err != nil {
		return fmt.Errorf("insert system event: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// CountSystemEvents counts events of one type created at or after since.
func (s *SQLStore) CountSystemEvents(ctx context.Context, eventType domain.SystemEventType, since time.Time) (int, error) {
	n, err := s.count(ctx, s.sb.Select("COUNT(*)").
		From("system_events").
		Where(sq.Eq{"event_type": string(eventType)}).
		Where(sq.GtOrEq{"created_at": toMillis(since)}))
	if err != nil {
		return 0, fmt.Errorf("count system events: %w", err)
	}
	return n, nil
}

// LatestSystemEvent returns the newest event of a type or domain.ErrNotFound.
func (s *SQLStore) LatestSystemEvent(ctx context.Context, eventType domain.SystemEventType) (domain.SystemEvent, error) {
	row, err := s.queryRow(ctx, s.sb.Select("id", "listing_id", "event_type", "message", "metadata", "created_at").
		From("system_events").
		Where(sq.Eq{"event_type": string(eventType)}).
		OrderBy("created_at DESC").
		Limit(1))
	if err != nil {
		return domain.SystemEvent{}, err
	}

	var (
		event     domain.SystemEvent
		typ       string
		metadata  string
		createdAt int64
	)
	err = row.Scan(&event.ID, &event.ListingID, &typ, &event.Message, &metadata, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SystemEvent{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SystemEvent{}, fmt.Errorf("latest system event: %w", err)
	}
	event.Type = domain.SystemEventType(typ)
	event.CreatedAt = fromMillis(createdAt)
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &event.Metadata); err != nil {
			return domain.SystemEvent{}, fmt.Errorf("decode event metadata: %w", err)
		}
	}
	return event, nil
}
