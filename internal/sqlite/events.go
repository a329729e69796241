package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trip-planner/internal/database"
	"trip-planner/internal/distance"
	"trip-planner/internal/models"
)

type eventRepository struct {
	store *Store
}

const eventColumns = `id, name, description, image, address_line, city, state, country,
	lat, lng, starts_at, ends_at`

func scanEvent(row rowScanner) (models.Event, error) {
	var e models.Event
	var startsAt, endsAt int64
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.Image,
		&e.Address.Line, &e.Address.City, &e.Address.State, &e.Address.Country,
		&e.Lat, &e.Lng, &startsAt, &endsAt,
	)
	if err != nil {
		return e, err
	}
	e.From = fromMillis(startsAt)
	e.To = fromMillis(endsAt)
	return e, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	e, err := scanEvent(r.store.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return &e, nil
}

// ListWithinRadius returns events near center. With a window, only events
// overlapping it inclusively are returned. The SQL clauses are millisecond
// prefilters; Event.Overlaps makes the final call.
func (r *eventRepository) ListWithinRadius(ctx context.Context, center models.Coordinates, radiusKm float64, window *database.TimeWindow) ([]models.Event, error) {
	if err := distance.Validate(center); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	box := distance.BoundingBox(center, radiusKm)
	query := `SELECT ` + eventColumns + ` FROM events
	          WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`
	args := []any{box.MinLat, box.MaxLat, box.MinLng, box.MaxLng}

	if window != nil {
		query += ` AND ends_at >= ? AND starts_at <= ?`
		args = append(args, toMillis(window.Start), toMillis(window.End))
	}
	query += ` ORDER BY starts_at, id`

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var candidates []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if window != nil && !e.Overlaps(window.Start, window.End) {
			continue
		}
		candidates = append(candidates, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return distance.WithinRadius(center, radiusKm, candidates)
}

func (r *eventRepository) Create(ctx context.Context, e *models.Event) (*models.Event, error) {
	if err := distance.Validate(e.GetCoords()); err != nil {
		return nil, err
	}
	if e.To.Before(e.From) {
		return nil, fmt.Errorf("event %s ends before it starts", e.ID)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT INTO events (` + eventColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.store.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Description, e.Image,
		e.Address.Line, e.Address.City, e.Address.State, e.Address.Country,
		e.Lat, e.Lng, toMillis(e.From), toMillis(e.To),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("event %s: %w", e.ID, database.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return e, nil
}
