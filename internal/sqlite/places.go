package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"trip-planner/internal/database"
	"trip-planner/internal/distance"
	"trip-planner/internal/models"
)

type placeRepository struct {
	store *Store
}

const placeColumns = `id, name, description, image, category,
	address_line, city, state, country, lat, lng, average_rating, popularity`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlace(row rowScanner) (models.Place, error) {
	var p models.Place
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Image, &p.Category,
		&p.Address.Line, &p.Address.City, &p.Address.State, &p.Address.Country,
		&p.Lat, &p.Lng, &p.AverageRating, &p.Popularity,
	)
	return p, err
}

func (r *placeRepository) GetByID(ctx context.Context, id string) (*models.Place, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT ` + placeColumns + ` FROM places WHERE id = ?`
	p, err := scanPlace(r.store.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("place %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	return &p, nil
}

// GetByIDs returns the places in the order of ids; unknown ids are skipped
func (r *placeRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Place, error) {
	if len(ids) == 0 {
		return []models.Place{}, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM places WHERE id IN (%s)`, placeColumns, placeholders(len(ids)))
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query places by IDs: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Place, len(ids))
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating places: %w", err)
	}

	places := make([]models.Place, 0, len(byID))
	seen := make(map[string]bool, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok && !seen[id] {
			places = append(places, p)
			seen[id] = true
		}
	}
	return places, nil
}

func (r *placeRepository) ListWithinRadius(ctx context.Context, center models.Coordinates, radiusKm float64) ([]models.Place, error) {
	if err := distance.Validate(center); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	box := distance.BoundingBox(center, radiusKm)
	query := `SELECT ` + placeColumns + ` FROM places
	          WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?
	          ORDER BY id`

	rows, err := r.store.db.QueryContext(ctx, query, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	var candidates []models.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		candidates = append(candidates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating places: %w", err)
	}

	return distance.WithinRadius(center, radiusKm, candidates)
}

func (r *placeRepository) Create(ctx context.Context, p *models.Place) (*models.Place, error) {
	if err := distance.Validate(p.GetCoords()); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT INTO places (` + placeColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.store.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Image, p.Category,
		p.Address.Line, p.Address.City, p.Address.State, p.Address.Country,
		p.Lat, p.Lng, p.AverageRating, p.Popularity,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("place %s: %w", p.ID, database.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create place: %w", err)
	}

	return p, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
