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

type hotelRepository struct {
	store *Store
}

const hotelColumns = `id, name, image, address_line, city, state, country,
	lat, lng, average_rating, price_per_night`

func scanHotel(row rowScanner) (models.Hotel, error) {
	var h models.Hotel
	err := row.Scan(
		&h.ID, &h.Name, &h.Image,
		&h.Address.Line, &h.Address.City, &h.Address.State, &h.Address.Country,
		&h.Lat, &h.Lng, &h.AverageRating, &h.PricePerNight,
	)
	return h, err
}

func (r *hotelRepository) GetByID(ctx context.Context, id string) (*models.Hotel, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT ` + hotelColumns + ` FROM hotels WHERE id = ?`
	h, err := scanHotel(r.store.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hotel %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hotel: %w", err)
	}

	return &h, nil
}

func (r *hotelRepository) ListWithinRadius(ctx context.Context, center models.Coordinates, radiusKm float64) ([]models.Hotel, error) {
	if err := distance.Validate(center); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	box := distance.BoundingBox(center, radiusKm)
	query := `SELECT ` + hotelColumns + ` FROM hotels
	          WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?
	          ORDER BY id`

	rows, err := r.store.db.QueryContext(ctx, query, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("failed to query hotels: %w", err)
	}
	defer rows.Close()

	var candidates []models.Hotel
	for rows.Next() {
		h, err := scanHotel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hotel: %w", err)
		}
		candidates = append(candidates, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hotels: %w", err)
	}

	return distance.WithinRadius(center, radiusKm, candidates)
}

func (r *hotelRepository) Create(ctx context.Context, h *models.Hotel) (*models.Hotel, error) {
	if err := distance.Validate(h.GetCoords()); err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT INTO hotels (` + hotelColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.store.db.ExecContext(ctx, query,
		h.ID, h.Name, h.Image,
		h.Address.Line, h.Address.City, h.Address.State, h.Address.Country,
		h.Lat, h.Lng, h.AverageRating, h.PricePerNight,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("hotel %s: %w", h.ID, database.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create hotel: %w", err)
	}

	return h, nil
}
