package routing

import (
	"context"
	"errors"
	"fmt"

	"trip-planner/internal/database"
	"trip-planner/internal/models"
)

// EntityResolver resolves node ids against places, then hotels, then events
type EntityResolver struct {
	Places database.PlaceRepository
	Hotels database.HotelRepository
	Events database.EventRepository
}

// NewEntityResolver creates a resolver backed by the given store
func NewEntityResolver(db database.DataStore) *EntityResolver {
	return &EntityResolver{
		Places: db.Places(),
		Hotels: db.Hotels(),
		Events: db.Events(),
	}
}

func (r *EntityResolver) ResolveNode(ctx context.Context, id string) (models.Coordinates, error) {
	if r.Places != nil {
		p, err := r.Places.GetByID(ctx, id)
		if err == nil {
			return p.GetCoords(), nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return models.Coordinates{}, err
		}
	}
	if r.Hotels != nil {
		h, err := r.Hotels.GetByID(ctx, id)
		if err == nil {
			return h.GetCoords(), nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return models.Coordinates{}, err
		}
	}
	if r.Events != nil {
		e, err := r.Events.GetByID(ctx, id)
		if err == nil {
			return e.GetCoords(), nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return models.Coordinates{}, err
		}
	}
	return models.Coordinates{}, fmt.Errorf("entity %s: %w", id, database.ErrNotFound)
}
