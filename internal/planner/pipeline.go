package planner

import (
	"context"
	"errors"
	"fmt"
	"log"

	"trip-planner/internal/database"
	"trip-planner/internal/itinerary"
	"trip-planner/internal/models"
	"trip-planner/internal/routing"
)

// Pipeline builds an itinerary for a request: place lookup, routing,
// enrichment, then assembly. It is shared by the sync API path and the worker.
type Pipeline struct {
	Places    database.PlaceRepository
	Router    routing.Router
	Enricher  *itinerary.Enricher
	Assembler *itinerary.Assembler
}

// Build runs the full pipeline
func (p *Pipeline) Build(ctx context.Context, req models.PlanningRequest) (*itinerary.Itinerary, error) {
	stops := req.Stops()

	found, err := p.Places.GetByIDs(ctx, stops)
	if err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}
	known := make(map[string]bool, len(found))
	for _, pl := range found {
		known[pl.ID] = true
	}
	for _, id := range stops {
		if !known[id] {
			return nil, &NotFoundError{Kind: "place", ID: id}
		}
	}

	candidateIDs := stops
	route, err := p.Router.ShortestPathWithWaypoints(ctx, stops)
	var noPath *routing.ErrNoPathFound
	switch {
	case errors.As(err, &noPath):
		log.Printf("[PLANNER] No route between stops, planning stops only: request=%s err=%v", req.RequestID, err)
	case err != nil:
		return nil, fmt.Errorf("failed to route stops: %w", err)
	default:
		candidateIDs = route.Places
	}

	// Route nodes can be hotels or events; only places are scheduled.
	candidates, err := p.Places.GetByIDs(ctx, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load route places: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoPlaces
	}

	items, err := p.Enricher.EnrichAll(ctx, candidates, itinerary.Window(req.StartTimestamp, req.EndTimestamp))
	if err != nil {
		return nil, err
	}

	return p.Assembler.Assemble(items, req.DaysOfTrip)
}
