package database

import (
	"context"
	"time"

	"trip-planner/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Places() PlaceRepository
	Hotels() HotelRepository
	Events() EventRepository
	Edges() EdgeRepository
	History() HistoryRepository
}

// PlaceRepository reads places; Create exists for seeding
type PlaceRepository interface {
	GetByID(ctx context.Context, id string) (*models.Place, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Place, error)
	ListWithinRadius(ctx context.Context, center models.Coordinates, radiusKm float64) ([]models.Place, error)
	Create(ctx context.Context, p *models.Place) (*models.Place, error)
}

// HotelRepository reads hotels; Create exists for seeding
type HotelRepository interface {
	GetByID(ctx context.Context, id string) (*models.Hotel, error)
	ListWithinRadius(ctx context.Context, center models.Coordinates, radiusKm float64) ([]models.Hotel, error)
	Create(ctx context.Context, h *models.Hotel) (*models.Hotel, error)
}

// TimeWindow is an inclusive time range; a nil window matches everything
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// EventRepository reads events; Create exists for seeding
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	ListWithinRadius(ctx context.Context, center models.Coordinates, radiusKm float64, window *TimeWindow) ([]models.Event, error)
	Create(ctx context.Context, e *models.Event) (*models.Event, error)
}

// EdgeRepository holds the authoritative routing graph.
// Every edge write that changes the edge set advances GraphVersion.
type EdgeRepository interface {
	UpsertNode(ctx context.Context, n models.LocationNode) (*models.LocationNode, error)
	GetNode(ctx context.Context, id string) (*models.LocationNode, error)
	UpsertEdge(ctx context.Context, e models.RouteEdge) error
	DeleteEdge(ctx context.Context, from, to string) (int, error)
	ListNodes(ctx context.Context) ([]models.LocationNode, error)
	ListEdges(ctx context.Context) ([]models.RouteEdge, error)
	GraphVersion(ctx context.Context) (int64, error)
}

// HistoryRepository persists planning results.
// MarkCompleted and MarkFailed only transition records that are still pending.
type HistoryRepository interface {
	CreatePending(ctx context.Context, req models.PlanningRequest) (*models.PlanningResult, error)
	CreateCompleted(ctx context.Context, req models.PlanningRequest, days []models.DayPlan) (*models.PlanningResult, error)
	MarkCompleted(ctx context.Context, requestID string, days []models.DayPlan) error
	MarkFailed(ctx context.Context, requestID string, errorMessage string) error
	GetByRequestID(ctx context.Context, requestID string) (*models.PlanningResult, error)
	ListByRequester(ctx context.Context, requesterID string, page, limit int) ([]models.PlanningResult, int, error)
}
