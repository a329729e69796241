package routing

import (
	"context"
	"errors"
	"fmt"

	"trip-planner/internal/models"
)

// Router computes shortest paths over the location graph
type Router interface {
	ShortestPath(ctx context.Context, from, to string) (*models.RouteSegment, error)
	ShortestPathWithWaypoints(ctx context.Context, stops []string) (*models.WaypointRoute, error)
}

// NodeResolver maps an entity id to its coordinates.
// It returns an error wrapping database.ErrNotFound for unknown ids.
type NodeResolver interface {
	ResolveNode(ctx context.Context, id string) (models.Coordinates, error)
}

// EdgeInput describes a path management request
type EdgeInput struct {
	From      string
	To        string
	Mode      string
	Distance  float64
	RoadRef   string
	Direction models.Direction
}

// EdgeSnapshot is the node/edge state touched by an upsert
type EdgeSnapshot struct {
	From  models.LocationNode `json:"from"`
	To    models.LocationNode `json:"to"`
	Edges []models.RouteEdge  `json:"edges"`
}

// ErrTooFewStops is returned when a waypoint query has fewer than two stops
var ErrTooFewStops = errors.New("at least two stops are required")

// ErrNoPathFound is returned when no path connects two stops.
// Segment is the 1-based index of the failing pair in a waypoint query, 0 otherwise.
type ErrNoPathFound struct {
	From    string
	To      string
	Segment int
}

func (e *ErrNoPathFound) Error() string {
	if e.Segment > 0 {
		return fmt.Sprintf("no path found from %s to %s (segment %d)", e.From, e.To, e.Segment)
	}
	return fmt.Sprintf("no path found from %s to %s", e.From, e.To)
}

// ErrInvalidNodeReference is returned when an id does not resolve to a known entity
type ErrInvalidNodeReference struct {
	ID string
}

func (e *ErrInvalidNodeReference) Error() string {
	return fmt.Sprintf("invalid node reference: %s", e.ID)
}

// ErrInvalidEdge is returned for malformed edge input
type ErrInvalidEdge struct {
	Reason string
}

func (e *ErrInvalidEdge) Error() string {
	return fmt.Sprintf("invalid edge: %s", e.Reason)
}
