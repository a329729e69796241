package routing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"trip-planner/internal/database"
	"trip-planner/internal/metrics"
	"trip-planner/internal/models"
)

// State is the lifecycle of the in-memory graph projection
type State int

const (
	StateUnprojected State = iota
	StateProjected
	StateStale
)

func (s State) String() string {
	switch s {
	case StateUnprojected:
		return "unprojected"
	case StateProjected:
		return "projected"
	case StateStale:
		return "stale"
	}
	return "unknown"
}

// Engine answers shortest path queries over a projection of the edge store.
// Refreshes hold the write lock; queries take the read lock only long enough
// to grab the current projection, which is never mutated after it is built.
// Each projection remembers the stored graph version it was built from, so
// writes made by another process sharing the store also trigger a rebuild.
type Engine struct {
	repo     database.EdgeRepository
	resolver NodeResolver
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	state   State
	proj    *projection
	version int64
}

// NewEngine creates an engine; m may be nil
func NewEngine(repo database.EdgeRepository, resolver NodeResolver, m *metrics.Metrics) *Engine {
	return &Engine{
		repo:     repo,
		resolver: resolver,
		metrics:  m,
		state:    StateUnprojected,
	}
}

// State returns the current projection state
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Refresh rebuilds the projection from the edge store
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildLocked(ctx)
}

func (e *Engine) rebuildLocked(ctx context.Context) error {
	// Read the version first: a write landing mid-rebuild leaves the
	// projection tagged older than the store and forces another rebuild.
	version, err := e.repo.GraphVersion(ctx)
	if err != nil {
		return err
	}
	nodes, err := e.repo.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph nodes: %w", err)
	}
	edges, err := e.repo.ListEdges(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph edges: %w", err)
	}

	e.proj = newProjection(nodes, edges)
	e.version = version
	e.state = StateProjected
	e.metrics.GraphRefreshed()

	log.Printf("[GRAPH] Projection refreshed: nodes=%d edges=%d version=%d", len(e.proj.nodes), e.proj.edgeCount(), version)
	return nil
}

// current returns a projection reflecting every acknowledged write,
// including writes committed through other engines on the same store
func (e *Engine) current(ctx context.Context) (*projection, error) {
	stored, err := e.repo.GraphVersion(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	if e.state == StateProjected && e.version >= stored {
		p := e.proj
		e.mu.RUnlock()
		return p, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateProjected && e.version < stored {
		e.state = StateStale
	}
	if e.state != StateProjected {
		if err := e.rebuildLocked(ctx); err != nil {
			return nil, err
		}
	}
	return e.proj, nil
}

func (e *Engine) markStale() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateProjected {
		e.state = StateStale
	}
}

// UpsertEdge creates or updates the directed edges described by in.
// Both endpoints must resolve to known entities; missing graph nodes are created.
func (e *Engine) UpsertEdge(ctx context.Context, in EdgeInput) (*EdgeSnapshot, error) {
	if in.Direction == "" {
		in.Direction = models.DirectionBoth
	}
	if err := validateEdge(in); err != nil {
		return nil, err
	}

	fromNode, err := e.ensureNode(ctx, in.From)
	if err != nil {
		return nil, err
	}
	toNode, err := e.ensureNode(ctx, in.To)
	if err != nil {
		return nil, err
	}

	forward := models.RouteEdge{From: in.From, To: in.To, Mode: in.Mode, Distance: in.Distance, RoadRef: in.RoadRef}
	reverse := models.RouteEdge{From: in.To, To: in.From, Mode: in.Mode, Distance: in.Distance, RoadRef: in.RoadRef}

	var written []models.RouteEdge
	switch in.Direction {
	case models.DirectionBoth:
		written = []models.RouteEdge{forward, reverse}
	case models.DirectionFrom:
		written = []models.RouteEdge{forward}
	case models.DirectionTo:
		written = []models.RouteEdge{reverse}
	}

	// Mark stale even on partial failure; some edges may already be persisted.
	defer e.markStale()
	for _, edge := range written {
		if err := e.repo.UpsertEdge(ctx, edge); err != nil {
			return nil, err
		}
	}

	log.Printf("[GRAPH] Edge upserted: from=%s to=%s direction=%s distance=%g", in.From, in.To, in.Direction, in.Distance)

	return &EdgeSnapshot{From: *fromNode, To: *toNode, Edges: written}, nil
}

func validateEdge(in EdgeInput) error {
	if in.From == "" || in.To == "" {
		return &ErrInvalidEdge{Reason: "both endpoints are required"}
	}
	if in.From == in.To {
		return &ErrInvalidEdge{Reason: "endpoints must differ"}
	}
	if math.IsNaN(in.Distance) || math.IsInf(in.Distance, 0) || in.Distance < 0 {
		return &ErrInvalidEdge{Reason: "distance must be a finite non-negative number"}
	}
	if !in.Direction.Valid() {
		return &ErrInvalidEdge{Reason: fmt.Sprintf("unknown direction %q", in.Direction)}
	}
	return nil
}

func (e *Engine) ensureNode(ctx context.Context, id string) (*models.LocationNode, error) {
	coords, err := e.resolver.ResolveNode(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &ErrInvalidNodeReference{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve node %s: %w", id, err)
	}
	return e.repo.UpsertNode(ctx, models.LocationNode{ID: id, Lat: coords.Lat, Lng: coords.Lng})
}

// DeleteEdge removes exactly the directed edge from→to and returns 1 or 0
func (e *Engine) DeleteEdge(ctx context.Context, from, to string) (int, error) {
	removed, err := e.repo.DeleteEdge(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.markStale()
		log.Printf("[GRAPH] Edge deleted: from=%s to=%s", from, to)
	}
	return removed, nil
}

// ShortestPath returns the cheapest path from one node to another
func (e *Engine) ShortestPath(ctx context.Context, from, to string) (*models.RouteSegment, error) {
	p, err := e.current(ctx)
	if err != nil {
		return nil, err
	}

	seg, ok := p.shortestPath(from, to)
	if !ok {
		e.metrics.RouteQuery("no_path")
		return nil, &ErrNoPathFound{From: from, To: to}
	}
	e.metrics.RouteQuery("ok")
	return seg, nil
}

// ShortestPathWithWaypoints chains shortest paths across consecutive stops.
// Stop order is respected as given. The first unreachable pair aborts the query.
func (e *Engine) ShortestPathWithWaypoints(ctx context.Context, stops []string) (*models.WaypointRoute, error) {
	if len(stops) < 2 {
		return nil, ErrTooFewStops
	}

	// One projection for the whole query so every segment sees the same edges.
	p, err := e.current(ctx)
	if err != nil {
		return nil, err
	}

	route := &models.WaypointRoute{
		Places:   []string{},
		Segments: make([]models.RouteSegment, 0, len(stops)-1),
	}

	for i := 0; i < len(stops)-1; i++ {
		seg, ok := p.shortestPath(stops[i], stops[i+1])
		if !ok {
			e.metrics.RouteQuery("no_path")
			return nil, &ErrNoPathFound{From: stops[i], To: stops[i+1], Segment: i + 1}
		}

		nodes := seg.Nodes
		if i > 0 {
			nodes = nodes[1:]
		}
		route.Places = append(route.Places, nodes...)
		route.TotalDistance += seg.Cost
		route.Segments = append(route.Segments, *seg)
	}

	e.metrics.RouteQuery("ok")
	return route, nil
}
