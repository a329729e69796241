package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/database"
	"trip-planner/internal/metrics"
	"trip-planner/internal/models"
	"trip-planner/internal/sqlite"
)

func setupTestEngine(t *testing.T, placeIDs ...string) (*Engine, *sqlite.Store) {
	store, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for i, id := range placeIDs {
		_, err := store.Places().Create(ctx, &models.Place{
			ID:   id,
			Name: "Place " + id,
			Lat:  27 + float64(i)*0.01,
			Lng:  85,
		})
		require.NoError(t, err)
	}

	return NewEngine(store.Edges(), NewEntityResolver(store), metrics.New()), store
}

func mustUpsert(t *testing.T, e *Engine, from, to string, dist float64, dir models.Direction) {
	t.Helper()
	_, err := e.UpsertEdge(context.Background(), EdgeInput{From: from, To: to, Mode: "car", Distance: dist, Direction: dir})
	require.NoError(t, err)
}

func TestShortestPath_DirectedScenario(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B", "C")
	ctx := context.Background()

	mustUpsert(t, e, "A", "B", 5, models.DirectionBoth)
	mustUpsert(t, e, "B", "C", 7, models.DirectionFrom)

	seg, err := e.ShortestPath(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, 12.0, seg.Cost)
	assert.Equal(t, []string{"A", "B", "C"}, seg.Nodes)
	require.Len(t, seg.Edges, 2)
	assert.Equal(t, "B", seg.Edges[1].From)

	_, err = e.ShortestPath(ctx, "C", "A")
	var noPath *ErrNoPathFound
	require.True(t, errors.As(err, &noPath))
	assert.Equal(t, "C", noPath.From)
	assert.Equal(t, "A", noPath.To)

	// B→A exists because A-B is bidirectional.
	seg, err = e.ShortestPath(ctx, "B", "A")
	require.NoError(t, err)
	assert.Equal(t, 5.0, seg.Cost)
}

func TestShortestPath_ReverseDirection(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B")
	ctx := context.Background()

	snap, err := e.UpsertEdge(ctx, EdgeInput{From: "A", To: "B", Distance: 3, Direction: models.DirectionTo})
	require.NoError(t, err)
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, "B", snap.Edges[0].From)
	assert.Equal(t, "A", snap.Edges[0].To)

	_, err = e.ShortestPath(ctx, "A", "B")
	assert.Error(t, err)

	seg, err := e.ShortestPath(ctx, "B", "A")
	require.NoError(t, err)
	assert.Equal(t, 3.0, seg.Cost)
}

func TestShortestPath_SameNode(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B")
	mustUpsert(t, e, "A", "B", 1, models.DirectionBoth)

	seg, err := e.ShortestPath(context.Background(), "A", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, seg.Nodes)
	assert.Equal(t, 0.0, seg.Cost)
	assert.Empty(t, seg.Edges)
}

func TestShortestPath_UnknownNode(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B")
	mustUpsert(t, e, "A", "B", 1, models.DirectionBoth)

	_, err := e.ShortestPath(context.Background(), "A", "Z")
	var noPath *ErrNoPathFound
	assert.True(t, errors.As(err, &noPath))
}

func TestShortestPath_TieBreakByNodeID(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B", "C", "D")

	mustUpsert(t, e, "A", "C", 1, models.DirectionFrom)
	mustUpsert(t, e, "A", "B", 1, models.DirectionFrom)
	mustUpsert(t, e, "C", "D", 1, models.DirectionFrom)
	mustUpsert(t, e, "B", "D", 1, models.DirectionFrom)

	for i := 0; i < 5; i++ {
		seg, err := e.ShortestPath(context.Background(), "A", "D")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "D"}, seg.Nodes)
		assert.Equal(t, 2.0, seg.Cost)
	}
}

// allPathCosts enumerates every simple path cost from source to target
func allPathCosts(edges []models.RouteEdge, source, target string) []float64 {
	adj := make(map[string][]models.RouteEdge)
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e)
	}

	var costs []float64
	visited := map[string]bool{}
	var walk func(node string, cost float64)
	walk = func(node string, cost float64) {
		if node == target {
			costs = append(costs, cost)
			return
		}
		visited[node] = true
		for _, e := range adj[node] {
			if !visited[e.To] {
				walk(e.To, cost+e.Distance)
			}
		}
		visited[node] = false
	}
	walk(source, 0)
	return costs
}

func TestShortestPath_NeverWorseThanAlternatives(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E", "F"}
	e, store := setupTestEngine(t, ids...)
	ctx := context.Background()

	mustUpsert(t, e, "A", "B", 7, models.DirectionBoth)
	mustUpsert(t, e, "A", "C", 9, models.DirectionBoth)
	mustUpsert(t, e, "A", "F", 14, models.DirectionBoth)
	mustUpsert(t, e, "B", "C", 10, models.DirectionBoth)
	mustUpsert(t, e, "B", "D", 15, models.DirectionBoth)
	mustUpsert(t, e, "C", "D", 11, models.DirectionBoth)
	mustUpsert(t, e, "C", "F", 2, models.DirectionBoth)
	mustUpsert(t, e, "D", "E", 6, models.DirectionFrom)
	mustUpsert(t, e, "E", "F", 9, models.DirectionBoth)

	edges, err := store.Edges().ListEdges(ctx)
	require.NoError(t, err)

	for _, from := range ids {
		for _, to := range ids {
			if from == to {
				continue
			}
			alternatives := allPathCosts(edges, from, to)
			seg, err := e.ShortestPath(ctx, from, to)
			if len(alternatives) == 0 {
				assert.Error(t, err, "%s->%s", from, to)
				continue
			}
			require.NoError(t, err, "%s->%s", from, to)
			for _, alt := range alternatives {
				assert.LessOrEqual(t, seg.Cost, alt, "%s->%s", from, to)
			}

			sum := 0.0
			for _, edge := range seg.Edges {
				sum += edge.Distance
			}
			assert.Equal(t, seg.Cost, sum)
		}
	}

	seg, err := e.ShortestPath(ctx, "A", "E")
	require.NoError(t, err)
	assert.Equal(t, 20.0, seg.Cost)
	assert.Equal(t, []string{"A", "C", "F", "E"}, seg.Nodes)
}

func TestShortestPathWithWaypoints_Additive(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B", "C", "X")
	ctx := context.Background()

	mustUpsert(t, e, "A", "X", 2, models.DirectionBoth)
	mustUpsert(t, e, "X", "B", 2, models.DirectionBoth)
	mustUpsert(t, e, "A", "B", 10, models.DirectionBoth)
	mustUpsert(t, e, "B", "C", 3.5, models.DirectionFrom)

	route, err := e.ShortestPathWithWaypoints(ctx, []string{"A", "B", "C"})
	require.NoError(t, err)

	ab, err := e.ShortestPath(ctx, "A", "B")
	require.NoError(t, err)
	bc, err := e.ShortestPath(ctx, "B", "C")
	require.NoError(t, err)

	assert.Equal(t, ab.Cost+bc.Cost, route.TotalDistance)
	assert.Equal(t, []string{"A", "X", "B", "C"}, route.Places)
	require.Len(t, route.Segments, 2)

	count := 0
	for _, id := range route.Places {
		if id == "B" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestShortestPathWithWaypoints_ReportsFailingPair(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B", "C")
	ctx := context.Background()

	mustUpsert(t, e, "A", "B", 5, models.DirectionBoth)
	mustUpsert(t, e, "B", "C", 7, models.DirectionFrom)

	_, err := e.ShortestPathWithWaypoints(ctx, []string{"A", "C", "A"})
	var noPath *ErrNoPathFound
	require.True(t, errors.As(err, &noPath))
	assert.Equal(t, "C", noPath.From)
	assert.Equal(t, "A", noPath.To)
	assert.Equal(t, 2, noPath.Segment)
	assert.Contains(t, err.Error(), "segment 2")

	_, err = e.ShortestPathWithWaypoints(ctx, []string{"A"})
	assert.True(t, errors.Is(err, ErrTooFewStops))
}

func TestDeleteEdge_Idempotent(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B")
	ctx := context.Background()

	mustUpsert(t, e, "A", "B", 5, models.DirectionBoth)

	removed, err := e.DeleteEdge(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = e.DeleteEdge(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	// Only the forward edge was removed.
	seg, err := e.ShortestPath(ctx, "B", "A")
	require.NoError(t, err)
	assert.Equal(t, 5.0, seg.Cost)
}

func TestReadYourWrites(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B", "C")
	ctx := context.Background()

	assert.Equal(t, StateUnprojected, e.State())

	mustUpsert(t, e, "A", "B", 5, models.DirectionBoth)
	mustUpsert(t, e, "B", "C", 5, models.DirectionBoth)

	seg, err := e.ShortestPath(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, 10.0, seg.Cost)
	assert.Equal(t, StateProjected, e.State())

	mustUpsert(t, e, "A", "C", 1, models.DirectionFrom)
	assert.Equal(t, StateStale, e.State())

	seg, err = e.ShortestPath(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, 1.0, seg.Cost)
	assert.Equal(t, StateProjected, e.State())

	// Updating the edge replaces its weight.
	mustUpsert(t, e, "A", "C", 20, models.DirectionFrom)
	seg, err = e.ShortestPath(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, 10.0, seg.Cost)

	_, err = e.DeleteEdge(ctx, "B", "C")
	require.NoError(t, err)
	seg, err = e.ShortestPath(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, 20.0, seg.Cost)
}

func TestReadYourWrites_AcrossStoresSharingAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	ctx := context.Background()

	apiStore, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { apiStore.Close() })
	for i, id := range []string{"A", "B", "C"} {
		_, err := apiStore.Places().Create(ctx, &models.Place{ID: id, Name: "Place " + id, Lat: 27 + float64(i)*0.01, Lng: 85})
		require.NoError(t, err)
	}

	workerStore, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { workerStore.Close() })

	api := NewEngine(apiStore.Edges(), NewEntityResolver(apiStore), nil)
	worker := NewEngine(workerStore.Edges(), NewEntityResolver(workerStore), nil)

	mustUpsert(t, api, "A", "B", 5, models.DirectionBoth)
	_, err = worker.ShortestPath(ctx, "A", "B")
	require.NoError(t, err)
	require.Equal(t, StateProjected, worker.State())

	mustUpsert(t, api, "B", "C", 7, models.DirectionFrom)

	seg, err := worker.ShortestPath(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, 12.0, seg.Cost)
	assert.Equal(t, []string{"A", "B", "C"}, seg.Nodes)

	removed, err := api.DeleteEdge(ctx, "B", "C")
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = worker.ShortestPath(ctx, "A", "C")
	var noPath *ErrNoPathFound
	assert.True(t, errors.As(err, &noPath))
}

func TestUpsertEdge_Validation(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B")
	ctx := context.Background()

	tests := []struct {
		name  string
		input EdgeInput
	}{
		{"negative distance", EdgeInput{From: "A", To: "B", Distance: -1}},
		{"NaN distance", EdgeInput{From: "A", To: "B", Distance: math.NaN()}},
		{"infinite distance", EdgeInput{From: "A", To: "B", Distance: math.Inf(1)}},
		{"missing endpoint", EdgeInput{From: "A", Distance: 1}},
		{"self loop", EdgeInput{From: "A", To: "A", Distance: 1}},
		{"bad direction", EdgeInput{From: "A", To: "B", Distance: 1, Direction: "up"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.UpsertEdge(ctx, tt.input)
			var invalid *ErrInvalidEdge
			assert.True(t, errors.As(err, &invalid))
		})
	}
}

func TestUpsertEdge_InvalidNodeReference(t *testing.T) {
	e, store := setupTestEngine(t, "A")
	ctx := context.Background()

	_, err := e.UpsertEdge(ctx, EdgeInput{From: "A", To: "ghost", Distance: 1})
	var invalid *ErrInvalidNodeReference
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "ghost", invalid.ID)

	edges, err := store.Edges().ListEdges(ctx)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestUpsertEdge_ResolvesHotelsAndEvents(t *testing.T) {
	e, store := setupTestEngine(t, "A")
	ctx := context.Background()

	_, err := store.Hotels().Create(ctx, &models.Hotel{ID: "H", Name: "Hotel", Lat: 27.5, Lng: 85.5})
	require.NoError(t, err)

	snap, err := e.UpsertEdge(ctx, EdgeInput{From: "A", To: "H", Mode: "walk", Distance: 2, RoadRef: "R9"})
	require.NoError(t, err)
	assert.Equal(t, "H", snap.To.ID)
	assert.Equal(t, 27.5, snap.To.Lat)
	assert.Len(t, snap.Edges, 2)

	node, err := store.Edges().GetNode(ctx, "H")
	require.NoError(t, err)
	assert.Equal(t, 85.5, node.Lng)
}

type failingResolver struct{}

func (failingResolver) ResolveNode(ctx context.Context, id string) (models.Coordinates, error) {
	return models.Coordinates{}, fmt.Errorf("lookup %s: connection reset", id)
}

func TestUpsertEdge_ResolverFailureIsNotInvalidReference(t *testing.T) {
	store, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	e := NewEngine(store.Edges(), failingResolver{}, nil)
	_, err = e.UpsertEdge(context.Background(), EdgeInput{From: "A", To: "B", Distance: 1})
	require.Error(t, err)

	var invalid *ErrInvalidNodeReference
	assert.False(t, errors.As(err, &invalid))
	assert.False(t, errors.Is(err, database.ErrNotFound))
}

func TestConcurrentQueriesAndWrites(t *testing.T) {
	e, _ := setupTestEngine(t, "A", "B", "C")
	ctx := context.Background()

	mustUpsert(t, e, "A", "B", 1, models.DirectionBoth)
	mustUpsert(t, e, "B", "C", 1, models.DirectionBoth)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := e.ShortestPath(ctx, "A", "C"); err != nil {
				errs <- err
			}
		}()
		go func(i int) {
			defer wg.Done()
			_, err := e.UpsertEdge(ctx, EdgeInput{From: "A", To: "C", Distance: float64(5 + i), Direction: models.DirectionFrom})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}
