package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/routing"
	"trip-planner/internal/sqlite"
)

const fixture = `
places:
  - id: temple
    name: Golden Temple
    lat: 27.7100
    lng: 85.3000
    averageRating: 4.5
    popularity: 80
    address:
      city: Patan
      state: Bagmati
  - id: square
    name: Durbar Square
    lat: 27.7040
    lng: 85.3070
    averageRating: 4.2
hotels:
  - id: inn
    name: Courtyard Inn
    lat: 27.7050
    lng: 85.3050
    pricePerNight: 45
events:
  - id: festival
    name: Chariot Festival
    lat: 27.7060
    lng: 85.3040
    from: 2026-05-01T10:00:00Z
    to: 2026-05-03T18:00:00Z
paths:
  - from: temple
    to: square
    mode: walk
    distance: 1.2
    roadId: lane-7
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	f, err := LoadFile(writeFixture(t))
	require.NoError(t, err)

	require.Len(t, f.Places, 2)
	assert.Equal(t, "Patan", f.Places[0].Address.City)
	require.Len(t, f.Events, 1)
	assert.Equal(t, time.Date(2026, 5, 3, 18, 0, 0, 0, time.UTC), f.Events[0].To.UTC())
	require.Len(t, f.Paths, 1)
	assert.Equal(t, "lane-7", f.Paths[0].RoadID)
}

func TestApply_IsRepeatable(t *testing.T) {
	store, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	defer store.Close()
	engine := routing.NewEngine(store.Edges(), routing.NewEntityResolver(store), nil)

	f, err := LoadFile(writeFixture(t))
	require.NoError(t, err)
	ctx := context.Background()

	sum, err := Apply(ctx, store, engine, f)
	require.NoError(t, err)
	assert.Equal(t, Summary{Created: 5, Skipped: 0}, sum)

	sum, err = Apply(ctx, store, engine, f)
	require.NoError(t, err)
	assert.Equal(t, Summary{Created: 1, Skipped: 4}, sum)

	route, err := engine.ShortestPath(ctx, "square", "temple")
	require.NoError(t, err)
	assert.Equal(t, 1.2, route.Cost)
}

func TestApply_BadPath(t *testing.T) {
	store, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	defer store.Close()
	engine := routing.NewEngine(store.Edges(), routing.NewEntityResolver(store), nil)

	_, err = Apply(context.Background(), store, engine, &File{Paths: []Path{{From: "x", To: "y", Distance: 1}}})
	require.Error(t, err)
	var ref *routing.ErrInvalidNodeReference
	assert.ErrorAs(t, err, &ref)
}
