// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"trip-planner/internal/models"
	"trip-planner/internal/sqlite"
)

// NewStore opens an in-memory store that is closed when the test ends
func NewStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// PlaceLine returns places spaced roughly 1.1 km apart heading north, all
// rated 4 so they rank in input order
func PlaceLine(ids ...string) []models.Place {
	places := make([]models.Place, len(ids))
	for i, id := range ids {
		places[i] = models.Place{
			ID:            id,
			Name:          "Place " + id,
			Lat:           27.70 + float64(i)*0.01,
			Lng:           85.30,
			AverageRating: 4,
		}
	}
	return places
}

// SeedPlaces inserts places into the store
func SeedPlaces(t *testing.T, store *sqlite.Store, places ...models.Place) {
	t.Helper()
	for i := range places {
		_, err := store.Places().Create(context.Background(), &places[i])
		require.NoError(t, err)
	}
}
