package itinerary

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"trip-planner/internal/database"
	"trip-planner/internal/distance"
	"trip-planner/internal/models"
)

const (
	DefaultLodgingRadiusKm = 15.0
	DefaultNearestHotels   = 5
	DefaultLookupWorkers   = 4
)

// HotelFinder lists hotels around a point
type HotelFinder interface {
	ListWithinRadius(ctx context.Context, center models.Coordinates, radiusKm float64) ([]models.Hotel, error)
}

// EventFinder lists events around a point, optionally restricted to a window
type EventFinder interface {
	ListWithinRadius(ctx context.Context, center models.Coordinates, radiusKm float64, window *database.TimeWindow) ([]models.Event, error)
}

// RandomSource is the subset of *rand.Rand the enricher needs
type RandomSource interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// LockedRand makes a *rand.Rand safe for concurrent jobs
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a seeded source; seed 0 picks a random seed
func NewRandom(seed uint64) *LockedRand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &LockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *LockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *LockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

// Enricher picks a hotel and events for each candidate place
type Enricher struct {
	Hotels    HotelFinder
	Events    EventFinder
	Random    RandomSource
	RadiusKm  float64
	NearestK  int
	MaxEvents int
	Workers   int
}

// NewEnricher creates an enricher with default radius and limits
func NewEnricher(hotels HotelFinder, events EventFinder, random RandomSource) *Enricher {
	return &Enricher{
		Hotels:    hotels,
		Events:    events,
		Random:    random,
		RadiusKm:  DefaultLodgingRadiusKm,
		NearestK:  DefaultNearestHotels,
		MaxEvents: MaxEventsPerBundle,
		Workers:   DefaultLookupWorkers,
	}
}

// Window builds the event filter for a trip; nil when either bound is missing
func Window(start, end *time.Time) *database.TimeWindow {
	if start == nil || end == nil {
		return nil
	}
	return &database.TimeWindow{Start: *start, End: *end}
}

type candidates struct {
	hotels []models.Hotel
	events []models.Event
}

// EnrichAll returns one PlanItem per place in input order. Store lookups run
// concurrently; random choices are made sequentially so a seeded source gives
// repeatable output.
func (e *Enricher) EnrichAll(ctx context.Context, places []models.Place, window *database.TimeWindow) ([]models.PlanItem, error) {
	found := make([]candidates, len(places))

	g, gctx := errgroup.WithContext(ctx)
	workers := e.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for i := range places {
		g.Go(func() error {
			c, err := e.lookup(gctx, places[i], window)
			if err != nil {
				return fmt.Errorf("enrich place %s: %w", places[i].ID, err)
			}
			found[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]models.PlanItem, len(places))
	for i, p := range places {
		items[i] = models.PlanItem{
			Place:  p,
			Hotel:  e.pickHotel(found[i].hotels),
			Events: e.pickEvents(found[i].events),
		}
	}
	return items, nil
}

func (e *Enricher) lookup(ctx context.Context, p models.Place, window *database.TimeWindow) (candidates, error) {
	center := p.GetCoords()

	hotels, err := e.Hotels.ListWithinRadius(ctx, center, e.RadiusKm)
	if err != nil {
		return candidates{}, fmt.Errorf("hotel lookup: %w", err)
	}
	hotels, err = distance.NearestK(center, e.NearestK, hotels)
	if err != nil {
		return candidates{}, err
	}

	events, err := e.Events.ListWithinRadius(ctx, center, e.RadiusKm, window)
	if err != nil {
		return candidates{}, fmt.Errorf("event lookup: %w", err)
	}

	return candidates{hotels: hotels, events: events}, nil
}

func (e *Enricher) pickHotel(hotels []models.Hotel) *models.Hotel {
	if len(hotels) == 0 {
		return nil
	}
	h := hotels[e.Random.IntN(len(hotels))]
	return &h
}

func (e *Enricher) pickEvents(events []models.Event) []models.Event {
	shuffled := make([]models.Event, len(events))
	copy(shuffled, events)
	e.Random.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if len(shuffled) > e.MaxEvents {
		shuffled = shuffled[:e.MaxEvents]
	}
	return shuffled
}
