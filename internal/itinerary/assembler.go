package itinerary

import (
	"sort"

	"trip-planner/internal/distance"
	"trip-planner/internal/models"
)

const (
	// DefaultMaxDistanceKm bounds the distance from a group's seed place
	DefaultMaxDistanceKm = 20.0
	// SlotsPerDay is morning, afternoon and evening
	SlotsPerDay = 3
	// MaxEventsPerBundle caps the events copied into a slot
	MaxEventsPerBundle = 2

	ratingWeight     = 0.7
	popularityWeight = 0.3
)

// Itinerary is the assembled plan plus the proximity groups computed on the way
type Itinerary struct {
	Days   []models.DayPlan
	Groups [][]models.PlanItem
}

// Assembler turns enriched places into a day-by-day plan
type Assembler struct {
	MaxDistanceKm float64
}

// NewAssembler creates an assembler; maxDistanceKm <= 0 selects the default
func NewAssembler(maxDistanceKm float64) *Assembler {
	if maxDistanceKm <= 0 {
		maxDistanceKm = DefaultMaxDistanceKm
	}
	return &Assembler{MaxDistanceKm: maxDistanceKm}
}

// Score is the ranking weight of a place
func Score(p models.Place) float64 {
	return ratingWeight*p.AverageRating + popularityWeight*p.Popularity
}

// Prioritize returns a copy of items ordered by descending score.
// Equal scores keep their input order.
func Prioritize(items []models.PlanItem) []models.PlanItem {
	sorted := make([]models.PlanItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Score(sorted[i].Place) > Score(sorted[j].Place)
	})
	return sorted
}

// GroupByProximity clusters items greedily: each unvisited item seeds a group
// and pulls in every later unvisited item within MaxDistanceKm of the seed.
func (a *Assembler) GroupByProximity(items []models.PlanItem) ([][]models.PlanItem, error) {
	groups := [][]models.PlanItem{}
	visited := make([]bool, len(items))

	for i := range items {
		if visited[i] {
			continue
		}
		visited[i] = true
		seed := items[i]
		group := []models.PlanItem{seed}

		for j := i + 1; j < len(items); j++ {
			if visited[j] {
				continue
			}
			d, err := distance.HaversineKm(seed.Place.GetCoords(), items[j].Place.GetCoords())
			if err != nil {
				return nil, err
			}
			if d <= a.MaxDistanceKm {
				visited[j] = true
				group = append(group, items[j])
			}
		}
		groups = append(groups, group)
	}

	return groups, nil
}

// AssignDays fills morning, afternoon and evening for each day from the
// prioritized list. A place id is used at most once across the trip. Days
// past the end of the list are emitted with an empty agenda.
func AssignDays(prioritized []models.PlanItem, daysOfTrip int) []models.DayPlan {
	if daysOfTrip <= 0 {
		return []models.DayPlan{}
	}

	days := make([]models.DayPlan, 0, daysOfTrip)
	used := make(map[string]bool, len(prioritized))
	next := 0

	take := func() *models.PlaceBundle {
		for next < len(prioritized) {
			item := prioritized[next]
			next++
			if used[item.Place.ID] {
				continue
			}
			used[item.Place.ID] = true
			return newBundle(item)
		}
		return nil
	}

	for day := 1; day <= daysOfTrip; day++ {
		plan := models.DayPlan{Day: day}
		plan.Agenda.Morning = take()
		if plan.Agenda.Morning != nil {
			plan.Agenda.Afternoon = take()
		}
		if plan.Agenda.Afternoon != nil {
			plan.Agenda.Evening = take()
		}
		days = append(days, plan)
	}

	return days
}

// Assemble prioritizes, groups and schedules items. Groups are computed and
// returned but slot assignment follows the flat priority order.
func (a *Assembler) Assemble(items []models.PlanItem, daysOfTrip int) (*Itinerary, error) {
	prioritized := Prioritize(items)

	groups, err := a.GroupByProximity(prioritized)
	if err != nil {
		return nil, err
	}

	return &Itinerary{
		Days:   AssignDays(prioritized, daysOfTrip),
		Groups: groups,
	}, nil
}

func newBundle(item models.PlanItem) *models.PlaceBundle {
	p := item.Place
	bundle := &models.PlaceBundle{
		Place: models.PlaceSummary{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Image:         p.Image,
			Address:       p.Address,
			AverageRating: p.AverageRating,
			Category:      p.Category,
		},
		Events: []models.EventSummary{},
	}

	if h := item.Hotel; h != nil {
		bundle.Hotel = &models.HotelSummary{
			ID:            h.ID,
			Name:          h.Name,
			Image:         h.Image,
			Address:       h.Address,
			AverageRating: h.AverageRating,
			PricePerNight: h.PricePerNight,
		}
	}

	for i, e := range item.Events {
		if i == MaxEventsPerBundle {
			break
		}
		bundle.Events = append(bundle.Events, models.EventSummary{
			ID:      e.ID,
			Name:    e.Name,
			Image:   e.Image,
			Address: e.Address,
			From:    e.From,
			To:      e.To,
		})
	}

	return bundle
}
