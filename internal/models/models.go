package models

import "time"

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Address is the postal address attached to places, hotels and events
type Address struct {
	Line    string `json:"line,omitempty" yaml:"line"`
	City    string `json:"city" yaml:"city"`
	State   string `json:"state" yaml:"state"`
	Country string `json:"country,omitempty" yaml:"country"`
}

// Place is a point of interest that can appear in an itinerary
type Place struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Description   string  `json:"description,omitempty" yaml:"description"`
	Image         string  `json:"image,omitempty" yaml:"image"`
	Category      string  `json:"category,omitempty" yaml:"category"`
	Address       Address `json:"address" yaml:"address"`
	Lat           float64 `json:"lat" yaml:"lat"`
	Lng           float64 `json:"lng" yaml:"lng"`
	AverageRating float64 `json:"averageRating" yaml:"averageRating"`
	Popularity    float64 `json:"popularity" yaml:"popularity"`
}

// GetCoords returns the coordinates of the place
func (p Place) GetCoords() Coordinates {
	return Coordinates{Lat: p.Lat, Lng: p.Lng}
}

// Hotel is a lodging option near a place
type Hotel struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Image         string  `json:"image,omitempty" yaml:"image"`
	Address       Address `json:"address" yaml:"address"`
	Lat           float64 `json:"lat" yaml:"lat"`
	Lng           float64 `json:"lng" yaml:"lng"`
	AverageRating float64 `json:"averageRating" yaml:"averageRating"`
	PricePerNight float64 `json:"pricePerNight,omitempty" yaml:"pricePerNight"`
}

// GetCoords returns the coordinates of the hotel
func (h Hotel) GetCoords() Coordinates {
	return Coordinates{Lat: h.Lat, Lng: h.Lng}
}

// Event is a time-bounded happening at a location
type Event struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Image       string    `json:"image,omitempty" yaml:"image"`
	Address     Address   `json:"address" yaml:"address"`
	Lat         float64   `json:"lat" yaml:"lat"`
	Lng         float64   `json:"lng" yaml:"lng"`
	From        time.Time `json:"from" yaml:"from"`
	To          time.Time `json:"to" yaml:"to"`
}

// GetCoords returns the coordinates of the event
func (e Event) GetCoords() Coordinates {
	return Coordinates{Lat: e.Lat, Lng: e.Lng}
}

// Overlaps reports whether the event intersects the inclusive window [start, end]
func (e Event) Overlaps(start, end time.Time) bool {
	return !e.To.Before(start) && !e.From.After(end)
}

// LocationNode is a vertex of the routing graph
type LocationNode struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Direction controls how an edge upsert materialises directed edges
type Direction string

const (
	DirectionBoth Direction = "both" // from→to and to→from
	DirectionFrom Direction = "from" // from→to only
	DirectionTo   Direction = "to"   // to→from only
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	switch d {
	case DirectionBoth, DirectionFrom, DirectionTo:
		return true
	}
	return false
}

// RouteEdge is a single directed, weighted edge
type RouteEdge struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Mode     string  `json:"mode"`
	Distance float64 `json:"distance"`
	RoadRef  string  `json:"roadId,omitempty"`
}

// RouteSegment is the shortest path between two stops
type RouteSegment struct {
	From  string      `json:"from"`
	To    string      `json:"to"`
	Nodes []string    `json:"nodes"`
	Cost  float64     `json:"cost"`
	Edges []RouteEdge `json:"edges"`
}

// WaypointRoute is the concatenation of segments across an ordered stop list
type WaypointRoute struct {
	TotalDistance float64        `json:"totalDistance"`
	Places        []string       `json:"places"`
	Segments      []RouteSegment `json:"segments"`
}

// PlanningRequest is an immutable trip planning request
type PlanningRequest struct {
	RequestID      string     `json:"requestId,omitempty"`
	RequesterID    string     `json:"requesterId,omitempty"`
	FromPlace      string     `json:"fromPlace"`
	ToPlace        string     `json:"toPlace"`
	Waypoints      []string   `json:"waypoints,omitempty"`
	PersonCount    int        `json:"personCount"`
	DaysOfTrip     int        `json:"daysOfTrip"`
	StartTimestamp *time.Time `json:"startTimestamp,omitempty"`
	EndTimestamp   *time.Time `json:"endTimestamp,omitempty"`
	SubmittedAt    time.Time  `json:"submittedAt"`
}

// Stops returns from, waypoints and to in travel order
func (r PlanningRequest) Stops() []string {
	stops := make([]string, 0, len(r.Waypoints)+2)
	stops = append(stops, r.FromPlace)
	stops = append(stops, r.Waypoints...)
	stops = append(stops, r.ToPlace)
	return stops
}

// PlanStatus is the lifecycle state of a planning result
type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "pending"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
)

// Terminal reports whether no further transition is allowed
func (s PlanStatus) Terminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusFailed
}

// PlanningResult is the history record of one planning request
type PlanningResult struct {
	RequestID   string          `json:"requestId"`
	RequesterID string          `json:"requesterId,omitempty"`
	Status      PlanStatus      `json:"status"`
	Inputs      PlanningRequest `json:"inputs"`
	Days        []DayPlan       `json:"days"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// DayPlan is one day of the itinerary
type DayPlan struct {
	Day    int    `json:"day"`
	Agenda Agenda `json:"agenda"`
}

// Agenda holds the three slots of a day; empty slots are nil
type Agenda struct {
	Morning   *PlaceBundle `json:"morning"`
	Afternoon *PlaceBundle `json:"afternoon"`
	Evening   *PlaceBundle `json:"evening"`
}

// Filled returns the number of non-empty slots
func (a Agenda) Filled() int {
	n := 0
	for _, b := range []*PlaceBundle{a.Morning, a.Afternoon, a.Evening} {
		if b != nil {
			n++
		}
	}
	return n
}

// PlaceBundle is a snapshot of a place with its lodging and events
type PlaceBundle struct {
	Place  PlaceSummary   `json:"place"`
	Hotel  *HotelSummary  `json:"hotel"`
	Events []EventSummary `json:"events"`
}

// PlaceSummary is the read-only projection of a place stored in a plan
type PlaceSummary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Image         string  `json:"image,omitempty"`
	Address       Address `json:"address"`
	AverageRating float64 `json:"averageRating"`
	Category      string  `json:"category,omitempty"`
}

// HotelSummary is the read-only projection of a hotel stored in a plan
type HotelSummary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Image         string  `json:"image,omitempty"`
	Address       Address `json:"address"`
	AverageRating float64 `json:"averageRating"`
	PricePerNight float64 `json:"pricePerNight,omitempty"`
}

// EventSummary is the read-only projection of an event stored in a plan
type EventSummary struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Image   string    `json:"image,omitempty"`
	Address Address   `json:"address"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
}

// PlanItem pairs a candidate place with its enrichment
type PlanItem struct {
	Place  Place   `json:"place"`
	Hotel  *Hotel  `json:"hotel,omitempty"`
	Events []Event `json:"events,omitempty"`
}

// PlanningJob is the self-contained payload published for async planning
type PlanningJob struct {
	RequestID   string          `json:"requestId"`
	RequesterID string          `json:"requesterId,omitempty"`
	Request     PlanningRequest `json:"request"`
}

// PlanningEvent announces the terminal outcome of a planning job
type PlanningEvent struct {
	Type        string     `json:"type"`
	RequestID   string     `json:"requestId"`
	RequesterID string     `json:"requesterId,omitempty"`
	Status      PlanStatus `json:"status"`
	Days        []DayPlan  `json:"days,omitempty"`
	Error       string     `json:"error,omitempty"`
	OccurredAt  time.Time  `json:"occurredAt"`
}
