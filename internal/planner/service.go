package planner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"trip-planner/internal/database"
	"trip-planner/internal/itinerary"
	"trip-planner/internal/metrics"
	"trip-planner/internal/models"
	"trip-planner/internal/queue"
	"trip-planner/internal/routing"
)

// MaxDaysOfTrip bounds the length of a requested trip
const MaxDaysOfTrip = 365

// Builder produces an itinerary for a validated request
type Builder interface {
	Build(ctx context.Context, req models.PlanningRequest) (*itinerary.Itinerary, error)
}

// Graph is the routing engine surface exposed through the API
type Graph interface {
	routing.Router
	UpsertEdge(ctx context.Context, in routing.EdgeInput) (*routing.EdgeSnapshot, error)
	DeleteEdge(ctx context.Context, from, to string) (int, error)
}

// Service coordinates planning requests in sync and async mode
type Service struct {
	History   database.HistoryRepository
	Builder   Builder
	Graph     Graph
	Publisher queue.Publisher
	Metrics   *metrics.Metrics

	Now   func() time.Time
	NewID func() string
}

// NewService creates a planning service
func NewService(history database.HistoryRepository, builder Builder, graph Graph, publisher queue.Publisher, m *metrics.Metrics) *Service {
	return &Service{
		History:   history,
		Builder:   builder,
		Graph:     graph,
		Publisher: publisher,
		Metrics:   m,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// Validate checks a request and returns it with defaults applied
func Validate(req models.PlanningRequest) (models.PlanningRequest, error) {
	var problems []string

	req.FromPlace = strings.TrimSpace(req.FromPlace)
	req.ToPlace = strings.TrimSpace(req.ToPlace)
	if req.FromPlace == "" {
		problems = append(problems, "fromPlace is required")
	}
	if req.ToPlace == "" {
		problems = append(problems, "toPlace is required")
	}
	for i, w := range req.Waypoints {
		if strings.TrimSpace(w) == "" {
			problems = append(problems, fmt.Sprintf("waypoints[%d] is empty", i))
		}
	}
	if req.DaysOfTrip < 0 || req.DaysOfTrip > MaxDaysOfTrip {
		problems = append(problems, fmt.Sprintf("daysOfTrip must be between 0 and %d", MaxDaysOfTrip))
	}
	if req.PersonCount < 0 {
		problems = append(problems, "personCount must not be negative")
	}
	if (req.StartTimestamp == nil) != (req.EndTimestamp == nil) {
		problems = append(problems, "startTimestamp and endTimestamp must be given together")
	}
	if req.StartTimestamp != nil && req.EndTimestamp != nil && req.EndTimestamp.Before(*req.StartTimestamp) {
		problems = append(problems, "endTimestamp must not be before startTimestamp")
	}

	if len(problems) > 0 {
		return req, &ValidationError{Problems: problems}
	}

	if req.PersonCount == 0 {
		req.PersonCount = 1
	}
	return req, nil
}

// PlanSync builds an itinerary inline and archives it as completed.
// Archive failures are logged and do not fail the request.
func (s *Service) PlanSync(ctx context.Context, req models.PlanningRequest) ([]models.DayPlan, error) {
	req, err := Validate(req)
	if err != nil {
		s.Metrics.PlanRequest("sync", "invalid")
		return nil, err
	}

	req.RequestID = s.NewID()
	req.SubmittedAt = s.Now().UTC()

	it, err := s.Builder.Build(ctx, req)
	if err != nil {
		s.Metrics.PlanRequest("sync", "failed")
		log.Printf("[PLANNER] Sync planning failed: request=%s err=%v", req.RequestID, err)
		return nil, err
	}

	if _, err := s.History.CreateCompleted(ctx, req, it.Days); err != nil {
		log.Printf("[WARN] Failed to archive plan: request=%s err=%v", req.RequestID, err)
	}

	s.Metrics.PlanRequest("sync", "completed")
	log.Printf("[PLANNER] Planned trip: request=%s days=%d", req.RequestID, len(it.Days))
	return it.Days, nil
}

// Enqueue records a pending request and publishes it for a worker.
// When publishing fails the record is marked failed and the error
// wraps queue.ErrQueueUnavailable.
func (s *Service) Enqueue(ctx context.Context, req models.PlanningRequest) (*models.PlanningResult, error) {
	req, err := Validate(req)
	if err != nil {
		s.Metrics.PlanRequest("async", "invalid")
		return nil, err
	}

	req.RequestID = s.NewID()
	req.SubmittedAt = s.Now().UTC()

	pending, err := s.History.CreatePending(ctx, req)
	if err != nil {
		s.Metrics.PlanRequest("async", "failed")
		return nil, fmt.Errorf("failed to record request: %w", err)
	}

	job := models.PlanningJob{RequestID: req.RequestID, RequesterID: req.RequesterID, Request: req}
	if err := s.Publisher.Publish(ctx, queue.SubjectPlanningRequested, job); err != nil {
		s.Metrics.PlanRequest("async", "unavailable")
		log.Printf("[ERROR] Failed to publish planning job: request=%s err=%v", req.RequestID, err)
		if markErr := s.History.MarkFailed(ctx, req.RequestID, err.Error()); markErr != nil {
			log.Printf("[ERROR] Failed to mark unpublished request failed: request=%s err=%v", req.RequestID, markErr)
		}
		return nil, err
	}

	s.Metrics.PlanRequest("async", "queued")
	log.Printf("[PLANNER] Queued planning job: request=%s requester=%s", req.RequestID, req.RequesterID)
	return pending, nil
}

// Get returns the history record of a request
func (s *Service) Get(ctx context.Context, requestID string) (*models.PlanningResult, error) {
	res, err := s.History.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListHistory lists a requester's plans, newest first
func (s *Service) ListHistory(ctx context.Context, requesterID string, page, limit int) ([]models.PlanningResult, int, error) {
	return s.History.ListByRequester(ctx, requesterID, page, limit)
}

// Route computes the shortest route through the given stops
func (s *Service) Route(ctx context.Context, from, to string, waypoints []string) (*models.WaypointRoute, error) {
	stops := make([]string, 0, len(waypoints)+2)
	stops = append(stops, from)
	stops = append(stops, waypoints...)
	stops = append(stops, to)
	return s.Graph.ShortestPathWithWaypoints(ctx, stops)
}

// UpsertEdge creates or updates a path between two entities
func (s *Service) UpsertEdge(ctx context.Context, in routing.EdgeInput) (*routing.EdgeSnapshot, error) {
	return s.Graph.UpsertEdge(ctx, in)
}

// DeleteEdge removes the directed path from -> to
func (s *Service) DeleteEdge(ctx context.Context, from, to string) (int, error) {
	return s.Graph.DeleteEdge(ctx, from, to)
}
