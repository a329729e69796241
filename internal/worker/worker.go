package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trip-planner/internal/database"
	"trip-planner/internal/metrics"
	"trip-planner/internal/models"
	"trip-planner/internal/planner"
	"trip-planner/internal/queue"
)

// DurableName is the consumer group shared by all worker instances
const DurableName = "itinerary-worker"

// Notifier pushes a message to a connected requester
type Notifier interface {
	Notify(requesterID string, payload any) bool
}

// Config controls consumption
type Config struct {
	Prefetch   int
	MaxDeliver int
	AckWait    time.Duration
}

// Worker consumes planning jobs and records their outcome in history
type Worker struct {
	History   database.HistoryRepository
	Builder   planner.Builder
	Consumer  queue.Consumer
	Publisher queue.Publisher
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Config    Config

	Now func() time.Time
}

// New creates a worker. notifier may be nil when results are relayed
// through the queue instead.
func New(history database.HistoryRepository, builder planner.Builder, broker queue.Broker, notifier Notifier, m *metrics.Metrics, cfg Config) *Worker {
	return &Worker{
		History:   history,
		Builder:   builder,
		Consumer:  broker,
		Publisher: broker,
		Notifier:  notifier,
		Metrics:   m,
		Config:    cfg,
		Now:       time.Now,
	}
}

// Run consumes planning.requested until ctx is done
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[WORKER] Starting: durable=%s prefetch=%d maxDeliver=%d", DurableName, w.Config.Prefetch, w.Config.MaxDeliver)

	err := w.Consumer.Consume(ctx, queue.SubjectPlanningRequested, queue.ConsumeOptions{
		Durable:    DurableName,
		Prefetch:   w.Config.Prefetch,
		MaxDeliver: w.Config.MaxDeliver,
		AckWait:    w.Config.AckWait,
	}, w.Handle)
	if errors.Is(err, context.Canceled) {
		log.Printf("[WORKER] Stopped")
		return nil
	}
	return err
}

// Handle processes one job message. It returns an error only when the
// outcome could not be recorded, so the broker redelivers the job.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	start := time.Now()

	var job models.PlanningJob
	if err := msg.Decode(&job); err != nil || job.RequestID == "" {
		log.Printf("[WARN] Dropping malformed planning job: delivery=%d err=%v", msg.NumDelivered, err)
		w.Metrics.JobHandled("malformed", time.Since(start))
		return nil
	}

	req := job.Request
	req.RequestID = job.RequestID
	if req.RequesterID == "" {
		req.RequesterID = job.RequesterID
	}

	existing, err := w.History.GetByRequestID(ctx, req.RequestID)
	switch {
	case err == nil && existing.Status.Terminal():
		log.Printf("[WORKER] Skipping finished job: request=%s status=%s", req.RequestID, existing.Status)
		w.Metrics.JobHandled("duplicate", time.Since(start))
		return nil
	case errors.Is(err, database.ErrNotFound):
		if _, err := w.History.CreatePending(ctx, req); err != nil && !errors.Is(err, database.ErrDuplicate) {
			return fmt.Errorf("failed to record pending job %s: %w", req.RequestID, err)
		}
	case err != nil:
		return fmt.Errorf("failed to load job %s: %w", req.RequestID, err)
	}

	log.Printf("[WORKER] Processing job: request=%s delivery=%d", req.RequestID, msg.NumDelivered)

	days, err := w.process(ctx, req)
	if err == nil {
		err = w.History.MarkCompleted(ctx, req.RequestID, days)
		if errors.Is(err, database.ErrAlreadyFinalized) {
			log.Printf("[WORKER] Job finalized elsewhere: request=%s", req.RequestID)
			w.Metrics.JobHandled("duplicate", time.Since(start))
			return nil
		}
		if err == nil {
			log.Printf("[WORKER] Job completed: request=%s days=%d", req.RequestID, len(days))
			w.Metrics.JobHandled("completed", time.Since(start))
			w.announce(ctx, queue.SubjectPlanningCompleted, models.PlanningEvent{
				Type:        queue.SubjectPlanningCompleted,
				RequestID:   req.RequestID,
				RequesterID: req.RequesterID,
				Status:      models.PlanStatusCompleted,
				Days:        days,
				OccurredAt:  w.Now().UTC(),
			})
			return nil
		}
	}

	log.Printf("[ERROR] Job failed: request=%s err=%v", req.RequestID, err)
	if markErr := w.History.MarkFailed(ctx, req.RequestID, err.Error()); markErr != nil {
		if errors.Is(markErr, database.ErrAlreadyFinalized) {
			w.Metrics.JobHandled("duplicate", time.Since(start))
			return nil
		}
		w.Metrics.JobHandled("retry", time.Since(start))
		return fmt.Errorf("failed to record failure of job %s: %w", req.RequestID, markErr)
	}

	w.Metrics.JobHandled("failed", time.Since(start))
	w.announce(ctx, queue.SubjectPlanningFailed, models.PlanningEvent{
		Type:        queue.SubjectPlanningFailed,
		RequestID:   req.RequestID,
		RequesterID: req.RequesterID,
		Status:      models.PlanStatusFailed,
		Error:       err.Error(),
		OccurredAt:  w.Now().UTC(),
	})
	return nil
}

func (w *Worker) process(ctx context.Context, req models.PlanningRequest) ([]models.DayPlan, error) {
	req, err := planner.Validate(req)
	if err != nil {
		return nil, err
	}
	it, err := w.Builder.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	return it.Days, nil
}

// announce publishes the outcome event and notifies the requester directly.
// Both are best effort.
func (w *Worker) announce(ctx context.Context, subject string, event models.PlanningEvent) {
	if w.Publisher != nil {
		if err := w.Publisher.Publish(ctx, subject, event); err != nil {
			log.Printf("[WARN] Failed to publish outcome: request=%s subject=%s err=%v", event.RequestID, subject, err)
		}
	}
	if w.Notifier != nil && event.RequesterID != "" {
		if !w.Notifier.Notify(event.RequesterID, event) {
			log.Printf("[WORKER] Requester not connected: request=%s requester=%s", event.RequestID, event.RequesterID)
		}
	}
}
