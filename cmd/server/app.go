package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trip-planner/internal/config"
	"trip-planner/internal/itinerary"
	"trip-planner/internal/metrics"
	"trip-planner/internal/planner"
	"trip-planner/internal/queue"
	"trip-planner/internal/routing"
	"trip-planner/internal/sqlite"
)

// app holds the dependencies shared by every command
type app struct {
	cfg      *config.Config
	store    *sqlite.Store
	broker   queue.Broker
	metrics  *metrics.Metrics
	engine   *routing.Engine
	pipeline *planner.Pipeline
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log.Printf("Initializing data store: path=%s", cfg.Database.Path)
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	m := metrics.New()
	engine := routing.NewEngine(store.Edges(), routing.NewEntityResolver(store), m)

	enricher := itinerary.NewEnricher(store.Hotels(), store.Events(), itinerary.NewRandom(cfg.Planner.RandomSeed))
	enricher.RadiusKm = cfg.Planner.LodgingRadiusKm
	enricher.NearestK = cfg.Planner.NearestHotels
	enricher.MaxEvents = cfg.Planner.EventsPerPlace
	enricher.Workers = cfg.Planner.LookupWorkers

	return &app{
		cfg:     cfg,
		store:   store,
		broker:  newBroker(cfg.Queue),
		metrics: m,
		engine:  engine,
		pipeline: &planner.Pipeline{
			Places:    store.Places(),
			Router:    engine,
			Enricher:  enricher,
			Assembler: itinerary.NewAssembler(cfg.Planner.GroupDistanceKm),
		},
	}, nil
}

// newBroker picks JetStream when a NATS URL is configured and the
// in-process broker otherwise
func newBroker(cfg config.QueueConfig) queue.Broker {
	if cfg.URL == "" {
		log.Printf("[QUEUE] No NATS URL configured, using in-process broker")
		return queue.NewMemory()
	}
	return queue.NewJetStream(queue.JetStreamConfig{
		URL:              cfg.URL,
		Stream:           cfg.Stream,
		ConnectTimeout:   cfg.ConnectTimeout,
		OperationTimeout: cfg.OperationTimeout,
	})
}

func (a *app) service() *planner.Service {
	return planner.NewService(a.store.History(), a.pipeline, a.engine, a.broker, a.metrics)
}

func (a *app) Close() {
	if err := a.broker.Close(); err != nil {
		log.Printf("[WARN] Failed to close queue: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("[WARN] Failed to close data store: %v", err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
