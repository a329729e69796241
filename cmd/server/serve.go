package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trip-planner/internal/handlers"
	"trip-planner/internal/notify"
	"trip-planner/internal/queue"
	"trip-planner/internal/server"
	"trip-planner/internal/worker"
)

func serveCmd(configPath *string) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return runServe(ctx, *configPath, withWorker)
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "Also run the itinerary worker in this process")
	return cmd
}

// runServe serves the API until ctx is cancelled
func runServe(ctx context.Context, configPath string, withWorker bool) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	embedded := a.cfg.Queue.URL == ""
	if embedded && !withWorker {
		log.Printf("[WARN] In-process broker has no external consumers, enabling worker")
		withWorker = true
	}

	dispatcher := notify.NewDispatcher(a.metrics)

	srv, err := server.New(server.Config{
		Addr: a.cfg.Server.Addr,
		Handler: &handlers.Handler{
			DB:      a.store,
			Planner: a.service(),
			Queue:   a.broker,
		},
		Notifier: dispatcher,
		Metrics:  a.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if _, err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if withWorker {
		// With an external broker every API instance relays outcome events,
		// so the worker does not notify directly.
		var notifier worker.Notifier
		if embedded {
			notifier = dispatcher
		}
		w := worker.New(a.store.History(), a.pipeline, a.broker, notifier, a.metrics, worker.Config{
			Prefetch:   a.cfg.Queue.Prefetch,
			MaxDeliver: a.cfg.Queue.MaxDeliver,
			AckWait:    a.cfg.Queue.AckWait,
		})
		g.Go(func() error {
			queue.Supervise(gctx, "worker", queue.DefaultSuperviseConfig(), w.Run)
			return nil
		})
	}

	// Queue outages only degrade the async endpoints; the HTTP server keeps
	// serving until a signal cancels ctx.
	if !embedded {
		g.Go(func() error {
			queue.Supervise(gctx, "notification relay", queue.DefaultSuperviseConfig(), func(ctx context.Context) error {
				return dispatcher.Relay(ctx, a.broker)
			})
			return nil
		})
	}

	<-gctx.Done()
	log.Printf("Starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Println("Server stopped")
	return nil
}
