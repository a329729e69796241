package main

import (
	"errors"

	"github.com/spf13/cobra"

	"trip-planner/internal/queue"
	"trip-planner/internal/worker"
)

var errNoBroker = errors.New("a standalone worker needs queue.url (or NATS_URL) to be set")

func workerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued planning requests",
		Long: `Run the itinerary worker only. Outcomes are written to history and
published as planning.completed / planning.failed events for API instances
to relay to connected clients. Requires a NATS URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Queue.URL == "" {
				return errNoBroker
			}

			ctx, stop := signalContext()
			defer stop()

			w := worker.New(a.store.History(), a.pipeline, a.broker, nil, a.metrics, worker.Config{
				Prefetch:   a.cfg.Queue.Prefetch,
				MaxDeliver: a.cfg.Queue.MaxDeliver,
				AckWait:    a.cfg.Queue.AckWait,
			})
			queue.Supervise(ctx, "worker", queue.DefaultSuperviseConfig(), w.Run)
			return nil
		},
	}
}
