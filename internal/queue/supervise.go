package queue

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SuperviseConfig bounds the restart delay of a supervised consumer loop
type SuperviseConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultSuperviseConfig returns the restart delays used by the CLI
func DefaultSuperviseConfig() SuperviseConfig {
	return SuperviseConfig{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// Supervise runs fn until ctx is done, restarting it whenever it returns.
// Restarts back off exponentially up to MaxInterval; a run that stayed up
// longer than MaxInterval resets the delay. Queue outages therefore never
// end the caller, only cancellation does.
func Supervise(ctx context.Context, name string, cfg SuperviseConfig, fn func(context.Context) error) {
	def := DefaultSuperviseConfig()
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		started := time.Now()
		err := fn(ctx)
		if ctx.Err() != nil {
			return
		}

		if time.Since(started) > cfg.MaxInterval {
			b.Reset()
		}
		delay := b.NextBackOff()
		log.Printf("[QUEUE] %s stopped, restarting: in=%v err=%v", name, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
