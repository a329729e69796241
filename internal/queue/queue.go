// Package queue is the publish/consume layer between the planning API and
// the worker. Handlers that return nil acknowledge the message; an error
// negatively acknowledges it so the broker redelivers, up to MaxDeliver times.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Subjects used by the planner
const (
	SubjectPlanningRequested = "planning.requested"
	SubjectPlanningCompleted = "planning.completed"
	SubjectPlanningFailed    = "planning.failed"
)

// ErrQueueUnavailable is returned when the broker cannot be reached in time
var ErrQueueUnavailable = errors.New("queue unavailable")

// ErrClosed is returned by operations on a closed broker
var ErrClosed = errors.New("queue closed")

// Message is a delivered payload
type Message struct {
	Subject      string
	Data         []byte
	NumDelivered uint64
}

// Decode unmarshals the JSON payload into v
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Handler processes one message
type Handler func(ctx context.Context, msg Message) error

// ConsumeOptions configures a durable consumer
type ConsumeOptions struct {
	// Durable names the consumer group; consumers sharing it compete for messages.
	Durable string
	// Prefetch bounds how many messages are handled concurrently.
	Prefetch int
	// MaxDeliver bounds redeliveries after negative acknowledgement.
	MaxDeliver int
	// AckWait is how long the broker waits for an ack before redelivering.
	AckWait time.Duration
	// InactiveThreshold removes the consumer after this long without a subscriber. Zero keeps it.
	InactiveThreshold time.Duration
	// DeliverNew starts a new consumer at the end of the stream instead of
	// replaying retained messages.
	DeliverNew bool
}

func (o ConsumeOptions) withDefaults() ConsumeOptions {
	if o.Prefetch <= 0 {
		o.Prefetch = 1
	}
	if o.MaxDeliver <= 0 {
		o.MaxDeliver = 1
	}
	if o.AckWait <= 0 {
		o.AckWait = 30 * time.Second
	}
	return o
}

// Publisher sends payloads to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Consumer runs a handler for every message on a subject until ctx is done
type Consumer interface {
	Consume(ctx context.Context, subject string, opts ConsumeOptions, handler Handler) error
}

// Broker is a publisher and consumer sharing one connection
type Broker interface {
	Publisher
	Consumer
	HealthCheck(ctx context.Context) error
	Close() error
}
