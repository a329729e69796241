package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamConfig configures the NATS JetStream broker
type JetStreamConfig struct {
	URL              string
	ClientName       string
	Stream           string
	Subjects         []string
	MaxAge           time.Duration
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	FetchWait        time.Duration
	MaxReconnects    int
}

// DefaultJetStreamConfig returns the settings used when fields are left empty
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:              nats.DefaultURL,
		ClientName:       "trip-planner",
		Stream:           "PLANNING",
		Subjects:         []string{"planning.>"},
		MaxAge:           7 * 24 * time.Hour,
		ConnectTimeout:   5 * time.Second,
		OperationTimeout: 10 * time.Second,
		FetchWait:        5 * time.Second,
		MaxReconnects:    10,
	}
}

// JetStream is a Broker backed by a NATS JetStream stream. The connection is
// opened on first use and shared by every publisher and consumer.
type JetStream struct {
	cfg JetStreamConfig

	mu     sync.Mutex
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	closed bool
}

// NewJetStream creates a client; no connection is made until first use
func NewJetStream(cfg JetStreamConfig) *JetStream {
	def := DefaultJetStreamConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ClientName == "" {
		cfg.ClientName = def.ClientName
	}
	if cfg.Stream == "" {
		cfg.Stream = def.Stream
	}
	if len(cfg.Subjects) == 0 {
		cfg.Subjects = def.Subjects
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = def.OperationTimeout
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = def.FetchWait
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = def.MaxReconnects
	}
	return &JetStream{cfg: cfg}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrQueueUnavailable, op, err)
}

// connect lazily dials NATS and declares the stream
func (c *JetStream) connect(ctx context.Context) (jetstream.Stream, jetstream.JetStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, nil, unavailable("connect", ErrClosed)
	}
	if c.stream != nil && c.nc != nil && !c.nc.IsClosed() {
		return c.stream, c.js, nil
	}

	nc, err := nats.Connect(c.cfg.URL,
		nats.Name(c.cfg.ClientName),
		nats.Timeout(c.cfg.ConnectTimeout),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[QUEUE] Disconnected from NATS: err=%v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[QUEUE] Reconnected to NATS: url=%s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, unavailable("connect", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, unavailable("jetstream", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	stream, err := js.CreateOrUpdateStream(opCtx, jetstream.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  c.cfg.Subjects,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    c.cfg.MaxAge,
	})
	if err != nil {
		nc.Close()
		return nil, nil, unavailable("declare stream", err)
	}

	log.Printf("[QUEUE] Connected to NATS: url=%s stream=%s", c.cfg.URL, c.cfg.Stream)

	c.nc = nc
	c.js = js
	c.stream = stream
	return stream, js, nil
}

func (c *JetStream) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	_, js, err := c.connect(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	if _, err := js.Publish(opCtx, subject, data); err != nil {
		return unavailable("publish "+subject, err)
	}
	return nil
}

// Consume pulls batches of up to Prefetch messages and handles them
// concurrently, acking or naking each one. It returns when ctx is done.
func (c *JetStream) Consume(ctx context.Context, subject string, opts ConsumeOptions, handler Handler) error {
	opts = opts.withDefaults()

	stream, _, err := c.connect(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	consumer, err := stream.CreateOrUpdateConsumer(opCtx, consumerConfig(subject, opts))
	cancel()
	if err != nil {
		return unavailable("create consumer", err)
	}

	log.Printf("[QUEUE] Consuming: subject=%s durable=%s prefetch=%d", subject, opts.Durable, opts.Prefetch)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batch, err := consumer.Fetch(opts.Prefetch, jetstream.FetchMaxWait(c.cfg.FetchWait))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, nats.ErrConnectionClosed) {
				return unavailable("fetch", err)
			}
			log.Printf("[QUEUE] Fetch error: subject=%s err=%v", subject, err)
			continue
		}

		var wg sync.WaitGroup
		for msg := range batch.Messages() {
			wg.Add(1)
			go func(msg jetstream.Msg) {
				defer wg.Done()
				c.handle(ctx, msg, opts.AckWait, handler)
			}(msg)
		}
		wg.Wait()

		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, nats.ErrTimeout) {
			log.Printf("[QUEUE] Batch error: subject=%s err=%v", subject, err)
		}
	}
}

func consumerConfig(subject string, opts ConsumeOptions) jetstream.ConsumerConfig {
	cfg := jetstream.ConsumerConfig{
		Durable:           opts.Durable,
		FilterSubject:     subject,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           opts.AckWait,
		MaxDeliver:        opts.MaxDeliver,
		MaxAckPending:     opts.Prefetch,
		InactiveThreshold: opts.InactiveThreshold,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
	}
	if opts.DeliverNew {
		cfg.DeliverPolicy = jetstream.DeliverNewPolicy
	}
	return cfg
}

func (c *JetStream) handle(ctx context.Context, msg jetstream.Msg, ackWait time.Duration, handler Handler) {
	var delivered uint64 = 1
	if md, err := msg.Metadata(); err == nil {
		delivered = md.NumDelivered
	}

	stop := make(chan struct{})
	var beating sync.WaitGroup
	beating.Add(1)
	go func() {
		defer beating.Done()
		keepAlive(msg, ackWait/2, stop)
	}()

	err := handler(ctx, Message{Subject: msg.Subject(), Data: msg.Data(), NumDelivered: delivered})
	close(stop)
	beating.Wait()
	if err != nil {
		log.Printf("[QUEUE] Handler failed, requesting redelivery: subject=%s delivery=%d err=%v", msg.Subject(), delivered, err)
		if nakErr := msg.Nak(); nakErr != nil {
			log.Printf("[QUEUE] Failed to nak message: subject=%s err=%v", msg.Subject(), nakErr)
		}
		return
	}

	if ackErr := msg.Ack(); ackErr != nil {
		log.Printf("[QUEUE] Failed to ack message: subject=%s err=%v", msg.Subject(), ackErr)
	}
}

type progressReporter interface {
	InProgress() error
}

// keepAlive resets the ack timer every interval until stop is closed, so a
// long-running handler is not redelivered to another worker mid-flight.
func keepAlive(msg progressReporter, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := msg.InProgress(); err != nil {
				log.Printf("[QUEUE] Failed to extend ack deadline: err=%v", err)
			}
		}
	}
}

func (c *JetStream) HealthCheck(ctx context.Context) error {
	_, _, err := c.connect(ctx)
	return err
}

func (c *JetStream) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.nc != nil {
		err := c.nc.Drain()
		c.nc = nil
		c.js = nil
		c.stream = nil
		return err
	}
	return nil
}
