package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

const memoryGroupBuffer = 1024

type memoryMessage struct {
	subject   string
	data      []byte
	delivered uint64
}

type memoryGroup struct {
	ch chan memoryMessage
}

type memorySubject struct {
	backlog []memoryMessage
	groups  map[string]*memoryGroup
}

// Memory is an in-process broker with the same ack semantics as JetStream.
// Messages published before any consumer exists are held until one subscribes.
type Memory struct {
	mu       sync.Mutex
	subjects map[string]*memorySubject
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewMemory creates an empty in-process broker
func NewMemory() *Memory {
	return &Memory{
		subjects: make(map[string]*memorySubject),
		done:     make(chan struct{}),
	}
}

func (m *Memory) subject(name string) *memorySubject {
	s, ok := m.subjects[name]
	if !ok {
		s = &memorySubject{groups: make(map[string]*memoryGroup)}
		m.subjects[name] = s
	}
	return s
}

func (m *Memory) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrQueueUnavailable, ErrClosed)
	}
	s := m.subject(subject)
	msg := memoryMessage{subject: subject, data: data}
	if len(s.groups) == 0 {
		s.backlog = append(s.backlog, msg)
		m.mu.Unlock()
		return nil
	}
	groups := make([]*memoryGroup, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	m.mu.Unlock()

	for _, g := range groups {
		select {
		case g.ch <- msg:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrQueueUnavailable, ctx.Err())
		case <-m.done:
			return fmt.Errorf("%w: %w", ErrQueueUnavailable, ErrClosed)
		}
	}
	return nil
}

func (m *Memory) Consume(ctx context.Context, subject string, opts ConsumeOptions, handler Handler) error {
	opts = opts.withDefaults()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrQueueUnavailable, ErrClosed)
	}
	s := m.subject(subject)
	g, ok := s.groups[opts.Durable]
	if !ok {
		g = &memoryGroup{ch: make(chan memoryMessage, memoryGroupBuffer)}
		s.groups[opts.Durable] = g
		if !opts.DeliverNew {
			m.replayBacklog(s, g)
		}
	}
	m.mu.Unlock()

	var workers sync.WaitGroup
	for i := 0; i < opts.Prefetch; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			m.work(ctx, g, opts, handler)
		}()
	}
	workers.Wait()

	return ctx.Err()
}

// replayBacklog hands messages published before any consumer existed to g.
// Callers hold m.mu.
func (m *Memory) replayBacklog(s *memorySubject, g *memoryGroup) {
	backlog := s.backlog
	s.backlog = nil
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for _, msg := range backlog {
			select {
			case g.ch <- msg:
			case <-m.done:
				return
			}
		}
	}()
}

func (m *Memory) work(ctx context.Context, g *memoryGroup, opts ConsumeOptions, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case msg := <-g.ch:
			msg.delivered++
			err := handler(ctx, Message{Subject: msg.subject, Data: msg.data, NumDelivered: msg.delivered})
			if err == nil {
				continue
			}
			if msg.delivered >= uint64(opts.MaxDeliver) {
				log.Printf("[QUEUE] Dropping message after max deliveries: subject=%s deliveries=%d err=%v",
					msg.subject, msg.delivered, err)
				continue
			}
			log.Printf("[QUEUE] Redelivering message: subject=%s delivery=%d err=%v", msg.subject, msg.delivered, err)
			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				return
			}
			m.wg.Add(1)
			m.mu.Unlock()
			go func() {
				defer m.wg.Done()
				select {
				case g.ch <- msg:
				case <-m.done:
				}
			}()
		}
	}
}

func (m *Memory) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close stops delivery; pending messages are discarded
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
