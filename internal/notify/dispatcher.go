// Package notify pushes planning outcomes to requesters over websockets.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"trip-planner/internal/metrics"
	"trip-planner/internal/models"
	"trip-planner/internal/queue"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

// RequesterHeader carries the requester id when no query parameter is given
const RequesterHeader = "X-Requester-ID"

type client struct {
	requesterID string
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Dispatcher keeps one live connection per requester. A new connection for
// the same requester replaces and closes the previous one.
type Dispatcher struct {
	mu      sync.RWMutex
	clients map[string]*client
	metrics *metrics.Metrics

	upgrader websocket.Upgrader
}

// NewDispatcher creates an empty registry
func NewDispatcher(m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		clients: make(map[string]*client),
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (d *Dispatcher) register(c *client) {
	d.mu.Lock()
	prev := d.clients[c.requesterID]
	d.clients[c.requesterID] = c
	d.mu.Unlock()

	if prev != nil {
		log.Printf("[NOTIFY] Replacing connection: requester=%s", c.requesterID)
		prev.close()
	}
}

func (d *Dispatcher) unregister(c *client) {
	d.mu.Lock()
	if d.clients[c.requesterID] == c {
		delete(d.clients, c.requesterID)
	}
	d.mu.Unlock()
	c.close()
}

// Connected reports whether the requester has a live connection
func (d *Dispatcher) Connected(requesterID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.clients[requesterID]
	return ok
}

// Notify queues payload for the requester's connection. It never blocks and
// returns false when the requester is offline or its send queue is full.
func (d *Dispatcher) Notify(requesterID string, payload any) bool {
	d.mu.RLock()
	c := d.clients[requesterID]
	d.mu.RUnlock()

	if c == nil {
		d.metrics.Notification("offline")
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[ERROR] Failed to encode notification: requester=%s err=%v", requesterID, err)
		return false
	}

	select {
	case <-c.done:
		d.metrics.Notification("offline")
		return false
	default:
	}

	select {
	case c.send <- data:
		d.metrics.Notification("delivered")
		return true
	default:
		log.Printf("[WARN] Notification dropped, send queue full: requester=%s", requesterID)
		d.metrics.Notification("dropped")
		return false
	}
}

// ServeWS upgrades the request and registers the connection
func (d *Dispatcher) ServeWS(w http.ResponseWriter, r *http.Request) {
	requesterID := strings.TrimSpace(r.URL.Query().Get("requesterId"))
	if requesterID == "" {
		requesterID = strings.TrimSpace(r.Header.Get(RequesterHeader))
	}
	if requesterID == "" {
		http.Error(w, "requesterId is required", http.StatusBadRequest)
		return
	}

	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] Websocket upgrade failed: requester=%s err=%v", requesterID, err)
		return
	}

	c := &client{
		requesterID: requesterID,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}
	d.register(c)
	log.Printf("[NOTIFY] Client connected: requester=%s", requesterID)

	go d.writeLoop(c)
	d.readLoop(c)
}

// readLoop discards client frames and unregisters on disconnect
func (d *Dispatcher) readLoop(c *client) {
	defer func() {
		d.unregister(c)
		log.Printf("[NOTIFY] Client disconnected: requester=%s", c.requesterID)
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[NOTIFY] Read error: requester=%s err=%v", c.requesterID, err)
			}
			return
		}
	}
}

func (d *Dispatcher) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[NOTIFY] Write failed: requester=%s err=%v", c.requesterID, err)
				d.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				d.unregister(c)
				return
			}
		}
	}
}

// Close disconnects every client
func (d *Dispatcher) Close() {
	d.mu.Lock()
	clients := d.clients
	d.clients = make(map[string]*client)
	d.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
}

// Relay forwards planning outcome events from the queue to connected
// requesters. Each relay uses its own consumer groups so every API instance
// sees every event. It returns when ctx is done.
func (d *Dispatcher) Relay(ctx context.Context, consumer queue.Consumer) error {
	instance := uuid.NewString()[:8]

	handler := func(ctx context.Context, msg queue.Message) error {
		var ev models.PlanningEvent
		if err := msg.Decode(&ev); err != nil {
			log.Printf("[WARN] Dropping malformed planning event: subject=%s err=%v", msg.Subject, err)
			return nil
		}
		if ev.RequesterID == "" {
			return nil
		}
		d.Notify(ev.RequesterID, ev)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, outcome := range []string{"completed", "failed"} {
		opts := queue.ConsumeOptions{
			Durable:           "notify-relay-" + outcome + "-" + instance,
			Prefetch:          4,
			MaxDeliver:        1,
			InactiveThreshold: 5 * time.Minute,
			DeliverNew:        true,
		}
		g.Go(func() error {
			return consumer.Consume(gctx, "planning."+outcome, opts, handler)
		})
	}

	log.Printf("[NOTIFY] Relaying planning events: instance=%s", instance)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
