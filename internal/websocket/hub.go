// Package websocket streams new validation log entries to admin dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"licensepanel/pkg/contracts/domain"
	"licensepanel/pkg/contracts/events"
)

// Message types sent to clients.
const (
	TypeConnection    = string(events.MessageTypeConnection)
	TypeValidationLog = string(events.MessageTypeValidationLog)
	TypeBotLog        = string(events.MessageTypeBotLog)
)

// broadcastBuffer bounds the queue between publishers and the hub loop.
const broadcastBuffer = 256

// Hub tracks connected clients and fans out log entries to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger  *slog.Logger
	metrics *Metrics

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	dropped          atomic.Int64
}

// NewHub returns a stopped hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Start runs the hub loop in the background. It is idempotent.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop disconnects every client and ends the loop.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()
	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.totalConnections.Add(1)
			h.metrics.recordConnect(ctx)
			h.logger.Info("client registered",
				slog.String("client_id", c.id),
				slog.String("remote_addr", c.remoteAddr),
				slog.Int("total_clients", count),
			)
			if msg, err := envelope(TypeConnection, events.Connected{Status: "connected", ClientID: c.id}); err == nil {
				select {
				case c.send <- msg:
				default:
				}
			}

		case c := <-h.unregister:
			h.drop(ctx, c, "closed")

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				select {
				case c.send <- msg:
					h.messagesSent.Add(1)
					h.metrics.recordSent(ctx)
				default:
					h.drop(ctx, c, "slow_consumer")
				}
			}
		}
	}
}

func (h *Hub) drop(ctx context.Context, c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.metrics.recordDisconnect(ctx, time.Since(c.connectedAt), reason)
	h.logger.Info("client unregistered",
		slog.String("client_id", c.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(c.connectedAt)),
		slog.Int("total_clients", count),
	)
}

func envelope(kind string, data any) ([]byte, error) {
	return json.Marshal(events.NewMessage(events.MessageType(kind), data, time.Now()))
}

// publish queues msg without blocking. A full queue drops the message.
func (h *Hub) publish(kind string, data any) {
	msg, err := envelope(kind, data)
	if err != nil {
		h.logger.Error("failed to encode feed message", slog.String("type", kind), slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.metrics.recordDropped(context.Background())
	}
}

// PublishLog sends a validation log entry to every client.
func (h *Hub) PublishLog(entry domain.ValidationLog) {
	h.publish(TypeValidationLog, entry)
}

// PublishBotLog sends a bot log entry to every client.
func (h *Hub) PublishBotLog(entry domain.BotLog) {
	h.publish(TypeBotLog, entry)
}

// Register adds c to the hub. It is a no-op once the hub has stopped.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		close(c.send)
	}
}

// Unregister removes c from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats reports hub counters.
func (h *Hub) Stats() map[string]int64 {
	return map[string]int64{
		"active_clients":    int64(h.ClientCount()),
		"total_connections": h.totalConnections.Load(),
		"messages_sent":     h.messagesSent.Load(),
		"messages_dropped":  h.dropped.Load(),
	}
}
