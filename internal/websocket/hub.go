// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package websocket

import (
	"context"
	"slices"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types exchanged with operator consoles.
const (
	MessageTypeAlertFired        = "alert_fired"
	MessageTypeAlertAcknowledged = "alert_acknowledged"
	MessageTypeFlowsReloaded     = "flows_reloaded"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
)

// broadcastBuffer bounds the hub queue. A full queue drops new messages
// rather than blocking the dispatcher worker that produced them.
const broadcastBuffer = 256

// Message is the JSON frame sent to consoles.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// AlertAcknowledgedData is the payload of an alert_acknowledged message.
type AlertAcknowledgedData struct {
	AlertID        int64  `json:"alert_id,omitempty"`
	Count          int64  `json:"count,omitempty"`
	AcknowledgedBy string `json:"acknowledged_by"`
}

// FlowsReloadedData is the payload of a flows_reloaded message.
type FlowsReloadedData struct {
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
	Rejected int `json:"rejected"`
}

// Hub fans messages out to every connected console.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a Hub. Call RunWithContext to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext processes registrations and broadcasts until ctx is done.
// Lifecycle events are drained before broadcasts so a message is never
// delivered to a client whose registration is still queued.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.Register:
			h.addClient(c)
			continue
		case c := <-h.Unregister:
			h.removeClient(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.Register:
			h.addClient(c)
		case c := <-h.Unregister:
			h.removeClient(c)
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Uint64("client_id", c.id).Int("total_clients", n).Msg("Console connected")
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Uint64("client_id", c.id).Int("total_clients", n).Msg("Console disconnected")
}

// shutdown closes every client. Cancellation is the normal stop path, so
// it is logged at info without an error field.
func (h *Hub) shutdown(ctx context.Context) {
	n := h.GetClientCount()
	h.closeAllClients()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", n).
		Msg("Websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToClients delivers msg in client-ID order. A client whose send
// buffer is full is disconnected; a slow console must not stall the rest.
func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b *Client) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			metrics.WSMessagesDropped.Inc()
			logging.Warn().Uint64("client_id", c.id).Str("type", msg.Type).Msg("Console send buffer full, disconnecting")
			close(c.send)
			delete(h.clients, c)
		}
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.WSConnections.Set(0)
}

// enqueue hands msg to the run loop without blocking.
func (h *Hub) enqueue(msg Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Str("type", msg.Type).Msg("Broadcast queue full, dropping message")
		return false
	}
}

// BroadcastJSON queues data under messageType for every console. It
// satisfies the ui_alert sink's Broadcaster.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	if h.enqueue(Message{Type: messageType, Data: data}) {
		logging.Debug().Str("type", messageType).Int("clients", h.GetClientCount()).Msg("Broadcast queued")
	}
}

// BroadcastAlertAcknowledged tells consoles an alert (or a batch) was acknowledged.
func (h *Hub) BroadcastAlertAcknowledged(data AlertAcknowledgedData) {
	h.enqueue(Message{Type: MessageTypeAlertAcknowledged, Data: data})
}

// BroadcastFlowsReloaded tells consoles the active flow set changed.
func (h *Hub) BroadcastFlowsReloaded(data FlowsReloadedData) {
	h.enqueue(Message{Type: MessageTypeFlowsReloaded, Data: data})
}

// GetClientCount returns the number of connected consoles.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage encodes msg as JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
