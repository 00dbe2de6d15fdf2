// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Outbound queue depth per client. A client that cannot drain this
	// many messages is dropped rather than allowed to stall the node.
	sendQueue = 32
)

// Client is one WebSocket connection registered with the hub.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// ID is the connection identity, also the accumulator slot key.
func (c *Client) ID() uint64 { return c.id }

// Send queues a message for the client. A full queue drops the client:
// slow consumers must not back-pressure the command loop.
func (c *Client) Send(payload []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- payload:
		c.mu.Unlock()
	default:
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		c.hub.log.Warn("client send queue full, dropping connection",
			zap.Uint64("client", c.id))
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. Runs on its own goroutine per client; exits when the
// queue closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub tracks the open command-channel connections and fans broadcasts out
// to all of them.
type Hub struct {
	log    *zap.Logger
	nextID atomic.Uint64

	mu      sync.Mutex
	clients map[uint64]*Client

	// onEmpty runs after the last client leaves; the node uses it to stop
	// the motors when nobody is driving.
	onEmpty func()
}

// NewHub creates an empty hub. onEmpty may be nil.
func NewHub(log *zap.Logger, onEmpty func()) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:     log,
		clients: make(map[uint64]*Client),
		onEmpty: onEmpty,
	}
}

// Add registers a connection and starts its write pump.
func (h *Hub) Add(conn *websocket.Conn) *Client {
	c := &Client{
		id:   h.nextID.Add(1),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendQueue),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	go c.writePump()
	h.log.Info("client connected",
		zap.Uint64("client", c.id),
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("clients", n))
	return c
}

// Remove unregisters a connection, closing its queue. Idempotent.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c.id]
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	if !present {
		return
	}

	c.close()
	h.log.Info("client disconnected",
		zap.Uint64("client", c.id),
		zap.Int("clients", n))
	if n == 0 && h.onEmpty != nil {
		h.onEmpty()
	}
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	for _, c := range targets {
		c.Send(payload)
	}
}

// Count reports the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
