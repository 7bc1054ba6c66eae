// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/sensorscope/internal/chart"
	"github.com/relabs-tech/sensorscope/internal/logging"
	"github.com/relabs-tech/sensorscope/internal/selector"
)

const (
	wsSendBuffer   = 32
	wsWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI is served from the same device
	},
}

// WSMessage is sent by browsers. The only action is "select".
type WSMessage struct {
	Action string `json:"action"`
	Mode   string `json:"mode,omitempty"`
}

// WSResponse is pushed to browsers.
type WSResponse struct {
	Type    string              `json:"type"` // chart, menu, error
	Chart   *chart.State        `json:"chart,omitempty"`
	Menu    []selector.MenuItem `json:"menu,omitempty"`
	Message string              `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans chart updates out to every connected websocket. Broadcast never
// blocks: a client that falls behind loses frames.
type Hub struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		log:     logging.Named("hub"),
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast sends resp to every client.
func (h *Hub) Broadcast(resp WSResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		h.log.Errorw("marshal broadcast", "type", resp.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.enqueueLocked(c, payload)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) sendTo(c *wsClient, resp WSResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		h.log.Errorw("marshal response", "type", resp.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.enqueueLocked(c, payload)
	}
}

func (h *Hub) enqueueLocked(c *wsClient, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.log.Debugw("client too slow, frame dropped", "remote", c.conn.RemoteAddr())
	}
}

func (h *Hub) add(conn *websocket.Conn) (*wsClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.clients[c] = struct{}{}
	go h.writeLoop(c)
	h.log.Infow("client connected", "remote", conn.RemoteAddr(), "clients", len(h.clients))
	return c, true
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.log.Infow("client disconnected", "remote", c.conn.RemoteAddr(), "clients", len(h.clients))
}

func (h *Hub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debugw("write error", "remote", c.conn.RemoteAddr(), "error", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
