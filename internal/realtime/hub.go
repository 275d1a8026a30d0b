// Package realtime relays video status notifications to browsers over WebSocket.
package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/notify"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains video_id -> set of connections watching that video.
// Notifications arrive from one shared Redis subscription (see Run).
type Hub struct {
	videos map[string]map[string]*Client
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		videos: make(map[string]map[string]*Client),
		logger: logger,
	}
}

// Run broadcasts every notification from ch until ch closes or ctx is done.
func (h *Hub) Run(ctx context.Context, ch <-chan notify.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast(n)
		}
	}
}

// Register adds a client to the watchers of its video.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.videos[c.VideoID] == nil {
		h.videos[c.VideoID] = make(map[string]*Client)
	}
	h.videos[c.VideoID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("status watcher joined", zap.String("client_id", c.ID), zap.String("video_id", c.VideoID))
}

// Unregister removes a client and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.videos[c.VideoID]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.videos, c.VideoID)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("status watcher left", zap.String("client_id", c.ID), zap.String("video_id", c.VideoID))
}

// Broadcast sends n to every client watching n.ID. Slow clients miss the message.
func (h *Hub) Broadcast(n notify.Notification) {
	msg := WSMessage{Event: EventStatus, Data: n}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.videos[n.ID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("status watcher buffer full", zap.String("client_id", c.ID), zap.String("video_id", n.ID))
		}
	}
}

// Watchers returns the number of connected clients for a video.
func (h *Hub) Watchers(videoID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.videos[videoID])
}
