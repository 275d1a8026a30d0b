package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/notify"
	"github.com/vidshare/backend/pkg/response"
)

// EventStatus is the only event sent to watchers.
const EventStatus = "status"

const sendBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // status streams are as public as GET /video
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string              `json:"event"`
	Data  notify.Notification `json:"data"`
}

// VideoLookup loads the current record of a watched video.
type VideoLookup interface {
	Get(ctx context.Context, id string) (*models.Video, error)
}

// Client is one WebSocket connection watching one video.
type Client struct {
	ID      string
	VideoID string
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	logger  *zap.Logger
}

// ServeWs handles GET /video/status?id=. The first message carries the current status; the
// connection is closed after a READY or ERROR status has been sent.
func ServeWs(hub *Hub, videos VideoLookup, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			response.BadRequest(c, "id required")
			return
		}

		client := &Client{
			ID:      uuid.NewString(),
			VideoID: id,
			hub:     hub,
			send:    make(chan WSMessage, sendBuffer),
			logger:  logger.With(zap.String("video_id", id)),
		}
		// registered before the snapshot is read so no transition falls in between
		hub.Register(client)

		v, err := videos.Get(c.Request.Context(), id)
		if errors.Is(err, models.ErrNotFound) {
			hub.Unregister(client)
			response.NotFound(c, "Video not found")
			return
		}
		if err != nil {
			hub.Unregister(client)
			logger.Error("load video for status stream", zap.Error(err), zap.String("video_id", id))
			response.Internal(c, "failed to get video")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.Unregister(client)
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client.conn = conn

		select {
		case client.send <- WSMessage{Event: EventStatus, Data: notify.Notification{ID: id, Status: v.Status}}:
		default:
		}
		go client.writePump()
		client.readPump()
	}
}

// readPump only services control frames; watchers have nothing to say.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends each status at most once and never a status behind the last one sent: the
// snapshot and a concurrent broadcast may be queued in either order.
func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	var last models.Status
	sent := false
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if sent && last.Advance(msg.Data.Status) == last {
				continue
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
			last, sent = msg.Data.Status, true
			if msg.Data.Status.Terminal() {
				c.logger.Debug("status stream finished", zap.String("status", string(msg.Data.Status)))
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(msg.Data.Status)))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
