package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// WebSocketSubscriber streams notifications to one moderator browser session.
// The feed is one-way; inbound frames are read only to handle pongs and close.
type WebSocketSubscriber struct {
	id          uuid.UUID
	ModeratorID int64
	Conn        *websocket.Conn
	Hub         *Hub
	Send        chan Notification
	logger      *zap.Logger
}

func NewWebSocketSubscriber(conn *websocket.Conn, hub *Hub, moderatorID int64, logger *zap.Logger) *WebSocketSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	return &WebSocketSubscriber{
		id:          id,
		ModeratorID: moderatorID,
		Conn:        conn,
		Hub:         hub,
		Send:        make(chan Notification, sendBuffer),
		logger:      logger.With(zap.String("subscriber_id", id.String()), zap.Int64("moderator_id", moderatorID)),
	}
}

func (c *WebSocketSubscriber) ID() uuid.UUID                    { return c.id }
func (c *WebSocketSubscriber) SendChannel() chan<- Notification { return c.Send }

func (c *WebSocketSubscriber) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops writePump, which closes the connection.
func (c *WebSocketSubscriber) Close() {
	close(c.Send)
}

func (c *WebSocketSubscriber) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

func (c *WebSocketSubscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case n, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(n)
			if err != nil {
				c.logger.Error("encode notification", zap.Error(err))
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
