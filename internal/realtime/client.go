package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	maxReadBytes = 65536
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TokenValidator resolves an identity token to the caller's id and role.
type TokenValidator func(token string) (userID, role string, err error)

// ClientOptions configures the WebSocket endpoint.
type ClientOptions struct {
	// AllowedOrigins lists accepted Origin headers; empty or "*" accepts all.
	AllowedOrigins []string
	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int
}

// Client is a single WebSocket connection.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// ID returns the connection id assigned at upgrade.
func (c *Client) ID() string { return c.id }

// Send queues msg unless the connection is closing or its buffer is full.
func (c *Client) Send(msg WSMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

func newUpgrader(allowed []string) *websocket.Upgrader {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(origins) == 0 || origins["*"] || origin == "" || origins[origin]
		},
	}
}

// ServeWs handles the WebSocket upgrade and runs the client loop. The token
// is read from the query string; browsers cannot set headers on upgrades.
func ServeWs(hub *Hub, logger *zap.Logger, validate TokenValidator, opts ClientOptions) gin.HandlerFunc {
	upgrader := newUpgrader(opts.AllowedOrigins)
	buffer := opts.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		userID, role, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			id:     uuid.New().String(),
			hub:    hub,
			conn:   conn,
			send:   make(chan WSMessage, buffer),
			done:   make(chan struct{}),
			logger: logger,
		}
		hub.Connect(client, ConnInfo{UserID: userID, Role: role, ConnectedAt: time.Now()})
		go client.writePump()
		client.readPump()
	}
}

// readPump handles one event at a time, so events from the same connection
// are processed in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.hub.Disconnect(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("malformed websocket message", zap.String("conn_id", c.id), zap.Error(err))
			continue
		}
		c.hub.Dispatch(context.Background(), c.id, msg.Event, msg.Data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
