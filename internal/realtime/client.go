package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CommandDispatcher routes a parsed wire command to the lesson's session
// actor. Errors come back to the issuing connection only.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, lessonID uuid.UUID, role models.Role, userID uuid.UUID, event string, data json.RawMessage) error
}

// TokenValidator authenticates the WS handshake credential.
type TokenValidator func(token string) (userID uuid.UUID, role models.Role, err error)

// Client represents a single WebSocket connection in a lesson.
type Client struct {
	ID       string
	LessonID uuid.UUID
	UserID   uuid.UUID
	Role     models.Role
	JoinedAt time.Time
	hub      *Hub
	dispatch CommandDispatcher
	conn     *websocket.Conn
	send     chan WSMessage
	logger   *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(hub *Hub, logger *zap.Logger, validate TokenValidator, dispatcher CommandDispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		lessonIDStr := c.Query("lesson_id")
		token := c.Query("token")
		if lessonIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lesson_id and token required"})
			return
		}
		lessonID, err := uuid.Parse(lessonIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lesson_id"})
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
			ID:       uuid.New().String(),
			LessonID: lessonID,
			UserID:   userID,
			Role:     role,
			JoinedAt: time.Now(),
			hub:      hub,
			dispatch: dispatcher,
			conn:     conn,
			send:     make(chan WSMessage, 256),
			logger:   logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		if msg.Event == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.dispatch.Dispatch(ctx, c.LessonID, c.Role, c.UserID, msg.Event, msg.Data)
		cancel()
		if err != nil {
			// Rejected commands never change session state; only the
			// issuing connection hears about them.
			c.hub.SendToClient(c.LessonID, c.ID, "error", map[string]string{"message": err.Error()})
		}
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
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
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
