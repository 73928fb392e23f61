package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// SnapshotProvider returns the current session state for a lesson, used to
// bring a newly joined connection up to date without replaying history.
type SnapshotProvider func(lessonID uuid.UUID) (interface{}, bool)

// Hub maintains lesson_id -> set of connections and broadcasts events.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// lessonID -> map[clientID]*Client
	lessons  map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per lesson
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
	snapshot SnapshotProvider
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishLessonEvent(lessonID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to lesson channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeLesson(lessonID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		lessons:  make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// SetSnapshotProvider sets the callback that produces the lesson_state
// snapshot sent to every connection on join.
func (h *Hub) SetSnapshotProvider(fn SnapshotProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Register adds a client to a lesson room and immediately queues a full
// state snapshot for it. Starts the Redis subscription for this lesson if
// it is the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.lessons[c.LessonID] == nil {
		h.lessons[c.LessonID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeLesson(c.LessonID, func(event string, payload []byte) {
				h.BroadcastToLesson(c.LessonID, event, json.RawMessage(payload))
			})
			if err != nil {
				// Published events fall back to direct local delivery
				// until a later join establishes the subscription.
				h.logger.Error("lesson subscription failed, falling back to local broadcast",
					zap.String("lesson_id", c.LessonID.String()), zap.Error(err))
			} else {
				h.subs[c.LessonID] = cancel
			}
		}
	}
	h.lessons[c.LessonID][c.ID] = c
	snapshot := h.snapshot
	h.mu.Unlock()

	if snapshot != nil {
		if snap, ok := snapshot(c.LessonID); ok {
			h.SendToClient(c.LessonID, c.ID, "lesson_state", snap)
		}
	}
	h.logger.Debug("client joined lesson", zap.String("client_id", c.ID), zap.String("lesson_id", c.LessonID.String()))
}

// Unregister removes a client from a lesson room. Never affects session
// state. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.lessons[c.LessonID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.lessons, c.LessonID)
			if cancel, ok := h.subs[c.LessonID]; ok {
				cancel()
				delete(h.subs, c.LessonID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left lesson", zap.String("client_id", c.ID), zap.String("lesson_id", c.LessonID.String()))
}

// BroadcastToLesson sends a message to all clients in a lesson (local only).
// A client with a full send buffer is skipped; delivery to one connection
// never blocks delivery to its siblings.
func (h *Hub) BroadcastToLesson(lessonID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case nil:
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.lessons[lessonID]))
	for _, c := range h.lessons[lessonID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToLessonAndPublish delivers an event to every connection of the
// lesson across all instances. With Redis configured and a live per-lesson
// subscription it publishes only; the subscription performs the broadcast
// once on each instance, which keeps local clients from seeing the event
// twice. When the publish fails or no subscription is active for the
// lesson, local clients are served directly so events are never lost on
// the owning instance.
func (h *Hub) BroadcastToLessonAndPublish(lessonID uuid.UUID, event string, payload interface{}) {
	if h.redis == nil {
		h.BroadcastToLesson(lessonID, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal lesson event failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.redis.PublishLessonEvent(lessonID, event, data); err != nil {
		h.logger.Error("publish lesson event failed",
			zap.String("lesson_id", lessonID.String()), zap.String("event", event), zap.Error(err))
		h.BroadcastToLesson(lessonID, event, json.RawMessage(data))
		return
	}
	h.mu.RLock()
	_, subscribed := h.subs[lessonID]
	h.mu.RUnlock()
	if !subscribed {
		h.BroadcastToLesson(lessonID, event, json.RawMessage(data))
	}
}

// AudienceCount returns the number of connected clients in a lesson.
func (h *Hub) AudienceCount(lessonID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lessons[lessonID])
}

// SendToClient sends a message to a single client in a lesson (snapshots,
// error responses).
func (h *Hub) SendToClient(lessonID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	clients := h.lessons[lessonID]
	c, ok := clients[clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
