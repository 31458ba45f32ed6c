// Package realtime owns live connections: the registry of connections and
// rooms, the hub that dispatches inbound events and delivers effects, the
// WebSocket pumps and the Redis bridge between instances.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tutorlive/backend/internal/events"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// HandlerFunc handles one decoded inbound event and returns the effects to
// deliver, in order.
type HandlerFunc func(ctx context.Context, connID string, in events.Inbound) []events.Effect

// DisconnectHandler returns the effects of a connection going away.
type DisconnectHandler func(connID string) []events.Effect

// RejectHandler returns the effects of an inbound event that failed decoding,
// e.g. an error reply to the sender.
type RejectHandler func(connID, event string, data json.RawMessage) []events.Effect

// RedisPublisher publishes room events for every instance, this one included.
type RedisPublisher interface {
	PublishRoomEvent(ctx context.Context, room, event string, payload []byte, except string) error
}

// RedisSubscriber subscribes to a room's channel and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeRoom(room string, handler func(event string, payload []byte, except string)) (cancel func(), err error)
}

// Hub dispatches inbound events to their handlers and fans effects out to
// rooms and connections. Room emits go through Redis when configured so that
// members connected to other instances receive them too.
type Hub struct {
	registry     *Registry
	handlers     map[events.Kind]HandlerFunc
	onDisconnect DisconnectHandler
	onReject     RejectHandler
	timeout      time.Duration
	logger       *zap.Logger
	redis        RedisPublisher
	redisSub     RedisSubscriber

	subsMu sync.Mutex
	// room -> cancel of its Redis subscription
	subs map[string]func()
}

// NewHub creates a new hub. redisPub and redisSub may be nil for a single
// instance deployment.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		registry: NewRegistry(),
		handlers: make(map[events.Kind]HandlerFunc),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
		subs:     make(map[string]func()),
	}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// SetHandlers installs the dispatch table.
func (h *Hub) SetHandlers(table map[events.Kind]HandlerFunc) {
	h.handlers = table
}

// SetDisconnectHandler sets the callback run after a connection is removed.
func (h *Hub) SetDisconnectHandler(fn DisconnectHandler) {
	h.onDisconnect = fn
}

// SetRejectHandler sets the callback run for events dropped as malformed.
func (h *Hub) SetRejectHandler(fn RejectHandler) {
	h.onReject = fn
}

// SetHandlerTimeout bounds each handler's context. Zero means no bound.
func (h *Hub) SetHandlerTimeout(d time.Duration) {
	h.timeout = d
}

// Connect registers a new connection.
func (h *Hub) Connect(p Peer, info ConnInfo) {
	h.registry.Add(p, info)
	h.logger.Debug("client connected", zap.String("conn_id", p.ID()), zap.String("user_id", info.UserID))
}

// Disconnect removes a connection, releases rooms left without local members
// and delivers the disconnect effects to the remaining connections.
func (h *Hub) Disconnect(connID string) {
	for _, room := range h.registry.Remove(connID) {
		h.unsubscribe(room)
	}
	if h.onDisconnect != nil {
		h.Apply(context.Background(), h.onDisconnect(connID))
	}
	h.logger.Debug("client disconnected", zap.String("conn_id", connID))
}

// Dispatch decodes and handles one inbound event from connID. Unknown and
// malformed events are logged and dropped.
func (h *Hub) Dispatch(ctx context.Context, connID, event string, data json.RawMessage) {
	in, err := events.Decode(event, data)
	if err != nil {
		h.logger.Warn("inbound event dropped", zap.String("conn_id", connID), zap.String("event", event), zap.Error(err))
		if h.onReject != nil {
			h.Apply(ctx, h.onReject(connID, event, data))
		}
		return
	}
	fn, ok := h.handlers[in.Kind()]
	if !ok {
		h.logger.Warn("no handler for event", zap.String("event", event))
		return
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	h.Apply(ctx, fn(ctx, connID, in))
}

// Apply delivers effects in order.
func (h *Hub) Apply(ctx context.Context, effects []events.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case events.EffectJoin:
			if h.registry.Join(e.ConnID, e.Room) {
				h.subscribe(e.Room)
			}
		case events.EffectEmitRoom:
			h.emitRoom(ctx, e)
		case events.EffectEmitConn:
			h.SendToConn(e.ConnID, e.Event, e.Payload)
		}
	}
}

// SendToConn sends a message to a single local connection.
func (h *Hub) SendToConn(connID, event string, payload interface{}) {
	p, ok := h.registry.Peer(connID)
	if !ok {
		return
	}
	msg, err := newMessage(event, payload)
	if err != nil {
		h.logger.Error("marshal payload", zap.String("event", event), zap.Error(err))
		return
	}
	if !p.Send(msg) {
		h.logger.Warn("send buffer full, message skipped", zap.String("conn_id", connID), zap.String("event", event))
	}
}

// BroadcastToRoom sends to the local members of room, skipping except.
func (h *Hub) BroadcastToRoom(room, event string, data json.RawMessage, except string) {
	msg := WSMessage{Event: event, Data: data}
	for _, p := range h.registry.Members(room, except) {
		if !p.Send(msg) {
			h.logger.Warn("send buffer full, message skipped", zap.String("conn_id", p.ID()), zap.String("event", event))
		}
	}
}

// emitRoom publishes to Redis so the subscription callback of every instance
// delivers once. Without Redis, or when publishing or subscribing failed,
// delivery is local.
func (h *Hub) emitRoom(ctx context.Context, e events.Effect) {
	data, err := marshalPayload(e.Payload)
	if err != nil {
		h.logger.Error("marshal payload", zap.String("event", e.Event), zap.Error(err))
		return
	}
	if h.redis == nil {
		h.BroadcastToRoom(e.Room, e.Event, data, e.ConnID)
		return
	}
	if err := h.redis.PublishRoomEvent(ctx, e.Room, e.Event, data, e.ConnID); err != nil {
		h.logger.Error("redis publish", zap.String("room", e.Room), zap.Error(err))
		h.BroadcastToRoom(e.Room, e.Event, data, e.ConnID)
		return
	}
	if !h.subscribed(e.Room) {
		h.BroadcastToRoom(e.Room, e.Event, data, e.ConnID)
	}
}

func (h *Hub) subscribe(room string) {
	if h.redisSub == nil {
		return
	}
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	if _, ok := h.subs[room]; ok {
		return
	}
	cancel, err := h.redisSub.SubscribeRoom(room, func(event string, payload []byte, except string) {
		h.BroadcastToRoom(room, event, json.RawMessage(payload), except)
	})
	if err != nil {
		h.logger.Error("redis subscribe", zap.String("room", room), zap.Error(err))
		return
	}
	h.subs[room] = cancel
}

func (h *Hub) unsubscribe(room string) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	cancel, ok := h.subs[room]
	if !ok || h.registry.RoomSize(room) > 0 {
		return
	}
	cancel()
	delete(h.subs, room)
}

func (h *Hub) subscribed(room string) bool {
	if h.registry.RoomSize(room) == 0 {
		// Other instances' subscriptions cover the room.
		return true
	}
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	_, ok := h.subs[room]
	return ok
}

func newMessage(event string, payload interface{}) (WSMessage, error) {
	data, err := marshalPayload(payload)
	if err != nil {
		return WSMessage{}, err
	}
	return WSMessage{Event: event, Data: data}, nil
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
