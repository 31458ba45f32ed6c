package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "tutorlive:room:"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	Except string          `json:"except,omitempty"`
	At     int64           `json:"at"`
}

// RedisPubSub implements RedisPublisher and RedisSubscriber with one Redis
// channel per room.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for room events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishRoomEvent publishes an event to the room's Redis channel.
func (r *RedisPubSub) PublishRoomEvent(ctx context.Context, room, event string, payload []byte, except string) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, Except: except, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channelPrefix+room, body).Err()
}

// SubscribeRoom subscribes to a room's Redis channel and calls handler for
// each message. The returned cancel stops the subscription.
func (r *RedisPubSub) SubscribeRoom(room string, handler func(event string, payload []byte, except string)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelPrefix+room)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", room, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Warn("bad redis payload", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(p.Event, p.Data, p.Except)
			}
		}
	}()
	return cancelCtx, nil
}
