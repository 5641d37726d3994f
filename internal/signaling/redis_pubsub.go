package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "sfu:group:"
	publishTTL    = 5 * time.Second
)

type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub implements RedisPublisher/RedisSubscriber over go-redis,
// one channel per broadcast group.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

func (r *RedisPubSub) PublishGroupEvent(ctx context.Context, group, event string, data interface{}) error {
	raw, err := marshalPayload(data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(redisPayload{Event: event, Data: raw, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, publishTTL)
	defer cancel()
	return r.client.Publish(pctx, channelPrefix+group, body).Err()
}

func (r *RedisPubSub) SubscribeGroup(ctx context.Context, group string, onEvent func(event string, data []byte)) (cancel func(), err error) {
	channel := channelPrefix + group
	subCtx, cancelCtx := context.WithCancel(ctx)
	pubsub := r.client.Subscribe(subCtx, channel)
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Warn("discard malformed group payload", zap.String("group", group), zap.Error(err))
					continue
				}
				onEvent(p.Event, p.Data)
			}
		}
	}()
	return cancelCtx, nil
}
