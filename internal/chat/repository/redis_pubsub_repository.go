package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/pkg/logger"
)

// EventTransport external pub/sub surface the delivery engine mirrors
// its events onto. Channel names follow the same convention as the
// in-process fan-out ({prefix}.{conversation} and {prefix}.user.{id}).
type EventTransport interface {
	Publish(ctx context.Context, channel string, ev domain.Event) error
}

// RedisPubSub definition redis pub/sub transport
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 將 event 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe 訂閱指定 channel，收到事件後呼叫 handler 處理
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(ev domain.Event)) error {
	sub := r.client.Subscribe(ctx, channel)
	go func() {
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var ev domain.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					logger.Log.Errorf("unmarshal transport event:", err)
					continue
				}
				handler(ev)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				sub.Close()
				return
			}
		}
	}()
	return nil
}
