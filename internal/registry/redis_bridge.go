package registry

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const pubsubChannel = "typing-arena:events"

var instanceID = uuid.New().String()

type wireEvent struct {
	Origin string `json:"origin"`
	Target string `json:"target"`
	ID     string `json:"id"`
	Event  Event  `json:"event"`
}

// RedisBridge fans a Registry's emits out to every other process
// subscribed to the same channel, so a user connected to a different
// instance still receives the event.
type RedisBridge struct {
	rdb *redis.Client
	reg *Registry
	ctx context.Context
}

func NewRedisBridge(ctx context.Context, rdb *redis.Client, reg *Registry) *RedisBridge {
	return &RedisBridge{rdb: rdb, reg: reg, ctx: ctx}
}

// Start subscribes to the shared channel and forwards every message to
// this process's local connections. It blocks until the subscription
// is confirmed, then continues delivering in a background goroutine.
func (b *RedisBridge) Start() error {
	sub := b.rdb.Subscribe(b.ctx, pubsubChannel)
	if _, err := sub.Receive(b.ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	go func() {
		for msg := range ch {
			var we wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
				log.Println("registry: dropping malformed pubsub payload:", err)
				continue
			}
			if we.Origin == instanceID {
				continue
			}
			switch we.Target {
			case "user":
				b.reg.emitLocalUser(we.ID, we.Event)
			case "room":
				b.reg.emitLocalRoom(we.ID, we.Event)
			}
		}
	}()
	return nil
}

func (b *RedisBridge) PublishToUser(userID string, event Event) {
	b.publish(wireEvent{Origin: instanceID, Target: "user", ID: userID, Event: event})
}

func (b *RedisBridge) PublishToRoom(roomID string, event Event) {
	b.publish(wireEvent{Origin: instanceID, Target: "room", ID: roomID, Event: event})
}

func (b *RedisBridge) publish(we wireEvent) {
	body, err := json.Marshal(we)
	if err != nil {
		log.Println("registry: failed to encode pubsub payload:", err)
		return
	}
	if err := b.rdb.Publish(b.ctx, pubsubChannel, body).Err(); err != nil {
		log.Println("registry: redis publish failed:", err)
	}
}
