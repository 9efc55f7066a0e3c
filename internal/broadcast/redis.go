package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/domain"
)

// RedisBridge relays bus publishes through Redis pub/sub so sibling processes
// of the same deployment observe each other's changes. Local delivery happens
// synchronously at publish time; events arriving back over Redis that
// originated from a locally registered origin are dropped to avoid echoing.
//
// Redis delivery is best effort: a publish that fails on the wire is logged
// and otherwise silent, the trigger-key mechanism being the fallback signal.
type RedisBridge struct {
	bus    *Bus
	client *redislib.Client
	logger *zap.Logger

	mu      sync.Mutex
	origins map[string]int
	relays  map[string]*topicRelay
}

type topicRelay struct {
	pubsub *redislib.PubSub
	refs   int
}

// NewRedisBridge wraps an in-process bus with a Redis transport.
func NewRedisBridge(bus *Bus, client *redislib.Client, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{
		bus:     bus,
		client:  client,
		logger:  logger,
		origins: make(map[string]int),
		relays:  make(map[string]*topicRelay),
	}
}

// Publish delivers locally first, then relays over Redis.
func (rb *RedisBridge) Publish(ctx context.Context, topic string, ev domain.Event) error {
	if err := rb.bus.Publish(ctx, topic, ev); err != nil {
		return err
	}
	if rb.client == nil {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := rb.client.Publish(ctx, topic, payload).Err(); err != nil {
		rb.logger.Warn("redis publish failed",
			zap.String("topic", topic),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
	return nil
}

// Subscribe registers locally and ensures a Redis relay exists for the topic.
func (rb *RedisBridge) Subscribe(topic, origin string, h Handler) (func(), error) {
	unsubLocal, err := rb.bus.Subscribe(topic, origin, h)
	if err != nil {
		return nil, err
	}

	rb.mu.Lock()
	rb.origins[origin]++
	if rb.client != nil {
		relay, ok := rb.relays[topic]
		if !ok {
			pubsub := rb.client.Subscribe(context.Background(), topic)
			relay = &topicRelay{pubsub: pubsub}
			rb.relays[topic] = relay
			go rb.receive(topic, pubsub)
		}
		relay.refs++
	}
	rb.mu.Unlock()

	return func() {
		unsubLocal()
		rb.mu.Lock()
		defer rb.mu.Unlock()
		if rb.origins[origin]--; rb.origins[origin] <= 0 {
			delete(rb.origins, origin)
		}
		if relay, ok := rb.relays[topic]; ok {
			if relay.refs--; relay.refs <= 0 {
				_ = relay.pubsub.Close()
				delete(rb.relays, topic)
			}
		}
	}, nil
}

// Close tears down all Redis relays.
func (rb *RedisBridge) Close() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for topic, relay := range rb.relays {
		_ = relay.pubsub.Close()
		delete(rb.relays, topic)
	}
	return nil
}

func (rb *RedisBridge) receive(topic string, pubsub *redislib.PubSub) {
	for msg := range pubsub.Channel() {
		var ev domain.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			rb.logger.Warn("dropping malformed broadcast message",
				zap.String("topic", topic),
				zap.Error(err))
			continue
		}
		if rb.isLocalOrigin(ev.Origin) {
			// Already delivered synchronously at publish time.
			continue
		}
		_ = rb.bus.Publish(context.Background(), topic, ev)
	}
}

func (rb *RedisBridge) isLocalOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.origins[origin] > 0
}

var _ Broadcaster = (*Bus)(nil)
var _ Broadcaster = (*RedisBridge)(nil)
