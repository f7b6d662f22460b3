package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ayush/livefeed/backend/internal/metrics"
)

const (
	relayPublishTimeout = 2 * time.Second
	relayQueueSize      = 4 * DefaultBuffer
)

// RedisRelay publishes events to a Redis channel and delivers everything on
// that channel to the local hub, so every instance behind a load balancer
// sees every mutation. When Redis is unreachable events still reach the local
// subscribers.
//
// A single sender drains a bounded queue, so events leave in the order they
// were published.
type RedisRelay struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
	log     *logrus.Entry

	queue     chan []byte
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func NewRedisRelay(rdb *redis.Client, hub *Hub, log logrus.FieldLogger) *RedisRelay {
	return newRedisRelay(rdb, hub, log, relayQueueSize)
}

func newRedisRelay(rdb *redis.Client, hub *Hub, log logrus.FieldLogger, queueSize int) *RedisRelay {
	r := &RedisRelay{
		rdb:     rdb,
		hub:     hub,
		channel: "feed:" + Topic,
		log:     log.WithField("component", "broadcast-relay"),
		queue:   make(chan []byte, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.send()
	return r
}

// Publish queues ev for the sender and returns immediately. A full queue
// drops the event.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.WithError(err).WithField("action", ev.Action).Error("encode event")
		return
	}
	select {
	case r.queue <- payload:
	default:
		metrics.RecordDropped()
		r.log.WithField("action", ev.Action).Warn("relay queue full, event dropped")
	}
}

// Close stops the sender. Events still queued are dropped.
func (r *RedisRelay) Close() {
	r.closeOnce.Do(func() { close(r.done) })
	<-r.stopped
}

func (r *RedisRelay) send() {
	defer close(r.stopped)
	for {
		select {
		case <-r.done:
			return
		case payload := <-r.queue:
			r.publish(payload)
		}
	}
}

// publish hands one payload to Redis, falling back to the local hub.
func (r *RedisRelay) publish(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.WithError(err).Warn("redis publish failed, delivering locally")
		r.hub.Deliver(payload)
	}
}

// Run forwards messages from Redis to the hub until ctx is done. The
// subscription is confirmed before ready is closed.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	r.log.WithField("channel", r.channel).Info("relay subscribed")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.hub.Deliver([]byte(msg.Payload))
		}
	}
}
