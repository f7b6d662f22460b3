package broadcast

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/livefeed/backend/internal/models"
)

func TestRedisRelay_DeliversAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	log, _ := test.NewNullLogger()

	// Two instances sharing one Redis.
	hubA, hubB := NewHub(4, log), NewHub(4, log)
	rdbA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rdbB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdbA.Close()
	defer rdbB.Close()
	relayA := NewRedisRelay(rdbA, hubA, log)
	relayB := NewRedisRelay(rdbB, hubB, log)
	defer relayA.Close()
	defer relayB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	readyA, readyB := make(chan struct{}), make(chan struct{})
	go relayA.Run(ctx, readyA)
	go relayB.Run(ctx, readyB)
	<-readyA
	<-readyB

	subA, cancelA := hubA.Subscribe()
	defer cancelA()
	subB, cancelB := hubB.Subscribe()
	defer cancelB()

	relayA.Publish(ctx, Event{Action: ActionCreate, Post: &models.PostView{ID: "p1"}})

	assert.Equal(t, "p1", receive(t, subA).Post.ID)
	assert.Equal(t, "p1", receive(t, subB).Post.ID)
}

func TestRedisRelay_FallsBackToLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	log, _ := test.NewNullLogger()
	hub := NewHub(4, log)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	relay := NewRedisRelay(rdb, hub, log)
	defer relay.Close()

	sub, cancel := hub.Subscribe()
	defer cancel()
	mr.Close()

	relay.Publish(context.Background(), Event{Action: ActionDelete, PostID: "p2"})

	select {
	case payload := <-sub:
		assert.JSONEq(t, `{"action":"delete","postId":"p2"}`, string(payload))
	case <-time.After(3 * time.Second):
		t.Fatal("event not delivered locally")
	}
	require.Equal(t, 1, hub.Subscribers())
}

func TestRedisRelay_PreservesPublishOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	log, _ := test.NewNullLogger()
	const n = 200

	hub := NewHub(n, log)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	relay := NewRedisRelay(rdb, hub, log)
	defer relay.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	go relay.Run(ctx, ready)
	<-ready

	sub, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	for i := 0; i < n; i++ {
		relay.Publish(ctx, Event{Action: ActionDelete, PostID: strconv.Itoa(i)})
	}
	for i := 0; i < n; i++ {
		require.Equal(t, strconv.Itoa(i), receive(t, sub).PostID, "event %d out of order", i)
	}
}

func TestRedisRelay_DropsWhenQueueFull(t *testing.T) {
	mr := miniredis.RunT(t)
	log, hook := test.NewNullLogger()
	hub := NewHub(4, log)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	relay := newRedisRelay(rdb, hub, log, 1)
	relay.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.Publish(context.Background(), Event{Action: ActionDelete, PostID: "queued"})
		relay.Publish(context.Background(), Event{Action: ActionDelete, PostID: "dropped"})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "relay queue full, event dropped", hook.LastEntry().Message)
	assert.Len(t, relay.queue, 1)
}

func TestRedisRelay_RunFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	log, _ := test.NewNullLogger()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	relay := NewRedisRelay(rdb, NewHub(4, log), log)
	defer relay.Close()
	mr.Close()

	ready := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := relay.Run(ctx, ready)
	require.Error(t, err)
	select {
	case <-ready:
		t.Fatal("ready closed without a subscription")
	default:
	}
}
