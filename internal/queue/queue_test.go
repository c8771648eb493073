package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestInMemory_PublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(4)

	require.NoError(t, q.Publish(ctx, Message{Kind: KindPhotoAdded, Body: "p1"}))
	require.NoError(t, q.Publish(ctx, Message{Kind: KindPhotoDeleted, Body: "gallery/p1"}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, Message{Kind: KindPhotoAdded, Body: "p1"}, receive(t, ch))
	assert.Equal(t, Message{Kind: KindPhotoDeleted, Body: "gallery/p1"}, receive(t, ch))

	cancel()
	for range ch {
	}
}

func TestInMemory_PublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Kind: KindPhotoAdded}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Kind: KindPhotoAdded}), context.Canceled)
}

func TestRedisQueue_RoundTripInOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := NewRedisQueue(client, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Publish(ctx, Message{Kind: KindPhotoAdded, Body: "p1"}))
	require.NoError(t, q.Publish(ctx, Message{Kind: KindPhotoAdded, Body: "p2"}))

	raw, err := mr.List("volunteerhub:jobs")
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.JSONEq(t, `{"kind":"photo.added","body":"p2"}`, raw[0])

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", receive(t, ch).Body)
	assert.Equal(t, "p2", receive(t, ch).Body)
}

func TestRedisQueue_SkipsGarbage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := NewRedisQueue(client, "jobs")

	_, err := mr.Lpush("jobs", "not json")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Publish(ctx, Message{Kind: KindPhotoDeleted, Body: "x"}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, Message{Kind: KindPhotoDeleted, Body: "x"}, receive(t, ch))
}
