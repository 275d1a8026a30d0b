package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidshare/backend/internal/models"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestPublishSubscribe(t *testing.T) {
	_, rdb := setupMiniRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Subscribe(ctx, rdb, "", nil)
	require.NoError(t, err)

	require.NoError(t, NewPublisher(rdb, "", nil).Publish(ctx, "abc", models.StatusReady))

	select {
	case n := <-ch:
		assert.Equal(t, Notification{ID: "abc", Status: models.StatusReady}, n)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}
}

func TestSubscribeSkipsGarbage(t *testing.T) {
	mr, rdb := setupMiniRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Subscribe(ctx, rdb, "custom", nil)
	require.NoError(t, err)

	mr.Publish("custom", "not json")
	require.NoError(t, NewPublisher(rdb, "custom", nil).Publish(ctx, "x", models.StatusError))

	select {
	case n := <-ch:
		assert.Equal(t, "x", n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}
}

func TestPublishFailsWhenServerDown(t *testing.T) {
	mr, rdb := setupMiniRedis(t)
	mr.Close()
	assert.Error(t, NewPublisher(rdb, "", nil).Publish(context.Background(), "abc", models.StatusUploaded))
}
