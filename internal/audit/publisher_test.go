package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisPublisher_PublishPriorityChange(t *testing.T) {
	_, client := setupMiniredis(t)

	pub := NewRedisPublisher(client, "case-priority-events", zap.NewNop())

	event := PriorityChange{
		CaseID:      "case-1",
		OldPriority: "NORMAL",
		NewPriority: "URGENT",
		Actor:       "escalation",
		ChangedAt:   time.Unix(1700000000, 0),
	}
	require.NoError(t, pub.PublishPriorityChange(context.Background(), event))

	msgs, err := client.XRange(context.Background(), "case-priority-events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got PriorityChange
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, "case-1", got.CaseID)
	assert.Equal(t, "NORMAL", got.OldPriority)
	assert.Equal(t, "URGENT", got.NewPriority)
	assert.Equal(t, "escalation", got.Actor)
}

func TestRedisPublisher_DefaultStream(t *testing.T) {
	_, client := setupMiniredis(t)

	pub := NewRedisPublisher(client, "", zap.NewNop())
	assert.Equal(t, "case-priority-events", pub.stream)
}
