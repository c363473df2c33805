package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"monolith/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "ignored"))
	assert.NoError(t, n.Emit(context.Background(), 1, EventConnectionRequested, nil))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))
}

func TestEncodeEvent(t *testing.T) {
	body, err := EncodeEvent(EventMessageCreated, map[string]any{"conversation_id": 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message.created","payload":{"conversation_id":7}}`, string(body))

	_, err = EncodeEvent(EventMessageCreated, make(chan int))
	assert.ErrorContains(t, err, "message.created")
}

func TestNotifier_EmitReachesUserChannel(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct {
		channel string
		payload string
	}
	got := make(chan delivery, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		got <- delivery{channel, payload}
	}))

	require.Eventually(t, func() bool {
		_ = n.Emit(context.Background(), 42, EventConnectionAccepted, map[string]uint{"connection_id": 3})
		select {
		case d := <-got:
			assert.Equal(t, UserChannel(42), d.channel)
			var ev struct {
				Type    string         `json:"type"`
				Payload map[string]any `json:"payload"`
			}
			require.NoError(t, json.Unmarshal([]byte(d.payload), &ev))
			assert.Equal(t, EventConnectionAccepted, ev.Type)
			assert.EqualValues(t, 3, ev.Payload["connection_id"])
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	payloads := make(chan string, 16)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_ string, payload string) {
		payloads <- payload
	}))

	require.Eventually(t, func() bool {
		_ = n.PublishUser(context.Background(), 1, "before-cancel")
		select {
		case <-payloads:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)
	for len(payloads) > 0 {
		<-payloads
	}

	require.NoError(t, n.PublishUser(context.Background(), 1, "after-cancel"))
	assert.Never(t, func() bool {
		select {
		case p := <-payloads:
			return p == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, 20*time.Millisecond)
}
