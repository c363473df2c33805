// Package notifications provides real-time notification delivery and management.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"monolith/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Realtime event types pushed to users.
const (
	EventConnectionRequested = "connection.requested"
	EventConnectionAccepted  = "connection.accepted"
	EventMessageCreated      = "message.created"
	// EventsDropped is sent when a client's buffer overflowed.
	EventsDropped = "events.dropped"
)

const userChannelPattern = "notifications:user:*"

// Event is the JSON envelope delivered over the websocket.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// UserChannel returns the pub/sub channel for userID.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// EncodeEvent renders the websocket envelope for one event.
func EncodeEvent(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return body, nil
}

func mustEvent(eventType string, payload any) []byte {
	body, err := EncodeEvent(eventType, payload)
	if err != nil {
		panic(err)
	}
	return body
}

// Emit publishes a typed event to userID.
func (n *Notifier) Emit(ctx context.Context, userID uint, eventType string, payload any) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	body, err := EncodeEvent(eventType, payload)
	if err != nil {
		return err
	}
	return n.PublishUser(ctx, userID, string(body))
}

// StartPatternSubscriber subscribes to every user channel and calls onMessage
// for each incoming message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPattern)
	// Wait for the subscription to be confirmed so publishes right after
	// startup are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("psubscribe %s: %w", userChannelPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.ErrorContext(ctx, "panic in notification subscriber",
								"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
