package lifecycle

import (
	"context"

	"github.com/lampaBiurkowa/spin-snowball/logging"
)

const (
	// EventConnected is emitted when a client completes the join handshake.
	EventConnected logging.EventType = "lifecycle.connected"
	// EventDisconnected is emitted when a connection is released.
	EventDisconnected logging.EventType = "lifecycle.disconnected"
	// EventTimedOut is emitted when the liveness window elapses without a heartbeat.
	EventTimedOut logging.EventType = "lifecycle.timed_out"
)

// DisconnectPayload captures why a connection went away.
type DisconnectPayload struct {
	Reason string `json:"reason,omitempty"`
}

func Connected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef) {
	publish(ctx, pub, tick, actor, EventConnected, nil)
}

func Disconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DisconnectPayload) {
	publish(ctx, pub, tick, actor, EventDisconnected, payload)
}

func TimedOut(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef) {
	publish(ctx, pub, tick, actor, EventTimedOut, nil)
}

func publish(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, eventType logging.EventType, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
