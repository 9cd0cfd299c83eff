package network

import (
	"context"

	"github.com/lampaBiurkowa/spin-snowball/logging"
)

const (
	// EventAckAdvanced is emitted when a client acknowledges a newer tick.
	EventAckAdvanced logging.EventType = "network.ack_advanced"
	// EventAckRegression is emitted when a client reports an older acknowledgement than previously recorded.
	EventAckRegression logging.EventType = "network.ack_regression"
	// EventProtocolViolation is emitted when a client message is rejected.
	EventProtocolViolation logging.EventType = "network.protocol_violation"
	// EventForcedDisconnect is emitted when repeated violations close a connection.
	EventForcedDisconnect logging.EventType = "network.forced_disconnect"
	// EventCommandDropped is emitted when the intake queue rejects a command.
	EventCommandDropped logging.EventType = "network.command_dropped"
)

// AckPayload captures acknowledgement progression details.
type AckPayload struct {
	Previous uint64 `json:"previous"`
	Ack      uint64 `json:"ack"`
}

// ViolationPayload captures why a client message was rejected.
type ViolationPayload struct {
	Reason string `json:"reason"`
	Count  uint64 `json:"count"`
}

// DropPayload captures a rejected command and the backpressure reason.
type DropPayload struct {
	Reason string `json:"reason"`
	Seq    uint64 `json:"seq,omitempty"`
}

// AckAdvanced publishes a debug event when a client acknowledgement advances.
func AckAdvanced(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AckPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventAckAdvanced,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// AckRegression publishes a warning event when a client acknowledgement regresses.
func AckRegression(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AckPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventAckRegression,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ProtocolViolation publishes a warning event for a rejected client message.
func ProtocolViolation(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViolationPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventProtocolViolation,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ForcedDisconnect publishes an error event when a connection is closed for
// repeated violations.
func ForcedDisconnect(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViolationPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventForcedDisconnect,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// CommandDropped publishes a warning event when intake rejects a command.
func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DropPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventCommandDropped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event)
}
