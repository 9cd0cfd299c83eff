package match

import (
	"context"

	"github.com/lampaBiurkowa/spin-snowball/logging"
)

const (
	// EventStarted is emitted when a match leaves the lobby.
	EventStarted logging.EventType = "match.started"
	// EventEnded is emitted when a match returns to the lobby.
	EventEnded logging.EventType = "match.ended"
	// EventPaused is emitted when the simulation freezes mid-match.
	EventPaused logging.EventType = "match.paused"
	// EventResumed is emitted when a paused match continues.
	EventResumed logging.EventType = "match.resumed"
	// EventGoal is emitted when a team scores through a goal area.
	EventGoal logging.EventType = "match.goal"
	// EventHoleFall is emitted when a player drops into a map hole.
	EventHoleFall logging.EventType = "match.hole_fall"
)

// LimitsPayload captures the configured end conditions for a match.
type LimitsPayload struct {
	ScoreLimit    uint32 `json:"scoreLimit,omitempty"`
	TimeLimitSecs uint32 `json:"timeLimitSecs,omitempty"`
}

// ScorePayload captures a scoring team and the running totals.
type ScorePayload struct {
	Team  string `json:"team"`
	Team1 uint32 `json:"team1"`
	Team2 uint32 `json:"team2"`
}

// EndPayload captures why a match ended and the final totals.
type EndPayload struct {
	Reason string `json:"reason"`
	Team1  uint32 `json:"team1"`
	Team2  uint32 `json:"team2"`
}

func Started(ctx context.Context, pub logging.Publisher, tick uint64, payload LimitsPayload) {
	publish(ctx, pub, tick, EventStarted, logging.SeverityInfo, payload)
}

func Ended(ctx context.Context, pub logging.Publisher, tick uint64, payload EndPayload) {
	publish(ctx, pub, tick, EventEnded, logging.SeverityInfo, payload)
}

func Paused(ctx context.Context, pub logging.Publisher, tick uint64) {
	publish(ctx, pub, tick, EventPaused, logging.SeverityInfo, nil)
}

func Resumed(ctx context.Context, pub logging.Publisher, tick uint64) {
	publish(ctx, pub, tick, EventResumed, logging.SeverityInfo, nil)
}

func Goal(ctx context.Context, pub logging.Publisher, tick uint64, payload ScorePayload) {
	publish(ctx, pub, tick, EventGoal, logging.SeverityInfo, payload)
}

func HoleFall(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ScorePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHoleFall,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}

func publish(ctx context.Context, pub logging.Publisher, tick uint64, eventType logging.EventType, severity logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: severity,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}
