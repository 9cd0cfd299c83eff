package sim

import "time"

// Keyframe captures the immutable state snapshot stored in the journal.
type Keyframe struct {
	Tick       uint64         `json:"tick"`
	Sequence   uint64         `json:"sequence"`
	Players    []PlayerView   `json:"players,omitempty"`
	Snowballs  []SnowballView `json:"snowballs,omitempty"`
	Ball       *BallView      `json:"ball,omitempty"`
	Match      MatchView      `json:"match"`
	RecordedAt time.Time      `json:"recordedAt"`
}

// KeyframeEviction describes a keyframe removed from the buffer and why it was dropped.
type KeyframeEviction struct {
	Sequence uint64 `json:"sequence"`
	Tick     uint64 `json:"tick"`
	Reason   string `json:"reason,omitempty"`
}

// KeyframeRecordResult reports journal state after storing a keyframe.
type KeyframeRecordResult struct {
	Size           int                `json:"size"`
	OldestSequence uint64             `json:"oldestSequence"`
	NewestSequence uint64             `json:"newestSequence"`
	Evicted        []KeyframeEviction `json:"evicted,omitempty"`
}
