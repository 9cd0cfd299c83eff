package sim

// PatchKind identifies the type of diff entry.
type PatchKind string

const (
	PatchPlayerMotion  PatchKind = "player_motion"
	PatchPlayerMeta    PatchKind = "player_meta"
	PatchPlayerRemoved PatchKind = "player_removed"

	PatchSnowballMotion  PatchKind = "snowball_motion"
	PatchSnowballRemoved PatchKind = "snowball_removed"

	PatchBallMotion PatchKind = "ball_motion"

	PatchMatchState PatchKind = "match_state"
)

// Patch represents a diff entry that can be applied to the client state.
type Patch struct {
	Kind     PatchKind `json:"kind"`
	EntityID string    `json:"entityId"`
	Payload  any       `json:"payload,omitempty"`
}

// PlayerMotionPayload captures a player's kinematic state in centiunits.
type PlayerMotionPayload struct {
	X      Centi `json:"x"`
	Y      Centi `json:"y"`
	VX     Centi `json:"vx"`
	VY     Centi `json:"vy"`
	Rot    Centi `json:"rot"`
	Charge Centi `json:"charge"`
}

// PlayerMetaPayload captures a player's roster state.
type PlayerMetaPayload struct {
	Nick string `json:"nick,omitempty"`
	Team TeamID `json:"team"`
}

// SnowballMotionPayload captures a snowball's kinematic state and remaining
// life in centiunits.
type SnowballMotionPayload struct {
	X    Centi `json:"x"`
	Y    Centi `json:"y"`
	VX   Centi `json:"vx"`
	VY   Centi `json:"vy"`
	Life Centi `json:"life"`
}

// BallMotionPayload captures the ball's kinematic state in centiunits.
type BallMotionPayload struct {
	X  Centi `json:"x"`
	Y  Centi `json:"y"`
	VX Centi `json:"vx"`
	VY Centi `json:"vy"`
}

// MatchStatePayload carries the full replicated match state.
type MatchStatePayload = MatchView

// Removal records an entity that left the world, reported exactly once per
// departure. Kind is the matching removal patch kind.
type Removal struct {
	EntityID string    `json:"entityId"`
	Kind     PatchKind `json:"kind"`
	Tick     uint64    `json:"tick"`
}

// Delta bundles the patches and removals needed to move a client from its
// acknowledged baseline to the current tick.
type Delta struct {
	Patches  []Patch   `json:"patches,omitempty"`
	Removals []Removal `json:"removals,omitempty"`
}
