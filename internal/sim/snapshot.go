package sim

// TeamID identifies a player's roster slot.
type TeamID string

const (
	TeamSpectator TeamID = "spectator"
	TeamOne       TeamID = "team1"
	TeamTwo       TeamID = "team2"
)

// MatchPhase enumerates the coarse match states.
type MatchPhase string

const (
	PhaseLobby   MatchPhase = "lobby"
	PhasePlaying MatchPhase = "playing"
)

// PlayerView mirrors a player's replicated state. Spatial fields are
// quantised to centiunits.
type PlayerView struct {
	ID     string `json:"id"`
	Nick   string `json:"nick,omitempty"`
	Team   TeamID `json:"team"`
	X      Centi  `json:"x"`
	Y      Centi  `json:"y"`
	VX     Centi  `json:"vx"`
	VY     Centi  `json:"vy"`
	Rot    Centi  `json:"rot"`
	Charge Centi  `json:"charge"`
}

// SnowballView mirrors a snowball's replicated state.
type SnowballView struct {
	ID   string `json:"id"`
	X    Centi  `json:"x"`
	Y    Centi  `json:"y"`
	VX   Centi  `json:"vx"`
	VY   Centi  `json:"vy"`
	Life Centi  `json:"life"`
}

// BallView mirrors the match ball's replicated state.
type BallView struct {
	X  Centi `json:"x"`
	Y  Centi `json:"y"`
	VX Centi `json:"vx"`
	VY Centi `json:"vy"`
}

// MatchView mirrors the replicated match state.
type MatchView struct {
	Phase        MatchPhase `json:"phase"`
	Paused       bool       `json:"paused,omitempty"`
	Mode         string     `json:"mode"`
	ScoreLimit   int        `json:"scoreLimit,omitempty"`
	TimeLimitSec float64    `json:"timeLimitSec,omitempty"`
	Team1Score   int        `json:"team1Score"`
	Team2Score   int        `json:"team2Score"`
	ClockSec     Centi      `json:"clockSec"`
	Team1Color   string     `json:"team1Color,omitempty"`
	Team2Color   string     `json:"team2Color,omitempty"`
}

// Snapshot captures the state exposed to non-simulation callers.
type Snapshot struct {
	Tick      uint64         `json:"tick"`
	Players   []PlayerView   `json:"players,omitempty"`
	Snowballs []SnowballView `json:"snowballs,omitempty"`
	Ball      *BallView      `json:"ball,omitempty"`
	Match     MatchView      `json:"match"`
}
