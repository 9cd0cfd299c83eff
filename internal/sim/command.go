package sim

import (
	"time"

	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandMove  CommandType = "Move"
	CommandLobby CommandType = "Lobby"
)

// MoveCommand carries the held input flags sampled by the client.
type MoveCommand struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Shoot bool `json:"shoot"`
}

// LobbyAction identifies a match or roster control request.
type LobbyAction string

const (
	LobbyStart         LobbyAction = "start"
	LobbyStop          LobbyAction = "stop"
	LobbyPause         LobbyAction = "pause"
	LobbyResume        LobbyAction = "resume"
	LobbyJoinPlayer    LobbyAction = "join_player"
	LobbyJoinSpectator LobbyAction = "join_spectator"
	LobbyLeave         LobbyAction = "leave"
	LobbySetNick       LobbyAction = "set_nick"
	LobbySetColor      LobbyAction = "set_color"
	LobbySetPhysics    LobbyAction = "set_physics"
	LobbySetMode       LobbyAction = "set_mode"
)

// LobbyCommand carries the arguments for a lobby action. Only the fields
// relevant to the action are populated.
type LobbyCommand struct {
	Action       LobbyAction             `json:"action"`
	ScoreLimit   int                     `json:"scoreLimit,omitempty"`
	TimeLimitSec float64                 `json:"timeLimitSec,omitempty"`
	Team         string                  `json:"team,omitempty"`
	Nick         string                  `json:"nick,omitempty"`
	Color        string                  `json:"color,omitempty"`
	Mode         string                  `json:"mode,omitempty"`
	Physics      *mapdoc.PhysicsSettings `json:"physics,omitempty"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64        `json:"originTick"`
	Seq        uint64        `json:"seq"`
	ActorID    string        `json:"actorId"`
	Type       CommandType   `json:"type"`
	IssuedAt   time.Time     `json:"issuedAt"`
	Move       *MoveCommand  `json:"move,omitempty"`
	Lobby      *LobbyCommand `json:"lobby,omitempty"`
}
