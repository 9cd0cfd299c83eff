package proto

import (
	"encoding/json"
	"fmt"

	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	// Type identifiers for outbound websocket payloads.
	typeJoin          = "join"
	typeState         = "state"
	typeKeyframe      = "keyframe"
	typeKeyframeNack  = "keyframe_nack"
	typeCommandReject = "command_reject"
	typeHeartbeat     = "heartbeat"
	typePong          = "pong"
)

// Client message type identifiers.
const (
	TypeInput       = "input"
	TypeCommand     = "command"
	TypeHeartbeat   = "heartbeat"
	TypeAck         = "ack"
	TypeKeyframeReq = "keyframe_request"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeJoin         = typeJoin
	TypeState        = typeState
	TypeKeyframe     = typeKeyframe
	TypeKeyframeNack = typeKeyframeNack
)

// ClientMessage captures an inbound websocket message from the client.
type ClientMessage struct {
	Ver          int                     `json:"ver,omitempty"`
	Type         string                  `json:"type"`
	Left         bool                    `json:"left,omitempty"`
	Right        bool                    `json:"right,omitempty"`
	Shoot        bool                    `json:"shoot,omitempty"`
	Action       string                  `json:"action,omitempty"`
	ScoreLimit   int                     `json:"scoreLimit,omitempty"`
	TimeLimitSec float64                 `json:"timeLimitSec,omitempty"`
	Team         string                  `json:"team,omitempty"`
	Nick         string                  `json:"nick,omitempty"`
	Color        string                  `json:"color,omitempty"`
	Mode         string                  `json:"mode,omitempty"`
	Physics      *mapdoc.PhysicsSettings `json:"physics,omitempty"`
	SentAt       int64                   `json:"sentAt,omitempty"`
	OriginTick   uint64                  `json:"originTick,omitempty"`
	Ack          *uint64                 `json:"ack,omitempty"`
	KeyframeSeq  *uint64                 `json:"keyframeSeq,omitempty"`
	CommandSeq   *uint64                 `json:"seq,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// ClientCommand converts a decoded message into the structured simulation
// command it carries. Origin metadata is populated when the command is
// accepted for processing.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypeInput:
		return sim.Command{
			OriginTick: msg.OriginTick,
			Type:       sim.CommandMove,
			Move: &sim.MoveCommand{
				Left:  msg.Left,
				Right: msg.Right,
				Shoot: msg.Shoot,
			},
		}, true
	case TypeCommand:
		action, ok := parseLobbyAction(msg.Action)
		if !ok {
			return sim.Command{}, false
		}
		return sim.Command{
			Type: sim.CommandLobby,
			Lobby: &sim.LobbyCommand{
				Action:       action,
				ScoreLimit:   msg.ScoreLimit,
				TimeLimitSec: msg.TimeLimitSec,
				Team:         msg.Team,
				Nick:         msg.Nick,
				Color:        msg.Color,
				Mode:         msg.Mode,
				Physics:      msg.Physics,
			},
		}, true
	default:
		return sim.Command{}, false
	}
}

func parseLobbyAction(value string) (sim.LobbyAction, bool) {
	switch action := sim.LobbyAction(value); action {
	case sim.LobbyStart, sim.LobbyStop, sim.LobbyPause, sim.LobbyResume,
		sim.LobbyJoinPlayer, sim.LobbyJoinSpectator, sim.LobbyLeave,
		sim.LobbySetNick, sim.LobbySetColor, sim.LobbySetPhysics, sim.LobbySetMode:
		return action, true
	default:
		return "", false
	}
}

// WorldConfig describes the static world parameters shipped to clients on
// join and keyframes.
type WorldConfig struct {
	MapName  string                 `json:"mapName"`
	Width    float64                `json:"width"`
	Height   float64                `json:"height"`
	Mode     string                 `json:"mode"`
	TickRate int                    `json:"tickRate"`
	Physics  mapdoc.PhysicsSettings `json:"physics"`
}

// JoinResponseV1 captures the version 1 join response layout.
type JoinResponseV1 struct {
	ID          string             `json:"id"`
	Tick        uint64             `json:"t"`
	Players     []sim.PlayerView   `json:"players"`
	Snowballs   []sim.SnowballView `json:"snowballs,omitempty"`
	Ball        *sim.BallView      `json:"ball,omitempty"`
	Match       sim.MatchView      `json:"match"`
	Config      WorldConfig        `json:"config"`
	KeyframeSeq uint64             `json:"keyframeSeq"`
	ServerTime  int64              `json:"serverTime"`
}

// EncodeJoinResponse renders a versioned join response payload.
func EncodeJoinResponse(msg JoinResponseV1) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		JoinResponseV1
	}{Ver: Version, Type: typeJoin, JoinResponseV1: msg}
	return json.Marshal(frame)
}

// StateMessageV1 captures the version 1 delta broadcast layout.
type StateMessageV1 struct {
	Tick        uint64        `json:"t"`
	KeyframeSeq uint64        `json:"keyframeSeq"`
	Patches     []sim.Patch   `json:"patches"`
	Removals    []sim.Removal `json:"removals,omitempty"`
	ServerTime  int64         `json:"serverTime"`
}

// EncodeState renders a versioned delta broadcast payload.
func EncodeState(msg StateMessageV1) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		StateMessageV1
	}{Ver: Version, Type: typeState, StateMessageV1: msg}
	if frame.Patches == nil {
		frame.Patches = []sim.Patch{}
	}
	return json.Marshal(frame)
}

// KeyframeMessageV1 captures the version 1 full snapshot layout.
type KeyframeMessageV1 struct {
	Sequence   uint64             `json:"sequence"`
	Tick       uint64             `json:"t"`
	Players    []sim.PlayerView   `json:"players"`
	Snowballs  []sim.SnowballView `json:"snowballs,omitempty"`
	Ball       *sim.BallView      `json:"ball,omitempty"`
	Match      sim.MatchView      `json:"match"`
	Config     WorldConfig        `json:"config"`
	Resync     bool               `json:"resync,omitempty"`
	ServerTime int64              `json:"serverTime"`
}

// KeyframeFromJournal maps a stored keyframe onto the wire layout.
func KeyframeFromJournal(frame sim.Keyframe, cfg WorldConfig) KeyframeMessageV1 {
	return KeyframeMessageV1{
		Sequence:  frame.Sequence,
		Tick:      frame.Tick,
		Players:   frame.Players,
		Snowballs: frame.Snowballs,
		Ball:      frame.Ball,
		Match:     frame.Match,
		Config:    cfg,
	}
}

// EncodeKeyframe renders a versioned keyframe payload.
func EncodeKeyframe(msg KeyframeMessageV1) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		KeyframeMessageV1
	}{Ver: Version, Type: typeKeyframe, KeyframeMessageV1: msg}
	if frame.Players == nil {
		frame.Players = []sim.PlayerView{}
	}
	return json.Marshal(frame)
}

// KeyframeNack tells a client that a requested keyframe is no longer
// retained and a fresh one will follow.
type KeyframeNack struct {
	Sequence uint64
	Reason   string
	Oldest   uint64
	Newest   uint64
}

// EncodeKeyframeNack renders a keyframe nack payload.
func EncodeKeyframeNack(msg KeyframeNack) ([]byte, error) {
	frame := struct {
		Ver      int    `json:"ver"`
		Type     string `json:"type"`
		Sequence uint64 `json:"sequence"`
		Reason   string `json:"reason"`
		Oldest   uint64 `json:"oldest,omitempty"`
		Newest   uint64 `json:"newest,omitempty"`
	}{
		Ver:      Version,
		Type:     typeKeyframeNack,
		Sequence: msg.Sequence,
		Reason:   msg.Reason,
		Oldest:   msg.Oldest,
		Newest:   msg.Newest,
	}
	return json.Marshal(frame)
}

// CommandReject notifies the client that a command was refused.
type CommandReject struct {
	Seq    uint64
	Reason string
	Retry  bool
	Tick   uint64
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	frame := struct {
		Ver    int    `json:"ver"`
		Type   string `json:"type"`
		Seq    uint64 `json:"seq"`
		Reason string `json:"reason"`
		Retry  bool   `json:"retry,omitempty"`
		Tick   uint64 `json:"tick,omitempty"`
	}{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
	}
	if msg.Retry {
		frame.Retry = true
	}
	if msg.Tick > 0 {
		frame.Tick = msg.Tick
	}
	return json.Marshal(frame)
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	ServerTime int64
	ClientTime int64
	RTTMillis  int64
}

// EncodeHeartbeat renders a heartbeat acknowledgement payload.
func EncodeHeartbeat(msg Heartbeat) ([]byte, error) {
	frame := struct {
		Ver        int    `json:"ver"`
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
		ClientTime int64  `json:"clientTime"`
		RTTMillis  int64  `json:"rtt"`
	}{
		Ver:        Version,
		Type:       typeHeartbeat,
		ServerTime: msg.ServerTime,
		ClientTime: msg.ClientTime,
		RTTMillis:  msg.RTTMillis,
	}
	return json.Marshal(frame)
}

// EncodePong renders the minimal liveness reply used when a heartbeat
// carries no client timestamp.
func EncodePong(serverTime int64) ([]byte, error) {
	frame := struct {
		Ver        int    `json:"ver"`
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
	}{Ver: Version, Type: typePong, ServerTime: serverTime}
	return json.Marshal(frame)
}
