package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
)

// Apply stages one tick's worth of commands into the world. Commands are
// ordered by actor id and then by client sequence so replaying the same
// script always mutates state in the same order. Malformed commands are
// skipped and counted; they never abort the batch.
func (w *World) Apply(cmds []sim.Command) error {
	if len(cmds) == 0 {
		return nil
	}
	sort.SliceStable(cmds, func(i, j int) bool {
		if cmds[i].ActorID != cmds[j].ActorID {
			return cmds[i].ActorID < cmds[j].ActorID
		}
		return cmds[i].Seq < cmds[j].Seq
	})
	for _, cmd := range cmds {
		if err := w.applyCommand(cmd); err != nil {
			w.rejectCommand(cmd, err)
		}
	}
	return nil
}

func (w *World) applyCommand(cmd sim.Command) error {
	switch cmd.Type {
	case sim.CommandMove:
		if cmd.Move == nil {
			return fmt.Errorf("move command without payload")
		}
		return w.applyMove(cmd.ActorID, *cmd.Move)
	case sim.CommandLobby:
		if cmd.Lobby == nil {
			return fmt.Errorf("lobby command without payload")
		}
		return w.applyLobby(cmd.ActorID, *cmd.Lobby)
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// applyMove records the held input flags and edge-detects the shoot button.
// A snowball spawns only on the false -> true transition, so holding the
// button does not stream projectiles.
func (w *World) applyMove(actorID string, move sim.MoveCommand) error {
	if w.match.paused {
		return nil
	}
	p, ok := w.players[actorID]
	if !ok || p.removed {
		return fmt.Errorf("move for unknown player %q", actorID)
	}
	if p.team == sim.TeamSpectator || w.match.phase != sim.PhasePlaying {
		return nil
	}

	p.rotatingLeft = move.Left
	p.rotatingRight = move.Right

	if move.Shoot && !p.lastShoot {
		if p.cooldown <= 0 {
			w.fireSnowball(p)
			p.cooldown = w.physics.ShootCooldownSec
		}
		p.lastShoot = true
	} else if !move.Shoot {
		p.lastShoot = false
	}
	p.lastModified = w.pendingTick()
	return nil
}

func (w *World) fireSnowball(p *playerState) {
	charge := math.Min(p.spinTimer, spinChargeCapSec)
	chargeT := charge / spinChargeCapSec
	speed := snowballBaseSpeed + snowballChargeSpeed*chargeT

	r := p.rotDeg * math.Pi / 180
	dirX, dirY := math.Cos(r), math.Sin(r)
	offset := w.physics.PlayerRadius + w.physics.SnowballRadius

	w.snowballSeq++
	id := fmt.Sprintf("snowball-%d", w.snowballSeq)
	w.snowballs[id] = &snowballState{
		id:           id,
		x:            p.x + dirX*offset,
		y:            p.y + dirY*offset,
		vx:           dirX * speed,
		vy:           dirY * speed,
		life:         w.physics.SnowballLifetimeSec,
		lastModified: w.pendingTick(),
	}

	recoil := speed * (0.45 + 1.0*chargeT) / 3.0
	p.vx -= dirX * recoil
	p.vy -= dirY * recoil
	p.spinTimer = 0
}

func (w *World) applyLobby(actorID string, lobby sim.LobbyCommand) error {
	switch lobby.Action {
	case sim.LobbyJoinSpectator:
		p := w.addPlayer(actorID)
		if p.team != sim.TeamSpectator {
			p.team = sim.TeamSpectator
			p.metaModified = w.pendingTick()
		}
	case sim.LobbyJoinPlayer:
		p, ok := w.players[actorID]
		if !ok {
			return fmt.Errorf("join for unknown player %q", actorID)
		}
		team := sim.TeamID(lobby.Team)
		if team != sim.TeamOne && team != sim.TeamTwo {
			return fmt.Errorf("join with unknown team %q", lobby.Team)
		}
		p.team = team
		p.metaModified = w.pendingTick()
		w.respawnPlayer(p)
	case sim.LobbyLeave:
		w.removePlayer(actorID)
	case sim.LobbySetNick:
		p, ok := w.players[actorID]
		if !ok {
			return fmt.Errorf("set_nick for unknown player %q", actorID)
		}
		if lobby.Nick == "" {
			return fmt.Errorf("set_nick with empty nick")
		}
		p.nick = lobby.Nick
		p.metaModified = w.pendingTick()
	case sim.LobbySetColor:
		switch sim.TeamID(lobby.Team) {
		case sim.TeamOne:
			w.match.team1Color = lobby.Color
		case sim.TeamTwo:
			w.match.team2Color = lobby.Color
		default:
			return fmt.Errorf("set_color for unknown team %q", lobby.Team)
		}
		w.match.modified = w.pendingTick()
	case sim.LobbyStart:
		w.startMatch(lobby.ScoreLimit, lobby.TimeLimitSec)
	case sim.LobbyStop:
		w.stopMatch("stopped")
	case sim.LobbyPause:
		w.pauseMatch()
	case sim.LobbyResume:
		w.resumeMatch()
	case sim.LobbySetMode:
		if !mapdoc.KnownMode(lobby.Mode) || lobby.Mode == "" {
			return fmt.Errorf("set_mode with unknown mode %q", lobby.Mode)
		}
		if w.match.phase != sim.PhaseLobby {
			return fmt.Errorf("set_mode while a match is running")
		}
		w.setMode(lobby.Mode)
	case sim.LobbySetPhysics:
		if lobby.Physics == nil {
			return fmt.Errorf("set_physics without payload")
		}
		if err := lobby.Physics.Validate(); err != nil {
			return fmt.Errorf("set_physics rejected: %w", err)
		}
		w.physics = *lobby.Physics
		w.match.modified = w.pendingTick()
	default:
		return fmt.Errorf("unknown lobby action %q", lobby.Action)
	}
	return nil
}

func (w *World) rejectCommand(cmd sim.Command, err error) {
	if w.deps.Metrics != nil {
		w.deps.Metrics.Add(rejectedCommandMetricKey, 1)
	}
	if w.deps.Logger != nil {
		w.deps.Logger.Printf("[world] rejected command actor=%s type=%s: %v", cmd.ActorID, cmd.Type, err)
	}
}
