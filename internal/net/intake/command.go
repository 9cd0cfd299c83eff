package intake

import (
	"time"

	"github.com/lampaBiurkowa/spin-snowball/internal/net/proto"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
)

// Enqueuer accepts staged commands for the next tick.
type Enqueuer interface {
	Enqueue(sim.Command) (bool, string)
}

// CommandContext carries the collaborators needed to stage a client command.
type CommandContext struct {
	Queue    Enqueuer
	HasActor func(string) bool
	Tick     func() uint64
	Now      func() time.Time
}

// StageClientCommand validates an inbound message, stamps origin metadata and
// hands the command to the queue. On failure the reject reason is returned.
func StageClientCommand(ctx CommandContext, actorID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok {
		return zero, false, sim.CommandRejectInvalid
	}

	switch command.Type {
	case sim.CommandMove:
		if command.Move == nil {
			return zero, false, sim.CommandRejectInvalid
		}
	case sim.CommandLobby:
		if command.Lobby == nil {
			return zero, false, sim.CommandRejectInvalid
		}
	default:
		return zero, false, sim.CommandRejectInvalid
	}

	// Joining is the one command allowed before the actor exists.
	joining := command.Type == sim.CommandLobby && command.Lobby.Action == sim.LobbyJoinSpectator
	if !joining && ctx.HasActor != nil && !ctx.HasActor(actorID) {
		return zero, false, sim.CommandRejectUnknownActor
	}

	command.ActorID = actorID
	if msg.CommandSeq != nil {
		command.Seq = *msg.CommandSeq
	}
	if command.OriginTick == 0 && ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Queue == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Queue.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}
