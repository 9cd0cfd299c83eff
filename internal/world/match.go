package world

import (
	"context"

	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
	matchlog "github.com/lampaBiurkowa/spin-snowball/logging/match"
)

// startMatch resets scores, positions and the match clock, then enters the
// playing phase. A zero score or time limit means that limit is disabled.
func (w *World) startMatch(scoreLimit int, timeLimitSec float64) {
	w.match.team1Score = 0
	w.match.team2Score = 0
	w.match.scoreLimit = scoreLimit
	w.match.timeLimitSec = timeLimitSec
	w.match.clockSec = 0
	w.match.paused = false
	w.resetPositions()
	if w.mode == mapdoc.ModeFootball && w.doc.Ball != nil {
		w.ball = &ballState{
			x:            w.doc.Ball.SpawnX,
			y:            w.doc.Ball.SpawnY,
			lastModified: w.pendingTick(),
		}
	}
	w.match.phase = sim.PhasePlaying
	w.match.modified = w.pendingTick()
	matchlog.Started(context.Background(), w.deps.Publisher, w.pendingTick(), matchlog.LimitsPayload{
		ScoreLimit:    uint32(max(scoreLimit, 0)),
		TimeLimitSecs: uint32(max(int(timeLimitSec), 0)),
	})
}

// stopMatch returns everyone to the lobby as spectators.
func (w *World) stopMatch(reason string) {
	w.match.phase = sim.PhaseLobby
	w.match.paused = false
	for _, id := range w.sortedPlayerIDs(false) {
		p := w.players[id]
		if p.team != sim.TeamSpectator {
			p.team = sim.TeamSpectator
			p.metaModified = w.pendingTick()
		}
	}
	w.match.modified = w.pendingTick()
	matchlog.Ended(context.Background(), w.deps.Publisher, w.pendingTick(), matchlog.EndPayload{
		Reason: reason,
		Team1:  uint32(w.match.team1Score),
		Team2:  uint32(w.match.team2Score),
	})
}

// pauseMatch freezes the simulation but broadcasts keep flowing.
func (w *World) pauseMatch() {
	if w.match.phase != sim.PhasePlaying || w.match.paused {
		return
	}
	w.match.paused = true
	w.match.modified = w.pendingTick()
	matchlog.Paused(context.Background(), w.deps.Publisher, w.pendingTick())
}

func (w *World) resumeMatch() {
	if w.match.phase != sim.PhasePlaying || !w.match.paused {
		return
	}
	w.match.paused = false
	w.match.modified = w.pendingTick()
	matchlog.Resumed(context.Background(), w.deps.Publisher, w.pendingTick())
}

// setMode swaps the rule set while in the lobby. Entering football mode
// materialises the ball; leaving it drops the ball entity.
func (w *World) setMode(mode string) {
	if mode == w.mode {
		return
	}
	w.mode = mode
	if mode == mapdoc.ModeFootball && w.doc.Ball != nil {
		w.ball = &ballState{
			x:            w.doc.Ball.SpawnX,
			y:            w.doc.Ball.SpawnY,
			lastModified: w.pendingTick(),
		}
	} else {
		w.ball = nil
	}
	w.match.modified = w.pendingTick()
}

// resetPositions moves playing members to their team spawns and recenters
// the ball. Spectators stay where they are.
func (w *World) resetPositions() {
	for _, id := range w.sortedPlayerIDs(false) {
		p := w.players[id]
		switch p.team {
		case sim.TeamOne:
			w.placeAtSpawn(p, w.doc.Team1)
		case sim.TeamTwo:
			w.placeAtSpawn(p, w.doc.Team2)
		}
	}
	if w.ball != nil && w.doc.Ball != nil {
		w.ball.x = w.doc.Ball.SpawnX
		w.ball.y = w.doc.Ball.SpawnY
		w.ball.vx = 0
		w.ball.vy = 0
		w.ball.lastModified = w.pendingTick()
	}
}

func (w *World) placeAtSpawn(p *playerState, spawn mapdoc.TeamSpawn) {
	p.x = spawn.SpawnX
	p.y = spawn.SpawnY
	p.vx = 0
	p.vy = 0
	p.rotDeg = spawnRotDeg
	p.spinTimer = 0
	p.lastModified = w.pendingTick()
}

// respawnPlayer resets a single player to their team spawn, used on joins
// and after falling into a hole.
func (w *World) respawnPlayer(p *playerState) {
	switch p.team {
	case sim.TeamOne:
		w.placeAtSpawn(p, w.doc.Team1)
	case sim.TeamTwo:
		w.placeAtSpawn(p, w.doc.Team2)
	}
}

// scoreForTeam increments a team's tally and checks the score limit.
func (w *World) scoreForTeam(team sim.TeamID) {
	switch team {
	case sim.TeamOne:
		w.match.team1Score++
	case sim.TeamTwo:
		w.match.team2Score++
	default:
		return
	}
	w.match.modified = w.pendingTick()
}

// checkEndConditions ends the match when a score or time limit is reached.
// It reports whether the match ended this tick.
func (w *World) checkEndConditions() bool {
	if w.match.phase != sim.PhasePlaying {
		return false
	}
	if limit := w.match.scoreLimit; limit > 0 {
		if w.match.team1Score >= limit || w.match.team2Score >= limit {
			w.stopMatch("score_limit")
			return true
		}
	}
	if limit := w.match.timeLimitSec; limit > 0 && w.match.clockSec >= limit {
		w.stopMatch("time_limit")
		return true
	}
	return false
}
