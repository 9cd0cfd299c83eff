package world

import (
	"math"

	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
)

// Step advances the simulation by exactly one fixed-duration tick. The tick
// counter increments even while the match is paused or in the lobby so
// clients can still acknowledge broadcast state.
func (w *World) Step() {
	w.tick++
	w.inStep = true
	w.removedLast = nil

	if w.match.phase == sim.PhasePlaying && !w.match.paused {
		w.integratePlayers()
		w.integrateSnowballs()
		w.integrateBall()
		w.resolveCollisions()
		w.match.clockSec += w.dt
		w.match.modified = w.tick
		w.checkEndConditions()
	}

	w.flushRemovals()
	w.inStep = false
}

func (w *World) integratePlayers() {
	for _, id := range w.sortedPlayerIDs(false) {
		p := w.players[id]
		if p.team == sim.TeamSpectator {
			continue
		}
		before := *p

		if p.rotatingLeft {
			p.rotDeg -= rotationDegPerSec * w.dt
			p.spinTimer += w.dt
		}
		if p.rotatingRight {
			p.rotDeg += rotationDegPerSec * w.dt
			p.spinTimer += w.dt
		}
		if p.rotDeg > 360 || p.rotDeg < -360 {
			p.rotDeg = math.Mod(p.rotDeg, 360)
		}
		if p.spinTimer > spinChargeCapSec {
			p.spinTimer = spinChargeCapSec
		}

		p.x += p.vx * w.dt
		p.y += p.vy * w.dt

		friction := math.Pow(w.physics.FrictionPerFrame, w.dt*60)
		p.vx *= friction
		p.vy *= friction

		if p.cooldown > 0 {
			p.cooldown -= w.dt
		}

		p.x = clamp(p.x, 0, w.doc.Width)
		p.y = clamp(p.y, 0, w.doc.Height)

		if moved(before.x, before.y, before.vx, before.vy, p) ||
			before.rotDeg != p.rotDeg || before.spinTimer != p.spinTimer {
			p.lastModified = w.tick
		}
	}
}

func (w *World) integrateSnowballs() {
	for _, id := range w.sortedSnowballIDs(false) {
		s := w.snowballs[id]
		s.x += s.vx * w.dt
		s.y += s.vy * w.dt
		s.vx *= snowballDragPerTick
		s.vy *= snowballDragPerTick
		s.life -= w.dt
		s.lastModified = w.tick
		if s.life <= 0 {
			s.dead = true
		}
	}
}

func (w *World) integrateBall() {
	if w.ball == nil {
		return
	}
	b := w.ball
	before := *b
	b.x += b.vx * w.dt
	b.y += b.vy * w.dt
	friction := math.Pow(w.physics.FrictionPerFrame, w.dt*60)
	b.vx *= friction
	b.vy *= friction
	r := w.physics.BallRadius
	b.x = clamp(b.x, r, w.doc.Width-r)
	b.y = clamp(b.y, r, w.doc.Height-r)
	if before.x != b.x || before.y != b.y || before.vx != b.vx || before.vy != b.vy {
		b.lastModified = w.tick
	}
}

func moved(x, y, vx, vy float64, p *playerState) bool {
	return x != p.x || y != p.y || vx != p.vx || vy != p.vy
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
