package world

import (
	"context"
	"math"

	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
	"github.com/lampaBiurkowa/spin-snowball/logging"
	matchlog "github.com/lampaBiurkowa/spin-snowball/logging/match"
)

// body abstracts the circular rigid bodies the resolver works on.
type body interface {
	position() (float64, float64)
	setPosition(x, y float64)
	velocity() (float64, float64)
	setVelocity(vx, vy float64)
}

func (p *playerState) position() (float64, float64) { return p.x, p.y }
func (p *playerState) setPosition(x, y float64)     { p.x, p.y = x, y }
func (p *playerState) velocity() (float64, float64) { return p.vx, p.vy }
func (p *playerState) setVelocity(vx, vy float64)   { p.vx, p.vy = vx, vy }

func (s *snowballState) position() (float64, float64) { return s.x, s.y }
func (s *snowballState) setPosition(x, y float64)     { s.x, s.y = x, y }
func (s *snowballState) velocity() (float64, float64) { return s.vx, s.vy }
func (s *snowballState) setVelocity(vx, vy float64)   { s.vx, s.vy = vx, vy }

func (b *ballState) position() (float64, float64) { return b.x, b.y }
func (b *ballState) setPosition(x, y float64)     { b.x, b.y = x, y }
func (b *ballState) velocity() (float64, float64) { return b.vx, b.vy }
func (b *ballState) setVelocity(vx, vy float64)   { b.vx, b.vy = vx, vy }

// resolveCollisions runs the full collision pass for one tick. Pair order is
// fixed by ascending entity id so resolution is deterministic.
func (w *World) resolveCollisions() {
	w.resolvePlayerPairs()
	w.resolvePlayerSnowballs()
	w.resolveBallBodies()
	w.resolveMapCollisions()
}

func (w *World) resolvePlayerPairs() {
	ids := w.sortedPlayerIDs(false)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := w.players[ids[i]], w.players[ids[j]]
			if a.team == sim.TeamSpectator || b.team == sim.TeamSpectator {
				continue
			}
			if resolveCircleCircle(a, b,
				w.physics.PlayerRadius, w.physics.PlayerMass,
				w.physics.PlayerRadius, w.physics.PlayerMass,
				w.physics.PlayerBounciness) {
				a.lastModified = w.tick
				b.lastModified = w.tick
			}
		}
	}
}

func (w *World) resolvePlayerSnowballs() {
	for _, pid := range w.sortedPlayerIDs(false) {
		p := w.players[pid]
		if p.team == sim.TeamSpectator {
			continue
		}
		for _, sid := range w.sortedSnowballIDs(false) {
			s := w.snowballs[sid]
			if resolveCircleCircle(p, s,
				w.physics.PlayerRadius, w.physics.PlayerMass,
				w.physics.SnowballRadius, w.physics.SnowballMass,
				w.physics.SnowballBounciness) {
				p.lastModified = w.tick
				s.lastModified = w.tick
			}
		}
	}
}

func (w *World) resolveBallBodies() {
	if w.ball == nil {
		return
	}
	for _, pid := range w.sortedPlayerIDs(false) {
		p := w.players[pid]
		if p.team == sim.TeamSpectator {
			continue
		}
		if resolveCircleCircle(p, w.ball,
			w.physics.PlayerRadius, w.physics.PlayerMass,
			w.physics.BallRadius, w.physics.BallMass,
			w.physics.BallBounciness) {
			p.lastModified = w.tick
			w.ball.lastModified = w.tick
		}
	}
	for _, sid := range w.sortedSnowballIDs(false) {
		s := w.snowballs[sid]
		if resolveCircleCircle(s, w.ball,
			w.physics.SnowballRadius, w.physics.SnowballMass,
			w.physics.BallRadius, w.physics.BallMass,
			w.physics.BallBounciness) {
			s.lastModified = w.tick
			w.ball.lastModified = w.tick
		}
	}
}

// resolveCircleCircle separates two overlapping circles proportionally to
// mass and exchanges impulse along the contact normal. Reports whether a
// collision was resolved.
func resolveCircleCircle(a, b body, ra, ma, rb, mb, bounciness float64) bool {
	ax, ay := a.position()
	bx, by := b.position()
	dx, dy := bx-ax, by-ay
	dist := math.Hypot(dx, dy)
	minDist := ra + rb
	if dist <= 0 || dist >= minDist {
		return false
	}

	nx, ny := dx/dist, dy/dist
	penetration := minDist - dist
	totalMass := ma + mb

	a.setPosition(ax-nx*penetration*(mb/totalMass), ay-ny*penetration*(mb/totalMass))
	bx2, by2 := b.position()
	b.setPosition(bx2+nx*penetration*(ma/totalMass), by2+ny*penetration*(ma/totalMass))

	avx, avy := a.velocity()
	bvx, bvy := b.velocity()
	sepVel := (bvx-avx)*nx + (bvy-avy)*ny
	if sepVel >= 0 {
		return true
	}

	impulse := -(1 + bounciness) * sepVel / totalMass
	a.setVelocity(avx-nx*impulse*mb, avy-ny*impulse*mb)
	b.setVelocity(bvx+nx*impulse*ma, bvy+ny*impulse*ma)
	return true
}

// resolveMapCollisions bounces bodies off static geometry, drops bodies into
// holes and detects goals. Mask tags gate which bodies an object affects.
func (w *World) resolveMapCollisions() {
	for _, pid := range w.sortedPlayerIDs(false) {
		p := w.players[pid]
		if p.team == sim.TeamSpectator {
			continue
		}
		tag := mapdoc.MaskTeam1
		if p.team == sim.TeamTwo {
			tag = mapdoc.MaskTeam2
		}
		for i := range w.doc.Objects {
			obj := &w.doc.Objects[i]
			if !mapdoc.MatchesMask(obj.Mask, tag) {
				continue
			}
			hit, hole := w.collideWithObject(p, w.physics.PlayerRadius, obj)
			if hole {
				w.playerFellInHole(p)
				break
			}
			if hit {
				p.lastModified = w.tick
			}
		}
	}

	for _, sid := range w.sortedSnowballIDs(false) {
		s := w.snowballs[sid]
		for i := range w.doc.Objects {
			obj := &w.doc.Objects[i]
			if !mapdoc.MatchesMask(obj.Mask, mapdoc.MaskSnowball) {
				continue
			}
			hit, hole := w.collideWithObject(s, w.physics.SnowballRadius, obj)
			if hole {
				s.dead = true
				break
			}
			if hit {
				s.lastModified = w.tick
			}
		}
	}

	if w.ball != nil {
		for i := range w.doc.Objects {
			obj := &w.doc.Objects[i]
			if !mapdoc.MatchesMask(obj.Mask, mapdoc.MaskBall) {
				continue
			}
			// Holes never swallow the ball.
			if obj.IsHole {
				continue
			}
			if hit, _ := w.collideWithObject(w.ball, w.physics.BallRadius, obj); hit {
				w.ball.lastModified = w.tick
			}
		}
		w.checkGoals()
	}
}

// playerFellInHole respawns the player at their team spawn and, in fight
// mode, credits the opposing team.
func (w *World) playerFellInHole(p *playerState) {
	if w.mode != mapdoc.ModeFight {
		return
	}
	w.respawnPlayer(p)
	var credited sim.TeamID
	switch p.team {
	case sim.TeamOne:
		credited = sim.TeamTwo
	case sim.TeamTwo:
		credited = sim.TeamOne
	default:
		return
	}
	w.scoreForTeam(credited)
	matchlog.HoleFall(context.Background(), w.deps.Publisher, w.pendingTick(),
		logging.EntityRef{ID: p.id, Kind: logging.EntityKindPlayer},
		matchlog.ScorePayload{
			Team:  string(credited),
			Team1: uint32(w.match.team1Score),
			Team2: uint32(w.match.team2Score),
		})
}

func (w *World) checkGoals() {
	bx, by := w.ball.position()
	for _, goal := range w.doc.Goals {
		if circleIntersectsRect(bx, by, w.physics.BallRadius, goal.X, goal.Y, goal.W, goal.H) {
			w.scoreForTeam(sim.TeamID(goal.Team))
			matchlog.Goal(context.Background(), w.deps.Publisher, w.pendingTick(), matchlog.ScorePayload{
				Team:  goal.Team,
				Team1: uint32(w.match.team1Score),
				Team2: uint32(w.match.team2Score),
			})
			w.resetPositions()
			return
		}
	}
}

// collideWithObject tests and resolves a circular body against one map
// object. The second return value reports that the body entered a hole and
// the caller must remove or respawn it.
func (w *World) collideWithObject(b body, radius float64, obj *mapdoc.Object) (hit, hole bool) {
	x, y := b.position()
	switch obj.Kind {
	case mapdoc.ObjectCircle:
		if !circleIntersectsCircle(x, y, radius, obj.X, obj.Y, obj.Radius) {
			return false, false
		}
		if obj.IsHole {
			return true, true
		}
		dx, dy := x-obj.X, y-obj.Y
		dist := math.Max(math.Hypot(dx, dy), 0.0001)
		nx, ny := dx/dist, dy/dist
		b.setPosition(obj.X+nx*(obj.Radius+radius), obj.Y+ny*(obj.Radius+radius))
		reflect(b, nx, ny, obj.Factor)
		return true, false
	case mapdoc.ObjectRect:
		if !circleIntersectsRect(x, y, radius, obj.X, obj.Y, obj.W, obj.H) {
			return false, false
		}
		if obj.IsHole {
			return true, true
		}
		cx := clamp(x, obj.X, obj.X+obj.W)
		cy := clamp(y, obj.Y, obj.Y+obj.H)
		nx, ny := x-cx, y-cy
		if nx*nx+ny*ny < 1e-6 {
			nx, ny = outwardAxis(x, y, obj.X, obj.Y, obj.W, obj.H)
		}
		n := math.Hypot(nx, ny)
		if n > 0 {
			nx, ny = nx/n, ny/n
		}
		overlap := radius - math.Hypot(x-cx, y-cy)
		if overlap > 0 {
			b.setPosition(x+nx*overlap, y+ny*overlap)
		} else {
			b.setPosition(x+nx, y+ny)
		}
		reflect(b, nx, ny, obj.Factor)
		return true, false
	case mapdoc.ObjectLine:
		cx, cy := closestPointOnSegment(x, y, obj.AX, obj.AY, obj.BX, obj.BY)
		dx, dy := x-cx, y-cy
		dist := math.Hypot(dx, dy)
		if dist >= radius {
			return false, false
		}
		if obj.IsHole {
			return true, true
		}
		if dist < 0.0001 {
			// Body sits exactly on the line; push along its left normal.
			lx, ly := obj.BX-obj.AX, obj.BY-obj.AY
			l := math.Max(math.Hypot(lx, ly), 0.0001)
			dx, dy = -ly/l, lx/l
			dist = 1
		}
		nx, ny := dx/dist, dy/dist
		b.setPosition(cx+nx*radius, cy+ny*radius)
		reflect(b, nx, ny, obj.Factor)
		return true, false
	}
	return false, false
}

// reflect mirrors the body velocity across the contact normal scaled by the
// object's bounce factor.
func reflect(b body, nx, ny, factor float64) {
	vx, vy := b.velocity()
	dot := vx*nx + vy*ny
	b.setVelocity(vx-2*dot*nx*factor, vy-2*dot*ny*factor)
}

func outwardAxis(px, py, x, y, w, h float64) (float64, float64) {
	leftPen := math.Abs(px - x)
	rightPen := math.Abs(px - (x + w))
	topPen := math.Abs(py - y)
	bottomPen := math.Abs(py - (y + h))

	switch {
	case leftPen <= rightPen && leftPen <= topPen && leftPen <= bottomPen:
		return -1, 0
	case rightPen <= leftPen && rightPen <= topPen && rightPen <= bottomPen:
		return 1, 0
	case topPen <= bottomPen:
		return 0, -1
	default:
		return 0, 1
	}
}

func closestPointOnSegment(px, py, ax, ay, bx, by float64) (float64, float64) {
	abx, aby := bx-ax, by-ay
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return ax, ay
	}
	t := ((px-ax)*abx + (py-ay)*aby) / lenSq
	t = clamp(t, 0, 1)
	return ax + abx*t, ay + aby*t
}

func circleIntersectsRect(px, py, r, x, y, w, h float64) bool {
	cx := clamp(px, x, x+w)
	cy := clamp(py, y, y+h)
	dx, dy := px-cx, py-cy
	return dx*dx+dy*dy < r*r
}

func circleIntersectsCircle(px, py, r, x, y, objR float64) bool {
	dx, dy := px-x, py-y
	sum := r + objR
	return dx*dx+dy*dy < sum*sum
}
