package world

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
)

const (
	// DefaultHorizonTicks bounds how far back a client baseline may lag
	// before deltas can no longer be produced for it.
	DefaultHorizonTicks = 120

	rejectedCommandMetricKey = "world_rejected_commands_total"
)

const (
	spinChargeCapSec    = 1.5
	rotationDegPerSec   = 180.0
	snowballBaseSpeed   = 300.0
	snowballChargeSpeed = 700.0
	snowballDragPerTick = 0.995
	spawnRotDeg         = -90.0
)

// Config tunes a World instance.
type Config struct {
	Map          *mapdoc.Document
	Seed         int64
	TickRate     int
	HorizonTicks uint64
}

type playerState struct {
	id            string
	nick          string
	team          sim.TeamID
	x, y          float64
	vx, vy        float64
	rotDeg        float64
	rotatingLeft  bool
	rotatingRight bool
	spinTimer     float64
	lastShoot     bool
	cooldown      float64
	lastModified  uint64
	metaModified  uint64
	removed       bool
}

type snowballState struct {
	id           string
	x, y         float64
	vx, vy       float64
	life         float64
	lastModified uint64
	dead         bool
}

type ballState struct {
	x, y         float64
	vx, vy       float64
	lastModified uint64
}

type matchState struct {
	phase        sim.MatchPhase
	paused       bool
	scoreLimit   int
	timeLimitSec float64
	team1Score   int
	team2Score   int
	clockSec     float64
	team1Color   string
	team2Color   string
	modified     uint64
}

// World owns all mutable entity state. Every method that mutates state must
// be called from the tick goroutine; there is deliberately no lock here.
type World struct {
	deps    sim.Deps
	doc     *mapdoc.Document
	physics mapdoc.PhysicsSettings
	mode    string

	tick    uint64
	inStep  bool
	dt      float64
	horizon uint64

	players   map[string]*playerState
	snowballs map[string]*snowballState
	ball      *ballState

	snowballSeq uint64
	match       matchState
	removals    []sim.Removal
	removedLast []string
	rng         *rand.Rand
}

// New constructs a world around the loaded map document. The RNG is seeded
// explicitly so replaying the same command script reproduces the same state.
func New(cfg Config, deps sim.Deps) *World {
	if cfg.Map == nil {
		return nil
	}
	tickRate := cfg.TickRate
	if tickRate <= 0 {
		tickRate = sim.DefaultTickRate
	}
	horizon := cfg.HorizonTicks
	if horizon == 0 {
		horizon = DefaultHorizonTicks
	}
	rng := deps.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	mode := cfg.Map.Mode
	if mode == "" {
		mode = mapdoc.ModeFight
	}
	w := &World{
		deps:      deps,
		doc:       cfg.Map,
		physics:   cfg.Map.Physics,
		mode:      mode,
		dt:        1.0 / float64(tickRate),
		horizon:   horizon,
		players:   make(map[string]*playerState),
		snowballs: make(map[string]*snowballState),
		rng:       rng,
		match: matchState{
			phase:      sim.PhaseLobby,
			team1Color: "#c80000",
			team2Color: "#0000c8",
			modified:   0,
		},
	}
	if mode == mapdoc.ModeFootball && cfg.Map.Ball != nil {
		w.ball = &ballState{x: cfg.Map.Ball.SpawnX, y: cfg.Map.Ball.SpawnY}
	}
	return w
}

// Deps returns the injected infrastructure dependencies.
func (w *World) Deps() sim.Deps { return w.deps }

// CurrentTick reports the last completed tick.
func (w *World) CurrentTick() uint64 { return w.tick }

// Map exposes the immutable map document.
func (w *World) Map() *mapdoc.Document { return w.doc }

// Physics returns the active physics settings.
func (w *World) Physics() mapdoc.PhysicsSettings { return w.physics }

// pendingTick is the tick currently being computed. Apply runs before Step
// increments the counter, so mutations made while applying commands belong
// to the next tick; mutations made inside Step belong to the current one.
func (w *World) pendingTick() uint64 {
	if w.inStep {
		return w.tick
	}
	return w.tick + 1
}

// Player returns the replicated view of a single player.
func (w *World) Player(id string) (sim.PlayerView, bool) {
	p, ok := w.players[id]
	if !ok || p.removed {
		return sim.PlayerView{}, false
	}
	return playerView(p), true
}

// addPlayer registers a new spectator at a random position, mirroring the
// join flow. Safe to call for an existing id; the call is then a no-op.
func (w *World) addPlayer(id string) *playerState {
	if p, ok := w.players[id]; ok {
		return p
	}
	p := &playerState{
		id:           id,
		nick:         fmt.Sprintf("Player %d", len(w.players)+1),
		team:         sim.TeamSpectator,
		x:            w.rng.Float64()*(w.doc.Width-40) + 20,
		y:            w.rng.Float64()*(w.doc.Height-40) + 20,
		rotDeg:       spawnRotDeg,
		lastModified: w.pendingTick(),
		metaModified: w.pendingTick(),
	}
	w.players[id] = p
	return p
}

// removePlayer marks a player for deferred removal. The entity stops taking
// part in the simulation immediately and is reported exactly once as a
// removal record when the tick completes.
func (w *World) removePlayer(id string) {
	if p, ok := w.players[id]; ok {
		p.removed = true
	}
}

// removeSnowball marks a snowball dead; the record is flushed with the tick.
func (w *World) removeSnowball(id string) {
	if s, ok := w.snowballs[id]; ok {
		s.dead = true
	}
}

// flushRemovals deletes dead entities and appends their removal records,
// then prunes records older than the retained horizon.
func (w *World) flushRemovals() {
	for _, id := range w.sortedPlayerIDs(true) {
		p := w.players[id]
		if !p.removed {
			continue
		}
		delete(w.players, id)
		w.removals = append(w.removals, sim.Removal{EntityID: id, Kind: sim.PatchPlayerRemoved, Tick: w.tick})
		w.removedLast = append(w.removedLast, id)
	}
	for _, id := range w.sortedSnowballIDs(true) {
		s := w.snowballs[id]
		if !s.dead {
			continue
		}
		delete(w.snowballs, id)
		w.removals = append(w.removals, sim.Removal{EntityID: id, Kind: sim.PatchSnowballRemoved, Tick: w.tick})
	}
	if w.tick > w.horizon {
		floor := w.tick - w.horizon
		kept := w.removals[:0]
		for _, r := range w.removals {
			if r.Tick > floor {
				kept = append(kept, r)
			}
		}
		w.removals = kept
	}
}

// RemovedActors reports the player ids removed by the last Step.
func (w *World) RemovedActors() []string { return w.removedLast }

func (w *World) sortedPlayerIDs(includeRemoved bool) []string {
	ids := make([]string, 0, len(w.players))
	for id, p := range w.players {
		if !includeRemoved && p.removed {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) sortedSnowballIDs(includeDead bool) []string {
	ids := make([]string, 0, len(w.snowballs))
	for id, s := range w.snowballs {
		if !includeDead && s.dead {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot builds the full replicated view at the current tick.
func (w *World) Snapshot() sim.Snapshot {
	snap := sim.Snapshot{Tick: w.tick, Match: w.matchView()}
	for _, id := range w.sortedPlayerIDs(false) {
		snap.Players = append(snap.Players, playerView(w.players[id]))
	}
	for _, id := range w.sortedSnowballIDs(false) {
		snap.Snowballs = append(snap.Snowballs, snowballView(w.snowballs[id]))
	}
	if w.ball != nil {
		view := ballView(w.ball)
		snap.Ball = &view
	}
	return snap
}

// DeltaSince builds the patches and removals moving a client from the given
// baseline to the current tick. ok is false when no baseline exists or the
// baseline fell behind the retained horizon, in which case the caller must
// fall back to a keyframe.
func (w *World) DeltaSince(baseline uint64) (sim.Delta, bool) {
	if baseline == 0 && w.tick > 0 {
		return sim.Delta{}, false
	}
	if baseline > w.tick {
		return sim.Delta{}, false
	}
	if w.tick-baseline > w.horizon {
		return sim.Delta{}, false
	}

	var delta sim.Delta
	for _, id := range w.sortedPlayerIDs(false) {
		p := w.players[id]
		if p.metaModified > baseline {
			delta.Patches = append(delta.Patches, sim.Patch{
				Kind:     sim.PatchPlayerMeta,
				EntityID: id,
				Payload:  sim.PlayerMetaPayload{Nick: p.nick, Team: p.team},
			})
		}
		if p.lastModified > baseline {
			delta.Patches = append(delta.Patches, sim.Patch{
				Kind:     sim.PatchPlayerMotion,
				EntityID: id,
				Payload: sim.PlayerMotionPayload{
					X:      sim.ToCenti(p.x),
					Y:      sim.ToCenti(p.y),
					VX:     sim.ToCenti(p.vx),
					VY:     sim.ToCenti(p.vy),
					Rot:    sim.ToCenti(p.rotDeg),
					Charge: sim.ToCenti(p.spinTimer),
				},
			})
		}
	}
	for _, id := range w.sortedSnowballIDs(false) {
		s := w.snowballs[id]
		if s.lastModified > baseline {
			delta.Patches = append(delta.Patches, sim.Patch{
				Kind:     sim.PatchSnowballMotion,
				EntityID: id,
				Payload: sim.SnowballMotionPayload{
					X:    sim.ToCenti(s.x),
					Y:    sim.ToCenti(s.y),
					VX:   sim.ToCenti(s.vx),
					VY:   sim.ToCenti(s.vy),
					Life: sim.ToCenti(s.life),
				},
			})
		}
	}
	if w.ball != nil && w.ball.lastModified > baseline {
		delta.Patches = append(delta.Patches, sim.Patch{
			Kind:     sim.PatchBallMotion,
			EntityID: "ball",
			Payload:  sim.BallMotionPayload{X: sim.ToCenti(w.ball.x), Y: sim.ToCenti(w.ball.y), VX: sim.ToCenti(w.ball.vx), VY: sim.ToCenti(w.ball.vy)},
		})
	}
	if w.match.modified > baseline {
		delta.Patches = append(delta.Patches, sim.Patch{
			Kind:     sim.PatchMatchState,
			EntityID: "match",
			Payload:  w.matchView(),
		})
	}
	for _, r := range w.removals {
		if r.Tick > baseline {
			delta.Removals = append(delta.Removals, r)
		}
	}
	return delta, true
}

func (w *World) matchView() sim.MatchView {
	return sim.MatchView{
		Phase:        w.match.phase,
		Paused:       w.match.paused,
		Mode:         w.mode,
		ScoreLimit:   w.match.scoreLimit,
		TimeLimitSec: w.match.timeLimitSec,
		Team1Score:   w.match.team1Score,
		Team2Score:   w.match.team2Score,
		ClockSec:     sim.ToCenti(w.match.clockSec),
		Team1Color:   w.match.team1Color,
		Team2Color:   w.match.team2Color,
	}
}

func playerView(p *playerState) sim.PlayerView {
	return sim.PlayerView{
		ID:     p.id,
		Nick:   p.nick,
		Team:   p.team,
		X:      sim.ToCenti(p.x),
		Y:      sim.ToCenti(p.y),
		VX:     sim.ToCenti(p.vx),
		VY:     sim.ToCenti(p.vy),
		Rot:    sim.ToCenti(p.rotDeg),
		Charge: sim.ToCenti(p.spinTimer),
	}
}

func snowballView(s *snowballState) sim.SnowballView {
	return sim.SnowballView{
		ID:   s.id,
		X:    sim.ToCenti(s.x),
		Y:    sim.ToCenti(s.y),
		VX:   sim.ToCenti(s.vx),
		VY:   sim.ToCenti(s.vy),
		Life: sim.ToCenti(s.life),
	}
}

func ballView(b *ballState) sim.BallView {
	return sim.BallView{X: sim.ToCenti(b.x), Y: sim.ToCenti(b.y), VX: sim.ToCenti(b.vx), VY: sim.ToCenti(b.vy)}
}
