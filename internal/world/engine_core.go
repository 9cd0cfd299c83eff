package world

import (
	"time"

	"github.com/lampaBiurkowa/spin-snowball/internal/journal"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
)

// Core pairs the world state with a keyframe journal so the loop sees a
// single simulation engine. All mutating calls happen on the tick goroutine.
type Core struct {
	world   *World
	journal *journal.Journal
}

var _ sim.EngineCore = (*Core)(nil)

// NewCore builds a core over a freshly constructed world and journal.
func NewCore(w *World, j *journal.Journal) *Core {
	if j == nil {
		j = journal.New(0, 0)
	}
	return &Core{world: w, journal: j}
}

// World exposes the underlying state for session bookkeeping.
func (c *Core) World() *World { return c.world }

// Journal exposes the keyframe buffer for resync accounting.
func (c *Core) Journal() *journal.Journal { return c.journal }

func (c *Core) Deps() sim.Deps { return c.world.Deps() }

func (c *Core) Apply(cmds []sim.Command) error { return c.world.Apply(cmds) }

func (c *Core) Step() { c.world.Step() }

func (c *Core) CurrentTick() uint64 { return c.world.CurrentTick() }

func (c *Core) Snapshot() sim.Snapshot { return c.world.Snapshot() }

func (c *Core) DeltaSince(baseline uint64) (sim.Delta, bool) {
	return c.world.DeltaSince(baseline)
}

func (c *Core) RecordKeyframe(frame sim.Keyframe) sim.KeyframeRecordResult {
	return c.journal.RecordKeyframe(frame)
}

func (c *Core) KeyframeBySequence(sequence uint64) (sim.Keyframe, bool) {
	return c.journal.KeyframeBySequence(sequence)
}

func (c *Core) KeyframeWindow() (size int, oldest, newest uint64) {
	return c.journal.KeyframeWindow()
}

// RemovedActors reports players removed during the latest step so the loop
// can clear their pending-command budgets.
func (c *Core) RemovedActors() []string { return c.world.RemovedActors() }

// DefaultJournal sizes the keyframe buffer to cover the delta horizon at the
// given tick rate with a little headroom.
func DefaultJournal(tickRate int, horizonTicks uint64) *journal.Journal {
	if tickRate <= 0 {
		tickRate = sim.DefaultTickRate
	}
	if horizonTicks == 0 {
		horizonTicks = DefaultHorizonTicks
	}
	maxAge := time.Duration(float64(horizonTicks)/float64(tickRate)*2) * time.Second
	return journal.New(32, maxAge)
}
