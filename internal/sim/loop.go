package sim

import (
	"sync"
	"time"

	"github.com/lampaBiurkowa/spin-snowball/internal/telemetry"
	"github.com/lampaBiurkowa/spin-snowball/logging"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
	// CommandRejectStale indicates a command's origin tick lagged the
	// simulation beyond the staleness bound.
	CommandRejectStale = "stale_input"
	// CommandRejectInvalid indicates the client message did not decode into
	// a known command.
	CommandRejectInvalid = "invalid_command"
	// CommandRejectUnknownActor indicates the sender has no live player.
	CommandRejectUnknownActor = "unknown_actor"
)

const (
	// DefaultTickRate is the simulation frequency when none is configured.
	DefaultTickRate = 60
	// DefaultStalenessBound is the maximum tick lag tolerated for inputs.
	DefaultStalenessBound = 30
)

const staleCommandMetricKey = "sim_stale_commands_total"

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
	StalenessBound  uint64
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
type Loop struct {
	core    EngineCore
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics

	dropMu     sync.Mutex
	dropCounts map[string]uint64

	// deferred holds commands targeting a tick the loop has not reached.
	// Touched only by Advance on the tick goroutine.
	deferred []Command
}

// NewLoop wraps the provided engine core with a bounded queue and loop.
func NewLoop(core EngineCore, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	if cfg.StalenessBound == 0 {
		cfg.StalenessBound = DefaultStalenessBound
	}
	deps := core.Deps()
	buffer := NewCommandBuffer(cfg.CommandCapacity, cfg.PerActorLimit, deps.Metrics)
	loop := &Loop{
		core:       core,
		buffer:     buffer,
		hooks:      hooks,
		config:     cfg,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		dropCounts: make(map[string]uint64),
	}
	return loop
}

// Deps returns the injected dependencies for the underlying engine.
func (l *Loop) Deps() Deps {
	if l == nil {
		return Deps{}
	}
	return l.core.Deps()
}

// Apply delegates to the underlying engine.
func (l *Loop) Apply(cmds []Command) error {
	if l == nil {
		return nil
	}
	return l.core.Apply(cmds)
}

// Step delegates to the underlying engine.
func (l *Loop) Step() {
	if l == nil {
		return
	}
	l.core.Step()
}

// Snapshot delegates to the underlying engine.
func (l *Loop) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	return l.core.Snapshot()
}

// DeltaSince delegates to the underlying engine.
func (l *Loop) DeltaSince(baselineTick uint64) (Delta, bool) {
	if l == nil {
		return Delta{}, false
	}
	return l.core.DeltaSince(baselineTick)
}

// RecordKeyframe delegates to the underlying engine.
func (l *Loop) RecordKeyframe(frame Keyframe) KeyframeRecordResult {
	if l == nil {
		return KeyframeRecordResult{}
	}
	return l.core.RecordKeyframe(frame)
}

// KeyframeBySequence delegates to the underlying engine.
func (l *Loop) KeyframeBySequence(sequence uint64) (Keyframe, bool) {
	if l == nil {
		return Keyframe{}, false
	}
	return l.core.KeyframeBySequence(sequence)
}

// KeyframeWindow delegates to the underlying engine.
func (l *Loop) KeyframeWindow() (int, uint64, uint64) {
	if l == nil {
		return 0, 0, 0
	}
	return l.core.KeyframeWindow()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// DrainCommands clears the staged command queue without advancing the engine.
func (l *Loop) DrainCommands() []Command {
	if l == nil {
		return nil
	}
	return l.drainCommands()
}

// Enqueue stages a command. The buffer enforces both the per-actor budget
// and the global capacity.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	ok, reason := l.buffer.Push(cmd)
	if !ok {
		l.dropMu.Lock()
		dropCount := l.incrementDropLocked(cmd.ActorID)
		l.dropMu.Unlock()
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	if l.config.WarningStep > 0 {
		length := l.buffer.Len()
		if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
			l.warnQueue(length)
		}
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.filterStale(ctx.Tick, l.collectDue(ctx.Tick, l.drainCommands()))
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	_ = l.core.Apply(commands)
	l.core.Step()
	result := LoopStepResult{
		Tick:          ctx.Tick,
		Now:           ctx.Now,
		Delta:         ctx.Delta,
		Snapshot:      l.core.Snapshot(),
		Commands:      commands,
		RemovedActors: l.removedActors(),
	}
	return result
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	deps := l.core.Deps()
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	last := clock.Now()
	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}
	budgetDuration := time.Second / time.Duration(tickRate)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			var tick uint64
			if l.hooks.NextTick != nil {
				tick = l.hooks.NextTick()
			} else {
				tick = l.core.CurrentTick() + 1
			}

			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: tick, Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

// collectDue merges previously deferred commands with the freshly drained
// batch and returns the ones whose origin tick has come up. Commands still
// targeting a future tick stay deferred; they keep their per-actor budget
// reservation so an actor cannot park unlimited input ahead of the clock.
func (l *Loop) collectDue(tick uint64, drained []Command) []Command {
	pending := l.deferred
	l.deferred = nil
	pending = append(pending, drained...)
	due := pending[:0]
	for _, cmd := range pending {
		if cmd.OriginTick > tick {
			l.deferred = append(l.deferred, cmd)
			continue
		}
		due = append(due, cmd)
	}
	for _, cmd := range l.deferred {
		l.buffer.Reserve(cmd.ActorID)
	}
	return due
}

// filterStale drops movement commands whose origin tick lags beyond the
// staleness bound. Lobby commands are never staleness-gated.
func (l *Loop) filterStale(tick uint64, commands []Command) []Command {
	if len(commands) == 0 {
		return commands
	}
	bound := l.config.StalenessBound
	kept := commands[:0]
	for _, cmd := range commands {
		if cmd.Type == CommandMove && cmd.OriginTick > 0 && tick > cmd.OriginTick+bound {
			if l.metrics != nil {
				l.metrics.Add(staleCommandMetricKey, 1)
			}
			if l.hooks.OnCommandDrop != nil {
				l.hooks.OnCommandDrop(CommandRejectStale, cmd)
			}
			continue
		}
		kept = append(kept, cmd)
	}
	return kept
}

func (l *Loop) drainCommands() []Command {
	return l.buffer.Drain()
}

func (l *Loop) removedActors() []string {
	if reporter, ok := l.core.(interface{ RemovedActors() []string }); ok {
		removed := reporter.RemovedActors()
		if len(removed) > 0 {
			copied := make([]string, len(removed))
			copy(copied, removed)
			return copied
		}
	}
	return nil
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if reason == CommandRejectQueueLimit && count > 0 && count&(count-1) == 0 {
		if l.logger != nil {
			l.logger.Printf(
				"[backpressure] dropping command actor=%s type=%s count=%d limit=%d",
				cmd.ActorID,
				cmd.Type,
				count,
				l.config.PerActorLimit,
			)
		}
	}
}

// Ensure Loop implements Engine.
var _ Engine = (*Loop)(nil)
