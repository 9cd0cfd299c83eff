package sim

import "time"

// EngineCore is the surface the world must expose to the loop. All methods
// are invoked from the tick goroutine except the keyframe accessors, which
// must be safe for concurrent readers.
type EngineCore interface {
	Deps() Deps
	Apply([]Command) error
	Step()
	CurrentTick() uint64
	Snapshot() Snapshot
	// DeltaSince builds the patch set moving a client from baselineTick to
	// the current tick. ok is false when the baseline fell out of the
	// retained horizon and the caller must send a keyframe instead.
	DeltaSince(baselineTick uint64) (delta Delta, ok bool)
	RecordKeyframe(Keyframe) KeyframeRecordResult
	KeyframeBySequence(uint64) (Keyframe, bool)
	KeyframeWindow() (size int, oldest, newest uint64)
}

// Engine defines the minimal surface area exposed to non-simulation callers.
type Engine interface {
	Apply([]Command) error
	Step()
	Snapshot() Snapshot
	DeltaSince(uint64) (Delta, bool)
	RecordKeyframe(Keyframe) KeyframeRecordResult
	KeyframeBySequence(uint64) (Keyframe, bool)
	KeyframeWindow() (int, uint64, uint64)
}

// LoopTickContext describes a single tick handed to loop hooks.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult summarises one executed tick.
type LoopStepResult struct {
	Tick          uint64
	Now           time.Time
	Delta         float64
	Snapshot      Snapshot
	Commands      []Command
	RemovedActors []string
	Duration      time.Duration
	Budget        time.Duration
	ClampedDelta  bool
	MaxDelta      float64
}

// LoopHooks customises tick sequencing and telemetry fan-out.
type LoopHooks struct {
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	NextTick       func() uint64
	OnQueueWarning func(length int)
	OnCommandDrop  func(reason string, cmd Command)
}
