package sim

import (
	"testing"
	"time"
)

type fakeCore struct {
	deps    Deps
	applied [][]Command
	steps   int
	tick    uint64
}

func (f *fakeCore) Deps() Deps { return f.deps }

func (f *fakeCore) Apply(cmds []Command) error {
	f.applied = append(f.applied, cmds)
	return nil
}

func (f *fakeCore) Step() {
	f.steps++
	f.tick++
}

func (f *fakeCore) CurrentTick() uint64 { return f.tick }

func (f *fakeCore) Snapshot() Snapshot { return Snapshot{Tick: f.tick} }

func (f *fakeCore) DeltaSince(uint64) (Delta, bool) { return Delta{}, false }

func (f *fakeCore) RecordKeyframe(Keyframe) KeyframeRecordResult { return KeyframeRecordResult{} }

func (f *fakeCore) KeyframeBySequence(uint64) (Keyframe, bool) { return Keyframe{}, false }

func (f *fakeCore) KeyframeWindow() (int, uint64, uint64) { return 0, 0, 0 }

func TestLoopEnqueuePerActorLimit(t *testing.T) {
	var drops []string
	loop := NewLoop(&fakeCore{}, LoopConfig{CommandCapacity: 16, PerActorLimit: 2}, LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) {
			drops = append(drops, reason)
		},
	})

	for i := 0; i < 2; i++ {
		if ok, reason := loop.Enqueue(Command{ActorID: "p1", Type: CommandMove}); !ok {
			t.Fatalf("expected enqueue %d to succeed, got %q", i, reason)
		}
	}
	ok, reason := loop.Enqueue(Command{ActorID: "p1", Type: CommandMove})
	if ok {
		t.Fatal("expected enqueue past per-actor limit to fail")
	}
	if reason != CommandRejectQueueLimit {
		t.Fatalf("expected reason %q, got %q", CommandRejectQueueLimit, reason)
	}
	if len(drops) != 1 || drops[0] != CommandRejectQueueLimit {
		t.Fatalf("unexpected drop hook invocations: %v", drops)
	}

	// Other actors are unaffected by p1's throttle.
	if ok, _ := loop.Enqueue(Command{ActorID: "p2", Type: CommandMove}); !ok {
		t.Fatal("expected enqueue for second actor to succeed")
	}
}

func TestLoopEnqueueQueueFull(t *testing.T) {
	loop := NewLoop(&fakeCore{}, LoopConfig{CommandCapacity: 1}, LoopHooks{})
	if ok, _ := loop.Enqueue(Command{ActorID: "p1"}); !ok {
		t.Fatal("expected first enqueue to succeed")
	}
	ok, reason := loop.Enqueue(Command{ActorID: "p2"})
	if ok {
		t.Fatal("expected enqueue into a full buffer to fail")
	}
	if reason != CommandRejectQueueFull {
		t.Fatalf("expected reason %q, got %q", CommandRejectQueueFull, reason)
	}
}

func TestLoopPerActorCountResetsAfterDrain(t *testing.T) {
	loop := NewLoop(&fakeCore{}, LoopConfig{CommandCapacity: 16, PerActorLimit: 1}, LoopHooks{})
	if ok, _ := loop.Enqueue(Command{ActorID: "p1"}); !ok {
		t.Fatal("expected first enqueue to succeed")
	}
	if ok, _ := loop.Enqueue(Command{ActorID: "p1"}); ok {
		t.Fatal("expected second enqueue to hit the per-actor limit")
	}
	loop.Advance(LoopTickContext{Tick: 1, Now: time.Now(), Delta: 1.0 / 60})
	if ok, _ := loop.Enqueue(Command{ActorID: "p1"}); !ok {
		t.Fatal("expected enqueue to succeed after the queue drained")
	}
}

func TestLoopAdvanceDropsStaleMoves(t *testing.T) {
	core := &fakeCore{}
	var staleDrops []Command
	loop := NewLoop(core, LoopConfig{CommandCapacity: 16, StalenessBound: 30}, LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) {
			if reason == CommandRejectStale {
				staleDrops = append(staleDrops, cmd)
			}
		},
	})

	loop.Enqueue(Command{ActorID: "fresh", Type: CommandMove, OriginTick: 80, Move: &MoveCommand{Left: true}})
	loop.Enqueue(Command{ActorID: "stale", Type: CommandMove, OriginTick: 40, Move: &MoveCommand{Right: true}})
	loop.Enqueue(Command{ActorID: "stale", Type: CommandLobby, OriginTick: 40, Lobby: &LobbyCommand{Action: LobbyPause}})
	loop.Enqueue(Command{ActorID: "unknown", Type: CommandMove, OriginTick: 0, Move: &MoveCommand{}})

	result := loop.Advance(LoopTickContext{Tick: 100, Now: time.Now(), Delta: 1.0 / 60})

	if len(staleDrops) != 1 || staleDrops[0].ActorID != "stale" {
		t.Fatalf("expected exactly the lagging move to be dropped, got %+v", staleDrops)
	}
	if len(result.Commands) != 3 {
		t.Fatalf("expected 3 surviving commands, got %d", len(result.Commands))
	}
	for _, cmd := range result.Commands {
		if cmd.Type == CommandMove && cmd.OriginTick == 40 {
			t.Fatal("stale move survived the filter")
		}
	}
	if core.steps != 1 {
		t.Fatalf("expected one engine step, got %d", core.steps)
	}
}

func TestLoopAdvanceDefersFutureCommands(t *testing.T) {
	core := &fakeCore{}
	loop := NewLoop(core, LoopConfig{CommandCapacity: 16}, LoopHooks{})

	loop.Enqueue(Command{ActorID: "p1", Type: CommandMove, OriginTick: 3, Move: &MoveCommand{Left: true}})
	loop.Enqueue(Command{ActorID: "p1", Type: CommandMove, OriginTick: 1, Move: &MoveCommand{Right: true}})

	result := loop.Advance(LoopTickContext{Tick: 1, Now: time.Now(), Delta: 1.0 / 60})
	if len(result.Commands) != 1 || result.Commands[0].OriginTick != 1 {
		t.Fatalf("expected only the due command at tick 1, got %+v", result.Commands)
	}

	result = loop.Advance(LoopTickContext{Tick: 2, Now: time.Now(), Delta: 1.0 / 60})
	if len(result.Commands) != 0 {
		t.Fatalf("expected no commands at tick 2, got %+v", result.Commands)
	}

	result = loop.Advance(LoopTickContext{Tick: 3, Now: time.Now(), Delta: 1.0 / 60})
	if len(result.Commands) != 1 || result.Commands[0].OriginTick != 3 {
		t.Fatalf("expected the deferred command at tick 3, got %+v", result.Commands)
	}
}

func TestLoopDeferredCommandsHoldActorBudget(t *testing.T) {
	loop := NewLoop(&fakeCore{}, LoopConfig{CommandCapacity: 16, PerActorLimit: 1}, LoopHooks{})
	loop.Enqueue(Command{ActorID: "p1", Type: CommandMove, OriginTick: 50, Move: &MoveCommand{}})
	loop.Advance(LoopTickContext{Tick: 1, Now: time.Now(), Delta: 1.0 / 60})

	ok, reason := loop.Enqueue(Command{ActorID: "p1", Type: CommandMove, OriginTick: 50, Move: &MoveCommand{}})
	if ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected the deferred command to keep its reservation, got ok=%v reason=%q", ok, reason)
	}
}

func TestLoopEnqueueQueueFullReleasesReservation(t *testing.T) {
	loop := NewLoop(&fakeCore{}, LoopConfig{CommandCapacity: 1, PerActorLimit: 2}, LoopHooks{})
	if ok, _ := loop.Enqueue(Command{ActorID: "p1"}); !ok {
		t.Fatal("expected first enqueue to succeed")
	}
	if ok, reason := loop.Enqueue(Command{ActorID: "p1"}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue_full, got ok=%v reason=%q", ok, reason)
	}
	// A failed push must not eat into the actor's budget, so the retry hits
	// the full buffer again instead of the per-actor limit.
	if ok, reason := loop.Enqueue(Command{ActorID: "p1"}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue_full on retry, got ok=%v reason=%q", ok, reason)
	}
}

func TestLoopAdvanceAppliesInOrder(t *testing.T) {
	core := &fakeCore{}
	loop := NewLoop(core, LoopConfig{CommandCapacity: 16}, LoopHooks{})

	loop.Enqueue(Command{ActorID: "a", Seq: 1})
	loop.Enqueue(Command{ActorID: "a", Seq: 2})
	loop.Enqueue(Command{ActorID: "b", Seq: 1})

	result := loop.Advance(LoopTickContext{Tick: 1, Now: time.Now(), Delta: 1.0 / 60})

	if len(core.applied) != 1 {
		t.Fatalf("expected a single Apply batch, got %d", len(core.applied))
	}
	batch := core.applied[0]
	if len(batch) != 3 {
		t.Fatalf("expected 3 applied commands, got %d", len(batch))
	}
	if batch[0].ActorID != "a" || batch[0].Seq != 1 || batch[2].ActorID != "b" {
		t.Fatalf("unexpected apply order: %+v", batch)
	}
	if result.Snapshot.Tick != core.tick {
		t.Fatalf("expected snapshot at tick %d, got %d", core.tick, result.Snapshot.Tick)
	}
}

func TestLoopQueueWarningHook(t *testing.T) {
	warned := 0
	loop := NewLoop(&fakeCore{}, LoopConfig{CommandCapacity: 16, WarningStep: 2}, LoopHooks{
		OnQueueWarning: func(length int) { warned = length },
	})
	loop.Enqueue(Command{ActorID: "a"})
	loop.Enqueue(Command{ActorID: "b"})
	if warned != 2 {
		t.Fatalf("expected warning at length 2, got %d", warned)
	}
}
