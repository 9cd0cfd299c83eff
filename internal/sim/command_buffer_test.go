package sim

import "testing"

func TestCommandBufferDrainPreservesArrivalOrder(t *testing.T) {
	buffer := NewCommandBuffer(4, 0, nil)
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		if ok, reason := buffer.Push(Command{ActorID: id}); !ok {
			t.Fatalf("push for %q rejected with %q", id, reason)
		}
	}
	drained := buffer.Drain()
	if len(drained) != len(ids) {
		t.Fatalf("expected %d commands, got %d", len(ids), len(drained))
	}
	for i, cmd := range drained {
		if cmd.ActorID != ids[i] {
			t.Fatalf("position %d: expected %q, got %q", i, ids[i], cmd.ActorID)
		}
	}
	if buffer.Len() != 0 {
		t.Fatalf("expected empty buffer after drain, got %d", buffer.Len())
	}
}

func TestCommandBufferRejectsWhenFull(t *testing.T) {
	buffer := NewCommandBuffer(1, 0, nil)
	if ok, _ := buffer.Push(Command{ActorID: "one"}); !ok {
		t.Fatal("expected first push to succeed")
	}
	ok, reason := buffer.Push(Command{ActorID: "two"})
	if ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected %q, got ok=%v reason=%q", CommandRejectQueueFull, ok, reason)
	}
	drained := buffer.Drain()
	if len(drained) != 1 || drained[0].ActorID != "one" {
		t.Fatalf("unexpected drained commands: %+v", drained)
	}
	if ok, _ := buffer.Push(Command{ActorID: "three"}); !ok {
		t.Fatal("expected push to succeed once the drain freed capacity")
	}
}

func TestCommandBufferPerActorBudget(t *testing.T) {
	buffer := NewCommandBuffer(8, 2, nil)
	for i := 0; i < 2; i++ {
		if ok, reason := buffer.Push(Command{ActorID: "p1"}); !ok {
			t.Fatalf("push %d rejected with %q", i, reason)
		}
	}
	ok, reason := buffer.Push(Command{ActorID: "p1"})
	if ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected %q, got ok=%v reason=%q", CommandRejectQueueLimit, ok, reason)
	}
	// A different actor still has room, and so do anonymous commands.
	if ok, _ := buffer.Push(Command{ActorID: "p2"}); !ok {
		t.Fatal("expected push for second actor to succeed")
	}
	if ok, _ := buffer.Push(Command{}); !ok {
		t.Fatal("expected push without actor id to bypass the budget")
	}
	buffer.Drain()
	if ok, _ := buffer.Push(Command{ActorID: "p1"}); !ok {
		t.Fatal("expected budget to reset after drain")
	}
}

func TestCommandBufferReserveChargesBudget(t *testing.T) {
	buffer := NewCommandBuffer(8, 1, nil)
	buffer.Reserve("p1")
	ok, reason := buffer.Push(Command{ActorID: "p1"})
	if ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected reservation to consume the budget, got ok=%v reason=%q", ok, reason)
	}
	buffer.Drain()
	if ok, _ := buffer.Push(Command{ActorID: "p1"}); !ok {
		t.Fatal("expected push to succeed after the drain released the reservation")
	}
}

func TestCommandBufferMetrics(t *testing.T) {
	counters := newCountingMetrics()
	buffer := NewCommandBuffer(1, 0, counters)
	buffer.Push(Command{ActorID: "one"})
	buffer.Push(Command{ActorID: "two"})
	if got := counters.added[commandQueueOverflowMetricKey]; got != 1 {
		t.Fatalf("expected 1 overflow increment, got %d", got)
	}
	if got := counters.stored[commandQueueDepthMetricKey]; got != 1 {
		t.Fatalf("expected depth 1, got %d", got)
	}
}

type countingMetrics struct {
	added  map[string]uint64
	stored map[string]uint64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		added:  make(map[string]uint64),
		stored: make(map[string]uint64),
	}
}

func (m *countingMetrics) Add(key string, delta uint64) {
	m.added[key] += delta
}

func (m *countingMetrics) Store(key string, value uint64) {
	m.stored[key] = value
}
