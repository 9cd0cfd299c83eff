package sim

import (
	"sync"

	"github.com/lampaBiurkowa/spin-snowball/internal/telemetry"
)

const (
	commandQueueDepthMetricKey    = "sim_command_queue_depth"
	commandQueueOverflowMetricKey = "sim_command_queue_overflow_total"
)

// CommandBuffer stages commands between connection goroutines and the tick
// loop. Two bounds apply under one lock: capacity caps the whole queue and
// perActorLimit caps how many staged commands a single actor may hold, so a
// rejected push can never leak an actor's budget.
type CommandBuffer struct {
	mu       sync.Mutex
	pending  []Command
	capacity int
	limit    int
	perActor map[string]int
	metrics  telemetry.Metrics
}

// NewCommandBuffer builds a bounded queue. A perActorLimit of zero disables
// per-actor throttling.
func NewCommandBuffer(capacity, perActorLimit int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{
		pending:  make([]Command, 0, capacity),
		capacity: capacity,
		limit:    perActorLimit,
		perActor: make(map[string]int),
		metrics:  metrics,
	}
}

// Capacity reports the maximum number of commands the queue can hold.
func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return b.capacity
}

// Push stages a command. On rejection it returns the reason, either
// CommandRejectQueueLimit or CommandRejectQueueFull.
func (b *CommandBuffer) Push(cmd Command) (bool, string) {
	if b == nil {
		return false, CommandRejectQueueFull
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit > 0 && cmd.ActorID != "" && b.perActor[cmd.ActorID] >= b.limit {
		return false, CommandRejectQueueLimit
	}
	if len(b.pending) >= b.capacity {
		if b.metrics != nil {
			b.metrics.Add(commandQueueOverflowMetricKey, 1)
		}
		return false, CommandRejectQueueFull
	}
	b.pending = append(b.pending, cmd)
	if b.limit > 0 && cmd.ActorID != "" {
		b.perActor[cmd.ActorID]++
	}
	b.noteDepthLocked()
	return true, ""
}

// Reserve charges one staged command against an actor's budget without
// queueing anything. The loop uses it to keep deferred commands counted
// across a drain.
func (b *CommandBuffer) Reserve(actorID string) {
	if b == nil || b.limit <= 0 || actorID == "" {
		return
	}
	b.mu.Lock()
	b.perActor[actorID]++
	b.mu.Unlock()
}

// Drain hands back everything staged, in arrival order, and releases all
// per-actor budgets.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.perActor) > 0 {
		b.perActor = make(map[string]int)
	}
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = make([]Command, 0, b.capacity)
	b.noteDepthLocked()
	return out
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *CommandBuffer) noteDepthLocked() {
	if b.metrics != nil {
		b.metrics.Store(commandQueueDepthMetricKey, uint64(len(b.pending)))
	}
}
