package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
)

func TestJournalKeyframeRetentionByCount(t *testing.T) {
	j := New(2, 0)

	for seq := uint64(1); seq <= 3; seq++ {
		result := j.RecordKeyframe(sim.Keyframe{Tick: seq * 10, Sequence: seq})
		if seq < 3 && len(result.Evicted) != 0 {
			t.Fatalf("expected no eviction at sequence %d, got %+v", seq, result.Evicted)
		}
		if seq == 3 {
			if len(result.Evicted) != 1 || result.Evicted[0].Sequence != 1 {
				t.Fatalf("expected sequence 1 evicted, got %+v", result.Evicted)
			}
			if result.Evicted[0].Reason != "count" {
				t.Fatalf("expected count eviction, got %q", result.Evicted[0].Reason)
			}
			if result.OldestSequence != 2 || result.NewestSequence != 3 {
				t.Fatalf("unexpected window after eviction: %+v", result)
			}
		}
	}

	if _, ok := j.KeyframeBySequence(1); ok {
		t.Fatal("expected evicted keyframe to be gone")
	}
	if frame, ok := j.KeyframeBySequence(3); !ok || frame.Tick != 30 {
		t.Fatalf("expected keyframe 3 at tick 30, got %+v ok=%v", frame, ok)
	}
	size, oldest, newest := j.KeyframeWindow()
	if size != 2 || oldest != 2 || newest != 3 {
		t.Fatalf("unexpected window: size=%d oldest=%d newest=%d", size, oldest, newest)
	}
}

func TestJournalZeroCapacityStoresNothing(t *testing.T) {
	j := New(0, time.Minute)
	result := j.RecordKeyframe(sim.Keyframe{Tick: 1, Sequence: 1})
	if result.Size != 0 {
		t.Fatalf("expected empty journal, got size %d", result.Size)
	}
	if frames := j.Keyframes(); frames != nil {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
}

func TestJournalSequenceZeroNeverMatches(t *testing.T) {
	j := New(4, 0)
	j.RecordKeyframe(sim.Keyframe{Tick: 1, Sequence: 1})
	if _, ok := j.KeyframeBySequence(0); ok {
		t.Fatal("sequence 0 must never resolve")
	}
}

func TestJournalLatest(t *testing.T) {
	j := New(4, 0)
	if _, ok := j.Latest(); ok {
		t.Fatal("expected no latest keyframe in an empty journal")
	}
	j.RecordKeyframe(sim.Keyframe{Tick: 10, Sequence: 1})
	j.RecordKeyframe(sim.Keyframe{Tick: 20, Sequence: 2})
	latest, ok := j.Latest()
	if !ok || latest.Sequence != 2 {
		t.Fatalf("expected latest sequence 2, got %+v ok=%v", latest, ok)
	}
}

func TestJournalKeyframesReturnsCopy(t *testing.T) {
	j := New(4, 0)
	j.RecordKeyframe(sim.Keyframe{Tick: 10, Sequence: 1})
	frames := j.Keyframes()
	frames[0].Sequence = 99
	if frame, ok := j.KeyframeBySequence(1); !ok || frame.Sequence != 1 {
		t.Fatalf("expected stored keyframe untouched, got %+v ok=%v", frame, ok)
	}
}

func TestResyncPolicySignals(t *testing.T) {
	j := New(4, 0)

	if signal, ok := j.ConsumeResyncHint(); ok || signal.Misses != 0 {
		t.Fatalf("expected no resync signal before misses, got %+v", signal)
	}

	j.NoteBroadcast()
	j.NoteBaselineMiss("baseline_horizon", "client-1")

	signal, ok := j.ConsumeResyncHint()
	if !ok {
		t.Fatal("expected resync hint after a baseline miss")
	}
	if signal.Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", signal.Misses)
	}
	if len(signal.Reasons) != 1 || signal.Reasons[0].Kind != "baseline_horizon" || signal.Reasons[0].ClientID != "client-1" {
		t.Fatalf("unexpected reasons: %+v", signal.Reasons)
	}
	if signal.Summary() == "" {
		t.Fatal("expected a non-empty summary")
	}

	if _, ok := j.ConsumeResyncHint(); ok {
		t.Fatal("expected hint to reset after consumption")
	}

	// Broadcasts alone never re-trigger the hint.
	for i := 0; i < 100; i++ {
		j.NoteBroadcast()
	}
	if _, ok := j.ConsumeResyncHint(); ok {
		t.Fatal("expected no hint without a new miss")
	}
}

func TestResyncPolicyReasonLimit(t *testing.T) {
	p := NewPolicy()
	for i := 0; i < resyncReasonLimit+5; i++ {
		p.NoteMiss("baseline_missing", fmt.Sprintf("client-%d", i))
	}
	signal, ok := p.Consume()
	if !ok {
		t.Fatal("expected pending signal")
	}
	if len(signal.Reasons) != resyncReasonLimit {
		t.Fatalf("expected reasons capped at %d, got %d", resyncReasonLimit, len(signal.Reasons))
	}
}
