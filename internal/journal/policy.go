package journal

import "fmt"

// ResyncReason names one baseline miss folded into a signal.
type ResyncReason struct {
	Kind     string
	ClientID string
}

// ResyncSignal summarises baseline misses observed since the last consume.
type ResyncSignal struct {
	Misses      uint64
	TotalEvents uint64
	Reasons     []ResyncReason
}

// Policy accumulates baseline misses against total broadcasts and raises a
// pending signal when the miss rate crosses the threshold.
type Policy struct {
	totalEvents uint64
	misses      uint64
	pending     bool
	reasons     []ResyncReason
}

const missThresholdPerTenThousand = 1
const resyncReasonLimit = 8

func NewPolicy() *Policy {
	return &Policy{reasons: make([]ResyncReason, 0, resyncReasonLimit)}
}

func (p *Policy) NoteEvent() {
	if p == nil {
		return
	}
	if p.totalEvents == ^uint64(0) {
		p.totalEvents = p.totalEvents / 2
		p.misses = p.misses / 2
	}
	p.totalEvents++
}

func (p *Policy) NoteMiss(kind, clientID string) {
	if p == nil {
		return
	}
	p.misses++
	if len(p.reasons) < resyncReasonLimit {
		p.reasons = append(p.reasons, ResyncReason{Kind: kind, ClientID: clientID})
	}
	p.evaluate()
}

func (p *Policy) evaluate() {
	if p == nil || p.pending || p.misses == 0 {
		return
	}
	total := p.totalEvents
	if total == 0 {
		total = 1
	}
	if p.misses*10000 >= total*missThresholdPerTenThousand {
		p.pending = true
	}
}

func (p *Policy) Consume() (ResyncSignal, bool) {
	if p == nil || !p.pending {
		return ResyncSignal{}, false
	}
	signal := ResyncSignal{
		Misses:      p.misses,
		TotalEvents: p.totalEvents,
		Reasons:     append([]ResyncReason(nil), p.reasons...),
	}
	p.pending = false
	p.totalEvents = 0
	p.misses = 0
	if len(p.reasons) > 0 {
		p.reasons = p.reasons[:0]
	}
	return signal, true
}

func (s ResyncSignal) Summary() string {
	if s.Misses == 0 && s.TotalEvents == 0 {
		return ""
	}
	return fmt.Sprintf("misses=%d total_events=%d reasons=%v", s.Misses, s.TotalEvents, s.Reasons)
}
