package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Sink consumes routed events. Write runs on the sink's worker goroutine.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans events out to sinks without ever blocking the publisher. Each
// sink gets its own buffered backlog and worker goroutine; when a backlog
// fills, the event is dropped for that sink and counted.
type Router struct {
	clock    Clock
	fallback *log.Logger

	minSeverity Severity
	fields      map[string]any
	warnEvery   time.Duration

	workers []*sinkWorker
	wg      sync.WaitGroup

	closed       atomic.Bool
	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	nextDropWarn atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

func NewRouter(clock Clock, cfg Config, sinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	backlog := cfg.BufferSize
	if backlog <= 0 {
		backlog = 512
	}
	warnEvery := cfg.DropWarnInterval
	if warnEvery <= 0 {
		warnEvery = 5 * time.Second
	}
	r := &Router{
		clock:       clock,
		fallback:    log.New(os.Stderr, "[logging] ", log.LstdFlags),
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
		warnEvery:   warnEvery,
	}
	for _, named := range sinks {
		if named.Sink == nil {
			continue
		}
		worker := &sinkWorker{
			name:     named.Name,
			sink:     named.Sink,
			backlog:  make(chan Event, backlog),
			stop:     make(chan struct{}),
			fallback: r.fallback,
		}
		r.workers = append(r.workers, worker)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			worker.run()
		}()
	}
	return r, nil
}

// Publish stamps, filters and fans the event out. Safe for concurrent use.
func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	if event.Severity < r.minSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if len(r.fields) > 0 {
		event = event.Clone()
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(r.fields))
		}
		for k, v := range r.fields {
			if _, exists := event.Extra[k]; !exists {
				event.Extra[k] = v
			}
		}
	}
	r.eventsTotal.Add(1)
	for _, worker := range r.workers {
		if !worker.offer(event.Clone()) {
			r.noteDrop(event)
		}
	}
}

func (r *Router) noteDrop(event Event) {
	r.droppedTotal.Add(1)
	now := time.Now().UnixNano()
	next := r.nextDropWarn.Load()
	if next != 0 && now < next {
		return
	}
	if r.nextDropWarn.CompareAndSwap(next, now+r.warnEvery.Nanoseconds()) {
		r.fallback.Printf("dropping event type=%s tick=%d", event.Type, event.Tick)
	}
}

// Close drains the backlogs, stops the workers and closes the sinks.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, worker := range r.workers {
		close(worker.stop)
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, worker := range r.workers {
		if err := worker.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

func (r *Router) Sink(name string) Sink {
	for _, worker := range r.workers {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

// sinkWorker owns one sink. Failed writes put the sink in a penalty box
// whose delay doubles per consecutive failure, capped at 32 seconds;
// events arriving during the penalty wait in the backlog.
type sinkWorker struct {
	name     string
	sink     Sink
	backlog  chan Event
	stop     chan struct{}
	fallback *log.Logger

	failures int
	retryAt  time.Time
}

func (w *sinkWorker) offer(event Event) bool {
	select {
	case w.backlog <- event:
		return true
	default:
		w.fallback.Printf("sink %s backlog full dropping event type=%s", w.name, event.Type)
		return false
	}
}

func (w *sinkWorker) run() {
	for {
		select {
		case event := <-w.backlog:
			w.write(event)
		case <-w.stop:
			for {
				select {
				case event := <-w.backlog:
					w.write(event)
				default:
					return
				}
			}
		}
	}
}

func (w *sinkWorker) write(event Event) {
	if w.failures > 0 {
		if wait := time.Until(w.retryAt); wait > 0 {
			time.Sleep(wait)
		}
	}
	if err := w.sink.Write(event); err != nil {
		w.failures++
		shift := w.failures
		if shift > 5 {
			shift = 5
		}
		delay := time.Duration(1<<shift) * time.Second
		w.retryAt = time.Now().Add(delay)
		w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
		return
	}
	w.failures = 0
	w.retryAt = time.Time{}
}
