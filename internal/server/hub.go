package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lampaBiurkowa/spin-snowball/internal/journal"
	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
	"github.com/lampaBiurkowa/spin-snowball/internal/net/intake"
	"github.com/lampaBiurkowa/spin-snowball/internal/net/proto"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
	"github.com/lampaBiurkowa/spin-snowball/internal/telemetry"
	"github.com/lampaBiurkowa/spin-snowball/internal/world"
	"github.com/lampaBiurkowa/spin-snowball/logging"
	"github.com/lampaBiurkowa/spin-snowball/logging/lifecycle"
	"github.com/lampaBiurkowa/spin-snowball/logging/network"
)

var errSessionClosed = errors.New("server: session closed")

const (
	hubBroadcastMetricKey        = "hub_broadcast_total"
	hubKeyframeMetricKey         = "hub_keyframe_total"
	hubBaselineMissMetricKey     = "hub_baseline_miss_total"
	hubCommandRejectMetricKey    = "hub_command_reject_total"
	hubForcedDisconnectMetricKey = "hub_forced_disconnect_total"
	hubLivenessTimeoutMetricKey  = "hub_liveness_timeout_total"
	hubWriteFailureMetricKey     = "hub_write_failure_total"
	hubKeyframeRequestMetricKey  = "hub_keyframe_request_total"
	hubKeyframeNackMetricKey     = "hub_keyframe_nack_total"
)

const (
	disconnectReasonLeft      = "left"
	disconnectReasonTimeout   = "heartbeat_timeout"
	disconnectReasonWrite     = "write_error"
	disconnectReasonViolation = "protocol_violation"
)

// Hub owns the simulation loop and fans replicated state out to websocket
// sessions. The world is only ever touched from the tick goroutine; the hub
// mediates everything the reader goroutines need through the loop queue,
// atomics and the keyframe journal.
type Hub struct {
	cfg       HubConfig
	doc       *mapdoc.Document
	core      *world.Core
	loop      *sim.Loop
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	clock     logging.Clock

	mu       sync.RWMutex
	sessions map[string]*session

	latestTick  atomic.Uint64
	keyframeSeq atomic.Uint64

	snapMu     sync.RWMutex
	latestSnap sim.Snapshot
	wireCfg    proto.WorldConfig

	forceKeyframe atomic.Bool
}

// NewHub builds the world, journal and loop for the given map document and
// wires the hub in as the loop's replication hook.
func NewHub(doc *mapdoc.Document, cfg HubConfig, deps sim.Deps, publisher logging.Publisher) *Hub {
	if doc == nil {
		return nil
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = sim.DefaultTickRate
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = DefaultHubConfig().HeartbeatTimeout
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	if publisher == nil {
		publisher = deps.Publisher
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if deps.Publisher == nil {
		deps.Publisher = publisher
	}

	w := world.New(world.Config{
		Map:          doc,
		Seed:         cfg.Seed,
		TickRate:     cfg.TickRate,
		HorizonTicks: cfg.HorizonTicks,
	}, deps)
	ring := journal.New(cfg.JournalCapacity, cfg.JournalMaxAge)
	core := world.NewCore(w, ring)

	mode := doc.Mode
	if mode == "" {
		mode = mapdoc.ModeFight
	}

	hub := &Hub{
		cfg:       cfg,
		doc:       doc,
		core:      core,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		publisher: publisher,
		clock:     clock,
		sessions:  make(map[string]*session),
		wireCfg: proto.WorldConfig{
			MapName:  doc.Name,
			Width:    doc.Width,
			Height:   doc.Height,
			Mode:     mode,
			TickRate: cfg.TickRate,
			Physics:  w.Physics(),
		},
	}
	hub.loop = sim.NewLoop(core, sim.LoopConfig{
		TickRate:        cfg.TickRate,
		CommandCapacity: cfg.CommandCapacity,
		PerActorLimit:   cfg.PerActorLimit,
		StalenessBound:  cfg.StalenessBound,
	}, sim.LoopHooks{
		AfterStep: hub.afterStep,
	})
	return hub
}

// Run drives the fixed-timestep loop until stop closes.
func (h *Hub) Run(stop <-chan struct{}) {
	h.loop.Run(stop)
}

// Core exposes the underlying engine core for tooling and tests.
func (h *Hub) Core() *world.Core { return h.core }

// Loop exposes the command queue for tests that drive ticks manually.
func (h *Hub) Loop() *sim.Loop { return h.loop }

// Now reads the hub clock.
func (h *Hub) Now() time.Time { return h.clock.Now() }

func (h *Hub) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

// Join reserves a connection identity and stages the spectator join for the
// next tick. The websocket is attached afterwards through Subscribe.
func (h *Hub) Join() (string, error) {
	id := uuid.NewString()
	sess := newSession(id, h.clock.Now())

	h.mu.Lock()
	h.sessions[id] = sess
	h.mu.Unlock()

	cmd := sim.Command{
		ActorID:  id,
		Type:     sim.CommandLobby,
		IssuedAt: h.clock.Now(),
		Lobby:    &sim.LobbyCommand{Action: sim.LobbyJoinSpectator},
	}
	if ok, reason := h.loop.Enqueue(cmd); !ok {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
		return "", errors.New("server: join rejected: " + reason)
	}
	return id, nil
}

// Subscribe attaches a websocket connection to a joined identity and sends
// the join response built from the latest replicated snapshot.
func (h *Hub) Subscribe(id string, conn Conn) error {
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return errors.New("server: unknown session " + id)
	}

	now := h.clock.Now()
	sess.attach(conn, now)

	h.snapMu.RLock()
	snap := h.latestSnap
	cfg := h.wireCfg
	h.snapMu.RUnlock()

	payload, err := proto.EncodeJoinResponse(proto.JoinResponseV1{
		ID:          id,
		Tick:        snap.Tick,
		Players:     snap.Players,
		Snowballs:   snap.Snowballs,
		Ball:        snap.Ball,
		Match:       snap.Match,
		Config:      cfg,
		KeyframeSeq: h.keyframeSeq.Load(),
		ServerTime:  now.UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := sess.send(payload, now); err != nil {
		return err
	}
	lifecycle.Connected(context.Background(), h.publisher, h.latestTick.Load(), connectionRef(id))
	return nil
}

// Disconnect releases a session, closes the socket and stages the lobby
// leave so the player despawns on the next tick.
func (h *Hub) Disconnect(id, reason string) {
	h.mu.Lock()
	sess, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	sess.close()

	h.loop.Enqueue(sim.Command{
		ActorID:  id,
		Type:     sim.CommandLobby,
		IssuedAt: h.clock.Now(),
		Lobby:    &sim.LobbyCommand{Action: sim.LobbyLeave},
	})
	lifecycle.Disconnected(context.Background(), h.publisher, h.latestTick.Load(), connectionRef(id),
		lifecycle.DisconnectPayload{Reason: reason})
}

// HasActor reports whether the identity holds a live session.
func (h *Hub) HasActor(id string) bool {
	h.mu.RLock()
	_, ok := h.sessions[id]
	h.mu.RUnlock()
	return ok
}

// SessionCount reports the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// StageCommand validates and queues a client message for the next tick. The
// boolean reports acceptance; duplicates of an already staged sequence are
// acknowledged without re-staging.
func (h *Hub) StageCommand(id string, msg proto.ClientMessage) (accepted bool, duplicate bool, reason string) {
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return false, false, sim.CommandRejectUnknownActor
	}
	if msg.CommandSeq != nil && sess.seenCommand(*msg.CommandSeq) {
		return true, true, ""
	}

	_, ok, reason = intake.StageClientCommand(intake.CommandContext{
		Queue:    h.loop,
		HasActor: h.HasActor,
		Tick:     h.latestTick.Load,
		Now:      h.clock.Now,
	}, id, msg)
	if !ok {
		h.countMetric(hubCommandRejectMetricKey, 1)
		var seq uint64
		if msg.CommandSeq != nil {
			seq = *msg.CommandSeq
		}
		network.CommandDropped(context.Background(), h.publisher, h.latestTick.Load(), connectionRef(id),
			network.DropPayload{Reason: reason, Seq: seq})
		return false, false, reason
	}
	if msg.CommandSeq != nil {
		sess.noteCommandSeq(*msg.CommandSeq)
	}
	return true, false, ""
}

// Send writes an encoded payload to one session. All writes funnel through
// the session mutex so reader-goroutine replies cannot interleave with tick
// broadcasts.
func (h *Hub) Send(id string, payload []byte) error {
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return errSessionClosed
	}
	return sess.send(payload, h.clock.Now())
}

// RecordAck advances the session's replication baseline. Acks only ever move
// forward; a regression is reported and ignored.
func (h *Hub) RecordAck(id string, tick uint64) bool {
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	previous, advanced := sess.recordAck(tick)
	payload := network.AckPayload{Previous: previous, Ack: tick}
	if advanced {
		network.AckAdvanced(context.Background(), h.publisher, h.latestTick.Load(), connectionRef(id), payload)
		return true
	}
	if tick < previous {
		network.AckRegression(context.Background(), h.publisher, h.latestTick.Load(), connectionRef(id), payload)
	}
	return false
}

// UpdateHeartbeat refreshes the liveness window and returns the estimated
// round trip derived from the client's send timestamp.
func (h *Hub) UpdateHeartbeat(id string, clientSentMilli int64) (time.Duration, bool) {
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return 0, false
	}
	now := h.clock.Now()
	var rtt time.Duration
	if clientSentMilli > 0 {
		rtt = now.Sub(time.UnixMilli(clientSentMilli))
		if rtt < 0 {
			rtt = 0
		}
	}
	sess.markHeartbeat(now, rtt)
	return rtt, true
}

// Violation counts a protocol violation against the session and reports
// whether the connection was force-closed for crossing the limit.
func (h *Hub) Violation(id, reason string) bool {
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	count := sess.violations.Add(1)
	payload := network.ViolationPayload{Reason: reason, Count: count}
	network.ProtocolViolation(context.Background(), h.publisher, h.latestTick.Load(), connectionRef(id), payload)
	if h.cfg.ViolationLimit == 0 || count < h.cfg.ViolationLimit {
		return false
	}
	network.ForcedDisconnect(context.Background(), h.publisher, h.latestTick.Load(), connectionRef(id), payload)
	h.countMetric(hubForcedDisconnectMetricKey, 1)
	h.Disconnect(id, disconnectReasonViolation)
	return true
}

// HandleKeyframeRequest serves a retained keyframe to the requesting session
// or nacks with the retained window. A nack also schedules a fresh keyframe
// broadcast so the client recovers on the next tick.
func (h *Hub) HandleKeyframeRequest(id string, sequence uint64) error {
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return errSessionClosed
	}
	h.countMetric(hubKeyframeRequestMetricKey, 1)

	now := h.clock.Now()
	if frame, found := h.core.KeyframeBySequence(sequence); found {
		msg := proto.KeyframeFromJournal(frame, h.wireConfig())
		msg.ServerTime = now.UnixMilli()
		payload, err := proto.EncodeKeyframe(msg)
		if err != nil {
			return err
		}
		return sess.send(payload, now)
	}

	_, oldest, newest := h.core.KeyframeWindow()
	payload, err := proto.EncodeKeyframeNack(proto.KeyframeNack{
		Sequence: sequence,
		Reason:   "not_retained",
		Oldest:   oldest,
		Newest:   newest,
	})
	if err != nil {
		return err
	}
	h.countMetric(hubKeyframeNackMetricKey, 1)
	h.core.Journal().NoteBaselineMiss("keyframe_request", id)
	h.forceKeyframe.Store(true)
	return sess.send(payload, now)
}

// afterStep runs on the tick goroutine. It caches the snapshot, sweeps
// liveness, then replicates either a keyframe or per-session deltas.
func (h *Hub) afterStep(result sim.LoopStepResult) {
	now := result.Now
	if now.IsZero() {
		now = h.clock.Now()
	}

	h.snapMu.Lock()
	h.latestSnap = result.Snapshot
	h.wireCfg.Physics = h.core.World().Physics()
	h.snapMu.Unlock()
	h.latestTick.Store(result.Tick)

	for _, id := range result.RemovedActors {
		h.mu.RLock()
		_, live := h.sessions[id]
		h.mu.RUnlock()
		if live {
			h.Disconnect(id, disconnectReasonLeft)
		}
	}

	h.sweepLiveness(now)

	sessions := h.liveSessions()
	if len(sessions) == 0 {
		return
	}

	if h.shouldKeyframe(result.Tick) {
		h.broadcastKeyframe(sessions, result.Snapshot, now, false)
		return
	}

	var lazyKeyframe []byte
	for _, sess := range sessions {
		baseline := sess.lastAcked.Load()
		delta, ok := h.core.DeltaSince(baseline)
		if !ok {
			h.countMetric(hubBaselineMissMetricKey, 1)
			h.core.Journal().NoteBaselineMiss(missKind(baseline, result.Tick), sess.id)
			if lazyKeyframe == nil {
				lazyKeyframe = h.encodeKeyframe(result.Snapshot, now, true)
			}
			if lazyKeyframe != nil {
				h.deliver(sess, lazyKeyframe, now)
			}
			continue
		}
		h.core.Journal().NoteBroadcast()
		payload, err := proto.EncodeState(proto.StateMessageV1{
			Tick:        result.Tick,
			KeyframeSeq: h.keyframeSeq.Load(),
			Patches:     delta.Patches,
			Removals:    delta.Removals,
			ServerTime:  now.UnixMilli(),
		})
		if err != nil {
			h.logf("hub: encode state tick=%d: %v", result.Tick, err)
			continue
		}
		h.countMetric(hubBroadcastMetricKey, 1)
		h.deliver(sess, payload, now)
	}
}

func (h *Hub) shouldKeyframe(tick uint64) bool {
	if h.forceKeyframe.CompareAndSwap(true, false) {
		return true
	}
	if _, pending := h.core.Journal().ConsumeResyncHint(); pending {
		return true
	}
	interval := h.cfg.KeyframeIntervalTicks
	if interval == 0 {
		return false
	}
	return tick%interval == 0
}

// encodeKeyframe records a fresh keyframe in the journal and renders it.
func (h *Hub) encodeKeyframe(snap sim.Snapshot, now time.Time, resync bool) []byte {
	seq := h.keyframeSeq.Add(1)
	record := h.core.RecordKeyframe(sim.Keyframe{
		Tick:      snap.Tick,
		Sequence:  seq,
		Players:   snap.Players,
		Snowballs: snap.Snowballs,
		Ball:      snap.Ball,
		Match:     snap.Match,
	})
	for _, evicted := range record.Evicted {
		h.logf("hub: keyframe evicted seq=%d tick=%d reason=%s", evicted.Sequence, evicted.Tick, evicted.Reason)
	}

	msg := proto.KeyframeFromJournal(sim.Keyframe{
		Tick:      snap.Tick,
		Sequence:  seq,
		Players:   snap.Players,
		Snowballs: snap.Snowballs,
		Ball:      snap.Ball,
		Match:     snap.Match,
	}, h.wireConfig())
	msg.Resync = resync
	msg.ServerTime = now.UnixMilli()
	payload, err := proto.EncodeKeyframe(msg)
	if err != nil {
		h.logf("hub: encode keyframe seq=%d: %v", seq, err)
		return nil
	}
	h.countMetric(hubKeyframeMetricKey, 1)
	return payload
}

func (h *Hub) broadcastKeyframe(sessions []*session, snap sim.Snapshot, now time.Time, resync bool) {
	payload := h.encodeKeyframe(snap, now, resync)
	if payload == nil {
		return
	}
	for _, sess := range sessions {
		h.deliver(sess, payload, now)
	}
}

// deliver writes one payload, disconnecting the session on failure.
func (h *Hub) deliver(sess *session, payload []byte, now time.Time) {
	if err := sess.send(payload, now); err != nil {
		if !errors.Is(err, errSessionClosed) {
			h.logf("hub: write to %s failed: %v", sess.id, err)
		}
		h.countMetric(hubWriteFailureMetricKey, 1)
		h.Disconnect(sess.id, disconnectReasonWrite)
	}
}

func (h *Hub) sweepLiveness(now time.Time) {
	var expired []*session
	h.mu.RLock()
	for _, sess := range h.sessions {
		if sess.stale(now, h.cfg.HeartbeatTimeout) {
			expired = append(expired, sess)
		}
	}
	h.mu.RUnlock()
	for _, sess := range expired {
		lifecycle.TimedOut(context.Background(), h.publisher, h.latestTick.Load(), connectionRef(sess.id))
		h.countMetric(hubLivenessTimeoutMetricKey, 1)
		h.Disconnect(sess.id, disconnectReasonTimeout)
	}
}

func (h *Hub) liveSessions() []*session {
	h.mu.RLock()
	out := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		if sess.attached() {
			out = append(out, sess)
		}
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (h *Hub) wireConfig() proto.WorldConfig {
	h.snapMu.RLock()
	defer h.snapMu.RUnlock()
	return h.wireCfg
}

func (h *Hub) countMetric(key string, delta uint64) {
	if h.metrics != nil {
		h.metrics.Add(key, delta)
	}
}

func missKind(baseline, tick uint64) string {
	switch {
	case baseline == 0:
		return "no_baseline"
	case baseline > tick:
		return "future_baseline"
	default:
		return "baseline_horizon"
	}
}

func connectionRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindConnection}
}

// Diagnostics summarises hub state for the diagnostics endpoint.
type Diagnostics struct {
	Tick            uint64            `json:"tick"`
	Sessions        int               `json:"sessions"`
	PendingCommands int               `json:"pendingCommands"`
	KeyframeSize    int               `json:"keyframeSize"`
	OldestKeyframe  uint64            `json:"oldestKeyframe"`
	NewestKeyframe  uint64            `json:"newestKeyframe"`
	Counters        map[string]uint64 `json:"counters,omitempty"`
}

// DiagnosticsSnapshot assembles the current diagnostics view.
func (h *Hub) DiagnosticsSnapshot() Diagnostics {
	size, oldest, newest := h.core.KeyframeWindow()
	diag := Diagnostics{
		Tick:            h.latestTick.Load(),
		Sessions:        h.SessionCount(),
		PendingCommands: h.loop.Pending(),
		KeyframeSize:    size,
		OldestKeyframe:  oldest,
		NewestKeyframe:  newest,
	}
	if counters, ok := h.metrics.(*telemetry.Counters); ok {
		diag.Counters = counters.Snapshot()
	}
	return diag
}
