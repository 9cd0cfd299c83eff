package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of the websocket connection the hub writes through.
// Tests substitute in-memory fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// session tracks per-connection replication state. Acks, heartbeats and
// violation counts are touched from both the tick goroutine and the reader
// goroutine, so they live in atomics.
type session struct {
	id   string
	conn Conn

	writeMu sync.Mutex

	lastAcked      atomic.Uint64
	lastCommandSeq atomic.Uint64
	lastHeartbeat  atomic.Int64
	lastRTT        atomic.Int64
	violations     atomic.Uint64
	closed         atomic.Bool
}

// newSession arms the liveness clock immediately so an identity that joins
// but never attaches a websocket still times out.
func newSession(id string, now time.Time) *session {
	s := &session{id: id}
	s.lastHeartbeat.Store(now.UnixNano())
	return s
}

// attach binds the websocket connection and refreshes the liveness clock.
func (s *session) attach(conn Conn, now time.Time) {
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
	s.lastHeartbeat.Store(now.UnixNano())
}

// attached reports whether a websocket has been bound through attach.
func (s *session) attached() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn != nil
}

// send writes one message under the write deadline. The hub serialises
// broadcast writes per connection through writeMu.
func (s *session) send(payload []byte, now time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil || s.closed.Load() {
		return errSessionClosed
	}
	if err := s.conn.SetWriteDeadline(now.Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// close shuts the connection once. Safe to call from any goroutine.
func (s *session) close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.writeMu.Lock()
	conn := s.conn
	s.writeMu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// recordAck advances the acknowledged tick monotonically. It returns the
// previous value and whether the new ack moved it forward.
func (s *session) recordAck(tick uint64) (previous uint64, advanced bool) {
	for {
		previous = s.lastAcked.Load()
		if tick <= previous {
			return previous, false
		}
		if s.lastAcked.CompareAndSwap(previous, tick) {
			return previous, true
		}
	}
}

// seenCommand reports whether the sequence was already staged. Sequence zero
// is never deduplicated.
func (s *session) seenCommand(seq uint64) bool {
	return seq != 0 && seq <= s.lastCommandSeq.Load()
}

// noteCommandSeq records the highest successfully staged command sequence so
// retransmits can be acknowledged without re-staging. Rejected commands are
// not recorded and stay retryable.
func (s *session) noteCommandSeq(seq uint64) {
	for {
		previous := s.lastCommandSeq.Load()
		if seq <= previous {
			return
		}
		if s.lastCommandSeq.CompareAndSwap(previous, seq) {
			return
		}
	}
}

// markHeartbeat refreshes the liveness clock and remembers the round trip.
func (s *session) markHeartbeat(now time.Time, rtt time.Duration) {
	s.lastHeartbeat.Store(now.UnixNano())
	if rtt > 0 {
		s.lastRTT.Store(int64(rtt))
	}
}

// stale reports whether the liveness window elapsed without a heartbeat.
func (s *session) stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(time.Unix(0, s.lastHeartbeat.Load())) > timeout
}
