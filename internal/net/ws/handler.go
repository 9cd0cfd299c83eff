package ws

import (
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"github.com/lampaBiurkowa/spin-snowball/internal/net/proto"
	"github.com/lampaBiurkowa/spin-snowball/internal/server"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
	"github.com/lampaBiurkowa/spin-snowball/internal/telemetry"
)

const maxMessageBytes = 64 << 10

// HandlerConfig customises the websocket endpoint.
type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades connections and pumps client messages into the hub.
type Handler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}
	return &Handler{
		hub:      hub,
		logger:   cfg.Logger,
		upgrader: upgrader,
	}
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

// Handle runs the read loop for one client connection. The identity comes
// from the join handshake and is carried in the id query parameter.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	clientID := r.URL.Query().Get("id")
	if clientID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logf("ws: upgrade failed for %s: %v", clientID, err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	if err := h.hub.Subscribe(clientID, conn); err != nil {
		h.logf("ws: subscribe failed for %s: %v", clientID, err)
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown client")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(clientID, "read_error")
			return
		}
		if !h.handleMessage(clientID, payload) {
			return
		}
	}
}

// handleMessage dispatches one inbound payload. It returns false when the
// connection was torn down and the read loop should exit.
func (h *Handler) handleMessage(clientID string, payload []byte) bool {
	msg, err := proto.DecodeClientMessage(payload)
	if err != nil {
		h.logf("ws: discarding malformed message from %s: %v", clientID, err)
		return !h.hub.Violation(clientID, "malformed_message")
	}

	switch msg.Type {
	case proto.TypeInput, proto.TypeCommand:
		return h.stageCommand(clientID, msg)
	case proto.TypeAck:
		if msg.Ack == nil {
			return !h.hub.Violation(clientID, "missing_ack")
		}
		h.hub.RecordAck(clientID, *msg.Ack)
		return true
	case proto.TypeHeartbeat:
		return h.heartbeat(clientID, msg)
	case proto.TypeKeyframeReq:
		if msg.KeyframeSeq == nil {
			return !h.hub.Violation(clientID, "missing_sequence")
		}
		if err := h.hub.HandleKeyframeRequest(clientID, *msg.KeyframeSeq); err != nil {
			h.hub.Disconnect(clientID, "write_error")
			return false
		}
		return true
	default:
		return !h.hub.Violation(clientID, "unknown_message_type")
	}
}

func (h *Handler) stageCommand(clientID string, msg proto.ClientMessage) bool {
	accepted, _, reason := h.hub.StageCommand(clientID, msg)
	if accepted {
		return true
	}
	var seq uint64
	if msg.CommandSeq != nil {
		seq = *msg.CommandSeq
	}
	if seq == 0 {
		return true
	}
	reject, err := proto.EncodeCommandReject(proto.CommandReject{
		Seq:    seq,
		Reason: reason,
		Retry:  reason == sim.CommandRejectQueueLimit || reason == sim.CommandRejectQueueFull,
	})
	if err != nil {
		h.logf("ws: encode reject for %s: %v", clientID, err)
		return true
	}
	if err := h.hub.Send(clientID, reject); err != nil {
		h.hub.Disconnect(clientID, "write_error")
		return false
	}
	return true
}

func (h *Handler) heartbeat(clientID string, msg proto.ClientMessage) bool {
	rtt, ok := h.hub.UpdateHeartbeat(clientID, msg.SentAt)
	if !ok {
		return false
	}
	now := h.hub.Now()
	var reply []byte
	var err error
	if msg.SentAt > 0 {
		reply, err = proto.EncodeHeartbeat(proto.Heartbeat{
			ServerTime: now.UnixMilli(),
			ClientTime: msg.SentAt,
			RTTMillis:  rtt.Milliseconds(),
		})
	} else {
		reply, err = proto.EncodePong(now.UnixMilli())
	}
	if err != nil {
		h.logf("ws: encode heartbeat for %s: %v", clientID, err)
		return true
	}
	if err := h.hub.Send(clientID, reply); err != nil {
		h.hub.Disconnect(clientID, "write_error")
		return false
	}
	return true
}
