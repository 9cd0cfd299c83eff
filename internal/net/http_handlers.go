package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"

	"github.com/lampaBiurkowa/spin-snowball/internal/net/ws"
	"github.com/lampaBiurkowa/spin-snowball/internal/observability"
	"github.com/lampaBiurkowa/spin-snowball/internal/server"
	"github.com/lampaBiurkowa/spin-snowball/internal/telemetry"
)

// HTTPHandlerConfig customises the HTTP surface.
type HTTPHandlerConfig struct {
	ClientDir     string
	Logger        telemetry.Logger
	Observability observability.Config
}

// NewHTTPHandler assembles the join handshake, diagnostics and websocket
// endpoints around the hub.
func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string             `json:"status"`
			ServerTime int64              `json:"serverTime"`
			Heartbeat  int64              `json:"heartbeatMillis"`
			Hub        server.Diagnostics `json:"hub"`
		}{
			Status:     "ok",
			ServerTime: hub.Now().UnixMilli(),
			Heartbeat:  server.HeartbeatInterval().Milliseconds(),
			Hub:        hub.DiagnosticsSnapshot(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		id, err := hub.Join()
		if err != nil {
			if logger != nil {
				logger.Printf("join rejected: %v", err)
			}
			httpError(w, "join rejected", nethttp.StatusServiceUnavailable)
			return
		}
		data, err := json.Marshal(struct {
			ID string `json:"id"`
		}{ID: id})
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", wsHandler.Handle)

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	if cfg.ClientDir != "" {
		mux.Handle("/", nethttp.FileServer(nethttp.Dir(cfg.ClientDir)))
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	nethttp.Error(w, message, status)
}
