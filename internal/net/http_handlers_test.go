package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
	"github.com/lampaBiurkowa/spin-snowball/internal/server"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
	"github.com/lampaBiurkowa/spin-snowball/internal/telemetry"
)

func testHub(t *testing.T) *server.Hub {
	t.Helper()
	doc := &mapdoc.Document{
		Name:    "arena",
		Width:   800,
		Height:  600,
		Mode:    mapdoc.ModeFight,
		Physics: mapdoc.DefaultPhysics(),
		Team1:   mapdoc.TeamSpawn{SpawnX: 100, SpawnY: 300},
		Team2:   mapdoc.TeamSpawn{SpawnX: 700, SpawnY: 300},
	}
	hub := server.NewHub(doc, server.DefaultHubConfig(), sim.Deps{
		Logger:  telemetry.LoggerFunc(t.Logf),
		Metrics: telemetry.NewCounters(),
	}, nil)
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	return hub
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHTTPHandler(testHub(t), HTTPHandlerConfig{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body != "ok" {
		t.Fatalf("body = %q", body)
	}
}

func TestJoinEndpoint(t *testing.T) {
	handler := NewHTTPHandler(testHub(t), HTTPHandlerConfig{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/join", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /join status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/join", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /join status = %d", rec.Code)
	}
	var join struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &join); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if join.ID == "" {
		t.Fatal("join response missing id")
	}
}

func TestDiagnosticsEndpoint(t *testing.T) {
	hub := testHub(t)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Status    string             `json:"status"`
		Heartbeat int64              `json:"heartbeatMillis"`
		Hub       server.Diagnostics `json:"hub"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("status = %q", payload.Status)
	}
	if payload.Heartbeat != server.HeartbeatInterval().Milliseconds() {
		t.Fatalf("heartbeatMillis = %d", payload.Heartbeat)
	}
}

func TestWebsocketRejectsMissingID(t *testing.T) {
	handler := NewHTTPHandler(testHub(t), HTTPHandlerConfig{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebsocketHandshakeAndHeartbeat(t *testing.T) {
	hub := testHub(t)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	id, err := hub.Join()
	if err != nil {
		t.Fatalf("Join: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var join struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := conn.ReadJSON(&join); err != nil {
		t.Fatalf("read join: %v", err)
	}
	if join.Type != "join" || join.ID != id {
		t.Fatalf("join payload = %+v", join)
	}

	if err := conn.WriteJSON(map[string]any{"type": "heartbeat", "sentAt": hub.Now().UnixMilli()}); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}
	var beat struct {
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
	}
	if err := conn.ReadJSON(&beat); err != nil {
		t.Fatalf("read heartbeat: %v", err)
	}
	if beat.Type != "heartbeat" || beat.ServerTime == 0 {
		t.Fatalf("heartbeat payload = %+v", beat)
	}
}
