package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"snapvault/internal/backendtest"
	"snapvault/internal/client"
	"snapvault/internal/hub"
	"snapvault/internal/model"
	"snapvault/internal/store"
)

func newTestDeps(t *testing.T) (Deps, *backendtest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "snapvault.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	backend := backendtest.New()
	backendSrv := httptest.NewServer(backend.Router())
	t.Cleanup(backendSrv.Close)

	cl := client.New(backendSrv.URL)
	token, err := cl.Register(context.Background(), model.DeviceIdentity{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	cl.Token = token

	return Deps{Store: st, Client: cl, Hub: hub.New()}, backend
}

func getJSON(t *testing.T, r http.Handler, path string, wantCode int) map[string]any {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	if w.Code != wantCode {
		t.Fatalf("GET %s: expected %d, got %d: %s", path, wantCode, w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := NewRouter(deps)

	resp := getJSON(t, r, "/health", http.StatusOK)
	if resp["ok"] != true {
		t.Fatalf("unexpected health response: %v", resp)
	}
}

func TestStatusAndRuns(t *testing.T) {
	deps, _ := newTestDeps(t)
	if err := deps.Store.SetDeviceID("dev-1"); err != nil {
		t.Fatalf("SetDeviceID: %v", err)
	}
	if err := deps.Store.SetLastBackupTime(time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("SetLastBackupTime: %v", err)
	}
	run := store.BackupRun{
		SessionID: "sess-1",
		Status:    "completed",
		Contacts:  3,
		Photos:    25,
		StartedAt: time.Now(),
	}
	if err := deps.Store.RecordRun(run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	r := NewRouter(deps)

	resp := getJSON(t, r, "/status", http.StatusOK)
	if resp["deviceId"] != "dev-1" {
		t.Fatalf("unexpected deviceId: %v", resp["deviceId"])
	}
	if resp["lastBackupTime"] != "2026-08-26T08:00:00Z" {
		t.Fatalf("unexpected lastBackupTime: %v", resp["lastBackupTime"])
	}
	lastRun, ok := resp["lastRun"].(map[string]any)
	if !ok || lastRun["sessionId"] != "sess-1" {
		t.Fatalf("unexpected lastRun: %v", resp["lastRun"])
	}

	resp = getJSON(t, r, "/runs?limit=5", http.StatusOK)
	runs, ok := resp["runs"].([]any)
	if !ok || len(runs) != 1 {
		t.Fatalf("unexpected runs: %v", resp["runs"])
	}

	getJSON(t, r, "/runs?limit=nope", http.StatusBadRequest)
}

func TestHistoryProxy(t *testing.T) {
	deps, _ := newTestDeps(t)
	sessionID, err := deps.Client.StartSession(context.Background(), model.SessionTotals{Photos: 2})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	r := NewRouter(deps)

	resp := getJSON(t, r, "/history?page=1&limit=10", http.StatusOK)
	sessions, ok := resp["sessions"].([]any)
	if !ok || len(sessions) != 1 {
		t.Fatalf("unexpected sessions: %v", resp["sessions"])
	}
	row := sessions[0].(map[string]any)
	if row["sessionId"] != sessionID {
		t.Fatalf("unexpected session row: %v", row)
	}

	getJSON(t, r, "/history?page=0", http.StatusBadRequest)
}

func TestEventStream(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := NewRouter(deps)

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	// ping/pong application message
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "pong") {
		t.Fatalf("expected pong, got %s", data)
	}

	// broadcast reaches the subscriber; the ping round trip above
	// guarantees registration already happened.
	deps.Hub.Broadcast([]byte(`{"status":"Backing up photos"}`))
	_, data, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if !strings.Contains(string(data), "Backing up photos") {
		t.Fatalf("unexpected broadcast payload: %s", data)
	}
}
