package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spike-overlay/internal/assets"
	"spike-overlay/internal/config"
	"spike-overlay/internal/match"
	"spike-overlay/internal/overlay"
	"spike-overlay/internal/relay"
	"spike-overlay/internal/render"
	"spike-overlay/internal/ui"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Helpers
// ============================================================================

var testRateLimit = &RateLimitConfig{
	Read:    Budget{Rate: 1000, Burst: 1000},
	Control: Budget{Rate: 1000, Burst: 1000},
	IdleTTL: time.Hour,
}

func newTestViewer(t *testing.T, queueSize int) *overlay.Viewer {
	t.Helper()
	pipeline, err := render.NewPipeline(assets.NewTable(), render.Options{CanvasSize: 128})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return overlay.NewViewer(match.NewStore(match.DefaultPrevailCount), ui.NewControls("Ascent"), ui.NewQueue(queueSize), pipeline)
}

func newOverlayServer(t *testing.T, v *overlay.Viewer) *httptest.Server {
	t.Helper()
	router := NewOverlayRouter(v, RouterConfig{RateLimitConfig: testRateLimit, DisableLogging: true})
	return httptest.NewServer(router)
}

const twoPlayers = `{
	"players": {
		"id": [8, 3], "x": [300, 120], "y": [300, 80], "health": [0, 100],
		"team": [0, 1], "dormant": [0, 0], "rotation": [90, 270], "scoped": [0, 0],
		"weapon": [12, 5], "kill": [1, 0], "death": [0, 1], "assist": [0, 0],
		"acs": [150, 90], "shield": [25, 50], "credits": [1200, 4500]
	},
	"game_info": {"round_win_status": [0, 1, 2], "max_rounds": 24, "round_time": [65], "spike_planted": 0}
}`

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

// ============================================================================
// Overlay Router
// ============================================================================

func TestFrameBeforeFirstRedraw(t *testing.T) {
	ts := newOverlayServer(t, newTestViewer(t, 8))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/frame.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestFrameAndLayers(t *testing.T) {
	v := newTestViewer(t, 8)
	if err := v.HandleMessage(websocket.TextMessage, []byte(twoPlayers)); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	ts := newOverlayServer(t, v)
	defer ts.Close()

	for _, path := range []string{"/frame.png", "/frame/map.png", "/frame/rounds.png", "/frame/status.png", "/frame/table.png"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("GET %s: content type %q", path, ct)
		}
		if _, err := png.Decode(resp.Body); err != nil {
			t.Errorf("GET %s: invalid PNG: %v", path, err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/frame/bogus.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown layer, got %d", resp.StatusCode)
	}
}

func TestAPIGetState(t *testing.T) {
	v := newTestViewer(t, 8)
	if err := v.HandleMessage(websocket.TextMessage, []byte(twoPlayers)); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	ts := newOverlayServer(t, v)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		Sequence uint64                 `json:"sequence"`
		Players  []match.PlayerSnapshot `json:"players"`
		Round    int                    `json:"round"`
		Score    []int                  `json:"score"`
		Markers  []match.DeadMarker     `json:"markers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if result.Sequence != 1 || len(result.Players) != 2 {
		t.Errorf("Unexpected state %+v", result)
	}
	// Draw order is reversed from the wire
	if result.Players[0].ID != 3 {
		t.Errorf("Expected player 3 first, got %d", result.Players[0].ID)
	}
	if result.Round != 3 || len(result.Score) != 2 || result.Score[0] != 1 || result.Score[1] != 1 {
		t.Errorf("Expected round 3 at 1-1, got round %d score %v", result.Round, result.Score)
	}
	if len(result.Markers) != 1 {
		t.Errorf("Expected one dead marker, got %d", len(result.Markers))
	}
}

func TestControlEventsAreQueued(t *testing.T) {
	v := newTestViewer(t, 8)
	ts := newOverlayServer(t, v)
	defer ts.Close()

	requests := []struct {
		path string
		body string
		want ui.Event
	}{
		{"/api/controls/toggle", `{"name":"label_toggle","on":true}`, ui.ToggleEvent{Name: ui.ToggleLabel, On: true}},
		{"/api/controls/select", `{"index":1}`, ui.SelectPlayerEvent{Index: 1}},
		{"/api/controls/rotate", `{"delta":-45}`, ui.RotateEvent{Delta: -45}},
		{"/api/controls/reset", `{}`, ui.ResetRotationEvent{}},
		{"/api/controls/map", `{"name":"haven"}`, ui.SelectMapEvent{Name: "haven"}},
	}

	for _, req := range requests {
		resp := postJSON(t, ts.URL+req.path, req.body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("POST %s: expected 202, got %d", req.path, resp.StatusCode)
		}
	}

	events := v.Queue().Drain()
	if len(events) != len(requests) {
		t.Fatalf("Expected %d queued events, got %d", len(requests), len(events))
	}
	for i, ev := range events {
		if ev != requests[i].want {
			t.Errorf("Event %d: expected %#v, got %#v", i, requests[i].want, ev)
		}
	}
}

func TestControlValidation(t *testing.T) {
	v := newTestViewer(t, 8)
	ts := newOverlayServer(t, v)
	defer ts.Close()

	tests := []struct {
		path string
		body string
	}{
		{"/api/controls/toggle", `{"name":"bogus_toggle","on":true}`},
		{"/api/controls/toggle", `not json`},
		{"/api/controls/select", `{"index":-1}`},
		{"/api/controls/map", `{"name":"Atlantis"}`},
	}

	for _, tt := range tests {
		resp := postJSON(t, ts.URL+tt.path, tt.body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("POST %s %s: expected 400, got %d", tt.path, tt.body, resp.StatusCode)
		}
	}

	if n := len(v.Queue().Drain()); n != 0 {
		t.Errorf("Invalid requests should not queue events, got %d", n)
	}
}

func TestControlQueueFull(t *testing.T) {
	v := newTestViewer(t, 1)
	ts := newOverlayServer(t, v)
	defer ts.Close()

	first := postJSON(t, ts.URL+"/api/controls/reset", `{}`)
	first.Body.Close()
	second := postJSON(t, ts.URL+"/api/controls/reset", `{}`)
	second.Body.Close()

	if first.StatusCode != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", first.StatusCode)
	}
	if second.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 on a full queue, got %d", second.StatusCode)
	}
}

func TestGetControls(t *testing.T) {
	v := newTestViewer(t, 8)
	v.Controls().SetToggle(ui.TogglePlayerTable, true)
	v.Store().SetRotation(90)
	ts := newOverlayServer(t, v)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/controls")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		Controls ui.State `json:"controls"`
		Rotation float64  `json:"rotation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !result.Controls.Toggles[ui.TogglePlayerTable] || result.Controls.Map != "Ascent" {
		t.Errorf("Unexpected controls %+v", result.Controls)
	}
	if result.Rotation != 90 {
		t.Errorf("Expected rotation 90, got %v", result.Rotation)
	}
}

func TestRateLimiting(t *testing.T) {
	v := newTestViewer(t, 8)
	router := NewOverlayRouter(v, RouterConfig{
		RateLimitConfig: &RateLimitConfig{
			Read:    Budget{Rate: 0.001, Burst: 1},
			Control: Budget{Rate: 0.001, Burst: 1},
			IdleTTL: time.Hour,
		},
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/api/state")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected 200 then 429, got %v", codes)
	}
}

func TestRateLimitBudgetsAreSeparate(t *testing.T) {
	v := newTestViewer(t, 8)
	limiter := NewClientLimiter(RateLimitConfig{
		Read:    Budget{Rate: 0.001, Burst: 1},
		Control: Budget{Rate: 0.001, Burst: 1},
		IdleTTL: time.Hour,
	})
	ts := httptest.NewServer(NewOverlayRouter(v, RouterConfig{RateLimiter: limiter, DisableLogging: true}))
	defer ts.Close()

	get := func() int {
		resp, err := http.Get(ts.URL + "/api/state")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	post := func() int {
		resp := postJSON(t, ts.URL+"/api/controls/reset", `{}`)
		resp.Body.Close()
		return resp.StatusCode
	}

	// Exhausting reads leaves the control budget untouched
	if code := get(); code != http.StatusOK {
		t.Errorf("Expected first read 200, got %d", code)
	}
	if code := get(); code != http.StatusTooManyRequests {
		t.Errorf("Expected second read 429, got %d", code)
	}
	if code := post(); code != http.StatusAccepted {
		t.Errorf("Expected first control 202, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Errorf("Expected second control 429, got %d", code)
	}

	stats := limiter.Stats()
	if stats.Clients != 1 || stats.LimitedRead != 1 || stats.LimitedControl != 1 {
		t.Errorf("Expected 1 client with one rejection per budget, got %+v", stats)
	}

	// Health is outside /api and reports the counters
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	var health struct {
		RateLimit LimiterStats `json:"rate_limit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if health.RateLimit != stats {
		t.Errorf("Expected health to report %+v, got %+v", stats, health.RateLimit)
	}
}

func TestClientLimiterDropsIdleClients(t *testing.T) {
	l := NewClientLimiter(RateLimitConfig{
		Read:    Budget{Rate: 0.001, Burst: 1},
		Control: Budget{Rate: 0.001, Burst: 1},
		IdleTTL: time.Minute,
	})
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow("10.0.0.1", false) {
		t.Fatal("First request should pass")
	}
	if l.Allow("10.0.0.1", false) {
		t.Fatal("Second request should be limited")
	}

	// Another client's request after the TTL sweeps the idle one
	now = now.Add(2 * time.Minute)
	if !l.Allow("10.0.0.2", false) {
		t.Fatal("New client should pass")
	}
	if n := l.Stats().Clients; n != 1 {
		t.Errorf("Expected idle client swept, %d tracked", n)
	}

	// A swept client starts with a fresh bucket
	if !l.Allow("10.0.0.1", false) {
		t.Error("Swept client should get a fresh budget")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:4567"
	if ip := ClientIP(r, false); ip != "10.1.2.3" {
		t.Errorf("Expected RemoteAddr host, got %s", ip)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ClientIP(r, false); ip != "10.1.2.3" {
		t.Errorf("Forwarding header should be ignored without a trusted proxy, got %s", ip)
	}
	if ip := ClientIP(r, true); ip != "203.0.113.9" {
		t.Errorf("Expected first forwarded address, got %s", ip)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.7")
	if ip := ClientIP(r, true); ip != "198.51.100.7" {
		t.Errorf("Expected X-Real-IP, got %s", ip)
	}
}

// ============================================================================
// Relay Router
// ============================================================================

func TestRelayRouter(t *testing.T) {
	cfg := config.DefaultRelay()
	cfg.MaxPeers = 2
	hub := relay.NewHub(cfg)
	defer hub.Close()

	ts := httptest.NewServer(NewRelayRouter(hub, RouterConfig{RateLimitConfig: testRateLimit, DisableLogging: true}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Registry().Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get(ts.URL + "/api/peers")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var peers []relay.PeerInfo
	if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
		t.Fatalf("Failed to decode peers: %v", err)
	}
	resp.Body.Close()
	if len(peers) != 1 {
		t.Errorf("Expected 1 peer, got %d", len(peers))
	}

	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	var health map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if health["peers"] != float64(1) || health["capacity"] != float64(2) {
		t.Errorf("Unexpected health %v", health)
	}
}

func TestOverlayHealth(t *testing.T) {
	v := newTestViewer(t, 8)
	v.HandleMessage(websocket.TextMessage, []byte(`{"players":`))
	ts := newOverlayServer(t, v)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), `"rejected":1`) {
		t.Errorf("Expected rejected count in health, got %s", buf.String())
	}
}
