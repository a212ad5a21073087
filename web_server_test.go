package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ordaq/framering/control"
)

func newTestWebServer(t *testing.T) (*WebServer, *Merger) {
	t.Helper()
	m, err := NewMerger(scriptedConfig())
	if err != nil {
		t.Fatalf("NewMerger: %v", err)
	}
	return NewWebServer("127.0.0.1:0", m), m
}

func TestWebServer_FrameEndpoint(t *testing.T) {
	server, m := newTestWebServer(t)
	defer m.Close()

	// No frame published yet.
	req := httptest.NewRequest("GET", "/api/frame", nil)
	w := httptest.NewRecorder()
	server.handleFrame(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for empty frame, got %d", w.Code)
	}

	server.UpdateFrame(m.Snapshot())

	req = httptest.NewRequest("GET", "/api/frame", nil)
	w = httptest.NewRecorder()
	server.handleFrame(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var result MergerFrame
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Step != 0 {
		t.Errorf("Expected step 0, got %d", result.Step)
	}
	if len(result.Segments) != 4 || len(result.Lanes) != 2 {
		t.Errorf("Expected 4 segments and 2 lanes, got %d/%d",
			len(result.Segments), len(result.Lanes))
	}

	req = httptest.NewRequest("POST", "/api/frame", nil)
	w = httptest.NewRecorder()
	server.handleFrame(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestWebServer_StatsEndpoint(t *testing.T) {
	server, m := newTestWebServer(t)
	defer m.Close()

	req := httptest.NewRequest("GET", "/api/stats", nil)
	w := httptest.NewRecorder()
	server.handleStats(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var stats MergerStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Global.FramesOpened != 0 {
		t.Errorf("Fresh merger reports %d opened frames", stats.Global.FramesOpened)
	}
	if len(stats.PerLane) != 2 {
		t.Errorf("Expected 2 lane entries, got %d", len(stats.PerLane))
	}
}

func TestWebServer_ControlEndpoint(t *testing.T) {
	server, m := newTestWebServer(t)
	defer m.Close()

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/control", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		server.handleControl(w, req)
		return w
	}

	if w := post(`{"type":"pause"}`); w.Code != http.StatusAccepted {
		t.Fatalf("pause: expected 202, got %d: %s", w.Code, w.Body.String())
	}
	cmd, ok := server.NextCommand()
	if !ok || cmd.Type != control.CommandPause {
		t.Fatalf("Expected queued pause command, got (%v, %v)", cmd.Type, ok)
	}

	if w := post(`{"type":"reset","configName":"scripted_minimal"}`); w.Code != http.StatusAccepted {
		t.Fatalf("reset: expected 202, got %d: %s", w.Code, w.Body.String())
	}
	cmd, ok = server.NextCommand()
	if !ok || cmd.Type != control.CommandReset {
		t.Fatalf("Expected queued reset command, got (%v, %v)", cmd.Type, ok)
	}
	cfg, ok := cmd.ConfigOverride.(*Config)
	if !ok || cfg.Schedule == nil {
		t.Fatalf("Reset command lacks the preset config: %#v", cmd.ConfigOverride)
	}

	if w := post(`{"type":"reset","configName":"scripted_minimal","totalSteps":300}`); w.Code != http.StatusAccepted {
		t.Fatalf("reset with override: expected 202, got %d", w.Code)
	}
	cmd, _ = server.NextCommand()
	if cfg, ok := cmd.ConfigOverride.(*Config); !ok || cfg.TotalSteps != 300 {
		t.Errorf("totalSteps override not applied: %#v", cmd.ConfigOverride)
	}

	if w := post(`{"type":"reset","configName":"no_such_preset"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Unknown preset: expected 400, got %d", w.Code)
	}
	if w := post(`{"type":"flush"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Unknown command: expected 400, got %d", w.Code)
	}
	if w := post(`not json`); w.Code != http.StatusBadRequest {
		t.Errorf("Malformed body: expected 400, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/control", nil)
	w := httptest.NewRecorder()
	server.handleControl(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestWebServer_ArbiterEndpoint(t *testing.T) {
	server, m := newTestWebServer(t)
	defer m.Close()

	req := httptest.NewRequest("GET", "/api/arbiter", nil)
	w := httptest.NewRecorder()
	server.handleArbiter(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var got arbiterResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode arbiter state: %v", err)
	}
	if got.Quantum != 4 || got.QuantumCap != 8 {
		t.Errorf("Expected quantum 4 cap 8, got %d/%d", got.Quantum, got.QuantumCap)
	}

	req = httptest.NewRequest("PUT", "/api/arbiter", bytes.NewBufferString(`{"quantum":6,"quantumCap":12}`))
	w = httptest.NewRecorder()
	server.handleArbiter(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if cfg := m.Config(); cfg.Quantum != 6 || cfg.QuantumCap != 12 {
		t.Errorf("Retune not applied: quantum %d cap %d", cfg.Quantum, cfg.QuantumCap)
	}

	req = httptest.NewRequest("PUT", "/api/arbiter", bytes.NewBufferString(`{"quantum":0,"quantumCap":4}`))
	w = httptest.NewRecorder()
	server.handleArbiter(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Zero quantum: expected 400, got %d", w.Code)
	}
	req = httptest.NewRequest("PUT", "/api/arbiter", bytes.NewBufferString(`{"quantum":8,"quantumCap":2}`))
	w = httptest.NewRecorder()
	server.handleArbiter(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Cap below quantum: expected 400, got %d", w.Code)
	}
}

func TestWebServer_ConfigsEndpoint(t *testing.T) {
	server, m := newTestWebServer(t)
	defer m.Close()

	req := httptest.NewRequest("GET", "/api/configs", nil)
	w := httptest.NewRecorder()
	server.handleConfigs(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var configs []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(w.Body).Decode(&configs); err != nil {
		t.Fatalf("Failed to decode configs: %v", err)
	}
	names := make(map[string]bool, len(configs))
	for _, c := range configs {
		names[c.Name] = true
	}
	for _, want := range []string{"merge_demo", "spill_stress", "backpressure", "scripted_minimal"} {
		if !names[want] {
			t.Errorf("Preset %q missing from listing", want)
		}
	}
}

func TestWebServer_SegmentsEndpoint(t *testing.T) {
	server, m := newTestWebServer(t)
	defer m.Close()

	req := httptest.NewRequest("GET", "/api/segments", nil)
	w := httptest.NewRecorder()
	server.handleSegments(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before any frame, got %d", w.Code)
	}

	server.UpdateFrame(m.Snapshot())
	req = httptest.NewRequest("GET", "/api/segments", nil)
	w = httptest.NewRecorder()
	server.handleSegments(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var layout segmentMap
	if err := json.NewDecoder(w.Body).Decode(&layout); err != nil {
		t.Fatalf("Failed to decode segment map: %v", err)
	}
	if len(layout.Segments) != 4 {
		t.Errorf("Expected 4 segments, got %d", len(layout.Segments))
	}
	if layout.SegmentWords != 32 {
		t.Errorf("Expected 32 words per segment, got %d", layout.SegmentWords)
	}
}

func TestWebServer_RecentFramesEndpoint(t *testing.T) {
	server, m := newTestWebServer(t)
	defer m.Close()
	m.Run()

	req := httptest.NewRequest("GET", "/api/frames", nil)
	w := httptest.NewRecorder()
	server.handleRecentFrames(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var infos []struct {
		Serial uint64 `json:"serial"`
		Words  int    `json:"words"`
	}
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode frame list: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 presented frames, got %d", len(infos))
	}

	req = httptest.NewRequest("GET", "/api/frames?serial=1", nil)
	w = httptest.NewRecorder()
	server.handleRecentFrames(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Detail: expected 200, got %d", w.Code)
	}
	var detail frameDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("Failed to decode frame detail: %v", err)
	}
	if detail.Info.Serial != 1 || len(detail.Words) != 10 {
		t.Errorf("Expected serial 1 with 10 words, got %d/%d",
			detail.Info.Serial, len(detail.Words))
	}

	req = httptest.NewRequest("GET", "/api/frames?serial=99", nil)
	w = httptest.NewRecorder()
	server.handleRecentFrames(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Unretained serial: expected 404, got %d", w.Code)
	}
}

func TestWebServer_TraceEndpoint(t *testing.T) {
	server, m := newTestWebServer(t)
	defer m.Close()
	m.Run()

	req := httptest.NewRequest("GET", "/api/trace", nil)
	w := httptest.NewRecorder()
	server.handleTrace(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var response struct {
		Events  []json.RawMessage `json:"events"`
		LastSeq uint64            `json:"lastSeq"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode trace: %v", err)
	}
	if len(response.Events) == 0 || response.LastSeq == 0 {
		t.Errorf("Expected recorded events after a run, got %d (lastSeq %d)",
			len(response.Events), response.LastSeq)
	}

	req = httptest.NewRequest("GET", "/api/trace?since=x", nil)
	w = httptest.NewRecorder()
	server.handleTrace(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Bad since: expected 400, got %d", w.Code)
	}
}
