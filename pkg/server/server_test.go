package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soundprediction/naturegraph"
	"github.com/soundprediction/naturegraph/pkg/config"
	"github.com/soundprediction/naturegraph/pkg/driver"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "localhost",
			Port: 8080,
			Mode: "test",
		},
	}
}

func newTestGraph(t *testing.T) *naturegraph.Client {
	t.Helper()
	store, err := driver.NewBadgerDriver(driver.BadgerConfig{InMemory: true}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	cfg := naturegraph.DefaultConfig()
	cfg.CheckpointDir = t.TempDir()
	client, err := naturegraph.NewClient(store, nil, cfg, nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func serve(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestSetup(t *testing.T) {
	server := New(testConfig(), nil, nil)
	server.Setup()

	if server.router == nil {
		t.Error("expected router to be initialized")
	}
	if server.server == nil {
		t.Fatal("expected http.Server to be initialized")
	}
	if server.server.Addr != "localhost:8080" {
		t.Errorf("expected addr localhost:8080, got %s", server.server.Addr)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := New(testConfig(), nil, nil)
	server.Setup()

	w := serve(server, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	server := New(testConfig(), nil, nil)
	server.Setup()

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("expected request id req-42, got %q", got)
	}
}

func TestReadyWithoutGraph(t *testing.T) {
	server := New(testConfig(), nil, nil)
	server.Setup()

	w := serve(server, http.MethodGet, "/ready", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := New(testConfig(), nil, nil)
	server.Setup()

	w := serve(server, http.MethodOptions, "/api/v1/search", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS origin header")
	}
}

func TestIngestThenQuery(t *testing.T) {
	server := New(testConfig(), newTestGraph(t), nil)
	server.Setup()

	body := []byte(`{
		"nodes": [
			{"name": "Acme Corp", "type": "Organization"},
			{"name": "Vietnam Plant", "type": "Location", "country": "Vietnam"}
		],
		"relationships": [
			{"source": "Acme Corp", "relation": "OPERATES_IN", "target": "Vietnam Plant"}
		],
		"evidence": {"text": "Acme Corp operates a plant in Vietnam.", "source_doc": "r.pdf", "page_num": 1, "chunk_index": 0}
	}`)
	w := serve(server, http.MethodPost, "/api/v1/ingest", body)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = serve(server, http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected status 200, got %d", w.Code)
	}
	var stats driver.GraphStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.TotalNodes != 3 {
		t.Errorf("expected 3 nodes, got %d", stats.TotalNodes)
	}

	w = serve(server, http.MethodGet, "/ready", nil)
	if w.Code != http.StatusOK {
		t.Errorf("ready: expected status 200, got %d", w.Code)
	}

	w = serve(server, http.MethodGet, "/api/v1/nodes/search?q=vietnam&type=Location", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("node search: expected status 200, got %d", w.Code)
	}
	var nodes struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &nodes); err != nil {
		t.Fatalf("failed to decode nodes: %v", err)
	}
	if nodes.Count != 1 {
		t.Errorf("expected 1 node, got %d", nodes.Count)
	}

	w = serve(server, http.MethodGet, "/api/v1/nodes/org_acme_corp/neighbors?depth=1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("neighbors: expected status 200, got %d", w.Code)
	}

	w = serve(server, http.MethodPost, "/api/v1/answer", []byte(`{"question": "Where does Acme operate?"}`))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("answer without model: expected status 501, got %d", w.Code)
	}
}
