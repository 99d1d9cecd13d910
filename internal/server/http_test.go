package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"evcore/internal/memory"
	"evcore/internal/registry"
	"evcore/internal/skill"
	"evcore/internal/trigger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := memory.NewSQLiteStore(t.TempDir()+"/test.db", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	reg := registry.NewRegistry(registry.DuplicateReplace, nil)
	if err := skill.RegisterBuiltins(reg, store); err != nil {
		t.Fatal(err)
	}
	engine := trigger.NewEngine(nil)
	if err := skill.RegisterActions(engine, store, nil); err != nil {
		t.Fatal(err)
	}

	s := New(Config{
		Dispatcher: registry.NewDispatcher(reg, nil, nil),
		Registry:   reg,
		Engine:     engine,
		Store:      store,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return resp, out
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return resp, out
}

func TestExecuteEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/agent/execute", `{"command":"base64 encode hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out["result"] != "aGVsbG8=" {
		t.Errorf("result = %v", out["result"])
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/agent/execute", `{"command":"no such thing"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if out["error"] == "" {
		t.Errorf("body = %v", out)
	}
}

func TestExecuteBadBody(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := postJSON(t, srv.URL+"/agent/execute", `{broken`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUnitsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, out := getJSON(t, srv.URL+"/agent/units?category=memory")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	units, ok := out["units"].([]any)
	if !ok || len(units) == 0 {
		t.Fatalf("units = %v", out["units"])
	}
	for _, u := range units {
		if u.(map[string]any)["category"] != "memory" {
			t.Errorf("category filter leaked: %v", u)
		}
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/agent/analyze", `{"text":"please save this","execute":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	matched, _ := out["matched"].([]any)
	if len(matched) != 1 || matched[0] != "auto save" {
		t.Errorf("matched = %v", out["matched"])
	}
	results, _ := out["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %v", out["results"])
	}
	// The analyze text is injected as the "input" context key, so the
	// auto-save handler has something to persist.
	if results[0].(map[string]any)["error"] != nil {
		t.Errorf("auto save failed: %v", results[0])
	}
}

func TestMemoryEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/agent/memory/store",
		`{"key":"editor","value":"neovim","category":"prefs","importance":3}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store status = %d", resp.StatusCode)
	}

	resp, out := getJSON(t, srv.URL+"/agent/memory/recall?key=editor")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recall status = %d", resp.StatusCode)
	}
	if out["value"] != "neovim" {
		t.Errorf("recall = %v", out)
	}

	resp, _ = getJSON(t, srv.URL+"/agent/memory/recall?key=missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing key status = %d", resp.StatusCode)
	}

	resp, out = getJSON(t, srv.URL+"/agent/memory/search?q=neo&category=prefs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	results, _ := out["results"].([]any)
	if len(results) != 1 {
		t.Errorf("search results = %v", out["results"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, out := getJSON(t, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out["status"] != "ok" {
		t.Errorf("health = %v", out)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}
