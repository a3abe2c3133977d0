package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/dkeye/Cast/internal/adapters/memstore"
	"github.com/dkeye/Cast/internal/adapters/signal"
	"github.com/dkeye/Cast/internal/adapters/wsstore"
	"github.com/dkeye/Cast/internal/app"
	"github.com/dkeye/Cast/internal/config"
	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

type fixture struct {
	store    *memstore.Store
	presence *signal.Presence
	registry *app.Registry
	srv      *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())

	store := memstore.New()
	f := &fixture{
		store:    store,
		presence: signal.NewPresence(store, signal.DefaultPresenceID),
		registry: app.NewRegistry(10),
	}
	cfg := &config.Config{Mode: "test", Secret: "test-secret"}
	r := SetupRouter(ctx, cfg, Deps{
		Store:    wsstore.NewController(store, nil),
		Presence: f.presence,
		Registry: f.registry,
	})
	f.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		f.srv.Close()
		store.Close()
	})
	return f
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s error = %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthAndClientCookie(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "ct" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("client token cookie not set")
	}
}

func TestPresenceEndpoint(t *testing.T) {
	f := newFixture(t)

	var rec domain.PresenceRecord
	if code := getJSON(t, f.srv.URL+"/api/presence", &rec); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if rec.Count != 0 {
		t.Fatalf("Count = %d, want 0", rec.Count)
	}

	if _, err := f.presence.Join(context.Background(), 7, "Living room TV"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if code := getJSON(t, f.srv.URL+"/api/presence", &rec); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if rec.Count != 1 || rec.MemberIDs[0] != 7 || rec.MemberNames[0] != "Living room TV" {
		t.Fatalf("rec = %+v, want one member 7", rec)
	}
}

func TestPresenceStream(t *testing.T) {
	f := newFixture(t)
	if _, err := f.presence.Join(context.Background(), 3, "tv"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/presence/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if event != "" && data != "" {
			break
		}
	}
	if event != "presence" {
		t.Fatalf("event = %q, want presence", event)
	}
	var rec domain.PresenceRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		t.Fatalf("data %q: %v", data, err)
	}
	if rec.Count != 1 || rec.MemberIDs[0] != 3 {
		t.Fatalf("rec = %+v, want member 3", rec)
	}
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t)
	f.registry.Offered(core.SessionEvent{ID: "s1", ViewerID: "phone", Active: true, Timestamp: 100})
	f.registry.Answered(core.SessionEvent{ID: "s1", Active: true, Timestamp: 100})

	var list []app.SessionInfo
	if code := getJSON(t, f.srv.URL+"/api/sessions", &list); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(list) != 1 || list[0].ID != "s1" || !list[0].Answered {
		t.Fatalf("list = %+v, want answered s1", list)
	}

	var info app.SessionInfo
	if code := getJSON(t, f.srv.URL+"/api/sessions/s1", &info); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if info.ViewerID != "phone" {
		t.Fatalf("ViewerID = %q, want phone", info.ViewerID)
	}
	if code := getJSON(t, f.srv.URL+"/api/sessions/nope", nil); code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestStoreOverWebsocket(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws/store"
	c, err := wsstore.Dial(ctx, url, http.Header{"X-Client-Token": []string{"agent-1"}}, wsstore.WithKeepAlive(0))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	id, err := c.Add(ctx, "sessions", map[string]any{"sdp": "v=0"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	doc, err := f.store.Get(ctx, "sessions", id)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if doc.Data["sdp"] != "v=0" {
		t.Fatalf("sdp = %v, want v=0", doc.Data["sdp"])
	}
}
