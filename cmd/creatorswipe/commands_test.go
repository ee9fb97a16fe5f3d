package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/creatorswipe/internal/config"
	"github.com/kalambet/creatorswipe/internal/feed"
	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/swipe"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})
		ts.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			if r.Method == http.MethodPost {
				w.WriteHeader(http.StatusCreated)
			}
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

func (ts *testServer) recorded() []recordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]recordedRequest(nil), ts.requests...)
}

var ctx = context.Background()

func withNoColor(t *testing.T) {
	t.Helper()
	old := noColor
	noColor = true
	t.Cleanup(func() { noColor = old })
}

const listingJSON = `[
 {"id":"1","name":"Alex Chen","project":"EcoTrack","description":"Carbon tracker","tags":["sustainability"]},
 {"id":"2","name":"Sarah Kim","project":"MindfulMe","description":"Meditation app","tags":[]}
]`

func TestProfilesList(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, map[string]string{"GET /api/profiles": listingJSON})

	var out bytes.Buffer
	if err := listProfiles(ctx, ts.client(), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Alex Chen") || !strings.Contains(got, "MindfulMe") {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(got, "tags: sustainability") {
		t.Errorf("output missing tags: %q", got)
	}
	if strings.Index(got, "Alex Chen") > strings.Index(got, "Sarah Kim") {
		t.Error("profiles not in listing order")
	}
}

func TestProfilesList_Empty(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /api/profiles": `[]`})
	var out bytes.Buffer
	if err := listProfiles(ctx, ts.client(), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No profiles") {
		t.Errorf("output = %q", out.String())
	}
}

func TestProfilesCreate(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/profiles": `{"message":"Profile created successfully","id":"abc-123"}`,
	})

	id, err := createProfile(ctx, ts.client(), profile.Draft{
		Name: "Dana", Project: "Loom", Description: "Weaving", Tags: []string{"craft"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "abc-123" {
		t.Errorf("id = %q, want abc-123", id)
	}

	reqs := ts.recorded()
	if len(reqs) != 1 || reqs[0].Method != "POST" || reqs[0].Path != "/api/profiles" {
		t.Fatalf("requests = %+v", reqs)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(reqs[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["name"] != "Dana" || body["project"] != "Loom" {
		t.Errorf("body = %v", body)
	}
}

func TestProfilesCreate_ValidatesBeforeSending(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"profiles", "create", "--name", "", "--project", "P", "--description", "D"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing name")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error = %q, want it to mention 'name'", err.Error())
	}
}

func TestProfilesCreate_DescriptionFile(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	path := filepath.Join(t.TempDir(), "pitch.txt")
	if err := os.WriteFile(path, []byte("   "), 0o644); err != nil {
		t.Fatal(err)
	}
	rootCmd.SetArgs([]string{"profiles", "create", "--name", "N", "--project", "P", "--description", "", "--description-file", path})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for empty description file")
	}
}

func TestProfilesShow(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, map[string]string{
		"GET /api/profiles/1": `{"id":"1","name":"Alex Chen","project":"EcoTrack","description":"Carbon tracker",
			"videoUrl":"https://example.com/v.mp4","tags":["green"],"likes":3,"rejects":1}`,
	})

	var out bytes.Buffer
	if err := showProfile(ctx, ts.client(), "1", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Alex Chen", "EcoTrack", "https://example.com/v.mp4", "green", "Likes:       3", "Rejects:     1"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestProfilesShow_NotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	err := showProfile(ctx, ts.client(), "missing", &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestMatch(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, map[string]string{
		"POST /api/match": `{"new_idea":"garden app","rankings":[
			{"username":"Sarah Kim","idea":"MindfulMe: Meditation","similarity":72},
			{"username":"Alex Chen","idea":"EcoTrack: Carbon","similarity":15.5}]}`,
	})

	var out bytes.Buffer
	if err := matchIdea(ctx, ts.client(), "garden app", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, " 1.  72.0 Sarah Kim") || !strings.Contains(got, " 2.  15.5 Alex Chen") {
		t.Errorf("output = %q", got)
	}

	reqs := ts.recorded()
	if len(reqs) != 1 || !strings.Contains(reqs[0].Body, `"new_idea":"garden app"`) {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestDecisionsList(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, map[string]string{
		"GET /api/decisions": `{"decisions":[
			{"id":"d2","profileId":"2","decision":"reject","createdAt":"2026-01-01T10:00:00Z"},
			{"id":"d1","profileId":"1","decision":"like","createdAt":"2026-01-01T09:00:00Z"}],"limit":5,"offset":0}`,
	})

	var out bytes.Buffer
	if err := listDecisions(ctx, ts.client(), 5, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "reject") || !strings.HasSuffix(lines[0], "2") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if reqs := ts.recorded(); reqs[0].Path != "/api/decisions?limit=5" {
		t.Errorf("path = %q", reqs[0].Path)
	}
}

func TestServerNotReachable(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client()
	ts.server.Close()

	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(409)
		w.Write([]byte(`{"error":{"message":"gesture in progress","type":"gesture_active"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	resp, err := client.get(ctx, "/anything")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 409 response")
	}
	if !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "gesture in progress") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Matcher.APIKey = "sk-secret"

	keys := config.ShowAll(cfg)
	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
		if strings.Contains(k.Value, "sk-secret") {
			t.Errorf("secret leaked in %s", k.Key)
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

func TestRootCommands(t *testing.T) {
	want := []string{"start", "stop", "status", "profiles", "swipe", "match", "decisions", "config"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestServerURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"127.0.0.1", "http://127.0.0.1:5000"},
		{"0.0.0.0", "http://127.0.0.1:5000"},
		{"", "http://127.0.0.1:5000"},
		{"example.local", "http://example.local:5000"},
	}
	for _, tt := range tests {
		if got := serverURL(tt.host, 5000); got != tt.want {
			t.Errorf("serverURL(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(filepath.Join(t.TempDir(), "nested"))
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after remove")
	}
}

func TestCountLabel(t *testing.T) {
	tests := []struct {
		count, limit int
		want         string
	}{
		{5, 100, "5"},
		{0, 100, "0"},
		{100, 100, "100+"},
		{150, 100, "150+"},
	}
	for _, tt := range tests {
		got := countLabel(tt.count, tt.limit)
		if got != tt.want {
			t.Errorf("countLabel(%d, %d) = %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}

// --- swipe ---

func newTestSwiper(t *testing.T, ts *testServer, local []profile.Record) (*swiper, *bytes.Buffer) {
	t.Helper()
	client := ts.client()
	source := feed.NewSource(feed.NewHTTPFetcher(client.baseURL+"/api/profiles", client.httpClient), 0)
	out := &bytes.Buffer{}
	s := &swiper{poster: newDecisionPoster(client), source: source, local: local, out: out}
	s.engine = swipe.New(source.Load(ctx, local), s.poster)
	t.Cleanup(s.poster.Close)
	return s, out
}

func TestSwipe_LikeRejectPostsDecisions(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, map[string]string{
		"GET /api/profiles":   listingJSON,
		"POST /api/decisions": `{"id":"x"}`,
	})
	s, out := newTestSwiper(t, ts, nil)

	if err := s.run(ctx, strings.NewReader("l\nr\nq\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "liked 1") || !strings.Contains(got, "rejected 2") {
		t.Errorf("output = %q", got)
	}

	var posted []map[string]any
	for _, r := range ts.recorded() {
		if r.Method == "POST" && r.Path == "/api/decisions" {
			var body map[string]any
			if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
				t.Fatalf("body parse error: %v", err)
			}
			posted = append(posted, body)
		}
	}
	if len(posted) != 2 {
		t.Fatalf("posted %d decisions, want 2", len(posted))
	}
	if posted[0]["profileId"] != "1" || posted[0]["decision"] != "like" {
		t.Errorf("first decision = %v", posted[0])
	}
	if posted[1]["profileId"] != "2" || posted[1]["decision"] != "reject" {
		t.Errorf("second decision = %v", posted[1])
	}
}

func TestSwipe_Drag(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, map[string]string{
		"GET /api/profiles":   listingJSON,
		"POST /api/decisions": `{"id":"x"}`,
	})
	s, out := newTestSwiper(t, ts, nil)

	if _, err := s.exec(ctx, []string{"d", "10", "100"}); err != nil {
		t.Fatalf("slow drag: %v", err)
	}
	if !strings.Contains(out.String(), "snapped back") {
		t.Errorf("output = %q, want snap back", out.String())
	}
	if c, _ := s.engine.Cursor(); c != 0 {
		t.Errorf("cursor after slow drag = %d, want 0", c)
	}

	if _, err := s.exec(ctx, []string{"d", "-100", "100"}); err != nil {
		t.Fatalf("fast drag: %v", err)
	}
	if !strings.Contains(out.String(), "rejected 1") {
		t.Errorf("output = %q, want reject", out.String())
	}
	if c, _ := s.engine.Cursor(); c != 1 {
		t.Errorf("cursor after fast drag = %d, want 1", c)
	}

	if _, err := s.exec(ctx, []string{"d", "x", "100"}); err == nil {
		t.Error("expected error for invalid dx")
	}
	if _, err := s.exec(ctx, []string{"d", "10"}); err == nil {
		t.Error("expected usage error")
	}
}

func TestSwipe_LocalFirstAndFetchFailure(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, nil)

	path := filepath.Join(t.TempDir(), "local.yaml")
	if err := os.WriteFile(path, []byte("- name: Local\n  project: Draft\n  description: Mine\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	local, err := loadLocalProfiles(path)
	if err != nil {
		t.Fatalf("loadLocalProfiles: %v", err)
	}

	s, out := newTestSwiper(t, ts, local)
	if s.engine.Len() != 1 {
		t.Fatalf("feed length = %d, want 1 (local only after failed fetch)", s.engine.Len())
	}
	s.show()
	if !strings.Contains(out.String(), "[1/1] Local") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSwipe_EmptyFeedAndUnknownCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /api/profiles": `[]`})
	s, out := newTestSwiper(t, ts, nil)

	if _, err := s.exec(ctx, []string{"l"}); err == nil {
		t.Error("expected error liking an empty feed")
	}
	if _, err := s.exec(ctx, []string{"zz"}); err == nil {
		t.Error("expected error for unknown command")
	}
	quit, err := s.exec(ctx, []string{"q"})
	if !quit || err != nil {
		t.Errorf("quit = %v, %v", quit, err)
	}
	s.show()
	if !strings.Contains(out.String(), "No profiles yet") {
		t.Errorf("output = %q", out.String())
	}
}

func TestLoadLocalProfiles_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("- name: NoProject\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadLocalProfiles(path); err == nil {
		t.Error("expected validation error")
	}
	if _, err := loadLocalProfiles(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestStatusOutput(t *testing.T) {
	withNoColor(t)
	var buf bytes.Buffer
	old := statusOut
	statusOut = &buf
	defer func() { statusOut = old }()

	printSuccess("Created profile %s", "p1")
	printWarning("careful")
	printStatus("Server", "running on port %d", 5000)

	want := "✓ Created profile p1\n⚠ careful\n  Server: running on port 5000\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestSwipe_DeliverFailureIsReported(t *testing.T) {
	withNoColor(t)
	var buf bytes.Buffer
	old := statusOut
	statusOut = &buf
	defer func() { statusOut = old }()

	ts := newTestServer(t, map[string]string{"GET /api/profiles": listingJSON})
	s, _ := newTestSwiper(t, ts, nil)
	if _, err := s.exec(ctx, []string{"like"}); err != nil {
		t.Fatalf("like: %v", err)
	}
	s.poster.Close()
	if !strings.Contains(buf.String(), "decision not recorded") {
		t.Errorf("status output = %q", buf.String())
	}
	if c, _ := s.engine.Cursor(); c != 1 {
		t.Errorf("cursor = %d, want 1 despite delivery failure", c)
	}
}

func TestSwipe_SlowServerDoesNotBlockPrompt(t *testing.T) {
	withNoColor(t)
	release := make(chan struct{})
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			<-release
			posts.Add(1)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"x"}`))
			return
		}
		w.Write([]byte(listingJSON))
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, httpClient: srv.Client()}
	source := feed.NewSource(feed.NewHTTPFetcher(srv.URL+"/api/profiles", client.httpClient), 0)
	s := &swiper{poster: newDecisionPoster(client), source: source, out: &bytes.Buffer{}}
	s.engine = swipe.New(source.Load(ctx, nil), s.poster)

	// Both decisions apply locally while the server is stalled.
	start := time.Now()
	_, likeErr := s.exec(ctx, []string{"l"})
	_, rejectErr := s.exec(ctx, []string{"r"})
	elapsed := time.Since(start)
	pending := posts.Load()
	close(release)
	s.poster.Close()

	if likeErr != nil || rejectErr != nil {
		t.Fatalf("exec errors: %v, %v", likeErr, rejectErr)
	}
	if elapsed >= time.Second {
		t.Errorf("decisions took %v with a stalled server", elapsed)
	}
	if pending != 0 {
		t.Errorf("%d decisions posted before the server responded", pending)
	}
	if c, _ := s.engine.Cursor(); c != 0 {
		t.Errorf("cursor = %d, want 0 after like and reject wrap", c)
	}
	if n := posts.Load(); n != 2 {
		t.Errorf("posted %d decisions after Close, want 2", n)
	}
}
