package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/atomdom/internal/config"
	"github.com/vango-dev/atomdom/pkg/patchstream"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func startServer(t *testing.T, cfg *config.Config, frames [][]byte, interval time.Duration) (*liveServer, *httptest.Server) {
	t.Helper()
	s := newLiveServer(cfg, quiet, frames, interval)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start error: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.hub.Close()
		srv.Close()
		stopCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		if err := s.Stop(stopCtx); err != nil {
			t.Errorf("Stop error: %v", err)
		}
		cancel()
	})
	return s, srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestServeRoutes(t *testing.T) {
	cfg := config.New()
	cfg.Server.Title = "Live"
	_, srv := startServer(t, cfg, nil, time.Hour)

	code, body := get(t, srv.URL+"/")
	if code != http.StatusOK {
		t.Fatalf("GET / = %d", code)
	}
	for _, want := range []string{
		"<title>Live</title>",
		"<h1>Live</h1>",
		"tick 0",
		`<li class="first" style="color:red">red</li>`,
		"/stream",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q:\n%s", want, body)
		}
	}

	if code, body := get(t, srv.URL+"/healthz"); code != http.StatusOK || body != "ok\n" {
		t.Errorf("GET /healthz = %d %q", code, body)
	}

	code, body = get(t, srv.URL+"/tree.json")
	if code != http.StatusOK || !strings.HasPrefix(body, `{"tag":"main"`) {
		t.Errorf("GET /tree.json = %d %s", code, body)
	}

	code, body = get(t, srv.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", code)
	}
	for _, want := range []string{`atomdom_commits_total{status="success"} 1`, "atomdom_patches_total", "go_goroutines",
		`atomdom_http_requests_total{method="GET",route="/tree.json",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServeMetricsDisabled(t *testing.T) {
	cfg := config.New()
	cfg.Metrics.Enabled = false
	_, srv := startServer(t, cfg, nil, time.Hour)

	if code, _ := get(t, srv.URL+"/metrics"); code != http.StatusNotFound {
		t.Errorf("GET /metrics = %d, want 404", code)
	}
}

func TestServeStreamsTicks(t *testing.T) {
	_, srv := startServer(t, config.New(), nil, 20*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + config.DefaultStreamPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello patchstream.Frame
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Op != patchstream.OpHello {
		t.Fatalf("first frame = %+v, want hello", hello)
	}

	sawText, sawReorder := false, false
	for !(sawText && sawReorder) {
		var f patchstream.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read frame: %v (text=%v reorder=%v)", err, sawText, sawReorder)
		}
		if f.Seq <= hello.Seq {
			t.Fatalf("frame seq %d not after hello %d", f.Seq, hello.Seq)
		}
		switch f.Op {
		case patchstream.OpSetProp:
			if s, ok := f.Value.(string); ok && strings.HasPrefix(s, "tick ") {
				sawText = true
			}
		case patchstream.OpReorder:
			sawReorder = true
		}
	}
}

func TestServeCyclesFrames(t *testing.T) {
	frames := [][]byte{
		[]byte(`{"tag":"p","children":[{"text":"one"}]}`),
		[]byte(`{"tag":"p","children":[{"text":"two"}]}`),
	}
	s, srv := startServer(t, config.New(), frames, 10*time.Millisecond)

	deadline := time.Now().Add(5 * time.Second)
	seen := map[string]bool{}
	for len(seen) < 2 && time.Now().Before(deadline) {
		_, body := get(t, srv.URL+"/tree.json")
		var tree struct {
			Children []struct {
				Text string `json:"text"`
			} `json:"children"`
		}
		if err := json.Unmarshal([]byte(body), &tree); err != nil {
			t.Fatalf("tree.json: %v\n%s", err, body)
		}
		if len(tree.Children) == 1 {
			seen[tree.Children[0].Text] = true
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !seen["one"] || !seen["two"] {
		t.Errorf("saw %v, want both frames", seen)
	}

	var renders int
	if err := s.app.Do(context.Background(), func() { renders = s.view.Renders() }); err != nil {
		t.Fatal(err)
	}
	if renders < 2 {
		t.Errorf("Renders = %d, want at least 2", renders)
	}
}

func TestReadFrames(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", treeABC)
	bad := writeFile(t, dir, "bad.json", `{"tag":`)

	frames, err := readFrames([]string{good})
	if err != nil || len(frames) != 1 {
		t.Fatalf("readFrames = %d frames, %v", len(frames), err)
	}
	if _, err := readFrames([]string{good, bad}); diagnosticCode(err) != "E201" {
		t.Errorf("bad frame error = %v, want E201", err)
	}
	if _, err := readFrames([]string{"-"}); diagnosticCode(err) != "E500" {
		t.Errorf("stdin frame error = %v, want E500", err)
	}
}

func TestLoadServeConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadServeConfig(dir, false)
	if err != nil {
		t.Fatalf("implicit missing config: %v", err)
	}
	if cfg.Server.Addr != config.DefaultAddr {
		t.Errorf("Addr = %q, want default", cfg.Server.Addr)
	}

	if _, err := loadServeConfig(dir, true); diagnosticCode(err) != "E100" {
		t.Errorf("explicit missing config error = %v, want E100", err)
	}

	writeFile(t, dir, config.ConfigFileName, `{"server":{"addr":":9999"},"runtime":{"strict":true}}`)
	cfg, err = loadServeConfig(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}

	app := appConfig(cfg, quiet, nil)
	if !app.Strict || app.MaxChainedFlushes != cfg.Runtime.MaxChainedFlushes {
		t.Errorf("appConfig = %+v", app)
	}
	if app.RuntimeObserver != nil || app.CommitObserver != nil {
		t.Error("observers should stay nil without a collector")
	}
}

func TestOriginChecker(t *testing.T) {
	if originChecker(nil) != nil {
		t.Error("no allowed origins should keep the hub default")
	}
	check := originChecker([]string{"http://a.test"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://a.test", true},
		{"http://b.test", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/stream", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestServeWatchReloadsFrame(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tree.json", `{"tag":"p","children":[{"text":"before"}]}`)
	frames, err := readFrames([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	s, srv := startServer(t, config.New(), frames, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done, err := s.Watch(ctx, []string{path})
	if err != nil {
		t.Fatalf("Watch error: %v", err)
	}
	defer func() {
		cancel()
		<-done
	}()

	// Invalid contents are ignored.
	writeFile(t, dir, "tree.json", `{"tag":`)
	writeFile(t, dir, "tree.json", `{"tag":"p","children":[{"text":"after"}]}`)

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body := get(t, srv.URL+"/tree.json")
		if strings.Contains(body, `"after"`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tree not reloaded: %s", body)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReplaceFrameOutOfRange(t *testing.T) {
	frames := [][]byte{[]byte(`{"tag":"p"}`)}
	s, _ := startServer(t, config.New(), frames, time.Hour)

	if err := s.ReplaceFrame(context.Background(), 3, []byte(`{"tag":"div"}`)); err != nil {
		t.Fatal(err)
	}
	var tag string
	if err := s.app.Do(context.Background(), func() { tag = s.view.Current().Tag }); err != nil {
		t.Fatal(err)
	}
	if tag != "p" {
		t.Errorf("Current().Tag = %q, want p", tag)
	}
}
