package debug

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	rtsup "ghrelay/internal/runtime/supervisor"
	logx "ghrelay/pkg/logx"
)

func TestHandlerEndpoints(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "ghrelay_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	triggered := 0
	s := New(Config{Enabled: true, Metrics: true, Token: "secret"}, Hooks{
		Gatherer: reg,
		Status:   func() any { return map[string]string{"state": "idle"} },
		Trigger:  func() bool { triggered++; return triggered == 1 },
	}, logx.Nop())
	h := s.Handler()

	do := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz=%d", rec.Code)
	}
	if rec := do(http.MethodGet, "/metrics", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("metrics without token=%d", rec.Code)
	}
	rec := do(http.MethodGet, "/metrics", "secret")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ghrelay_test_total 1") {
		t.Fatalf("metrics=%d %q", rec.Code, rec.Body.String())
	}
	if rec := do(http.MethodGet, "/status?token=secret", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"idle"`) {
		t.Fatalf("status=%d %q", rec.Code, rec.Body.String())
	}
	if rec := do(http.MethodGet, "/trigger", "secret"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("trigger GET=%d", rec.Code)
	}
	if rec := do(http.MethodPost, "/trigger", "secret"); rec.Code != http.StatusAccepted {
		t.Fatalf("trigger=%d", rec.Code)
	}
	if rec := do(http.MethodPost, "/trigger", "secret"); rec.Code != http.StatusConflict {
		t.Fatalf("second trigger=%d", rec.Code)
	}
}

func TestServerRefusesInsecureBind(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, Hooks{}, logx.Nop())
	if err := s.serveOnce(context.Background()); err == nil {
		t.Fatalf("expected refusal")
	}
}

func TestServerStartStop(t *testing.T) {
	t.Parallel()

	sup := rtsup.NewSupervisor(context.Background())
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, Hooks{}, logx.Nop())
	s.Start(sup)

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Addr() == "" {
		t.Fatalf("server did not start")
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sup.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:1":        true,
		":6060":          false,
		"0.0.0.0:1":      false,
		"bad":            false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q)=%v", addr, got)
		}
	}
}
