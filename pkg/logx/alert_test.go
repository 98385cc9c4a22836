package logx

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	kit "ghrelay/internal/transport"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	to   []kit.ChatTarget
}

func (r *recordingSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	r.to = append(r.to, to)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (r *recordingSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func TestFormatAlert(t *testing.T) {
	t.Parallel()

	line := `{"level":"error","comp":"relay","token":"ghp_x","github_token":true,"status":403,"caller":"cycle.go:42","time":"2024-01-01T00:00:00Z","message":"cycle failed"}`
	got := formatAlert(zerolog.ErrorLevel, []byte(line))

	want := "[ERROR] relay: cycle failed\n  status: 403\n  at: cycle.go:42"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestFormatAlertNotJSON(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", maxAlertRunes+10)
	got := formatAlert(zerolog.ErrorLevel, []byte("  "+long+"\n"))
	if n := len([]rune(got)); n != maxAlertRunes {
		t.Fatalf("runes=%d, want %d", n, maxAlertRunes)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("missing ellipsis")
	}
}

func TestServiceForwardsWarnToTelegram(t *testing.T) {
	t.Parallel()

	rec := &recordingSender{}
	svc, log := New(Config{
		Level: "debug",
		Telegram: TelegramConfig{
			Enabled:    true,
			ChatID:     "-100",
			ThreadID:   9,
			RatePerSec: 100,
		},
	}, rec)

	log = log.With(String("comp", "deliver"))
	log.Info("block sent")
	log.Warn("send failed", String("destination", "group"))
	log.Error("cycle failed", Int("status", 502))

	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got := rec.messages()
	if len(got) != 2 {
		t.Fatalf("sent %d alerts, want 2: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "[WARN] deliver: send failed\n  destination: group") {
		t.Fatalf("first alert %q", got[0])
	}
	if !strings.HasPrefix(got[1], "[ERROR] deliver: cycle failed\n  status: 502") {
		t.Fatalf("second alert %q", got[1])
	}
	if rec.to[0] != (kit.ChatTarget{ChatID: "-100", ThreadID: 9}) {
		t.Fatalf("target %+v", rec.to[0])
	}
}

func TestServiceAlertsRateLimited(t *testing.T) {
	t.Parallel()

	rec := &recordingSender{}
	svc, log := New(Config{Telegram: TelegramConfig{Enabled: true, ChatID: "1", RatePerSec: 1}}, rec)
	for i := 0; i < 5; i++ {
		log.Warn("flood")
	}
	_ = svc.Close()

	if n := len(rec.messages()); n != 1 {
		t.Fatalf("sent %d, want 1", n)
	}
	if d := svc.AlertsDropped(); d != 4 {
		t.Fatalf("dropped %d, want 4", d)
	}
}

func TestZeroAndNopLoggers(t *testing.T) {
	t.Parallel()

	var zero Logger
	if !zero.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	zero.Info("discarded")
	if Nop().IsZero() {
		t.Fatalf("Nop is a configured logger")
	}
	if zero.With(String("k", "v")).IsZero() {
		t.Fatalf("derived logger is not zero")
	}
}
