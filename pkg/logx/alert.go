package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "ghrelay/internal/transport"
)

const (
	maxAlertRunes = 3500
	maxValueRunes = 600
)

// alertSink is a zerolog.LevelWriter that forwards lines to a Telegram chat.
// Lines never block the logger: over the rate limit or with a full queue they
// are counted and dropped.
type alertSink struct {
	sender  kit.Sender
	queue   chan alert
	dropped atomic.Uint64

	mu       sync.Mutex
	target   kit.ChatTarget
	minLevel zerolog.Level
	limiter  *rate.Limiter
	stopc    chan struct{}
	done     chan struct{}
}

type alert struct {
	to   kit.ChatTarget
	text string
}

func newAlertSink(sender kit.Sender) *alertSink {
	return &alertSink{sender: sender, queue: make(chan alert, 64), minLevel: zerolog.WarnLevel}
}

// configure applies cfg and reports whether the sink should be attached.
func (a *alertSink) configure(cfg TelegramConfig) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.target = kit.ChatTarget{ChatID: strings.TrimSpace(cfg.ChatID), ThreadID: cfg.ThreadID}
	a.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	rps := max(1, cfg.RatePerSec)
	a.limiter = rate.NewLimiter(rate.Limit(rps), rps)

	if !cfg.Enabled || a.sender == nil {
		return false
	}
	if a.target.IsZero() {
		fmt.Fprintln(os.Stderr, "logx: telegram alerts enabled but logging.telegram.chat_id is not set")
		return false
	}
	if a.done == nil {
		a.stopc = make(chan struct{})
		a.done = make(chan struct{})
		go a.run(a.stopc, a.done)
	}
	return true
}

func (a *alertSink) run(stopc <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for {
		select {
		case it := <-a.queue:
			a.send(ctx, it)
		case <-stopc:
			for {
				select {
				case it := <-a.queue:
					a.send(ctx, it)
				default:
					return
				}
			}
		}
	}
}

// Plain text: log values carry characters that would break Markdown.
func (a *alertSink) send(ctx context.Context, it alert) {
	_, _ = a.sender.SendText(ctx, it.to, it.text, &kit.SendOptions{DisablePreview: true})
}

// stop flushes queued alerts, waiting at most timeout.
func (a *alertSink) stop(timeout time.Duration) {
	a.mu.Lock()
	stopc, done := a.stopc, a.done
	a.stopc, a.done = nil, nil
	a.mu.Unlock()
	if done == nil {
		return
	}
	close(stopc)
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
	}
}

func (a *alertSink) Write(p []byte) (int, error) { return a.WriteLevel(zerolog.InfoLevel, p) }

func (a *alertSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	a.mu.Lock()
	to, lim, minLevel := a.target, a.limiter, a.minLevel
	a.mu.Unlock()

	if to.IsZero() || lim == nil || level < minLevel {
		return len(p), nil
	}
	if !lim.Allow() {
		a.dropped.Add(1)
		return len(p), nil
	}
	select {
	case a.queue <- alert{to: to, text: formatAlert(level, p)}:
	default:
		a.dropped.Add(1)
	}
	return len(p), nil
}

// formatAlert renders a zerolog JSON line as a short plain-text message:
//
//	[ERROR] relay: cycle failed; watermark unchanged
//	  err: collect: account feed octocat: github 403
//	  status: 403
//	  at: scheduler.go:131
func formatAlert(level zerolog.Level, p []byte) string {
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(p), &m); err != nil {
		return truncateRunes(strings.TrimSpace(string(p)), maxAlertRunes)
	}

	var b strings.Builder
	b.WriteString("[" + strings.ToUpper(level.String()) + "] ")
	if comp, _ := m["comp"].(string); comp != "" {
		b.WriteString(comp + ": ")
	}
	msg, _ := m[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, zerolog.CallerFieldName, "comp":
			continue
		}
		if secretKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n  " + k + ": " + truncateRunes(fmt.Sprint(m[k]), maxValueRunes))
	}
	if at, _ := m[zerolog.CallerFieldName].(string); at != "" {
		b.WriteString("\n  at: " + at)
	}
	return truncateRunes(b.String(), maxAlertRunes)
}

func secretKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range []string{"token", "secret", "password", "authorization"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
