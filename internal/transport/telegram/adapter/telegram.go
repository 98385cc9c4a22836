package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	kit "ghrelay/internal/transport"
	logx "ghrelay/pkg/logx"
)

// Config for the send-only Telegram adapter.
type Config struct {
	Token string
	// APIURL overrides https://api.telegram.org (tests).
	APIURL string
	// RatePerSec paces all outgoing messages; <=0 disables pacing.
	RatePerSec float64
	Timeout    time.Duration
}

// Adapter sends messages through the Bot API. It never polls for updates.
type Adapter struct {
	cfg     Config
	log     logx.Logger
	bot     *tele.Bot
	limiter *rate.Limiter
}

// chatID lets telebot address chats by their raw id or @username.
type chatID string

func (c chatID) Recipient() string { return string(c) }

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	if cfg.RatePerSec > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return a, nil
}

// SendText sends text as a single message. Splitting is the caller's job;
// an empty chat id is a no-op.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if to.IsZero() {
		return kit.MessageRef{}, nil
	}
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return kit.MessageRef{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}

	sendOpt := &tele.SendOptions{
		ParseMode:             parseMode(opt.ParseMode),
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
	msg, err := a.bot.Send(chatID(strings.TrimSpace(to.ChatID)), text, sendOpt)
	if err != nil {
		var flood tele.FloodError
		if errors.As(err, &flood) {
			a.log.Warn("telegram flood control",
				logx.String("chat", to.String()),
				logx.Int("retry_after_s", flood.RetryAfter),
			)
		}
		return kit.MessageRef{}, fmt.Errorf("send to %s: %w", to, err)
	}
	ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID}
	if msg != nil {
		ref.MessageID = msg.ID
	}
	return ref, nil
}

func parseMode(m string) tele.ParseMode {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "":
		return tele.ModeDefault
	case "markdown":
		return tele.ModeMarkdown
	case "markdownv2":
		return tele.ModeMarkdownV2
	case "html":
		return tele.ModeHTML
	default:
		return tele.ParseMode(m)
	}
}
