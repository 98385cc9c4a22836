package transport

import (
	"context"
	"strconv"
	"strings"
)

// ParseMarkdown is Telegram's legacy Markdown parse mode.
const ParseMarkdown = "Markdown"

// ChatTarget identifies a delivery destination.
//
// ChatID is kept opaque: numeric ids ("-1001234") and public usernames
// ("@channel") are both accepted by the adapter.
type ChatTarget struct {
	ChatID   string
	ThreadID int // forum topic thread id (0 if none)
}

// IsZero reports whether no chat id is configured ("do not deliver here").
func (t ChatTarget) IsZero() bool { return strings.TrimSpace(t.ChatID) == "" }

func (t ChatTarget) String() string {
	if t.ThreadID != 0 {
		return t.ChatID + "/" + strconv.Itoa(t.ThreadID)
	}
	return t.ChatID
}

type MessageRef struct {
	ChatID    string
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Destination is a named ChatTarget from config ("chat", "group", ...).
type Destination struct {
	Name   string
	Target ChatTarget
}

// Sender delivers one text message to one chat.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
