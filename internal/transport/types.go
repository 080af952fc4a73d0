package transport

import (
	"context"
	"strconv"
	"strings"
)

// ChatTarget identifies a destination chat.
//
// ChatID is set when the destination is numeric; otherwise Username holds a
// public handle such as "@channel".
type ChatTarget struct {
	ChatID   int64
	Username string
	ThreadID int // telegram forum topic thread id (0 if none)
}

// ParseChatTarget accepts a numeric chat id or a public handle.
func ParseChatTarget(raw string, threadID int) (ChatTarget, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ChatTarget{}, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ChatTarget{ChatID: id, ThreadID: threadID}, true
	}
	return ChatTarget{Username: s, ThreadID: threadID}, true
}

// Recipient renders the target the way the Bot API expects chat_id.
func (t ChatTarget) Recipient() string {
	if t.Username != "" {
		return t.Username
	}
	return strconv.FormatInt(t.ChatID, 10)
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 && t.Username == "" }

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender is the outbound half of a messaging adapter.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
