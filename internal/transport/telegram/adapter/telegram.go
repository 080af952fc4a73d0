package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "hubtrack/internal/transport"
	logx "hubtrack/pkg/logx"
)

// Config configures the outbound Telegram adapter.
type Config struct {
	Token string
	// APIURL overrides the Bot API base URL (self-hosted bot API, tests).
	APIURL string
	// HTTPTimeout bounds a single Bot API call. 0 keeps telebot's default client.
	HTTPTimeout time.Duration
}

// Adapter sends messages through the Telegram Bot API. It never polls for
// updates; the bot is created offline so startup does not call getMe.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

var _ kit.Sender = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	settings := tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimSpace(cfg.APIURL),
		Offline: true,
		OnError: func(err error, _ tele.Context) {
			log.Warn("telebot error", logx.Err(err))
		},
	}
	if cfg.HTTPTimeout > 0 {
		settings.Client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries and (best-effort) avoids splitting inside HTML tags when ParseMode is HTML.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		// Prefer splitting on a newline near the end of the window.
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		chunk := strings.TrimRight(string(rs[start:end]), "\n")
		out = append(out, chunk)

		start = end
		// Skip leading newlines to avoid empty chunks.
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

// SendText sends text to the target, splitting it when it exceeds the Bot API
// limit. The returned ref points at the first message.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if to.IsZero() {
		return kit.MessageRef{}, errors.New("telegram: empty chat target")
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)

	var first kit.MessageRef
	for i, chunk := range chunks {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return first, err
			}
		}

		sendOpt := &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		msg, err := a.send(ctx, to, chunk, sendOpt)
		if err != nil {
			return first, err
		}
		if i == 0 && msg != nil {
			chatID := to.ChatID
			if msg.Chat != nil {
				chatID = msg.Chat.ID
			}
			first = kit.MessageRef{ChatID: chatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
		a.log.Trace("telegram message sent", logx.Int("chunk", i+1), logx.Int("chunks", len(chunks)))
	}
	return first, nil
}

type sendResult struct {
	msg *tele.Message
	err error
}

// send returns when the Bot API call finishes or ctx is done, whichever is
// first. tele.Bot.Send takes no context, so an abandoned call keeps running
// until the HTTP client timeout ends it.
func (a *Adapter) send(ctx context.Context, to kit.ChatTarget, text string, opt *tele.SendOptions) (*tele.Message, error) {
	if ctx == nil {
		return a.bot.Send(to, text, opt)
	}
	done := make(chan sendResult, 1)
	go func() {
		msg, err := a.bot.Send(to, text, opt)
		done <- sendResult{msg: msg, err: err}
	}()
	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
