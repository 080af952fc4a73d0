package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	kit "hubtrack/internal/transport"
	logx "hubtrack/pkg/logx"
)

func TestSplitTelegramTextShortPassthrough(t *testing.T) {
	in := "Updates for ABC123:\n  1: Denver, CO at 2024-01-01T10:00:00\n      Out for delivery\n"
	got := splitTelegramText(in, 0, "")
	if len(got) != 1 || got[0] != in {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	line := strings.Repeat("x", 30) + "\n"
	in := strings.Repeat(line, 10) // 310 runes
	chunks := splitTelegramText(in, 100, "")
	if len(chunks) < 4 {
		t.Fatalf("expected at least 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Fatalf("chunk %d has %d runes, limit 100", i, n)
		}
		if strings.HasSuffix(c, "\n") || strings.HasPrefix(c, "\n") {
			t.Fatalf("chunk %d not trimmed: %q", i, c)
		}
		for _, l := range strings.Split(c, "\n") {
			if len(l) != 30 {
				t.Fatalf("chunk %d split inside a line: %q", i, l)
			}
		}
	}
}

func TestSplitTelegramTextHardCutWithoutNewlines(t *testing.T) {
	in := strings.Repeat("é", 250)
	chunks := splitTelegramText(in, 100, "")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if strings.Join(chunks, "") != in {
		t.Fatal("chunks do not reassemble to the input")
	}
}

func TestSplitTelegramTextAvoidsHTMLTags(t *testing.T) {
	in := strings.Repeat("a", 98) + "<b>bold</b>" + strings.Repeat("c", 20)
	chunks := splitTelegramText(in, 100, "HTML")
	if !strings.HasPrefix(chunks[1], "<b>") {
		t.Fatalf("expected second chunk to start at tag, got %q", chunks[1])
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	if _, err := New(Config{Token: " "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

// hungBotAPI answers nothing until the test ends.
func hungBotAPI(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

func TestSendTextBoundedByHTTPTimeout(t *testing.T) {
	srv := hungBotAPI(t)
	a, err := New(Config{Token: "123:abc", APIURL: srv.URL, HTTPTimeout: 200 * time.Millisecond}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	_, err = a.SendText(context.Background(), kit.ChatTarget{ChatID: 42}, "hello", nil)
	took := time.Since(start)
	if err == nil {
		t.Fatal("expected error from hung Bot API")
	}
	if took > 2*time.Second {
		t.Fatalf("send took %v, want about 200ms", took)
	}
}

func TestSendTextReturnsOnContextDeadline(t *testing.T) {
	srv := hungBotAPI(t)
	a, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = a.SendText(ctx, kit.ChatTarget{ChatID: 42}, "hello", nil)
	took := time.Since(start)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if took > 2*time.Second {
		t.Fatalf("send took %v after a 200ms deadline", took)
	}
}
