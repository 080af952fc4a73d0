package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hubtrack/internal/config"
	"hubtrack/internal/notifier"
	"hubtrack/internal/tracking"
	kit "hubtrack/internal/transport"
)

type safeBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type captureSender struct {
	mu    sync.Mutex
	texts []string
	to    kit.ChatTarget
}

func (c *captureSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	c.to = to
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(c.texts)}, nil
}

func (c *captureSender) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

const trackingBody = `{"AllCount":1,"NoRecordCount":0,"DeliveredCount":0,"InTransitCount":1,"UnpickupCount":0,
"ListHawbDetails":[{"Id":7,"HawbNumber":"HX100","HawbStatus":2,"SenderCountry":"CN","ReceiverCountry":"US",
"ListTrackingDetails":[
 {"Desc":"Shipment picked up","LocationName":"Shenzhen","EventTime":"2024-03-01 08:00"},
 {"Desc":"Arrived at hub","LocationName":"Hong Kong","EventTime":"2024-03-02 09:15"}]}]}`

func writeConfig(t *testing.T, endpoint string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hubtrack.yaml")
	body := fmt.Sprintf("tracking:\n  endpoint: %s\n  poll_interval: 10ms\ntelegram:\n  rate_per_sec: 100\nlogging:\n  level: error\n", endpoint)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestAppPollsNotifiesAndStopsOnFatalError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Query().Get("trackingNumber") != "HX100" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if calls.Add(1) > 3 {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(trackingBody))
	}))
	defer srv.Close()

	sender := &captureSender{}
	out := &safeBuffer{}
	a, err := New(context.Background(), Options{
		ConfigPath:     writeConfig(t, srv.URL),
		TrackingNumber: "HX100",
		Stdout:         out,
		Env:            &config.Env{BotToken: "123:abc", BotUser: "-100200300"},
		Sender:         sender,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-a.Done():
	case <-ctx.Done():
		t.Fatal("app did not stop on upstream failure")
	}
	if err := a.Err(); !errors.Is(err, tracking.ErrTransport) {
		t.Fatalf("Err = %v, want ErrTransport", err)
	}
	if err := a.Stop(context.Background(), StopFatalError); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "Checking tracking number: HX100\n") {
		t.Fatalf("console output = %q", got)
	}
	if strings.Count(got, "Updates for HX100:") != 1 || strings.Count(got, "No updates...") != 2 {
		t.Fatalf("console output = %q", got)
	}

	// The worker may still be draining when the fatal error cancels the app,
	// so at most one message is expected.
	texts := sender.sent()
	if len(texts) > 1 {
		t.Fatalf("sent %d messages, want at most 1", len(texts))
	}
	if len(texts) == 1 {
		want := "Updates for HX100:\n" +
			"  1: Shenzhen at 2024-03-01 08:00\n      Shipment picked up\n" +
			"  2: Hong Kong at 2024-03-02 09:15\n      Arrived at hub\n"
		if texts[0] != want {
			t.Fatalf("message = %q, want %q", texts[0], want)
		}
		if sender.to.ChatID != -100200300 {
			t.Fatalf("target = %+v", sender.to)
		}
	}
}

func TestNewRejectsMissingEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_BOT_USER", "")

	_, err := New(context.Background(), Options{TrackingNumber: "HX100", Sender: &captureSender{}})
	if !errors.Is(err, config.ErrMissingEnv) {
		t.Fatalf("err = %v, want ErrMissingEnv", err)
	}
}

func TestNewRejectsBadEndpointAndNumber(t *testing.T) {
	env := &config.Env{BotToken: "t", BotUser: "@me"}

	if _, err := New(context.Background(), Options{TrackingNumber: " ", Env: env, Sender: &captureSender{}}); !errors.Is(err, tracking.ErrInvalidURL) {
		t.Fatalf("blank number err = %v, want ErrInvalidURL", err)
	}

	p := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(p, []byte(`{"tracking":{"endpoint":"mailto:x@example.com"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(context.Background(), Options{ConfigPath: p, TrackingNumber: "HX100", Env: env, Sender: &captureSender{}}); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("bad endpoint err = %v, want ErrInvalid", err)
	}
}

func TestMapOpsConfig(t *testing.T) {
	got, err := mapOpsConfig(config.OpsConfig{Enabled: true, Addr: " 127.0.0.1:9999 ", ReadTimeout: "2s"})
	if err != nil {
		t.Fatalf("mapOpsConfig: %v", err)
	}
	if got.Addr != "127.0.0.1:9999" || got.ReadTimeout != 2*time.Second || got.IdleTimeout != 0 {
		t.Fatalf("got %+v", got)
	}
	if _, err := mapOpsConfig(config.OpsConfig{IdleTimeout: "x"}); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestTelegramConfigBoundsBotAPICalls(t *testing.T) {
	env := &config.Env{BotToken: "123:abc", BotUser: "42"}
	got := telegramConfig(env, config.TelegramConfig{APIURL: "http://127.0.0.1:8081"})
	if got.HTTPTimeout != notifier.DefaultSendTimeout {
		t.Fatalf("HTTPTimeout = %v, want %v", got.HTTPTimeout, notifier.DefaultSendTimeout)
	}
	if got.Token != "123:abc" || got.APIURL != "http://127.0.0.1:8081" {
		t.Fatalf("unexpected config %+v", got)
	}
}
