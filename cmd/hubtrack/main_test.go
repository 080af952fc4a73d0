package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hubtrack.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestRunExitCodes(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_BOT_USER", "42")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	badKey := writeConfig(t, "tracking:\n  endpiont: http://127.0.0.1/\n")
	failing := writeConfig(t, "tracking:\n  endpoint: "+srv.URL+"\n  poll_interval: 10ms\nlogging:\n  level: error\n")

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStderr string
	}{
		{name: "no tracking number", args: []string{"hubtrack"}, wantCode: 2, wantStderr: "Usage: hubtrack [flags] <tracking number>"},
		{name: "extra argument", args: []string{"hubtrack", "HX100", "HX200"}, wantCode: 2, wantStderr: "Usage: hubtrack"},
		{name: "unknown flag", args: []string{"hubtrack", "-nope", "HX100"}, wantCode: 2, wantStderr: "-nope"},
		{name: "invalid config", args: []string{"hubtrack", "-config", badKey, "HX100"}, wantCode: 1, wantStderr: "fatal:"},
		{name: "endpoint failure", args: []string{"hubtrack", "-config", failing, "HX100"}, wantCode: 1, wantStderr: "fatal:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var stderr bytes.Buffer
			code := run(ctx, tt.args, &stderr)
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr %q)", code, tt.wantCode, stderr.String())
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Fatalf("stderr %q does not contain %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}
