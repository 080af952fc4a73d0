package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	logx "hubtrack/pkg/logx"
)

var (
	// ErrMissingEnv reports a required environment variable that is unset or blank.
	ErrMissingEnv = errors.New("missing required environment variable")
	// ErrInvalid reports a config value that failed validation.
	ErrInvalid = errors.New("invalid config")
)

// Config is the optional file-backed configuration. Telegram credentials are
// never read from the file; see Env.
type Config struct {
	Tracking TrackingConfig `json:"tracking"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Ops      OpsConfig      `json:"ops,omitempty"`
}

// TrackingConfig controls the poll loop.
type TrackingConfig struct {
	// Endpoint overrides the tracking URL (without the query string).
	Endpoint string `json:"endpoint,omitempty"`
	// PollInterval is a Go duration string. Default "1s".
	PollInterval string `json:"poll_interval,omitempty"`
}

type TelegramConfig struct {
	// APIURL points at a self-hosted Bot API server. Empty uses api.telegram.org.
	APIURL         string  `json:"api_url,omitempty"`
	ThreadID       int     `json:"thread_id,omitempty"`
	RatePerSec     float64 `json:"rate_per_sec,omitempty"`
	ParseMode      string  `json:"parse_mode,omitempty"`
	DisablePreview bool    `json:"disable_preview,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// OpsConfig controls the optional health/metrics/pprof HTTP server.
//
// Prefer binding to localhost. A non-loopback addr needs a token or
// allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:9090"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	IdleTimeout   string `json:"idle_timeout,omitempty"`
}

const DefaultPollInterval = time.Second

// Default returns the configuration used when no file is given. Parse
// decodes on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Tracking: TrackingConfig{PollInterval: DefaultPollInterval.String()},
		Telegram: TelegramConfig{RatePerSec: 1},
		Logging:  LoggingConfig{Level: "info", Console: true},
	}
}

// Interval returns the parsed poll interval, DefaultPollInterval when unset.
func (c TrackingConfig) Interval() (time.Duration, error) {
	return ParseDurationOrDefault("tracking.poll_interval", c.PollInterval, DefaultPollInterval)
}

func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

// Validate checks every field. Errors wrap ErrInvalid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error

	if _, err := cfg.Tracking.Interval(); err != nil {
		errs = append(errs, err)
	}
	if ep := strings.TrimSpace(cfg.Tracking.Endpoint); ep != "" {
		if err := checkHTTPURL("tracking.endpoint", ep); err != nil {
			errs = append(errs, err)
		}
	}

	if api := strings.TrimSpace(cfg.Telegram.APIURL); api != "" {
		if err := checkHTTPURL("telegram.api_url", api); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Telegram.RatePerSec < 0 {
		errs = append(errs, errors.New("telegram.rate_per_sec: must be >= 0"))
	}
	if cfg.Telegram.ThreadID < 0 {
		errs = append(errs, errors.New("telegram.thread_id: must be >= 0"))
	}
	switch cfg.Telegram.ParseMode {
	case "", "HTML", "Markdown", "MarkdownV2":
	default:
		errs = append(errs, fmt.Errorf("telegram.parse_mode: unsupported %q", cfg.Telegram.ParseMode))
	}

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" {
		if _, ok := logx.ParseLevel(lvl); !ok {
			errs = append(errs, fmt.Errorf("logging.level: unknown level %q", lvl))
		}
	}

	if _, err := ParseDurationField("ops.read_timeout", cfg.Ops.ReadTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("ops.idle_timeout", cfg.Ops.IdleTimeout); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func checkHTTPURL(path, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: expected an http(s) URL, got %q", path, raw)
	}
	return nil
}
