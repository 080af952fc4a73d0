package config

import (
	"strings"

	logx "hubtrack/pkg/logx"
)

// Sections a running process can apply without a restart.
var hotSections = map[string]bool{"logging": true, "ops": true}

// SummarizeConfigChange returns the changed section names and safe
// structured fields for logging. Tokens are reported only as "set or not".
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Tracking != newCfg.Tracking {
		changed = append(changed, "tracking")
		attrs = append(attrs,
			logx.String("tracking.endpoint", strings.TrimSpace(newCfg.Tracking.Endpoint)),
			logx.String("tracking.poll_interval", strings.TrimSpace(newCfg.Tracking.PollInterval)),
		)
	}

	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.api_url_set", strings.TrimSpace(newCfg.Telegram.APIURL) != ""),
			logx.Int("telegram.thread_id", newCfg.Telegram.ThreadID),
			logx.Any("telegram.rate_per_sec", newCfg.Telegram.RatePerSec),
			logx.String("telegram.parse_mode", newCfg.Telegram.ParseMode),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Compare the token by presence only so the value never reaches a log line.
	o, n := oldCfg.Ops, newCfg.Ops
	tokenChanged := o.Token != n.Token
	o.Token, n.Token = "", ""
	if o != n || tokenChanged {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", n.Enabled),
			logx.String("ops.addr", strings.TrimSpace(n.Addr)),
			logx.Bool("ops.token_set", strings.TrimSpace(newCfg.Ops.Token) != ""),
			logx.Bool("ops.token_changed", tokenChanged),
			logx.Bool("ops.allow_insecure", n.AllowInsecure),
		)
	}

	return changed, attrs
}

// RestartRequired lists the changed sections that are only read at startup.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !hotSections[s] {
			out = append(out, s)
		}
	}
	return out
}
