// Package sdnotify reports service state to systemd. Every call is a no-op
// when the process is not started by systemd (NOTIFY_SOCKET unset).
package sdnotify

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/time/rate"

	logx "hubtrack/pkg/logx"
)

type Notifier struct {
	log      logx.Logger
	notify   func(state string) (bool, error)
	watchdog *rate.Sometimes // nil when WatchdogSec is unset
}

// New reads WatchdogSec from the environment. Keep-alives are sent at most
// twice per watchdog interval.
func New(log logx.Logger) *Notifier {
	wd, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("systemd watchdog env invalid", logx.Err(err))
		wd = 0
	}
	return newNotifier(log, wd, func(state string) (bool, error) {
		return daemon.SdNotify(false, state)
	})
}

func newNotifier(log logx.Logger, watchdog time.Duration, notify func(string) (bool, error)) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{log: log, notify: notify}
	if watchdog > 0 {
		n.watchdog = &rate.Sometimes{Interval: watchdog / 2}
	}
	return n
}

func (n *Notifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Watchdog pings systemd after a healthy poll. Calls between pings are dropped.
func (n *Notifier) Watchdog() {
	if n == nil || n.watchdog == nil {
		return
	}
	n.watchdog.Do(func() { n.send(daemon.SdNotifyWatchdog) })
}

func (n *Notifier) send(state string) {
	if n == nil {
		return
	}
	sent, err := n.notify(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify", logx.String("state", state))
	}
}
