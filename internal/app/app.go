package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"hubtrack/internal/config"
	"hubtrack/internal/delivery"
	"hubtrack/internal/eventbus"
	"hubtrack/internal/metrics"
	"hubtrack/internal/notifier"
	"hubtrack/internal/observability/ops"
	"hubtrack/internal/poller"
	rtsup "hubtrack/internal/runtime/supervisor"
	"hubtrack/internal/runtime/sdnotify"
	"hubtrack/internal/tracking"
	kit "hubtrack/internal/transport"
	telegram "hubtrack/internal/transport/telegram/adapter"
	logx "hubtrack/pkg/logx"
)

// Options carries what the CLI knows before config is loaded. Env, Sender
// and HTTPClient are optional and default to the real implementations.
type Options struct {
	ConfigPath     string
	TrackingNumber string
	Stdout         io.Writer

	Env        *config.Env
	Sender     kit.Sender
	HTTPClient *http.Client
}

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	channel *delivery.Channel
	poller  *poller.Poller
	worker  *notifier.Worker
	ops     *ops.Server
	sd      *sdnotify.Notifier
}

// New validates the environment and config and builds every component.
// Nothing runs until Start.
func New(ctx context.Context, opts Options) (*App, error) {
	env := opts.Env
	if env == nil {
		e, err := config.LoadEnv(ctx)
		if err != nil {
			return nil, err
		}
		env = &e
	}

	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfgm.SetOverlay(env.Apply)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(cfg.Logging.Logx())

	interval, err := cfg.Tracking.Interval()
	if err != nil {
		return nil, err
	}
	client, err := tracking.NewClient(cfg.Tracking.Endpoint, opts.TrackingNumber, opts.HTTPClient)
	if err != nil {
		return nil, err
	}

	to, ok := kit.ParseChatTarget(env.BotUser, cfg.Telegram.ThreadID)
	if !ok {
		return nil, fmt.Errorf("%w: TELEGRAM_BOT_USER is blank", config.ErrMissingEnv)
	}
	sender := opts.Sender
	if sender == nil {
		ad, err := telegram.New(telegramConfig(env, cfg.Telegram), log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		sender = ad
	}

	opsCfg, err := mapOpsConfig(cfg.Ops)
	if err != nil {
		return nil, err
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = logx.Stdout()
	}

	bus := eventbus.New()
	ch := delivery.NewChannel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, ch.Len)
	onSent, onFailed := m.WorkerHooks()

	sd := sdnotify.New(log.With(logx.String("comp", "sdnotify")))

	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		channel: ch,
		sd:      sd,
	}

	a.worker = notifier.New(notifier.Config{
		RatePerSec:     cfg.Telegram.RatePerSec,
		ParseMode:      cfg.Telegram.ParseMode,
		DisablePreview: cfg.Telegram.DisablePreview,
		SendTimeout:    notifier.DefaultSendTimeout,
	}, ch, sender, to, log.With(logx.String("comp", "notifier")), bus, notifier.Hooks{OnSent: onSent, OnFailed: onFailed})

	a.poller = poller.New(poller.Config{
		TrackingNumber: opts.TrackingNumber,
		Interval:       interval,
	}, client, ch, stdout, log.With(logx.String("comp", "poller")), bus, poller.Hooks{
		OnPoll:    m.ObservePoll,
		OnSuccess: sd.Watchdog,
	})

	a.ops = ops.New(opsCfg, log.With(logx.String("comp", "ops")), reg, a.health)

	a.log.Debug("app configured",
		logx.String("tracking_url", client.URL()),
		logx.Duration("interval", interval),
		logx.String("config", cfgm.Path()),
	)
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) health() (bool, any) {
	if a.sup == nil {
		return false, "not started"
	}
	snap := a.sup.Snapshot()
	return snap.FirstError == "", snap
}

// Start launches the poll loop and the notification worker. The first
// error from either cancels the app.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.ops.Start(); err != nil {
		// ops is optional; never hard-kill the app for it.
		a.log.Error("ops server failed to start", logx.Err(err))
	}

	a.sup.Go("notifier.worker", a.worker.Run)
	a.sup.Go("poller", a.poller.Run)

	if a.log.Enabled(logx.LevelDebug) {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, last, newCfg)
				last = newCfg
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sd.Ready()
	a.log.Info("app started")
	return nil
}

// applyConfig hot-applies logging and ops. Other sections take effect on restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(newCfg.Logging.Logx())

	if opsCfg, err := mapOpsConfig(newCfg.Ops); err != nil {
		a.log.Warn("invalid ops config; keeping previous", logx.Err(err))
	} else if err := a.ops.Reconfigure(ctx, opsCfg); err != nil {
		a.log.Error("ops server reconfigure failed", logx.Err(err))
	}

	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(restart, ",")))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	eventbus.Publish(a.bus, eventbus.TypeConfigReloaded, sections)
}

// Stop cancels every goroutine and waits, bounded by ctx, for them to exit.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()
	a.sup.Cancel()

	a.step(ctx, "ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})

	if n := a.channel.Len(); n > 0 {
		a.log.Warn("undelivered updates dropped", logx.Int("batches", n))
	}
	c := a.sup.Counters()
	a.log.Info("stopped", logx.Uint64("goroutines_started", c.Started), logx.Int("goroutines_active", int(c.Active)))
	return a.logs.Close()
}

// step runs one shutdown step with an upper bound so one component can't
// stall the whole stop. It never extends the caller's deadline.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < max {
		max = time.Until(dl)
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	if err := fn(stepCtx); err != nil {
		a.log.Warn("stop step error", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
}

// telegramConfig bounds each Bot API call by the notifier's send timeout so a
// hung request is torn down by the HTTP client instead of outliving the send.
func telegramConfig(env *config.Env, tc config.TelegramConfig) telegram.Config {
	return telegram.Config{
		Token:       env.BotToken,
		APIURL:      tc.APIURL,
		HTTPTimeout: notifier.DefaultSendTimeout,
	}
}

func mapOpsConfig(c config.OpsConfig) (ops.Config, error) {
	readTimeout, err := config.ParseDurationField("ops.read_timeout", c.ReadTimeout)
	if err != nil {
		return ops.Config{}, err
	}
	idleTimeout, err := config.ParseDurationField("ops.idle_timeout", c.IdleTimeout)
	if err != nil {
		return ops.Config{}, err
	}
	return ops.Config{
		Enabled:       c.Enabled,
		Addr:          strings.TrimSpace(c.Addr),
		Token:         strings.TrimSpace(c.Token),
		AllowInsecure: c.AllowInsecure,
		ReadTimeout:   readTimeout,
		IdleTimeout:   idleTimeout,
	}, nil
}
