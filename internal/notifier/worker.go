package notifier

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"hubtrack/internal/eventbus"
	"hubtrack/internal/tracking"
	kit "hubtrack/internal/transport"
	logx "hubtrack/pkg/logx"
)

// DefaultSendTimeout bounds one SendText call when Config.SendTimeout is unset.
const DefaultSendTimeout = 10 * time.Second

// Config controls the notification worker.
type Config struct {
	// RatePerSec caps sends per second. <= 0 means 1.
	RatePerSec     float64
	ParseMode      string
	DisablePreview bool
	// SendTimeout bounds one SendText call. <= 0 means DefaultSendTimeout.
	SendTimeout time.Duration
}

// Source is the consumer side of the delivery channel.
type Source interface {
	Receive(ctx context.Context) (tracking.DeltaBatch, error)
	Close()
}

// Hooks are optional metric callbacks.
type Hooks struct {
	OnSent   func()
	OnFailed func(error)
}

// Worker sends each delta batch from the Source to one chat. A failed send
// drops that batch and the loop continues.
type Worker struct {
	cfg     Config
	src     Source
	sender  kit.Sender
	to      kit.ChatTarget
	log     logx.Logger
	bus     eventbus.Bus
	hooks   Hooks
	limiter *rate.Limiter
}

// New builds a worker. The destination is fixed for the worker's lifetime.
func New(cfg Config, src Source, sender kit.Sender, to kit.ChatTarget, log logx.Logger, bus eventbus.Bus, hooks Hooks) *Worker {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Worker{
		cfg:     cfg,
		src:     src,
		sender:  sender,
		to:      to,
		log:     log,
		bus:     bus,
		hooks:   hooks,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
	}
}

// Run drains the source until ctx is cancelled or the source fails. Send
// failures never stop the loop. The source is closed on return.
func (w *Worker) Run(ctx context.Context) error {
	defer w.src.Close()

	for {
		b, err := w.src.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("delivery channel receive failed; notifier stopping", logx.Err(err))
			return nil
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		w.deliver(ctx, b)
	}
}

func (w *Worker) deliver(ctx context.Context, b tracking.DeltaBatch) {
	text := tracking.FormatUpdates(b.TrackingNumber, b.Events)
	data := eventbus.NotifyData{TrackingNumber: b.TrackingNumber, Events: len(b.Events)}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	ref, err := w.sender.SendText(callCtx, w.to, text, &kit.SendOptions{
		ParseMode:      w.cfg.ParseMode,
		DisablePreview: w.cfg.DisablePreview,
	})
	cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		w.log.Warn("notification send failed; batch dropped",
			logx.String("tracking_number", b.TrackingNumber),
			logx.Int("events", len(b.Events)),
			logx.Err(err),
		)
		if w.hooks.OnFailed != nil {
			w.hooks.OnFailed(err)
		}
		data.Error = err.Error()
		eventbus.Publish(w.bus, eventbus.TypeNotifyFailed, data)
		return
	}

	w.log.Debug("notification sent",
		logx.String("tracking_number", b.TrackingNumber),
		logx.Int("events", len(b.Events)),
		logx.Int("message_id", ref.MessageID),
	)
	if w.hooks.OnSent != nil {
		w.hooks.OnSent()
	}
	eventbus.Publish(w.bus, eventbus.TypeNotifySent, data)
}
