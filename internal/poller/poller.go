// Package poller runs the fetch, diff and dispatch loop for one tracking number.
package poller

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"hubtrack/internal/eventbus"
	"hubtrack/internal/tracking"
	logx "hubtrack/pkg/logx"
)

// DefaultInterval is the pause between polls when Config.Interval is unset.
const DefaultInterval = time.Second

// Fetcher returns the current snapshot for the tracked number.
type Fetcher interface {
	Fetch(ctx context.Context) (*tracking.Snapshot, error)
}

// Sink is the producer side of the delivery channel. Send must not block.
type Sink interface {
	Send(b tracking.DeltaBatch) error
}

// Config controls the poll loop. TrackingNumber labels batches whose
// snapshot carries no number of its own.
type Config struct {
	TrackingNumber string
	// Interval is the pause after each completed step. <= 0 means DefaultInterval.
	Interval time.Duration
}

// Hooks are optional callbacks for metrics and liveness.
type Hooks struct {
	// OnPoll runs after every step, successful or not.
	OnPoll func(d time.Duration, newEvents int, err error)
	// OnSuccess runs after every successful step.
	OnSuccess func()
}

// Poller fetches snapshots, diffs them against the last one, prints the
// result and hands new events to the Sink.
type Poller struct {
	cfg   Config
	fetch Fetcher
	sink  Sink
	out   io.Writer
	log   logx.Logger
	bus   eventbus.Bus
	hooks Hooks
}

// New builds a poller. out receives the console lines.
func New(cfg Config, fetch Fetcher, sink Sink, out io.Writer, log logx.Logger, bus eventbus.Bus, hooks Hooks) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if out == nil {
		out = io.Discard
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{cfg: cfg, fetch: fetch, sink: sink, out: out, log: log, bus: bus, hooks: hooks}
}

// Run polls until ctx is done or a step fails. Any step error is returned
// unchanged and is meant to be fatal.
func (p *Poller) Run(ctx context.Context) error {
	fmt.Fprintf(p.out, "Checking tracking number: %s\n", p.cfg.TrackingNumber)

	var prev *tracking.Snapshot
	for {
		snap, err := p.Step(ctx, prev)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		prev = snap

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.Interval):
		}
	}
}

// Step performs one fetch against prev and returns the snapshot that replaces it.
func (p *Poller) Step(ctx context.Context, prev *tracking.Snapshot) (snap *tracking.Snapshot, err error) {
	start := time.Now()
	newEvents := 0
	defer func() {
		if p.hooks.OnPoll != nil {
			p.hooks.OnPoll(time.Since(start), newEvents, err)
		}
		if err == nil && p.hooks.OnSuccess != nil {
			p.hooks.OnSuccess()
		}
	}()

	snap, err = p.fetch.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	delta, err := tracking.ComputeDelta(snap, prev)
	if err != nil {
		return nil, err
	}
	// ComputeDelta already checked the shape.
	shipment, _ := snap.Shipment()

	number := strings.TrimSpace(shipment.HawbNumber)
	if number == "" {
		number = p.cfg.TrackingNumber
	}
	data := eventbus.PollData{TrackingNumber: number, Events: len(shipment.Events), New: len(delta)}
	eventbus.Publish(p.bus, eventbus.TypePolled, data)

	if len(delta) == 0 {
		fmt.Fprintln(p.out, "No updates...")
		p.log.Trace("no new events", logx.Int("events", data.Events))
		return snap, nil
	}
	newEvents = len(delta)

	fmt.Fprintln(p.out, tracking.FormatUpdates(number, delta))
	if err := p.sink.Send(tracking.DeltaBatch{TrackingNumber: number, Events: delta}); err != nil {
		return nil, fmt.Errorf("enqueue update: %w", err)
	}
	fmt.Fprintln(p.out)

	p.log.Info("new tracking events", logx.String("tracking_number", number), logx.Int("new", len(delta)))
	eventbus.Publish(p.bus, eventbus.TypeDelta, data)
	return snap, nil
}
