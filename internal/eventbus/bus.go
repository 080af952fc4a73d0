package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the poll loop and the notification worker.
const (
	TypePolled         = "tracking.polled"
	TypeDelta          = "tracking.delta"
	TypeNotifySent     = "notifier.sent"
	TypeNotifyFailed   = "notifier.failed"
	TypeConfigReloaded = "config.reloaded"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Publish never blocks. Subscribers get buffered channels and slow
// subscribers drop events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// PollData accompanies TypePolled and TypeDelta.
type PollData struct {
	TrackingNumber string `json:"tracking_number"`
	Events         int    `json:"events"`
	New            int    `json:"new"`
}

// NotifyData accompanies TypeNotifySent and TypeNotifyFailed.
type NotifyData struct {
	TrackingNumber string `json:"tracking_number"`
	Events         int    `json:"events"`
	Error          string `json:"error,omitempty"`
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Holding the read lock keeps unsubscribe from closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish is a nil-safe helper for optional buses.
func Publish(b Bus, typ string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: typ, Time: time.Now(), Data: data})
}
