package tracking

import (
	"errors"
	"reflect"
	"testing"
)

func snapshotOf(events ...Event) *Snapshot {
	return &Snapshot{
		AllCount:  1,
		Shipments: []Shipment{{HawbNumber: "ABC123", Events: events}},
	}
}

var (
	evPicked    = Event{Description: "Picked up", LocationName: "Shenzhen, CN", EventTime: "2024-01-01T08:00:00"}
	evDeparted  = Event{Description: "Departed facility", LocationName: "Shenzhen, CN", EventTime: "2024-01-01T09:00:00"}
	evDelivery  = Event{Description: "Out for delivery", LocationName: "Denver, CO", EventTime: "2024-01-01T10:00:00"}
	evDelivered = Event{Description: "Delivered", LocationName: "Denver, CO", EventTime: "2024-01-01T15:00:00"}
)

func TestComputeDeltaFirstPollReturnsAllInOrder(t *testing.T) {
	cur := snapshotOf(evPicked, evDeparted, evDelivery)
	got, err := ComputeDelta(cur, nil)
	if err != nil {
		t.Fatalf("ComputeDelta: %v", err)
	}
	want := []Event{evPicked, evDeparted, evDelivery}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("delta = %+v, want %+v", got, want)
	}

	// The result must not alias the snapshot's backing array.
	got[0].Description = "mutated"
	if cur.Shipments[0].Events[0].Description != "Picked up" {
		t.Fatal("delta aliases the current snapshot")
	}
}

func TestComputeDeltaAgainstItselfIsEmpty(t *testing.T) {
	snap := snapshotOf(evPicked, evDeparted, evDelivery)
	got, err := ComputeDelta(snap, snap)
	if err != nil {
		t.Fatalf("ComputeDelta: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty delta, got %+v", got)
	}
}

func TestComputeDeltaIsSetDifferenceByValue(t *testing.T) {
	prev := snapshotOf(evDeparted, evPicked)
	// Same events in a different position plus one new event in the middle.
	cur := snapshotOf(evPicked, evDelivered, evDeparted, evDelivery)

	got, err := ComputeDelta(cur, prev)
	if err != nil {
		t.Fatalf("ComputeDelta: %v", err)
	}
	want := []Event{evDelivered, evDelivery}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("delta = %+v, want %+v", got, want)
	}
}

func TestComputeDeltaEqualityIsStructural(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e Event) Event
	}{
		{name: "description", mutate: func(e Event) Event { e.Description += "."; return e }},
		{name: "location", mutate: func(e Event) Event { e.LocationName = "Denver, C0"; return e }},
		{name: "time", mutate: func(e Event) Event { e.EventTime = "2024-01-01T10:00:01"; return e }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			changed := tt.mutate(evDelivery)
			got, err := ComputeDelta(snapshotOf(changed), snapshotOf(evDelivery))
			if err != nil {
				t.Fatalf("ComputeDelta: %v", err)
			}
			if len(got) != 1 || got[0] != changed {
				t.Fatalf("expected changed event to be new, got %+v", got)
			}
		})
	}
}

func TestComputeDeltaKeepsDuplicatesWithinOneCall(t *testing.T) {
	cur := snapshotOf(evDelivery, evDelivery)
	got, err := ComputeDelta(cur, snapshotOf(evPicked))
	if err != nil {
		t.Fatalf("ComputeDelta: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both duplicate events, got %d", len(got))
	}
}

func TestComputeDeltaRejectsMalformedShape(t *testing.T) {
	good := snapshotOf(evPicked)
	empty := &Snapshot{}
	two := &Snapshot{Shipments: []Shipment{{}, {}}}

	tests := []struct {
		name      string
		cur, prev *Snapshot
	}{
		{name: "current zero records", cur: empty, prev: nil},
		{name: "current two records", cur: two, prev: good},
		{name: "previous zero records", cur: good, prev: empty},
		{name: "previous two records", cur: good, prev: two},
		{name: "nil current", cur: nil, prev: good},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeDelta(tt.cur, tt.prev)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("err = %v, want ErrMalformedResponse", err)
			}
			if got != nil {
				t.Fatalf("expected no delta on error, got %+v", got)
			}
		})
	}
}
