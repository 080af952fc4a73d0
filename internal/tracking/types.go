package tracking

import "fmt"

// Event is a single tracking event. It is comparable; == is the equality used
// for diffing.
type Event struct {
	Description  string `json:"Desc"`
	LocationName string `json:"LocationName"`
	EventTime    string `json:"EventTime"`
}

// Shipment is one ListHawbDetails entry.
type Shipment struct {
	ID              int64   `json:"Id"`
	HawbNumber      string  `json:"HawbNumber"`
	HawbStatus      int     `json:"HawbStatus"`
	SenderCountry   string  `json:"SenderCountry"`
	ReceiverCountry string  `json:"ReceiverCountry"`
	Events          []Event `json:"ListTrackingDetails"`
}

// Snapshot is the full response of one poll.
type Snapshot struct {
	AllCount       int        `json:"AllCount"`
	NoRecordCount  int        `json:"NoRecordCount"`
	DeliveredCount int        `json:"DeliveredCount"`
	InTransitCount int        `json:"InTransitCount"`
	UnpickupCount  int        `json:"UnpickupCount"`
	Shipments      []Shipment `json:"ListHawbDetails"`
}

// Shipment returns the single shipment record of s.
func (s *Snapshot) Shipment() (*Shipment, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrMalformedResponse)
	}
	if n := len(s.Shipments); n != 1 {
		return nil, fmt.Errorf("%w: expected exactly one shipment record, got %d", ErrMalformedResponse, n)
	}
	return &s.Shipments[0], nil
}

// DeltaBatch carries the events that are new in one poll cycle.
type DeltaBatch struct {
	TrackingNumber string
	Events         []Event
}
