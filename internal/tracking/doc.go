// Package tracking talks to the hub-ez tracking endpoint and computes which
// tracking events are new between two polls.
//
// A Snapshot is one full endpoint response. A well-formed snapshot carries
// exactly one shipment record; anything else is ErrMalformedResponse.
// Events compare by value over (Description, LocationName, EventTime).
package tracking
