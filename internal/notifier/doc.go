// Package notifier delivers tracking updates to a chat.
//
// A single Worker drains the delivery channel in FIFO order. Each batch is
// formatted with tracking.FormatUpdates, rate limited, and handed to a
// transport.Sender. Delivery is at-most-once: a failed send is logged,
// counted and published on the event bus, then the batch is dropped.
//
// When the worker stops it closes the channel, so the poll loop's next
// enqueue fails instead of silently piling up undelivered batches.
package notifier
