// Package feed streams marketplace events to WebSocket subscribers.
//
// Each subscriber gets a bounded send buffer drained by its own writer
// goroutine. A subscriber whose buffer is full when an event arrives is
// disconnected; it can reconnect and re-read state with ListingOf.
package feed
