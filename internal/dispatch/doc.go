// Package dispatch fans marketplace events out to sinks.
//
// The registry's event channel is read by a single pump goroutine that copies
// each event into one queue per sink. Every sink drains its own queue on its
// own goroutine, so a stalled sink (a slow database, an unreachable broker)
// only ever backs up its own queue.
//
// Queues start small and double on demand up to a ceiling; past the ceiling
// the oldest queued event is discarded and counted.
package dispatch
