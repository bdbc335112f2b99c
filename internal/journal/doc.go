// Package journal implements the append-only PostgreSQL event journal.
//
// Every completed listing operation is stored once in market_events, keyed by
// event ID (ON CONFLICT DO NOTHING). Amounts are stored as NUMERIC(78,0) wei.
package journal
