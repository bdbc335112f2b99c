// Package server exposes the listing registry over HTTP.
//
// Routes:
//
//	POST   /v1/listings                          create a listing
//	GET    /v1/listings                          all active listings
//	GET    /v1/listings/{contract}/{id}          one listing (empty sentinel if none)
//	DELETE /v1/listings/{contract}/{id}          remove a listing
//	POST   /v1/listings/{contract}/{id}/buy      buy a listing
//	GET    /v1/stats                             registry and sink counters
//	GET    /v1/feed                              WebSocket event feed
//	GET    /health                               component health
//
// With a sandbox configured, the in-memory asset registry and ledger are
// reachable under /v1/sandbox for local testing.
//
// Amounts in request and response bodies are decimal strings in wei.
package server
