// Package api is a Go client for the marketplace HTTP API.
//
// Reads are retried with jittered exponential backoff on 429 and 5xx.
// Mutations (create, remove, buy, and the sandbox calls) are sent once: a
// retried purchase after a lost response could otherwise settle twice.
package api
