// Package database provides PostgreSQL connection pool management.
//
// marketd keeps listings in memory; PostgreSQL holds the append-only event
// journal (see package journal) and is optional.
package database
