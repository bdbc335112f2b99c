// Package publish delivers marketplace events to external brokers.
//
// RedisPublisher announces every event on a pub/sub channel and keeps a hash
// per active listing (listing:<contract>:<id>) so readers can serve listing
// lookups without calling the marketplace. KafkaPublisher appends events to a
// topic keyed by asset, so all events for one asset land on one partition in
// order.
package publish
