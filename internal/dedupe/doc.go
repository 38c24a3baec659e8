// Package dedupe recognizes relayed messages an agent has already handled.
//
// A Guard keys each message by the SHA-256 of its room, sender, timestamp
// and content. Seen checks and records in one step, so concurrent deliveries
// of the same frame are processed once. Fingerprints expire after a TTL and
// the guard holds at most maxSize of them, evicting the oldest first.
package dedupe
