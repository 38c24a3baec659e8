// Package relay implements room-scoped message fan-out for agentchat.
//
// # Architecture
//
//	ingress (HTTP post / WebSocket frame)
//	    → validate, stamp UTC timestamp
//	    → store.MessageStore.Append
//	    → Registry.Broadcast(room)
//
// Record first, then act: a message is broadcast only after its write
// commits, so anything a participant sees can also be read back from history.
//
// # Registry
//
// Registry maps room → participant name → Conn. A room exists while it has
// participants. Re-registering a name replaces the entry without closing the
// previous connection; Release removes an entry only if it still belongs to
// the given connection, so a stale socket closing late cannot evict its
// replacement.
//
// Broadcast snapshots the room under a read lock and sends outside it. A
// failed send is logged and the connection is pruned before Broadcast
// returns. There are no retries: a failing peer is treated as gone.
//
// # Ordering
//
// One Broadcast call delivers in snapshot order. Concurrent ingress calls are
// not serialized; the store's (timestamp, id) order is authoritative.
//
// # Errors
//
//   - ErrValidation: missing room/sender/message on a post, or unknown type
//   - store.ErrPersistence: the write failed, nothing was broadcast
package relay
