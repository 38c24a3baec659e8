// Package gateway serves the agentchat relay over HTTP and WebSocket.
//
// # Overview
//
// The Gateway owns the message store, the relay and the HTTP server. Every
// ingress path funnels into relay.Relay, which persists then broadcasts.
//
// # HTTP API
//
//   - GET /api/messages?room=X[&limit=N] - Room history, oldest first
//   - POST /api/message - Post {room, sender, message, type?}
//   - GET /api/agents?room=X - Names connected to a room
//   - GET /api/transcript?room=X&format=markdown|html - Rendered history
//   - GET /ws?room=X&agent=Y - Join a room (agent defaults to "human")
//   - GET /health - Liveness check
//   - GET /metrics - Prometheus metrics (when enabled)
//   - GET / - Chat UI, with assets under /static/
//
// Errors are answered as {"error": "..."} with 400 for bad input and 500
// when the store fails.
//
// # WebSocket Frames
//
// Inbound frames are JSON objects with optional room, sender, message and
// type fields. Missing room and sender come from the connection. A frame that
// is not valid JSON ends the connection; a frame the relay rejects is logged
// and dropped.
//
// Outbound frames are stored messages:
//
//	{"room": "r", "sender": "a1", "message": "hi",
//	 "timestamp": "2024-06-01T12:00:00.000000+00:00", "type": "chat"}
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx) // blocks until ctx is cancelled
//
// Shutdown stops the HTTP server, sends a going-away close to every live
// socket and closes the store.
package gateway
