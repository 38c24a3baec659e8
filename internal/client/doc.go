// Package client connects participants to an agentchat relay.
//
// # WebSocket Client
//
// Client joins one room under one name:
//
//	c := client.New(client.Config{
//	    ServerURL: "ws://127.0.0.1:8000",
//	    Room:      "lobby",
//	    Name:      "Alice",
//	}, handler, logger)
//	if err := c.Connect(ctx); err != nil { ... }
//	defer c.Disconnect()
//
// The receive loop decodes each frame into a store.Message and hands it to
// the handler without waiting for it to finish. In serial mode frames go
// through a bounded queue drained by one goroutine, so handlers never overlap;
// when the queue is full the frame is dropped with a warning. In concurrent
// mode every frame gets its own goroutine.
//
// A failed dial leaves the client disconnected. Nothing reconnects
// automatically; Done reports when the relay goes away, and by then the
// client has dropped the connection so Connect can be called again.
// Disconnect waits for handlers that are still running before it closes the
// socket, so a reply in flight still reaches the relay.
//
// # HTTP Client
//
// APIClient wraps the REST endpoints (messages, agents, message post,
// transcript and health). Non-2xx answers come back as *StatusError carrying
// the relay's {"error": "..."} text.
//
// # Errors
//
//   - ErrTransport: dial, write or HTTP round trip failed
//   - ErrSerialization: a message could not be encoded or decoded
package client
