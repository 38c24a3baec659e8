// Package agent runs an LLM participant in a chat room.
//
// # Runtime
//
// A Runtime owns one agent's Session and conversation History and moves
// through these states:
//
//	Idle → Listening → Evaluating → (Delaying) → Generating → Sending → Listening
//
// Stopped is terminal and is only reached through Stop (or cancelling the
// context given to StartListening).
//
// OnMessage is the client's frame handler. It ignores the agent's own
// messages, messages for other rooms and frames already handled (see
// package dedupe). Everything else is appended to history. Chat messages
// trigger a reply; system messages are kept for the record but never trigger
// and never reach the prompt.
//
// Seed loads replayed room history before the agent connects. Seeded
// messages never trigger replies.
//
// # Response Generation
//
// ResponseGenerator builds the prompt from the last HistoryLimit entries:
//
//	user: What is 2+2?
//
//	assistant: 4
//
// The persona becomes the system prompt; a list persona is joined with
// newlines. The Capability is tried up to three times, waiting 2s and then
// 4s between attempts. When every attempt fails the runtime still sends
// FallbackResponse.
//
// Once generation starts it runs to completion even if the frame's context
// is cancelled or the runtime is stopped.
package agent
