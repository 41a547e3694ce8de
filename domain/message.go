// Package domain contains core concepts of the chat system.
// This file defines ChatMessage records and related rules.
// Messages are immutable and created only by the registry.
package domain

// SystemSender is the reserved identity used for server-emitted notices.
// No client may log in under this name.
const SystemSender = "SERVER"

// ChatMessage represents an immutable chat event.
// The ID is assigned by the durable store at append time and is
// strictly monotonic over the lifetime of the log.
type ChatMessage struct {
	ID        int64  // unique identifier
	Body      string
	Sender    string
	Timestamp int64 // unix seconds
}
