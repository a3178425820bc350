// Package bus carries inbound chat messages from the transport channel to
// the orchestration engine. Channels publish without blocking; the engine
// consumes from a single buffered queue.
package bus

import (
	"context"
	"log/slog"
)

const inboundBuffer = 256

// InboundMessage represents a message received from the messaging transport.
type InboundMessage struct {
	Channel  string `json:"channel"`
	SenderID string `json:"sender_id"`
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
}

// MessageBus is a buffered inbound queue.
type MessageBus struct {
	inbound chan InboundMessage
}

// New creates a MessageBus.
func New() *MessageBus {
	return &MessageBus{inbound: make(chan InboundMessage, inboundBuffer)}
}

// PublishInbound enqueues a message without blocking. When the queue is
// full the message is dropped and logged: backpressure onto the transport
// read loop would stall the socket.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("inbound queue full, dropping message", "sender", msg.SenderID)
	}
}

// ConsumeInbound blocks until a message arrives or ctx is cancelled.
// ok is false on cancellation.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case <-ctx.Done():
		return InboundMessage{}, false
	case msg := <-b.inbound:
		return msg, true
	}
}
