// Package channels provides the messaging-transport abstraction. A channel
// connects an external platform to the orchestration engine via the message
// bus; the engine only ever sees addresses and text.
package channels

import (
	"context"
	"sync/atomic"

	"github.com/vendahub/zapbot/internal/bus"
)

// Channel defines the interface the transport must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g. "whatsapp").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers text to an address on the platform.
	Send(ctx context.Context, address, text string) error

	// Connected reports current transport connectivity. The engine reads
	// this as a boolean gate before attempting a send.
	Connected() bool

	// IsRunning returns whether the channel is actively processing messages.
	IsRunning() bool
}

// BaseChannel provides shared functionality for channel implementations.
type BaseChannel struct {
	name    string
	bus     *bus.MessageBus
	running atomic.Bool
}

// NewBaseChannel creates a BaseChannel.
func NewBaseChannel(name string, msgBus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running. Safe to poll from any
// goroutine.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// HandleMessage publishes an inbound message to the bus. Empty content and
// self-sent messages must be filtered by the caller before reaching here.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string) {
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
	})
}
