// Package whatsapp connects to a WhatsApp bridge via WebSocket. The bridge
// (Baileys-based) owns the actual WhatsApp protocol — QR pairing, session
// credentials, socket reconnection to WhatsApp itself; this channel just
// exchanges JSON frames with it and tracks connectivity.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vendahub/zapbot/internal/bus"
	"github.com/vendahub/zapbot/internal/channels"
	"github.com/vendahub/zapbot/internal/config"
)

// Channel is the WhatsApp bridge transport.
type Channel struct {
	*channels.BaseChannel
	conn      *websocket.Conn
	config    config.WhatsAppConfig
	mu        sync.Mutex
	connected bool
	qrPayload string
	selfJID   string
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a WhatsApp channel from config.
func New(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus),
		config:      cfg,
	}, nil
}

// Start connects to the bridge WebSocket and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "bridge_url", c.config.BridgeURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// Don't fail hard — reconnect loop will keep trying
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop gracefully shuts down the channel.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.SetRunning(false)

	return nil
}

// Connected reports whether the bridge currently has a live WhatsApp session.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// QRPayload returns the current pairing QR payload, empty once paired.
func (c *Channel) QRPayload() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qrPayload
}

// Send delivers a text message to a WhatsApp address (digits or full JID).
func (c *Channel) Send(_ context.Context, address, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.connected {
		return fmt.Errorf("whatsapp bridge not connected")
	}

	payload := map[string]any{
		"type":    "message",
		"to":      toJID(address),
		"content": text,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}

	return nil
}

// connect establishes the WebSocket connection to the bridge.
func (c *Channel) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.config.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.config.BridgeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("whatsapp bridge socket open", "url", c.config.BridgeURL)
	return nil
}

// listenLoop reads frames from the bridge with automatic reconnection.
func (c *Channel) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
				continue
			}

			backoff = time.Second // reset on success
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp read error, will reconnect", "error", err)

			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.connected = false
			c.mu.Unlock()

			continue
		}

		var frame map[string]any
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Warn("invalid whatsapp frame JSON", "error", err)
			continue
		}

		switch frameType, _ := frame["type"].(string); frameType {
		case "message":
			c.handleIncomingMessage(frame)
		case "qr":
			c.handleQR(frame)
		case "status":
			c.handleStatus(frame)
		}
	}
}

// handleIncomingMessage processes a chat message from the bridge.
// Expected format: {"type":"message","from":"...","chat":"...","content":"...","from_me":false}
func (c *Channel) handleIncomingMessage(frame map[string]any) {
	senderID, ok := frame["from"].(string)
	if !ok || senderID == "" {
		return
	}

	if fromMe, _ := frame["from_me"].(bool); fromMe {
		return
	}
	c.mu.Lock()
	self := c.selfJID
	c.mu.Unlock()
	if self != "" && senderID == self {
		return
	}

	content, _ := frame["content"].(string)
	if strings.TrimSpace(content) == "" {
		return
	}

	chatID, _ := frame["chat"].(string)
	if chatID == "" {
		chatID = senderID
	}

	slog.Debug("whatsapp message received", "sender_id", senderID)
	c.HandleMessage(senderID, chatID, content)
}

// handleQR caches the pairing payload so the HTTP surface can expose it.
func (c *Channel) handleQR(frame map[string]any) {
	payload, _ := frame["payload"].(string)

	c.mu.Lock()
	c.qrPayload = payload
	c.mu.Unlock()

	slog.Info("whatsapp pairing QR issued")
}

// handleStatus tracks the bridge's WhatsApp session lifecycle.
// states: "connected", "disconnected", "logged_out"
func (c *Channel) handleStatus(frame map[string]any) {
	state, _ := frame["state"].(string)

	c.mu.Lock()
	switch state {
	case "connected":
		c.connected = true
		c.qrPayload = ""
		if jid, ok := frame["self"].(string); ok {
			c.selfJID = jid
		}
	case "disconnected", "logged_out":
		c.connected = false
	}
	c.mu.Unlock()

	if state == "connected" {
		slog.Info("whatsapp session connected")
	} else {
		reason, _ := frame["reason"].(string)
		slog.Warn("whatsapp session down", "state", state, "reason", reason)
	}
}

// toJID formats a bare number as a WhatsApp JID, passing full JIDs through.
func toJID(address string) string {
	if strings.Contains(address, "@") {
		return address
	}
	return address + "@s.whatsapp.net"
}
