// Package bot wires the webhook pipeline and the inbound chat loop around
// the record store: payment events fan out as templated notifications and
// arm follow-up reminders, while customer messages flow through rate
// limiting and the response router back to the chat channel.
package bot

import (
	"context"
	"log/slog"

	"github.com/vendahub/zapbot/internal/bus"
	"github.com/vendahub/zapbot/internal/dispatch"
	"github.com/vendahub/zapbot/internal/events"
	"github.com/vendahub/zapbot/internal/followup"
	"github.com/vendahub/zapbot/internal/ratelimit"
	"github.com/vendahub/zapbot/internal/responder"
	"github.com/vendahub/zapbot/internal/store"
)

// Sender delivers outbound text. Send targets one exact chat address;
// SendAll resolves a raw contact into its address variants first.
type Sender interface {
	Send(ctx context.Context, address, text string) dispatch.Outcome
	SendAll(ctx context.Context, rawContact, text string) []dispatch.Outcome
}

// Engine is the orchestration core. One instance serves both the webhook
// path and the chat loop; all shared state lives in the record store.
type Engine struct {
	store     *store.RecordStore
	router    *responder.Router
	scheduler *followup.Scheduler
	sender    Sender
	limiter   *ratelimit.Limiter
	bus       *bus.MessageBus
}

// EngineConfig configures a new Engine.
type EngineConfig struct {
	Store     *store.RecordStore
	Router    *responder.Router
	Scheduler *followup.Scheduler
	Sender    Sender
	Limiter   *ratelimit.Limiter
	Bus       *bus.MessageBus
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		store:     cfg.Store,
		router:    cfg.Router,
		scheduler: cfg.Scheduler,
		sender:    cfg.Sender,
		limiter:   cfg.Limiter,
		bus:       cfg.Bus,
	}
}

// HandleEvent processes one classified payment event: records the customer
// and order, notifies the customer, and arms or disarms the payment
// reminder depending on the event type.
func (e *Engine) HandleEvent(ctx context.Context, ev events.Event) {
	slog.Info("payment event",
		"type", ev.Type, "order", ev.Order.Ref, "customer", ev.Customer.Email)

	var customer store.Customer
	if ev.Customer.Email != "" {
		customer = e.store.UpsertCustomer(ev.Customer, ev.Order.Ref)
	}
	if ev.Order.Ref != "" {
		e.store.UpsertOrder(ev)
	}

	switch ev.Type {
	case events.TypePixCreated, events.TypeBilletCreated:
		if order, ok := e.store.GetOrder(ev.Order.Ref); ok && customer.Mobile != "" {
			e.scheduler.Schedule(customer, order)
		}
	case events.TypeOrderApproved:
		e.scheduler.Cancel(ev.Order.Ref)
	}

	if ev.Customer.Mobile == "" {
		slog.Warn("payment event has no contact number, skipping notification",
			"type", ev.Type, "order", ev.Order.Ref)
		return
	}

	text := responder.EventMessage(ev)
	outcomes := e.sender.SendAll(ctx, ev.Customer.Mobile, text)
	for _, out := range outcomes {
		if out.Sent {
			e.store.AppendMessage(out.Address, "system", text)
		}
	}
	if !dispatch.AnySent(outcomes) {
		slog.Warn("event notification not delivered",
			"type", ev.Type, "order", ev.Order.Ref, "attempts", len(outcomes))
	}
}

// Run consumes inbound chat messages until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("chat loop started")
	for {
		msg, ok := e.bus.ConsumeInbound(ctx)
		if !ok {
			slog.Info("chat loop stopped")
			return
		}
		e.handleInbound(ctx, msg)
	}
}

func (e *Engine) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	if msg.Content == "" {
		return
	}

	// Record the inbound turn before any gating so throttled messages
	// still appear in the conversation history.
	e.store.AppendMessage(msg.ChatID, "customer", msg.Content)

	if !e.limiter.Allow(msg.SenderID) {
		slog.Warn("rate limit exceeded", "sender", msg.SenderID)
		out := e.sender.Send(ctx, msg.ChatID, responder.ThrottleNotice)
		if out.Sent {
			e.store.AppendMessage(msg.ChatID, "system", responder.ThrottleNotice)
		}
		return
	}

	customer, _ := e.store.GetCustomerByAddress(msg.SenderID)
	reply := e.router.Respond(ctx, msg.SenderID, msg.Content, customer)
	if reply == "" {
		return
	}

	out := e.sender.Send(ctx, msg.ChatID, reply)
	if !out.Sent {
		slog.Warn("reply not delivered", "chat", msg.ChatID, "error", out.Err)
		return
	}
	e.store.AppendMessage(msg.ChatID, "system", reply)
}
