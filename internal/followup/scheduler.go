// Package followup schedules delayed payment reminders for orders awaiting
// confirmation. Cancellation is advisory: approving an order removes the
// bookkeeping entry, while the armed timer keeps running and re-checks the
// live order status before acting. That self-check on fire is the sole
// concurrency-correctness mechanism — there is no cross-component lock.
package followup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vendahub/zapbot/internal/dispatch"
	"github.com/vendahub/zapbot/internal/store"
)

// DefaultDelay is how long an initiated payment may stay unconfirmed before
// a reminder fires.
const DefaultDelay = 5 * time.Minute

// Sender delivers a reminder to every address variant of a raw contact.
type Sender interface {
	SendAll(ctx context.Context, rawContact, text string) []dispatch.Outcome
}

// Composer renders the reminder text for a pending follow-up.
type Composer func(fu store.PendingFollowUp) string

// Scheduler arms one-shot reminder timers keyed by order ref.
type Scheduler struct {
	store   *store.RecordStore
	sender  Sender
	compose Composer
	delay   time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Scheduler with the given reminder delay; delay <= 0 selects
// the default.
func New(st *store.RecordStore, sender Sender, compose Composer, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{
		store:   st,
		sender:  sender,
		compose: compose,
		delay:   delay,
		timers:  make(map[string]*time.Timer),
	}
}

// Schedule registers a pending follow-up for the order and arms its timer.
// A second schedule for the same live order is a no-op: at most one
// PendingFollowUp exists per order ref.
func (s *Scheduler) Schedule(customer store.Customer, order store.Order) {
	fu := store.PendingFollowUp{
		OrderRef:  order.Ref,
		Customer:  customer,
		Order:     order,
		Scheduled: true,
	}
	if !s.store.PutFollowUp(fu) {
		slog.Debug("follow-up already scheduled", "order", order.Ref)
		return
	}

	s.mu.Lock()
	s.timers[order.Ref] = time.AfterFunc(s.delay, func() { s.fire(order.Ref) })
	s.mu.Unlock()

	slog.Info("follow-up scheduled", "order", order.Ref, "delay", s.delay)
}

// Cancel removes the pending follow-up for an order, typically because its
// payment was approved. The armed timer is stopped best-effort; if it has
// already fired, the callback's own status re-check keeps the reminder
// suppressed.
func (s *Scheduler) Cancel(orderRef string) {
	if _, ok := s.store.TakeFollowUp(orderRef); ok {
		slog.Info("follow-up cancelled", "order", orderRef)
	}

	s.mu.Lock()
	if t, ok := s.timers[orderRef]; ok {
		t.Stop()
		delete(s.timers, orderRef)
	}
	s.mu.Unlock()
}

// fire runs when the delay elapses. It atomically claims the pending entry,
// then re-reads the current order status through the store: only a payment
// still unconfirmed produces a reminder. Either way the entry is gone
// afterwards.
func (s *Scheduler) fire(orderRef string) {
	s.mu.Lock()
	delete(s.timers, orderRef)
	s.mu.Unlock()

	fu, ok := s.store.TakeFollowUp(orderRef)
	if !ok {
		// Approval won the race and already removed the entry.
		return
	}

	status, _ := s.store.OrderStatus(orderRef)
	if status == "approved" || status == "paid" {
		slog.Info("follow-up resolved before firing", "order", orderRef, "status", status)
		return
	}

	mobile := fu.Customer.Mobile
	if mobile == "" {
		slog.Warn("follow-up customer has no mobile", "order", orderRef)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcomes := s.sender.SendAll(ctx, mobile, s.compose(fu))
	slog.Info("follow-up reminder sent", "order", orderRef, "variants", len(outcomes))
}

// Rearm re-schedules timers for follow-ups restored from a snapshot. Orders
// whose payment completed while the process was down are cancelled instead.
func (s *Scheduler) Rearm() {
	for _, fu := range s.store.PendingFollowUps() {
		status, _ := s.store.OrderStatus(fu.OrderRef)
		if status == "approved" || status == "paid" {
			s.store.TakeFollowUp(fu.OrderRef)
			continue
		}
		ref := fu.OrderRef
		s.mu.Lock()
		if _, armed := s.timers[ref]; !armed {
			s.timers[ref] = time.AfterFunc(s.delay, func() { s.fire(ref) })
		}
		s.mu.Unlock()
	}
}

// Stop halts all armed timers. Pending entries stay in the store so a
// restart can re-arm them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for ref, t := range s.timers {
		t.Stop()
		delete(s.timers, ref)
	}
	s.mu.Unlock()
}
