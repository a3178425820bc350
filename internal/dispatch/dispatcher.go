// Package dispatch delivers outbound messages over the messaging transport.
// For an ambiguous raw contact it fans out to every address variant with
// fixed spacing between sends, so the transport does not mistake the burst
// for automated bulk traffic. Delivery is best-effort: failures are reported
// per variant, never retried here — the transport owns its own retry policy.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/vendahub/zapbot/internal/phone"
)

// DefaultSendSpacing is the minimum pause between sends to sibling variants.
const DefaultSendSpacing = 2 * time.Second

// Transport is the messaging collaborator. Connected is the only lifecycle
// detail the dispatcher reads; everything else (pairing, reconnection) stays
// inside the channel.
type Transport interface {
	Connected() bool
	Send(ctx context.Context, address, text string) error
}

// Outcome is the per-variant delivery result.
type Outcome struct {
	Address string `json:"address"`
	Sent    bool   `json:"sent"`
	Err     string `json:"error,omitempty"`
}

// Dispatcher sends messages to one or more address variants.
type Dispatcher struct {
	transport Transport
	limiter   *rate.Limiter
}

// New creates a Dispatcher; spacing <= 0 selects the default.
func New(transport Transport, spacing time.Duration) *Dispatcher {
	if spacing <= 0 {
		spacing = DefaultSendSpacing
	}
	return &Dispatcher{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Every(spacing), 1),
	}
}

// Send attempts one delivery to a known-good address. A disconnected
// transport is a skip, not a queue: the outcome says so and the caller
// moves on.
func (d *Dispatcher) Send(ctx context.Context, address, text string) Outcome {
	if !d.transport.Connected() {
		slog.Warn("send skipped, transport disconnected", "address", address)
		return Outcome{Address: address, Err: "transport disconnected"}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return Outcome{Address: address, Err: fmt.Sprintf("wait cancelled: %v", err)}
	}

	if err := d.transport.Send(ctx, address, text); err != nil {
		slog.Warn("send failed", "address", address, "error", err)
		return Outcome{Address: address, Err: err.Error()}
	}

	return Outcome{Address: address, Sent: true}
}

// SendAll expands an ambiguous raw contact into its address variants and
// sends to each sequentially. The overall attempt succeeded if any variant
// did; callers get one outcome per variant either way.
func (d *Dispatcher) SendAll(ctx context.Context, rawContact, text string) []Outcome {
	variants := phone.Variants(rawContact)
	outcomes := make([]Outcome, 0, len(variants))
	for _, v := range variants {
		outcomes = append(outcomes, d.Send(ctx, v, text))
	}
	return outcomes
}

// AnySent reports whether at least one variant delivery succeeded.
func AnySent(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Sent {
			return true
		}
	}
	return false
}
