package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	failFor   map[string]error
	sent      []string
}

func (f *fakeTransport) Connected() bool { return f.connected }

func (f *fakeTransport) Send(_ context.Context, address, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[address]; ok {
		return err
	}
	f.sent = append(f.sent, address)
	return nil
}

func TestSendSingleAddress(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := New(tr, time.Millisecond)

	out := d.Send(context.Background(), "5511987654321", "oi")
	if !out.Sent || out.Err != "" {
		t.Errorf("outcome = %+v, want clean success", out)
	}
}

func TestSendSkippedWhenDisconnected(t *testing.T) {
	tr := &fakeTransport{connected: false}
	d := New(tr, time.Millisecond)

	out := d.Send(context.Background(), "5511987654321", "oi")
	if out.Sent {
		t.Error("send reported success while disconnected")
	}
	if len(tr.sent) != 0 {
		t.Error("transport was called while disconnected")
	}
}

func TestSendFailureNotRetried(t *testing.T) {
	tr := &fakeTransport{
		connected: true,
		failFor:   map[string]error{"5511987654321": errors.New("boom")},
	}
	d := New(tr, time.Millisecond)

	out := d.Send(context.Background(), "5511987654321", "oi")
	if out.Sent || out.Err == "" {
		t.Errorf("outcome = %+v, want failure", out)
	}
	if len(tr.sent) != 0 {
		t.Error("failed send was retried")
	}
}

func TestSendAllFansOutToVariants(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := New(tr, time.Millisecond)

	outcomes := d.SendAll(context.Background(), "11 98765-4321", "oi")
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want one per variant", len(outcomes))
	}
	if outcomes[0].Address != "5511987654321" || outcomes[1].Address != "551187654321" {
		t.Errorf("variant addresses = %+v", outcomes)
	}
	if !AnySent(outcomes) {
		t.Error("AnySent = false for all-success outcomes")
	}
}

func TestSendAllPartialFailureStillSucceeds(t *testing.T) {
	tr := &fakeTransport{
		connected: true,
		failFor:   map[string]error{"5511987654321": errors.New("not on whatsapp")},
	}
	d := New(tr, time.Millisecond)

	outcomes := d.SendAll(context.Background(), "11987654321", "oi")
	if outcomes[0].Sent {
		t.Error("first variant should have failed")
	}
	if !outcomes[1].Sent {
		t.Error("second variant should have succeeded")
	}
	if !AnySent(outcomes) {
		t.Error("AnySent should be true when any variant lands")
	}
}

func TestSendAllSpacing(t *testing.T) {
	tr := &fakeTransport{connected: true}
	spacing := 40 * time.Millisecond
	d := New(tr, spacing)

	start := time.Now()
	d.SendAll(context.Background(), "11987654321", "oi")
	elapsed := time.Since(start)

	// Two variants: the second send must wait out the spacing interval.
	if elapsed < spacing {
		t.Errorf("fan-out finished in %v, want at least %v between sends", elapsed, spacing)
	}
}
