package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vendahub/zapbot/internal/bus"
	"github.com/vendahub/zapbot/internal/dispatch"
	"github.com/vendahub/zapbot/internal/events"
	"github.com/vendahub/zapbot/internal/followup"
	"github.com/vendahub/zapbot/internal/intent"
	"github.com/vendahub/zapbot/internal/phone"
	"github.com/vendahub/zapbot/internal/ratelimit"
	"github.com/vendahub/zapbot/internal/responder"
	"github.com/vendahub/zapbot/internal/sessions"
	"github.com/vendahub/zapbot/internal/store"
)

type sentItem struct {
	Address string
	Text    string
}

// recordingSender satisfies both the engine Sender and the follow-up
// scheduler sender, so one capture covers every outbound path.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentItem
}

func (s *recordingSender) Send(_ context.Context, address, text string) dispatch.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentItem{Address: address, Text: text})
	return dispatch.Outcome{Address: address, Sent: true}
}

func (s *recordingSender) SendAll(ctx context.Context, rawContact, text string) []dispatch.Outcome {
	var outcomes []dispatch.Outcome
	for _, addr := range phone.Variants(rawContact) {
		outcomes = append(outcomes, s.Send(ctx, addr, text))
	}
	return outcomes
}

func (s *recordingSender) snapshot() []sentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentItem(nil), s.sent...)
}

func newTestEngine(t *testing.T, reminderDelay time.Duration, maxHits int) (*Engine, *recordingSender, *store.RecordStore) {
	t.Helper()
	st := store.New()
	sender := &recordingSender{}
	scheduler := followup.New(st, sender, responder.ReminderMessage, reminderDelay)
	t.Cleanup(scheduler.Stop)
	router := responder.New(intent.New(), nil, sessions.NewManager(), st, nil)
	eng := NewEngine(EngineConfig{
		Store:     st,
		Router:    router,
		Scheduler: scheduler,
		Sender:    sender,
		Limiter:   ratelimit.NewWithLimits(time.Minute, maxHits),
		Bus:       bus.New(),
	})
	return eng, sender, st
}

func pixEvent(ref string) events.Event {
	return events.Event{
		Type: events.TypePixCreated,
		Customer: events.Customer{
			Email:     "ana@example.com",
			FullName:  "Ana Souza",
			FirstName: "Ana",
			Mobile:    "5511987654321",
		},
		Order: events.Order{
			Ref:           ref,
			Product:       "Curso Completo",
			Status:        "waiting_payment",
			PaymentMethod: "pix",
			Amount:        297,
			PixCode:       "000201pixcode",
		},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestHandleEventRecordsAndNotifies(t *testing.T) {
	eng, sender, st := newTestEngine(t, time.Hour, 10)

	eng.HandleEvent(context.Background(), pixEvent("ord-1"))

	if _, ok := st.GetCustomer("ana@example.com"); !ok {
		t.Fatal("customer not stored")
	}
	order, ok := st.GetOrder("ord-1")
	if !ok {
		t.Fatal("order not stored")
	}
	if order.EventType != events.TypePixCreated {
		t.Errorf("EventType = %q", order.EventType)
	}

	sent := sender.snapshot()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want one per address variant (2)", len(sent))
	}
	for _, item := range sent {
		if !strings.Contains(item.Text, "Pix") {
			t.Errorf("notification %q does not mention Pix", item.Text)
		}
		conv, ok := st.GetConversation(item.Address)
		if !ok || len(conv.Messages) != 1 || conv.Messages[0].From != "system" {
			t.Errorf("conversation for %s not recorded", item.Address)
		}
	}
	if !st.HasFollowUp("ord-1") {
		t.Error("pix event did not arm a follow-up")
	}
}

func TestReminderFiresWhenUnpaid(t *testing.T) {
	eng, sender, st := newTestEngine(t, 20*time.Millisecond, 10)

	eng.HandleEvent(context.Background(), pixEvent("ord-2"))
	notified := len(sender.snapshot())

	waitFor(t, 2*time.Second, func() bool {
		return len(sender.snapshot()) > notified
	})
	if st.HasFollowUp("ord-2") {
		t.Error("follow-up entry not consumed after firing")
	}
}

func TestApprovalCancelsReminder(t *testing.T) {
	eng, sender, st := newTestEngine(t, 40*time.Millisecond, 10)

	eng.HandleEvent(context.Background(), pixEvent("ord-3"))

	approved := pixEvent("ord-3")
	approved.Type = events.TypeOrderApproved
	approved.Order.Status = "approved"
	approved.Order.AccessURL = "https://members.example/acesso"
	eng.HandleEvent(context.Background(), approved)

	if st.HasFollowUp("ord-3") {
		t.Fatal("follow-up still armed after approval")
	}
	afterApproval := len(sender.snapshot())

	time.Sleep(120 * time.Millisecond)
	if got := len(sender.snapshot()); got != afterApproval {
		t.Errorf("reminder fired after approval: %d sends, want %d", got, afterApproval)
	}
}

func TestInboundKeywordReply(t *testing.T) {
	eng, sender, st := newTestEngine(t, time.Hour, 10)

	eng.handleInbound(context.Background(), bus.InboundMessage{
		Channel:  "whatsapp",
		SenderID: "5511987654321",
		ChatID:   "5511987654321@s.whatsapp.net",
		Content:  "menu",
	})

	sent := sender.snapshot()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].Address != "5511987654321@s.whatsapp.net" {
		t.Errorf("reply address = %s", sent[0].Address)
	}
	conv, ok := st.GetConversation("5511987654321@s.whatsapp.net")
	if !ok || len(conv.Messages) != 2 {
		t.Fatalf("conversation = %+v, want customer turn + system turn", conv)
	}
	if conv.Messages[0].From != "customer" || conv.Messages[1].From != "system" {
		t.Errorf("turn order = %s, %s", conv.Messages[0].From, conv.Messages[1].From)
	}
}

func TestInboundThrottled(t *testing.T) {
	eng, sender, st := newTestEngine(t, time.Hour, 1)

	msg := bus.InboundMessage{
		Channel:  "whatsapp",
		SenderID: "5511987654321",
		ChatID:   "5511987654321@s.whatsapp.net",
		Content:  "menu",
	}
	eng.handleInbound(context.Background(), msg)
	eng.handleInbound(context.Background(), msg)

	sent := sender.snapshot()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if !strings.Contains(sent[1].Text, "muitas mensagens") {
		t.Errorf("second reply = %q, want throttle notice", sent[1].Text)
	}
	// The throttled inbound turn is still recorded.
	conv, _ := st.GetConversation(msg.ChatID)
	customerTurns := 0
	for _, m := range conv.Messages {
		if m.From == "customer" {
			customerTurns++
		}
	}
	if customerTurns != 2 {
		t.Errorf("customer turns = %d, want 2", customerTurns)
	}
}

func TestRunConsumesBus(t *testing.T) {
	eng, sender, _ := newTestEngine(t, time.Hour, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	eng.bus.PublishInbound(bus.InboundMessage{
		Channel:  "whatsapp",
		SenderID: "5511900001111",
		ChatID:   "5511900001111@s.whatsapp.net",
		Content:  "suporte",
	})
	waitFor(t, 2*time.Second, func() bool {
		return len(sender.snapshot()) == 1
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
