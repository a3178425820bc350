package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vendahub/zapbot/internal/events"
	"github.com/vendahub/zapbot/internal/intent"
	"github.com/vendahub/zapbot/internal/providers"
	"github.com/vendahub/zapbot/internal/sessions"
	"github.com/vendahub/zapbot/internal/store"
)

// fakeProvider records calls and returns a scripted reply or error.
type fakeProvider struct {
	calls int
	reply string
	err   error
	last  providers.ChatRequest
}

func (f *fakeProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &providers.ChatResponse{Content: f.reply, FinishReason: "stop"}, nil
}

func (f *fakeProvider) DefaultModel() string { return "fake-model" }
func (f *fakeProvider) Name() string         { return "fake" }

func newTestRouter(p providers.Provider) (*Router, *sessions.Manager) {
	hist := sessions.NewManager()
	catalog := []Product{
		{Name: "Curso Completo", Price: 197, URL: "https://loja.example.com/curso"},
		{Name: "Mentoria", Price: 497, URL: "https://loja.example.com/mentoria"},
	}
	return New(intent.New(), p, hist, store.New(), catalog), hist
}

func TestKeywordNeverCallsAI(t *testing.T) {
	fake := &fakeProvider{reply: "should not be used"}
	r, _ := newTestRouter(fake)

	for _, text := range []string{"menu", "status do pedido", "produtos", "suporte", "2"} {
		reply := r.Respond(context.Background(), "5511987654321", text, store.Customer{FirstName: "Ana"})
		if reply == "" {
			t.Errorf("empty canned reply for %q", text)
		}
	}
	if fake.calls != 0 {
		t.Errorf("AI called %d times for keyword messages", fake.calls)
	}
}

func TestCannedReplyDeterministic(t *testing.T) {
	r, _ := newTestRouter(nil)
	c := store.Customer{FirstName: "Ana"}

	a := r.Respond(context.Background(), "x", "produtos", c)
	b := r.Respond(context.Background(), "x", "produtos", c)
	if a != b {
		t.Error("canned reply not deterministic")
	}
	if !strings.Contains(a, "Curso Completo") {
		t.Errorf("products reply missing catalog: %q", a)
	}
}

func TestMenuListsAllIntents(t *testing.T) {
	r, _ := newTestRouter(nil)

	menu := r.Respond(context.Background(), "x", "menu", store.Customer{FirstName: "Ana"})
	for _, option := range []string{"*status*", "*produtos*", "*suporte*", "*acesso*"} {
		if !strings.Contains(menu, option) {
			t.Errorf("menu missing option %s: %q", option, menu)
		}
	}
}

func TestUnmatchedTextEscalates(t *testing.T) {
	fake := &fakeProvider{reply: "Claro, posso ajudar!"}
	r, hist := newTestRouter(fake)

	reply := r.Respond(context.Background(), "5511987654321", "meu cachorro comeu o boleto", store.Customer{})
	if fake.calls != 1 {
		t.Fatalf("AI calls = %d, want 1", fake.calls)
	}
	if reply != "Claro, posso ajudar!" {
		t.Errorf("reply = %q", reply)
	}

	h := hist.History("5511987654321")
	if len(h) != 2 || h[0].Role != "user" || h[1].Role != "assistant" {
		t.Errorf("history after success = %+v", h)
	}
}

func TestAIFailureReturnsApologyAndSkipsHistory(t *testing.T) {
	fake := &fakeProvider{err: errors.New("rate limited")}
	r, hist := newTestRouter(fake)

	reply := r.Respond(context.Background(), "551199", "pergunta livre sem palavra chave", store.Customer{})
	if reply != apologyMessage {
		t.Errorf("reply = %q, want apology", reply)
	}
	if len(hist.History("551199")) != 0 {
		t.Error("failed turn recorded in history")
	}
}

func TestEscalationSendsBoundedHistoryAndSystemPrompt(t *testing.T) {
	fake := &fakeProvider{reply: "ok"}
	r, hist := newTestRouter(fake)

	for i := 0; i < 10; i++ {
		hist.AddTurn("id", providers.Message{Role: "user", Content: "old"})
	}

	r.Respond(context.Background(), "id", "texto livre qualquer coisa", store.Customer{FirstName: "Ana"})

	msgs := fake.last.Messages
	if msgs[0].Role != "system" {
		t.Fatal("first message is not the system instruction")
	}
	// system + capped history + new user turn
	if len(msgs) != 1+sessions.MaxTurns+1 {
		t.Errorf("message count = %d, want %d", len(msgs), 1+sessions.MaxTurns+1)
	}
	if fake.last.MaxTokens != aiMaxTokens {
		t.Errorf("max tokens = %d, want %d", fake.last.MaxTokens, aiMaxTokens)
	}
}

func TestLinkPlaceholderSubstitution(t *testing.T) {
	fake := &fakeProvider{reply: "Dá uma olhada: [[link:mentoria]] e [[link:Produto Inexistente]]"}
	r, _ := newTestRouter(fake)

	reply := r.Respond(context.Background(), "id", "quero saber mais sobre aquilo", store.Customer{})
	if !strings.Contains(reply, "https://loja.example.com/mentoria") {
		t.Errorf("placeholder not substituted: %q", reply)
	}
	if strings.Contains(reply, "[[link:") {
		t.Errorf("placeholder leaked: %q", reply)
	}
}

func TestSelectionReplies(t *testing.T) {
	r, _ := newTestRouter(nil)
	c := store.Customer{FirstName: "Ana"}

	one := r.Respond(context.Background(), "x", "1", c)
	two := r.Respond(context.Background(), "x", "2", c)
	three := r.Respond(context.Background(), "x", "3", c)

	if one == two || two == three {
		t.Error("selection digits map to identical replies")
	}
	if !strings.Contains(three, "atendente") {
		t.Errorf("selection 3 should route to support: %q", three)
	}
}

func TestEventMessagePerType(t *testing.T) {
	base := events.Event{
		Customer: events.Customer{FirstName: "Ana"},
		Order: events.Order{
			Ref: "O1", Product: "Curso Completo", AccessURL: "https://a",
			PixCode: "000201", PixExpiration: "2026-01-01",
			BoletoURL: "https://b", BoletoBarcode: "123", BoletoDueDate: "2026-01-05",
			Amount: 197, NextPayment: "2026-02-01",
		},
	}

	seen := map[string]bool{}
	for _, typ := range []events.Type{
		events.TypeAbandonedCart, events.TypePixCreated, events.TypeBilletCreated,
		events.TypeOrderApproved, events.TypeOrderRejected,
		events.TypeSubscriptionRenewed, events.TypeSubscriptionCanceled, events.TypeSubscriptionLate,
	} {
		ev := base
		ev.Type = typ
		msg := EventMessage(ev)
		if msg == "" {
			t.Errorf("empty message for %s", typ)
		}
		if !strings.Contains(msg, "Ana") {
			t.Errorf("message for %s not personalized", typ)
		}
		if seen[msg] {
			t.Errorf("duplicate template for %s", typ)
		}
		seen[msg] = true
	}
}
