// Package responder chooses between canned templates and AI escalation for
// inbound customer messages. The two tiers are the system's load-shedding
// strategy: deterministic templates absorb the bulk of traffic, the
// costly AI path is the exception.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/vendahub/zapbot/internal/intent"
	"github.com/vendahub/zapbot/internal/providers"
	"github.com/vendahub/zapbot/internal/sessions"
	"github.com/vendahub/zapbot/internal/store"
)

const systemInstruction = "Você é um assistente de vendas e suporte de uma loja digital brasileira. " +
	"Responda em português, de forma curta e amigável, como numa conversa de WhatsApp. " +
	"Quando indicar um produto, use o marcador [[link:NOME DO PRODUTO]] no lugar do endereço. " +
	"Nunca invente preços, prazos ou links."

// aiMaxTokens bounds the cost of a single escalated reply.
const aiMaxTokens = 400

// Product is a catalog entry used for link substitution and the products
// template.
type Product struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	URL   string  `json:"url"`
}

// Router resolves an inbound message to an outbound reply.
type Router struct {
	classifier *intent.Classifier
	provider   providers.Provider
	history    *sessions.Manager
	store      *store.RecordStore

	mu      sync.RWMutex
	catalog []Product
}

// New creates a Router. provider may be nil, in which case every escalation
// yields the apology fallback.
func New(classifier *intent.Classifier, provider providers.Provider, history *sessions.Manager, st *store.RecordStore, catalog []Product) *Router {
	return &Router{
		classifier: classifier,
		provider:   provider,
		history:    history,
		store:      st,
		catalog:    catalog,
	}
}

// SetCatalog replaces the product catalog (config hot-reload).
func (r *Router) SetCatalog(catalog []Product) {
	r.mu.Lock()
	r.catalog = catalog
	r.mu.Unlock()
}

// Respond produces the reply for an inbound message. Canned templates are
// tried first; only unmatched text escalates to the AI collaborator.
func (r *Router) Respond(ctx context.Context, identity, text string, customer store.Customer) string {
	if it, ok := r.classifier.Classify(text); ok {
		return r.CannedReply(it, text, customer)
	}
	return r.escalate(ctx, identity, text, customer)
}

// escalate asks the AI collaborator with the contact's bounded history. On
// failure the fixed apology is returned and the failed exchange is excluded
// from history so it cannot corrupt future context.
func (r *Router) escalate(ctx context.Context, identity, text string, customer store.Customer) string {
	if r.provider == nil {
		return apologyMessage
	}

	messages := []providers.Message{{Role: "system", Content: r.systemPrompt(customer)}}
	messages = append(messages, r.history.History(identity)...)
	userTurn := providers.Message{Role: "user", Content: text}
	messages = append(messages, userTurn)

	resp, err := r.provider.Chat(ctx, providers.ChatRequest{
		Messages:    messages,
		MaxTokens:   aiMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		slog.Warn("ai escalation failed", "identity", identity, "error", err)
		return apologyMessage
	}

	reply := r.substituteLinks(resp.Content)

	r.history.AddTurn(identity, userTurn)
	r.history.AddTurn(identity, providers.Message{Role: "assistant", Content: reply})
	return reply
}

func (r *Router) systemPrompt(customer store.Customer) string {
	prompt := systemInstruction
	if customer.FirstName != "" {
		prompt += fmt.Sprintf(" O cliente se chama %s.", customer.FirstName)
	}
	if text := r.catalogText(); text != "" {
		prompt += "\n\nCatálogo:\n" + text
	}
	return prompt
}

var linkPlaceholder = regexp.MustCompile(`\[\[link:([^\]]+)\]\]`)

// substituteLinks replaces [[link:NAME]] placeholders in raw AI output with
// live catalog URLs. Placeholders that match nothing are removed rather than
// leaked to the customer.
func (r *Router) substituteLinks(text string) string {
	r.mu.RLock()
	catalog := r.catalog
	r.mu.RUnlock()

	return linkPlaceholder.ReplaceAllStringFunc(text, func(m string) string {
		name := strings.TrimSpace(linkPlaceholder.FindStringSubmatch(m)[1])
		for _, p := range catalog {
			if strings.EqualFold(p.Name, name) || containsFold(p.Name, name) {
				return p.URL
			}
		}
		return ""
	})
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (r *Router) catalogText() string {
	r.mu.RLock()
	catalog := r.catalog
	r.mu.RUnlock()

	var b strings.Builder
	for i, p := range catalog {
		fmt.Fprintf(&b, "%d. %s - R$ %.2f\n", i+1, p.Name, p.Price)
	}
	return strings.TrimRight(b.String(), "\n")
}
