// Package intent maps free-form customer text to a small intent taxonomy via
// ordered keyword matching. Keyword sets overlap, so table order is the
// tie-break and must be preserved as authored.
package intent

import (
	"strings"
	"sync"
)

// Intent identifies a recognized customer request.
type Intent string

const (
	IntentMenu      Intent = "menu"
	IntentStatus    Intent = "status"
	IntentProducts  Intent = "products"
	IntentSupport   Intent = "support"
	IntentAccess    Intent = "access"
	IntentSelection Intent = "selection"
)

// Rule binds an intent to its trigger keywords. Matching is case-insensitive
// substring search; the first rule with any matching keyword wins.
type Rule struct {
	Intent   Intent   `json:"intent"`
	Keywords []string `json:"keywords"`
}

// DefaultRules is the built-in classification table. "menu" must outrank
// "support" because "menu de suporte" should open the menu, not a ticket.
func DefaultRules() []Rule {
	return []Rule{
		{Intent: IntentMenu, Keywords: []string{"menu", "ajuda", "opcoes", "opções"}},
		{Intent: IntentStatus, Keywords: []string{"status", "pedido", "andamento"}},
		{Intent: IntentProducts, Keywords: []string{"produto", "produtos", "comprar", "preço", "preco"}},
		{Intent: IntentAccess, Keywords: []string{"acesso", "login", "senha", "link"}},
		{Intent: IntentSupport, Keywords: []string{"suporte", "atendente", "humano", "reclama"}},
	}
}

// Classifier evaluates the rule table in order. Safe for concurrent use;
// the table can be swapped at runtime (config hot-reload).
type Classifier struct {
	mu    sync.RWMutex
	rules []Rule
}

// New creates a classifier with the default table.
func New() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// SetRules replaces the classification table, preserving the given order.
// Empty input restores the defaults.
func (c *Classifier) SetRules(rules []Rule) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	c.mu.Lock()
	c.rules = rules
	c.mu.Unlock()
}

// Classify returns the first matching intent for the text. A bare single
// digit 1-3 is recognized as IntentSelection, checked only after the keyword
// table yields nothing. ok is false when no rule applies, signaling the
// caller to escalate.
func (c *Classifier) Classify(text string) (Intent, bool) {
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return "", false
	}

	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()

	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(norm, kw) {
				return rule.Intent, true
			}
		}
	}

	if norm == "1" || norm == "2" || norm == "3" {
		return IntentSelection, true
	}

	return "", false
}
