// Package store owns all mutable business state: customers, orders,
// conversation logs, and pending follow-ups. Every map is private and every
// access goes through a method under the store's own lock; callers pass data
// in and read snapshots out, never raw map references.
package store

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vendahub/zapbot/internal/events"
)

// Customer is keyed by email. CreatedAt is immutable once set; Orders is
// append-only. Order refs are deduplicated on append — the audit trail keeps
// one entry per order regardless of webhook redelivery.
type Customer struct {
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	FirstName string    `json:"first_name"`
	Mobile    string    `json:"mobile"`
	Document  string    `json:"document"`
	LastOrder string    `json:"last_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Orders    []string  `json:"orders"`
}

// Order is keyed by order ref and upserted last-write-wins.
type Order struct {
	Ref       string       `json:"ref"`
	EventType events.Type  `json:"event_type"`
	Detail    events.Order `json:"detail"`
	Customer  string       `json:"customer"`
	SavedAt   time.Time    `json:"saved_at"`
}

// Message is one conversation turn.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"` // "customer" or "system"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is keyed by chat address; Messages is append-only and never
// pruned. Unbounded growth is an accepted tradeoff for auditability.
type Conversation struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// PendingFollowUp is keyed by order ref. At most one live entry per order.
// It carries a snapshot of the customer and order taken at schedule time so
// the reminder can be composed even if the live records change.
type PendingFollowUp struct {
	OrderRef  string    `json:"order_ref"`
	Customer  Customer  `json:"customer"`
	Order     Order     `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	Scheduled bool      `json:"scheduled"`
}

// RecordStore holds all entity maps behind a single lock.
type RecordStore struct {
	mu            sync.RWMutex
	customers     map[string]*Customer
	orders        map[string]*Order
	conversations map[string]*Conversation
	followUps     map[string]*PendingFollowUp
	now           func() time.Time
}

// New creates an empty RecordStore.
func New() *RecordStore {
	return &RecordStore{
		customers:     make(map[string]*Customer),
		orders:        make(map[string]*Order),
		conversations: make(map[string]*Conversation),
		followUps:     make(map[string]*PendingFollowUp),
		now:           time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *RecordStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// UpsertCustomer creates or updates the customer identified by profile.Email
// and associates orderRef with it. Malformed input is stored as-is; validation
// is a caller responsibility. Returns a copy of the resulting record.
func (s *RecordStore) UpsertCustomer(profile events.Customer, orderRef string) Customer {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.customers[profile.Email]
	if !ok {
		c = &Customer{Email: profile.Email, CreatedAt: now}
		s.customers[profile.Email] = c
	}

	c.FullName = profile.FullName
	c.FirstName = profile.FirstName
	c.Mobile = profile.Mobile
	c.Document = profile.Document
	c.UpdatedAt = now
	if orderRef != "" {
		c.LastOrder = orderRef
		if !slices.Contains(c.Orders, orderRef) {
			c.Orders = append(c.Orders, orderRef)
		}
	}

	return copyCustomer(c)
}

// GetCustomer returns a copy of the customer record, if present.
func (s *RecordStore) GetCustomer(email string) (Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[email]
	if !ok {
		return Customer{}, false
	}
	return copyCustomer(c), true
}

// GetCustomerByAddress finds the customer whose mobile digits end with the
// local part of the given chat address. Used to personalize canned replies.
func (s *RecordStore) GetCustomerByAddress(address string) (Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.Mobile != "" && sameSubscriber(c.Mobile, address) {
			return copyCustomer(c), true
		}
	}
	return Customer{}, false
}

// Customers returns copies of all customer records.
func (s *RecordStore) Customers() []Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, copyCustomer(c))
	}
	return out
}

// UpsertOrder saves the order last-write-wins by ref.
func (s *RecordStore) UpsertOrder(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[ev.Order.Ref] = &Order{
		Ref:       ev.Order.Ref,
		EventType: ev.Type,
		Detail:    ev.Order,
		Customer:  ev.Customer.Email,
		SavedAt:   s.now(),
	}
}

// GetOrder returns a copy of the order record, if present.
func (s *RecordStore) GetOrder(ref string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[ref]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// OrderStatus atomically reads the current payment status of an order.
// This is the check-then-act primitive the follow-up scheduler relies on.
func (s *RecordStore) OrderStatus(ref string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[ref]
	if !ok {
		return "", false
	}
	return o.Detail.Status, true
}

// AppendMessage appends one turn to the conversation for the address,
// creating the conversation on first use.
func (s *RecordStore) AppendMessage(address, from, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv, ok := s.conversations[address]
	if !ok {
		conv = &Conversation{Address: address, CreatedAt: now}
		s.conversations[address] = conv
	}
	conv.Messages = append(conv.Messages, Message{
		ID:        uuid.NewString(),
		From:      from,
		Text:      text,
		Timestamp: now,
	})
	conv.UpdatedAt = now
}

// GetConversation returns a copy of the conversation for the address.
func (s *RecordStore) GetConversation(address string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[address]
	if !ok {
		return Conversation{}, false
	}
	return copyConversation(conv), true
}

// Conversations returns copies of all conversations.
func (s *RecordStore) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, copyConversation(conv))
	}
	return out
}

// PutFollowUp registers a pending follow-up for the order ref. Returns false
// without overwriting when one is already live, preserving the at-most-one
// invariant.
func (s *RecordStore) PutFollowUp(fu PendingFollowUp) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.followUps[fu.OrderRef]; exists {
		return false
	}
	if fu.CreatedAt.IsZero() {
		fu.CreatedAt = s.now()
	}
	s.followUps[fu.OrderRef] = &fu
	return true
}

// TakeFollowUp removes and returns the pending follow-up for the order ref.
// The removal is atomic: concurrent callers see it at most once.
func (s *RecordStore) TakeFollowUp(orderRef string) (PendingFollowUp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fu, ok := s.followUps[orderRef]
	if !ok {
		return PendingFollowUp{}, false
	}
	delete(s.followUps, orderRef)
	return *fu, true
}

// HasFollowUp reports whether a follow-up is live for the order ref.
func (s *RecordStore) HasFollowUp(orderRef string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.followUps[orderRef]
	return ok
}

// PendingFollowUps returns copies of all live follow-up entries. Used to
// re-arm timers after a snapshot restore.
func (s *RecordStore) PendingFollowUps() []PendingFollowUp {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PendingFollowUp, 0, len(s.followUps))
	for _, fu := range s.followUps {
		out = append(out, *fu)
	}
	return out
}

// Counts returns entity counts for the status endpoint.
func (s *RecordStore) Counts() (customers, orders, conversations, followUps int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers), len(s.orders), len(s.conversations), len(s.followUps)
}

func copyCustomer(c *Customer) Customer {
	out := *c
	out.Orders = slices.Clone(c.Orders)
	return out
}

func copyConversation(conv *Conversation) Conversation {
	out := *conv
	out.Messages = slices.Clone(conv.Messages)
	return out
}

// sameSubscriber compares the digits of a stored mobile against a chat
// address, tolerating the optional ninth digit and country prefix.
func sameSubscriber(mobile, address string) bool {
	a := digitsTail(mobile, 8)
	b := digitsTail(address, 8)
	return a != "" && a == b
}

func digitsTail(s string, n int) string {
	digits := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) < n {
		return string(digits)
	}
	return string(digits[len(digits)-n:])
}
