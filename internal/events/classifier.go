// Package events turns raw webhook payloads into canonical business events.
//
// Upstream checkout platforms deliver several payload shapes for the same
// business occurrence, and the producers are not under our control. Instead of
// a strict schema, classification runs an ordered list of shape predicates and
// falls back to a caller-supplied default. Predicate order is correctness
// relevant: a payload can satisfy more than one predicate.
package events

import "strings"

// Type is a canonical business event label.
type Type string

const (
	TypeAbandonedCart        Type = "abandoned_cart"
	TypePixCreated           Type = "pix_created"
	TypeBilletCreated        Type = "billet_created"
	TypeOrderApproved        Type = "order_approved"
	TypeOrderRejected        Type = "order_rejected"
	TypeSubscriptionRenewed  Type = "subscription_renewed"
	TypeSubscriptionCanceled Type = "subscription_canceled"
	TypeSubscriptionLate     Type = "subscription_late"
)

// Customer is the normalized buyer extraction, independent of payload shape.
type Customer struct {
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	FirstName string `json:"first_name"`
	Mobile    string `json:"mobile"`
	Document  string `json:"document"`
}

// Order is the normalized order extraction, independent of payload shape.
type Order struct {
	Ref           string  `json:"ref"`
	Product       string  `json:"product"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"payment_method"`
	Amount        float64 `json:"amount"`
	AccessURL     string  `json:"access_url"`
	CheckoutURL   string  `json:"checkout_url"`
	PixCode       string  `json:"pix_code"`
	PixExpiration string  `json:"pix_expiration"`
	BoletoURL     string  `json:"boleto_url"`
	BoletoBarcode string  `json:"boleto_barcode"`
	BoletoDueDate string  `json:"boleto_due_date"`
	RejectReason  string  `json:"reject_reason"`
	NextPayment   string  `json:"next_payment"`
}

// Event is a classified webhook occurrence with normalized fields.
type Event struct {
	Type     Type
	Customer Customer
	Order    Order
}

// predicate decides whether a payload represents a given event type.
type predicate struct {
	typ   Type
	match func(p payload) bool
}

// predicates is evaluated in order, first match wins. Approval must come
// after PIX/boleto creation: a "created" payload for an instant-transfer sale
// can already carry an approved-looking product block.
var predicates = []predicate{
	{TypeAbandonedCart, func(p payload) bool {
		return p.eventType() == "abandoned_cart" ||
			(p.has("checkout_url") && strings.Contains(p.status(), "abandon"))
	}},
	{TypePixCreated, func(p payload) bool {
		if p.eventType() == "pix_created" {
			return true
		}
		return p.method() == "pix" && isCreated(p.status())
	}},
	{TypeBilletCreated, func(p payload) bool {
		if p.eventType() == "billet_created" {
			return true
		}
		return (p.method() == "billet" || p.method() == "boleto") && isCreated(p.status())
	}},
	{TypeOrderApproved, func(p payload) bool {
		return p.eventType() == "order_approved" || p.status() == "approved" || p.status() == "paid"
	}},
	{TypeOrderRejected, func(p payload) bool {
		return p.eventType() == "order_rejected" || p.status() == "refused" || p.status() == "rejected"
	}},
	{TypeSubscriptionRenewed, func(p payload) bool {
		return p.eventType() == "subscription_renewed"
	}},
	{TypeSubscriptionCanceled, func(p payload) bool {
		return p.eventType() == "subscription_canceled" || p.status() == "canceled"
	}},
	{TypeSubscriptionLate, func(p payload) bool {
		return p.eventType() == "subscription_late" || p.status() == "overdue"
	}},
}

func isCreated(status string) bool {
	return status == "created" || status == "order_created" || status == "waiting_payment" || status == "pending"
}

// Classify maps a raw payload to a canonical event, applying the predicate
// list in order and falling back to the supplied default label when nothing
// matches. The normalized customer/order extraction is performed regardless
// of which shape produced the payload.
func Classify(raw map[string]any, fallback Type) Event {
	p := payload(raw)

	typ := fallback
	for _, pred := range predicates {
		if pred.match(p) {
			typ = pred.typ
			break
		}
	}

	return Event{
		Type:     typ,
		Customer: p.customer(),
		Order:    p.order(),
	}
}
