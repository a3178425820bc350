package events

import (
	"strconv"
	"strings"
)

// payload wraps a decoded webhook body with shape-tolerant field access.
// Two shapes are supported: the flat legacy shape with a capitalized
// "Customer" block, and the nested shape with "data.buyer"/"data.purchase".
type payload map[string]any

func (p payload) eventType() string {
	if v := p.str("webhook_event_type"); v != "" {
		return v
	}
	return p.str("event")
}

func (p payload) status() string {
	for _, key := range []string{"sale_status", "payment_status", "status"} {
		if v := p.str(key); v != "" {
			return strings.ToLower(v)
		}
	}
	if v := p.nestedStr("data", "purchase", "status"); v != "" {
		return strings.ToLower(v)
	}
	return ""
}

func (p payload) method() string {
	if v := p.str("payment_method"); v != "" {
		return strings.ToLower(v)
	}
	return strings.ToLower(p.nestedStr("data", "purchase", "payment", "type"))
}

func (p payload) customer() Customer {
	c := Customer{
		Email:     p.firstStr([]string{"Customer", "email"}, []string{"data", "buyer", "email"}),
		FullName:  p.firstStr([]string{"Customer", "full_name"}, []string{"data", "buyer", "name"}),
		FirstName: p.firstStr([]string{"Customer", "first_name"}, []string{"data", "buyer", "first_name"}),
		Mobile:    p.firstStr([]string{"Customer", "mobile"}, []string{"data", "buyer", "checkout_phone"}),
		Document:  p.firstStr([]string{"Customer", "CPF"}, []string{"data", "buyer", "document"}),
	}
	if c.FirstName == "" {
		if fields := strings.Fields(c.FullName); len(fields) > 0 {
			c.FirstName = fields[0]
		}
	}
	return c
}

func (p payload) order() Order {
	o := Order{
		Ref:           p.firstStr([]string{"order_ref"}, []string{"order_id"}, []string{"data", "purchase", "transaction"}),
		Product:       p.firstStr([]string{"Product", "product_name"}, []string{"data", "product", "name"}),
		Status:        p.status(),
		PaymentMethod: p.method(),
		Amount:        p.amount(),
		AccessURL:     p.str("access_url"),
		CheckoutURL:   p.firstStr([]string{"checkout_url"}, []string{"data", "purchase", "checkout_url"}),
		PixCode:       p.firstStr([]string{"pix_code"}, []string{"data", "purchase", "payment", "pix_code"}),
		PixExpiration: p.firstStr([]string{"pix_expiration"}, []string{"data", "purchase", "payment", "pix_expiration_date"}),
		BoletoURL:     p.firstStr([]string{"boleto_URL"}, []string{"data", "purchase", "payment", "billet_url"}),
		BoletoBarcode: p.firstStr([]string{"boleto_barcode"}, []string{"data", "purchase", "payment", "billet_barcode"}),
		BoletoDueDate: p.firstStr([]string{"boleto_expiry_date"}, []string{"data", "purchase", "payment", "billet_date"}),
		RejectReason:  p.firstStr([]string{"card_rejection_reason"}, []string{"data", "purchase", "payment", "refusal_reason"}),
		NextPayment:   p.firstStr([]string{"Subscription", "next_payment"}, []string{"data", "subscription", "date_next_charge"}),
	}
	return o
}

func (p payload) amount() float64 {
	// Legacy shape carries cents under Commissions.charge_amount.
	if v, ok := p.nested("Commissions", "charge_amount"); ok {
		if f, ok := toFloat(v); ok {
			return f / 100
		}
	}
	if v, ok := p.nested("data", "purchase", "price", "value"); ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return 0
}

func (p payload) has(key string) bool {
	v, ok := p[key]
	if !ok {
		return false
	}
	s, isStr := v.(string)
	return !isStr || s != ""
}

func (p payload) str(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p payload) nested(path ...string) (any, bool) {
	var cur any = map[string]any(p)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (p payload) nestedStr(path ...string) string {
	v, ok := p.nested(path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// firstStr returns the first non-empty string found at any of the paths.
func (p payload) firstStr(paths ...[]string) string {
	for _, path := range paths {
		var v string
		if len(path) == 1 {
			v = p.str(path[0])
		} else {
			v = p.nestedStr(path...)
		}
		if v != "" {
			return v
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
