package intent

import "testing"

func TestClassify(t *testing.T) {
	c := New()

	tests := []struct {
		name   string
		text   string
		want   Intent
		wantOK bool
	}{
		{name: "menu keyword", text: "menu", want: IntentMenu, wantOK: true},
		{name: "ajuda keyword", text: "preciso de AJUDA", want: IntentMenu, wantOK: true},
		{name: "status substring", text: "qual o status do meu pedido?", want: IntentStatus, wantOK: true},
		{name: "products", text: "quero ver os produtos", want: IntentProducts, wantOK: true},
		{name: "access", text: "perdi meu acesso", want: IntentAccess, wantOK: true},
		{name: "support", text: "falar com atendente", want: IntentSupport, wantOK: true},
		{name: "table order tie break", text: "menu de suporte", want: IntentMenu, wantOK: true},
		{name: "digit selection 1", text: "1", wantOK: true, want: IntentSelection},
		{name: "digit selection padded", text: " 3 ", wantOK: true, want: IntentSelection},
		{name: "digit out of range", text: "4", wantOK: false},
		{name: "substring inside sentence", text: "o produto chegou quebrado na caixa errada", want: IntentProducts, wantOK: true},
		{name: "free text", text: "bom dia, tudo bem?", wantOK: false},
		{name: "empty", text: "   ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Classify(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Classify(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestKeywordBeatsDigitSelection(t *testing.T) {
	c := New()
	c.SetRules([]Rule{{Intent: IntentStatus, Keywords: []string{"1"}}})

	got, ok := c.Classify("1")
	if !ok || got != IntentStatus {
		t.Errorf("keyword table should win over digit selection, got %q ok=%v", got, ok)
	}
}

func TestSetRulesEmptyRestoresDefaults(t *testing.T) {
	c := New()
	c.SetRules(nil)
	if _, ok := c.Classify("menu"); !ok {
		t.Error("defaults not restored after SetRules(nil)")
	}
}
