package responder

import (
	"fmt"
	"strings"

	"github.com/vendahub/zapbot/internal/events"
	"github.com/vendahub/zapbot/internal/intent"
	"github.com/vendahub/zapbot/internal/store"
)

// fallbackFirstName is used when a customer record has no name on file.
const fallbackFirstName = "Cliente"

// CannedReply renders the deterministic template for a matched intent.
// Templates are pure functions of the intent and the customer's first name;
// they cost nothing and carry the bulk of inbound traffic.
func (r *Router) CannedReply(it intent.Intent, text string, customer store.Customer) string {
	name := customer.FirstName
	if name == "" {
		name = fallbackFirstName
	}

	switch it {
	case intent.IntentMenu:
		return "*🤖 Menu de Atendimento*\n\n" +
			"1️⃣ *status* - Verificar status do pedido\n" +
			"2️⃣ *produtos* - Ver produtos disponíveis\n" +
			"3️⃣ *suporte* - Falar com atendente\n" +
			"4️⃣ *acesso* - Recuperar link de acesso\n\n" +
			"Digite o número ou palavra-chave desejada."
	case intent.IntentStatus:
		if customer.LastOrder != "" {
			if order, ok := r.store.GetOrder(customer.LastOrder); ok {
				return fmt.Sprintf("🔍 %s, seu pedido *%s* está com status: *%s*.",
					name, order.Ref, statusLabel(order.Detail.Status))
			}
		}
		return fmt.Sprintf("🔍 %s, não encontrei um pedido recente no seu cadastro. "+
			"Se acabou de comprar, aguarde alguns minutos e tente de novo.", name)
	case intent.IntentProducts:
		return "📦 Nossos produtos:\n\n" + r.catalogText()
	case intent.IntentSupport:
		return fmt.Sprintf("👤 %s, você será transferido para um atendente humano em breve!", name)
	case intent.IntentAccess:
		if customer.LastOrder != "" {
			if order, ok := r.store.GetOrder(customer.LastOrder); ok && order.Detail.AccessURL != "" {
				return fmt.Sprintf("🔑 %s, aqui está seu link de acesso:\n%s", name, order.Detail.AccessURL)
			}
		}
		return fmt.Sprintf("🔑 %s, não encontrei um acesso ativo no seu cadastro. "+
			"Digite *suporte* para falar com um atendente.", name)
	case intent.IntentSelection:
		return r.selectionReply(strings.TrimSpace(text), customer)
	default:
		return r.CannedReply(intent.IntentMenu, text, customer)
	}
}

// selectionReply maps a bare menu digit to the corresponding intent template.
func (r *Router) selectionReply(digit string, customer store.Customer) string {
	switch digit {
	case "1":
		return r.CannedReply(intent.IntentStatus, digit, customer)
	case "2":
		return r.CannedReply(intent.IntentProducts, digit, customer)
	case "3":
		return r.CannedReply(intent.IntentSupport, digit, customer)
	default:
		return r.CannedReply(intent.IntentMenu, digit, customer)
	}
}

func statusLabel(status string) string {
	switch status {
	case "approved", "paid":
		return "pagamento aprovado ✅"
	case "order_created", "created", "waiting_payment", "pending":
		return "aguardando pagamento ⏳"
	case "refused", "rejected":
		return "pagamento recusado ❌"
	case "":
		return "em processamento"
	default:
		return status
	}
}

// EventMessage renders the outbound conversation opener for a classified
// webhook event. One template per canonical event; unknown types fall back
// to the abandoned-cart nudge.
func EventMessage(ev events.Event) string {
	name := ev.Customer.FirstName
	if name == "" {
		name = fallbackFirstName
	}
	product := ev.Order.Product
	if product == "" {
		product = "Produto"
	}

	switch ev.Type {
	case events.TypeOrderApproved:
		return fmt.Sprintf("🎉 *Parabéns %s!*\n\n"+
			"Sua compra foi *aprovada com sucesso*!\n\n"+
			"📦 *Produto:* %s\n"+
			"🔖 *Pedido:* %s\n\n"+
			"✅ Você já pode acessar clicando aqui:\n%s\n\n"+
			"Precisa de ajuda? Digite *ajuda* a qualquer momento!",
			name, product, ev.Order.Ref, ev.Order.AccessURL)
	case events.TypePixCreated:
		return fmt.Sprintf("Olá %s! 😊\n\n"+
			"Seu *PIX* foi gerado com sucesso!\n\n"+
			"📦 *Produto:* %s\n"+
			"⏰ *Válido até:* %s\n\n"+
			"🔑 *Código PIX:*\n```%s```\n\n"+
			"Após o pagamento, você receberá acesso *imediatamente*! ⚡",
			name, product, ev.Order.PixExpiration, ev.Order.PixCode)
	case events.TypeBilletCreated:
		return fmt.Sprintf("Olá %s! 📃\n\n"+
			"Seu *boleto* foi gerado!\n\n"+
			"📦 *Produto:* %s\n"+
			"📅 *Vencimento:* %s\n\n"+
			"🔗 *Link do boleto:*\n%s\n\n"+
			"📊 *Código de barras:*\n`%s`\n\n"+
			"Posso te ajudar com algo? Digite *ajuda*",
			name, product, ev.Order.BoletoDueDate, ev.Order.BoletoURL, ev.Order.BoletoBarcode)
	case events.TypeOrderRejected:
		reason := ev.Order.RejectReason
		if reason == "" {
			reason = "Não especificado"
		}
		return fmt.Sprintf("Olá %s! 😕\n\n"+
			"Infelizmente seu pagamento *não foi aprovado*.\n\n"+
			"❌ *Motivo:* %s\n\n"+
			"Mas não se preocupe! Posso te ajudar:\n\n"+
			"1️⃣ Tentar outro cartão\n"+
			"2️⃣ Pagar com PIX (desconto!)\n"+
			"3️⃣ Parcelar no boleto\n\n"+
			"Digite o *número* da opção desejada.",
			name, reason)
	case events.TypeSubscriptionRenewed:
		return fmt.Sprintf("Olá %s! 🔄\n\n"+
			"Sua assinatura de *%s* foi renovada com sucesso!\n\n"+
			"💳 *Valor:* R$ %.2f\n"+
			"📅 *Próxima cobrança:* %s\n\n"+
			"Obrigado por continuar conosco! ❤️",
			name, product, ev.Order.Amount, ev.Order.NextPayment)
	case events.TypeSubscriptionCanceled:
		return fmt.Sprintf("Olá %s! 😢\n\n"+
			"Sua assinatura de *%s* foi cancelada.\n\n"+
			"Sentiremos muito sua falta!\n\n"+
			"Pode me contar o motivo? Gostaríamos de melhorar!",
			name, product)
	case events.TypeSubscriptionLate:
		return fmt.Sprintf("Olá %s! ⚠️\n\n"+
			"Detectamos um problema no pagamento da sua assinatura de *%s*.\n\n"+
			"Para não perder o acesso, você pode:\n\n"+
			"1️⃣ Atualizar forma de pagamento\n"+
			"2️⃣ Pagar com PIX\n"+
			"3️⃣ Falar com suporte\n\n"+
			"Digite o *número* da opção.",
			name, product)
	default: // abandoned cart and anything unrecognized
		return fmt.Sprintf("Olá %s! 👋\n\n"+
			"Vi que você deixou o *%s* no carrinho.\n\n"+
			"Posso te ajudar a finalizar sua compra? 😊\n"+
			"Se tiver alguma dúvida sobre o produto, estou aqui!",
			name, product)
	}
}

// ReminderMessage is the payment follow-up nudge sent when a PIX or boleto
// stays unpaid past the reminder delay.
func ReminderMessage(fu store.PendingFollowUp) string {
	name := fu.Customer.FirstName
	if name == "" {
		name = fallbackFirstName
	}
	product := fu.Order.Detail.Product
	if product == "" {
		product = "sua compra"
	}
	return fmt.Sprintf("Oi %s! 👋\n\n"+
		"Vi que o pagamento de *%s* ainda não foi confirmado.\n\n"+
		"Ficou com alguma dúvida? Posso gerar um novo código se o seu expirou. "+
		"É só me responder por aqui! 😊",
		name, product)
}

// ThrottleNotice is returned to senders rejected by admission control.
const ThrottleNotice = "⏳ Você enviou muitas mensagens em pouco tempo. " +
	"Aguarde um minuto e tente novamente."

// apologyMessage is the fixed fallback when the AI collaborator fails.
const apologyMessage = "Desculpe, não consegui processar sua mensagem agora. 😔\n" +
	"Digite *menu* para ver as opções ou tente novamente em instantes."
