package notify

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/eduflow-br/eduflow/app/models"
)

// Notifier delivers lifecycle emails to students. Implementations must never
// block the caller; delivery failures are logged, not returned, because the
// state change that triggered the email has already been committed.
type Notifier interface {
	PixChargeCreated(student *models.Student, payment *models.Payment)
	PaymentConfirmed(student *models.Student, payment *models.Payment)
	PixOfferExpired(student *models.Student, payment *models.Payment)
	SubscriptionSuspended(student *models.Student, sub *models.Subscription)
	SubscriptionCancelled(student *models.Student, sub *models.Subscription)
}

// MailNotifier sends lifecycle emails over SMTP, one goroutine per message.
type MailNotifier struct{}

func NewMailNotifier() *MailNotifier {
	return &MailNotifier{}
}

func (n *MailNotifier) PixChargeCreated(student *models.Student, payment *models.Payment) {
	body := fmt.Sprintf(
		"<p>Olá %s,</p><p>Seu código PIX de %s foi gerado. Pague até %s para ativar sua assinatura.</p><pre>%s</pre>",
		student.Name, formatAmount(payment.FinalAmountCents, payment.Currency),
		payment.OfferExpiresAt.Format("02/01/2006 15:04"), payment.CopyPasteCode,
	)
	n.send(student.Email, "Seu código PIX está pronto", body)
}

func (n *MailNotifier) PaymentConfirmed(student *models.Student, payment *models.Payment) {
	body := fmt.Sprintf(
		"<p>Olá %s,</p><p>Recebemos seu pagamento de %s. Sua assinatura está ativa, bons estudos!</p>",
		student.Name, formatAmount(payment.FinalAmountCents, payment.Currency),
	)
	n.send(student.Email, "Pagamento confirmado", body)
}

func (n *MailNotifier) PixOfferExpired(student *models.Student, payment *models.Payment) {
	body := fmt.Sprintf(
		"<p>Olá %s,</p><p>Seu código PIX de %s expirou sem pagamento. Você pode gerar um novo código a qualquer momento.</p>",
		student.Name, formatAmount(payment.FinalAmountCents, payment.Currency),
	)
	n.send(student.Email, "Código PIX expirado", body)
}

func (n *MailNotifier) SubscriptionSuspended(student *models.Student, sub *models.Subscription) {
	body := fmt.Sprintf(
		"<p>Olá %s,</p><p>Não conseguimos renovar sua assinatura e o acesso foi suspenso. Atualize sua forma de pagamento para reativá-la.</p>",
		student.Name,
	)
	n.send(student.Email, "Assinatura suspensa", body)
}

func (n *MailNotifier) SubscriptionCancelled(student *models.Student, sub *models.Subscription) {
	body := fmt.Sprintf(
		"<p>Olá %s,</p><p>Sua assinatura foi cancelada. Sentiremos sua falta!</p>",
		student.Name,
	)
	n.send(student.Email, "Assinatura cancelada", body)
}

func (n *MailNotifier) send(to, subject, body string) {
	go func() {
		if err := SendMail(to, subject, body); err != nil {
			log.Errorf("[Notify] Failed to send %q to %s: %v", subject, to, err)
		}
	}()
}

// NoopNotifier drops all notifications. Used in tests and in deployments
// without SMTP configured.
type NoopNotifier struct{}

func (NoopNotifier) PixChargeCreated(*models.Student, *models.Payment)          {}
func (NoopNotifier) PaymentConfirmed(*models.Student, *models.Payment)          {}
func (NoopNotifier) PixOfferExpired(*models.Student, *models.Payment)           {}
func (NoopNotifier) SubscriptionSuspended(*models.Student, *models.Subscription) {}
func (NoopNotifier) SubscriptionCancelled(*models.Student, *models.Subscription) {}

func formatAmount(cents int64, currency string) string {
	symbol := currency
	if currency == "BRL" {
		symbol = "R$"
	}
	return fmt.Sprintf("%s %d,%02d", symbol, cents/100, cents%100)
}
