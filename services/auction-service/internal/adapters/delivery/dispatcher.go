package delivery

import (
	"context"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/notifications"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type TextSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Dispatcher picks a channel per contact: email when an address is on file,
// otherwise SMS when a phone number is on file and SMS is configured.
type Dispatcher struct {
	email EmailSender
	sms   TextSender
}

// NewDispatcher builds a notifier. Either sender may be nil to disable that
// channel.
func NewDispatcher(email EmailSender, sms TextSender) *Dispatcher {
	return &Dispatcher{email: email, sms: sms}
}

func (d *Dispatcher) Notify(ctx context.Context, to notifications.Contact, msg notifications.Message) error {
	switch {
	case to.Email != "" && d.email != nil:
		return d.email.SendEmail(ctx, to.Email, msg.Subject, msg.Body)
	case to.Phone != "" && d.sms != nil:
		text := msg.SMS
		if text == "" {
			text = msg.Subject
		}
		return d.sms.SendSMS(ctx, to.Phone, text)
	default:
		return notifications.ErrNoDeliveryChannel
	}
}
