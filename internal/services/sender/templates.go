package sender

import (
	"fmt"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
)

const dateLayout = "2 January 2006"

// Compose строит письмо для сообщения жизненного цикла.
func Compose(msg models.LifecycleMessage) (Message, bool) {
	var subject, text string
	switch msg.Type {
	case models.LifecycleCreated, models.LifecycleResubscribe:
		if msg.OnTrial && msg.TrialEndDate != nil {
			subject = "Your Next Gig free trial has started"
			text = fmt.Sprintf("Welcome to Next Gig!\n\nYour %d-day free trial is active and ends on %s.\n"+
				"You will not be charged before then, and you can cancel at any time from the app.",
				msg.TrialDuration, msg.TrialEndDate.Format(dateLayout))
		} else {
			subject = "Your Next Gig subscription is active"
			text = "Welcome to Next Gig!\n\nYour subscription is active. Thank you for subscribing."
		}
	case models.LifecycleCancelled:
		subject = "Your Next Gig subscription has been cancelled"
		text = "Your Next Gig subscription has been cancelled and you will not be charged again.\n" +
			"You can resubscribe at any time from the app."
		if msg.Note != "" {
			text += "\n\nNote: " + msg.Note
		}
	case models.LifecycleSuspended:
		subject = "Action needed: your Next Gig subscription is suspended"
		text = "We could not collect your latest payment, so your Next Gig subscription has been suspended.\n" +
			"Please update your payment method in PayPal to restore access."
	default:
		return Message{}, false
	}
	return Message{
		To:       msg.Email,
		Subject:  subject,
		Tag:      msg.Type,
		TextBody: text,
	}, true
}
