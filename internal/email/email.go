package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/logger"
)

// Sender notifies card owners about changes to their saved cards.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.VaultEvent) error {
	subject, body, ok := Compose(event)
	if !ok {
		return nil
	}
	logger.GetLogger("email").Infow("send notification", "user_id", event.OwnerID, "subject", subject, "body", body)
	return nil
}

// Compose renders the notice for event. Events that need no notice return ok=false.
func Compose(event kafka.VaultEvent) (subject, body string, ok bool) {
	switch event.Type {
	case kafka.EventCardSaved:
		return "A new card was saved to your account",
			fmt.Sprintf("Your %s card %s was saved for future bookings.", event.Family, event.MaskedNumber), true
	case kafka.EventCardDeleted:
		return "A saved card was removed",
			fmt.Sprintf("Your %s card %s was removed from your account.", event.Family, event.MaskedNumber), true
	case kafka.EventDefaultChanged:
		return "Your default card changed",
			fmt.Sprintf("Card %s is now your default payment card.", event.MaskedNumber), true
	default:
		return "", "", false
	}
}
