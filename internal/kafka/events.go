package kafka

import "time"

const (
	EventCardSaved       = "card_saved"
	EventCardUpdated     = "card_updated"
	EventCardDeleted     = "card_deleted"
	EventDefaultChanged  = "default_changed"
	EventPaymentRecorded = "booking_payment_recorded"
)

// VaultEvent describes a change to a saved card. It never carries more than
// the masked number.
type VaultEvent struct {
	Type         string    `json:"type"`
	OwnerID      string    `json:"user_id"`
	InstrumentID string    `json:"instrument_id"`
	MaskedNumber string    `json:"card_number"`
	Family       string    `json:"card_type"`
	IsDefault    bool      `json:"is_default"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// BookingPaymentEvent is emitted once the payment part of a booking is written.
type BookingPaymentEvent struct {
	Type         string    `json:"type"`
	BookingRef   string    `json:"booking_ref"`
	OwnerID      string    `json:"user_id"`
	Mode         string    `json:"mode"`
	MaskedNumber string    `json:"card_number"`
	OccurredAt   time.Time `json:"occurred_at"`
}
