package domain

import "time"

// PaymentOrigin tags which store a checkout candidate came from. It is only
// used to route deletes.
type PaymentOrigin string

const (
	OriginAccount PaymentOrigin = "account"
	OriginVault   PaymentOrigin = "vault"
)

// PaymentCandidate is the read-only view shared by both payment sources.
type PaymentCandidate struct {
	Ref            string        `json:"ref"`
	ID             string        `json:"id"`
	Origin         PaymentOrigin `json:"origin"`
	CardholderName string        `json:"cardholderName"`
	MaskedNumber   string        `json:"cardNumber"`
	Last4          string        `json:"last4"`
	Expiry         string        `json:"expiryDate"`
	Family         CardFamily    `json:"cardType"`
	IsDefault      bool          `json:"isDefault"`
	Nickname       string        `json:"nickname,omitempty"`
}

type PaymentMode string

const (
	PaymentModeNew   PaymentMode = "new"
	PaymentModeSaved PaymentMode = "saved"
)

// BookingPaymentSelection is the only payment representation forwarded to
// the booking writer. For PaymentModeSaved, CardNumber is a zero-padded
// placeholder that is not chargeable.
type BookingPaymentSelection struct {
	Mode           PaymentMode `json:"mode"`
	InstrumentRef  string      `json:"instrumentRef,omitempty"`
	CardNumber     string      `json:"cardNumber"`
	Expiry         string      `json:"expiryDate,omitempty"`
	CardholderName string      `json:"cardholderName,omitempty"`
	Family         CardFamily  `json:"cardType"`
	CVV            string      `json:"-"`
}

// BookingPayment is the persisted payment part of a booking record. CardNumber
// holds the masked number for a new card and the placeholder for a saved one.
type BookingPayment struct {
	ID             int64       `json:"id"`
	BookingRef     string      `json:"bookingRef"`
	OwnerID        string      `json:"userId"`
	Mode           PaymentMode `json:"mode"`
	InstrumentRef  string      `json:"instrumentRef,omitempty"`
	CardNumber     string      `json:"cardNumber"`
	Expiry         string      `json:"expiryDate"`
	CardholderName string      `json:"cardholderName"`
	Family         CardFamily  `json:"cardType"`
	CreatedAt      time.Time   `json:"createdAt"`
}
