package domain

import "time"

type CardFamily string

const (
	CardFamilyVisa       CardFamily = "visa"
	CardFamilyMastercard CardFamily = "mastercard"
	CardFamilyAmex       CardFamily = "amex"
	CardFamilyDiscover   CardFamily = "discover"
	CardFamilyOther      CardFamily = "other"
)

// SavedInstrument is a vaulted payment card. CardNumberMasked only ever
// carries the last four digits of the original number.
type SavedInstrument struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"userId"`
	CardholderName   string     `json:"cardholderName"`
	CardNumberMasked string     `json:"cardNumber"`
	Last4            string     `json:"last4"`
	Expiry           string     `json:"expiryDate"`
	Family           CardFamily `json:"cardType"`
	IsDefault        bool       `json:"isDefault"`
	Nickname         string     `json:"nickname,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastUsedAt       *time.Time `json:"lastUsedAt,omitempty"`
}

// InstrumentPatch lists the editable fields of a SavedInstrument. Nil fields
// are left as stored.
type InstrumentPatch struct {
	CardholderName *string
	Expiry         *string
	Nickname       *string
	IsDefault      *bool
}

// AccountPaymentMethod is a payment method kept by the account service,
// independent of the vault.
type AccountPaymentMethod struct {
	ID             string
	OwnerID        string
	CardholderName string
	MaskedNumber   string
	Last4          string
	Expiry         string
	Brand          string
	IsDefault      bool
	CreatedAt      time.Time
}
