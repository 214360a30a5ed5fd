package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/travelbooking/internal/card"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

// BookingPaymentRepository persists the payment part of a booking. Security
// codes are never stored.
type BookingPaymentRepository interface {
	Record(ctx context.Context, ownerID, bookingRef string, sel domain.BookingPaymentSelection) (*domain.BookingPayment, error)
	Create(ctx context.Context, payment *domain.BookingPayment) error
	GetByBookingRef(ctx context.Context, ref string) (*domain.BookingPayment, error)
}

type PGBookingPaymentRepository struct {
	db DB
}

func NewBookingPaymentRepository(db DB) BookingPaymentRepository {
	return &PGBookingPaymentRepository{db: db}
}

// NewBookingPayment derives the stored row from a checkout selection. A new
// card keeps only its masked number; a saved card keeps the placeholder it
// was submitted with.
func NewBookingPayment(ownerID, bookingRef string, sel domain.BookingPaymentSelection) *domain.BookingPayment {
	number := sel.CardNumber
	if sel.Mode == domain.PaymentModeNew {
		number = card.Mask(sel.CardNumber)
	}
	return &domain.BookingPayment{
		BookingRef:     bookingRef,
		OwnerID:        ownerID,
		Mode:           sel.Mode,
		InstrumentRef:  sel.InstrumentRef,
		CardNumber:     number,
		Expiry:         sel.Expiry,
		CardholderName: sel.CardholderName,
		Family:         sel.Family,
	}
}

func (r *PGBookingPaymentRepository) Record(ctx context.Context, ownerID, bookingRef string, sel domain.BookingPaymentSelection) (*domain.BookingPayment, error) {
	p := NewBookingPayment(ownerID, bookingRef, sel)
	if err := r.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PGBookingPaymentRepository) Create(ctx context.Context, p *domain.BookingPayment) error {
	return r.db.QueryRow(ctx, `INSERT INTO booking_payments (booking_ref, user_id, mode, instrument_ref, card_number, expiry_date, cardholder_name, card_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`, p.BookingRef, p.OwnerID, p.Mode, p.InstrumentRef, p.CardNumber, p.Expiry, p.CardholderName, p.Family).
		Scan(&p.ID, &p.CreatedAt)
}

func (r *PGBookingPaymentRepository) GetByBookingRef(ctx context.Context, ref string) (*domain.BookingPayment, error) {
	row := r.db.QueryRow(ctx, `SELECT id, booking_ref, user_id, mode, instrument_ref, card_number, expiry_date, cardholder_name, card_type, created_at
		FROM booking_payments WHERE booking_ref=$1`, ref)
	var p domain.BookingPayment
	if err := row.Scan(&p.ID, &p.BookingRef, &p.OwnerID, &p.Mode, &p.InstrumentRef, &p.CardNumber, &p.Expiry, &p.CardholderName, &p.Family, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundError{Entity: "booking payment", ID: ref}
		}
		return nil, err
	}
	return &p, nil
}

var _ BookingPaymentRepository = (*PGBookingPaymentRepository)(nil)
