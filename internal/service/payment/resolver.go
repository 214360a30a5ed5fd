package payment

import (
	"context"
	"strings"
	"time"

	"github.com/Domenick1991/travelbooking/internal/card"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/Domenick1991/travelbooking/internal/metrics"
	"github.com/Domenick1991/travelbooking/internal/service/vault"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type ResolverUseCase interface {
	Candidates(ctx context.Context, ownerID string) (*Checkout, error)
	Submit(ctx context.Context, ownerID string, input SubmitInput) (*SubmitResult, error)
	DeleteCandidate(ctx context.Context, checkout *Checkout, ref string) error
}

// VaultSource is the part of the payment vault used at checkout.
type VaultSource interface {
	List(ctx context.Context, ownerID string) ([]domain.SavedInstrument, error)
	Save(ctx context.Context, input vault.SaveInput) (*domain.SavedInstrument, error)
	TouchLastUsed(ctx context.Context, id string) (*domain.SavedInstrument, error)
	Delete(ctx context.Context, id string) (*domain.SavedInstrument, error)
}

type AccountSource interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.AccountPaymentMethod, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// BookingWriter records the payment part of a booking from the selection
// made at checkout.
type BookingWriter interface {
	Record(ctx context.Context, ownerID, bookingRef string, sel domain.BookingPaymentSelection) (*domain.BookingPayment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type SubmitInput struct {
	Mode           domain.PaymentMode `json:"mode"`
	InstrumentRef  string             `json:"instrumentRef"`
	CardNumber     string             `json:"cardNumber"`
	ExpiryDate     string             `json:"expiryDate"`
	CardholderName string             `json:"cardholderName"`
	CVV            string             `json:"cvv"`
	SaveCard       bool               `json:"saveCard"`
	Nickname       string             `json:"nickname"`
	BookingRef     string             `json:"bookingRef"`
}

type newCardForm struct {
	CardNumber     string `json:"cardNumber" validate:"required,cardnumber"`
	ExpiryDate     string `json:"expiryDate" validate:"required,cardexpiry"`
	CVV            string `json:"cvv" validate:"required,cvv"`
	CardholderName string `json:"cardholderName" validate:"required,max=100"`
}

type savedCardForm struct {
	InstrumentRef string `json:"instrumentRef" validate:"required"`
	CVV           string `json:"cvv" validate:"required,cvv"`
}

type SubmitResult struct {
	// Selection carries the full number of a new card and is never rendered.
	Selection domain.BookingPaymentSelection `json:"-"`
	Payment   *domain.BookingPayment         `json:"payment"`
	// SavedInstrument is set when a new card was also stored in the vault.
	SavedInstrument *domain.SavedInstrument `json:"savedInstrument,omitempty"`
}

type Resolver struct {
	vault     VaultSource
	accounts  AccountSource
	writer    BookingWriter
	validator *card.Validator
	producer  Producer
	topic     string
	now       func() time.Time
}

type ResolverOption func(*Resolver)

func WithEvents(producer Producer, topic string) ResolverOption {
	return func(r *Resolver) {
		r.producer = producer
		r.topic = topic
	}
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(vault VaultSource, accounts AccountSource, writer BookingWriter, opts ...ResolverOption) *Resolver {
	r := &Resolver{vault: vault, accounts: accounts, writer: writer, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.validator = card.NewValidator(r.now)
	return r
}

// Candidates reads both payment sources concurrently. A failed source
// contributes nothing; only the failure of both is an error.
func (r *Resolver) Candidates(ctx context.Context, ownerID string) (*Checkout, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ValidationError{Field: "userId", Msg: "is required"}
	}
	log := logger.GetLogger("payment")

	var (
		g                    errgroup.Group
		accountList          []domain.PaymentCandidate
		vaultList            []domain.PaymentCandidate
		accountErr, vaultErr error
	)
	g.Go(func() error {
		methods, err := r.accounts.ListByOwner(ctx, ownerID)
		if err != nil {
			accountErr = err
			return nil
		}
		accountList = fromAccount(methods)
		return nil
	})
	g.Go(func() error {
		instruments, err := r.vault.List(ctx, ownerID)
		if err != nil {
			vaultErr = err
			return nil
		}
		vaultList = fromVault(instruments)
		return nil
	})
	_ = g.Wait()

	var degraded []domain.PaymentOrigin
	if accountErr != nil {
		log.Warnw("account payment methods unavailable", "user_id", ownerID, "error", accountErr)
		metrics.PaymentSourceFailures.WithLabelValues(string(domain.OriginAccount)).Inc()
		degraded = append(degraded, domain.OriginAccount)
	}
	if vaultErr != nil {
		log.Warnw("saved cards unavailable", "user_id", ownerID, "error", vaultErr)
		metrics.PaymentSourceFailures.WithLabelValues(string(domain.OriginVault)).Inc()
		degraded = append(degraded, domain.OriginVault)
	}
	if accountErr != nil && vaultErr != nil {
		return nil, domain.ErrUpstreamUnavailable
	}

	candidates := make([]domain.PaymentCandidate, 0, len(accountList)+len(vaultList))
	candidates = append(candidates, accountList...)
	candidates = append(candidates, vaultList...)

	checkout := newCheckout(ownerID, candidates)
	checkout.Degraded = degraded
	return checkout, nil
}

// Submit turns the checkout form into the selection handed to the booking
// writer. Field errors block submission. Saving the card and touching the
// last-used time run only after the booking payment is recorded and never
// fail the submission.
func (r *Resolver) Submit(ctx context.Context, ownerID string, input SubmitInput) (*SubmitResult, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ValidationError{Field: "userId", Msg: "is required"}
	}

	var (
		sel  domain.BookingPaymentSelection
		cand domain.PaymentCandidate
		err  error
	)
	switch input.Mode {
	case domain.PaymentModeNew:
		sel, err = r.selectNew(input)
	case domain.PaymentModeSaved:
		sel, cand, err = r.selectSaved(ctx, ownerID, input)
	default:
		return nil, domain.FieldErrors{"mode": "must be new or saved"}
	}
	if err != nil {
		return nil, err
	}

	bookingRef := input.BookingRef
	if bookingRef == "" {
		bookingRef = uuid.NewString()
	}
	payment, err := r.writer.Record(ctx, ownerID, bookingRef, sel)
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{Selection: sel, Payment: payment}
	log := logger.GetLogger("payment")
	switch {
	case sel.Mode == domain.PaymentModeNew && input.SaveCard:
		saved, err := r.vault.Save(ctx, vault.SaveInput{
			OwnerID:        ownerID,
			CardholderName: sel.CardholderName,
			CardNumber:     sel.CardNumber,
			ExpiryDate:     sel.Expiry,
			Nickname:       input.Nickname,
		})
		if err != nil {
			log.Warnw("save card during booking failed", "user_id", ownerID, "booking_ref", bookingRef, "error", err)
		} else {
			result.SavedInstrument = saved
		}
	case sel.Mode == domain.PaymentModeSaved && cand.Origin == domain.OriginVault:
		if _, err := r.vault.TouchLastUsed(ctx, cand.ID); err != nil {
			log.Warnw("touch last used failed", "instrument_id", cand.ID, "error", err)
		}
	}

	r.publish(ctx, payment, sel)
	return result, nil
}

func (r *Resolver) selectNew(input SubmitInput) (domain.BookingPaymentSelection, error) {
	form := newCardForm{
		CardNumber:     input.CardNumber,
		ExpiryDate:     strings.TrimSpace(input.ExpiryDate),
		CVV:            strings.TrimSpace(input.CVV),
		CardholderName: strings.TrimSpace(input.CardholderName),
	}
	if err := r.validator.Struct(form); err != nil {
		return domain.BookingPaymentSelection{}, err
	}
	digits, err := card.NormalizeNumber(form.CardNumber)
	if err != nil {
		return domain.BookingPaymentSelection{}, err
	}

	return domain.BookingPaymentSelection{
		Mode:           domain.PaymentModeNew,
		CardNumber:     digits,
		Expiry:         form.ExpiryDate,
		CardholderName: form.CardholderName,
		Family:         card.Classify(digits),
		CVV:            form.CVV,
	}, nil
}

func (r *Resolver) selectSaved(ctx context.Context, ownerID string, input SubmitInput) (domain.BookingPaymentSelection, domain.PaymentCandidate, error) {
	form := savedCardForm{InstrumentRef: strings.TrimSpace(input.InstrumentRef), CVV: strings.TrimSpace(input.CVV)}
	if err := r.validator.Struct(form); err != nil {
		return domain.BookingPaymentSelection{}, domain.PaymentCandidate{}, err
	}

	checkout, err := r.Candidates(ctx, ownerID)
	if err != nil {
		return domain.BookingPaymentSelection{}, domain.PaymentCandidate{}, err
	}
	cand, ok := checkout.Find(form.InstrumentRef)
	if !ok {
		return domain.BookingPaymentSelection{}, domain.PaymentCandidate{}, domain.FieldErrors{"instrumentRef": "unknown saved card"}
	}

	return domain.BookingPaymentSelection{
		Mode:           domain.PaymentModeSaved,
		InstrumentRef:  cand.Ref,
		CardNumber:     card.PlaceholderNumber(cand.Last4),
		Expiry:         cand.Expiry,
		CardholderName: cand.CardholderName,
		Family:         cand.Family,
		CVV:            form.CVV,
	}, cand, nil
}

// DeleteCandidate removes ref from checkout first, then deletes it from
// the source it came from. The removal stands even when the source fails.
func (r *Resolver) DeleteCandidate(ctx context.Context, checkout *Checkout, ref string) error {
	cand, ok := checkout.Remove(ref)
	if !ok {
		return domain.NotFoundError{Entity: "payment option", ID: ref}
	}

	var err error
	switch cand.Origin {
	case domain.OriginVault:
		_, err = r.vault.Delete(ctx, cand.ID)
	case domain.OriginAccount:
		err = r.accounts.Delete(ctx, checkout.OwnerID, cand.ID)
	}
	if err != nil {
		logger.GetLogger("payment").Warnw("delete payment option failed", "ref", ref, "error", err)
	}
	return err
}

func (r *Resolver) publish(ctx context.Context, p *domain.BookingPayment, sel domain.BookingPaymentSelection) {
	if r.producer == nil || r.topic == "" {
		return
	}
	event := kafka.BookingPaymentEvent{
		Type:         kafka.EventPaymentRecorded,
		BookingRef:   p.BookingRef,
		OwnerID:      p.OwnerID,
		Mode:         string(p.Mode),
		MaskedNumber: card.Mask(sel.CardNumber),
		OccurredAt:   r.now(),
	}
	if err := r.producer.Publish(ctx, r.topic, p.BookingRef, event); err != nil {
		logger.GetLogger("payment").Warnw("publish booking payment event failed", "booking_ref", p.BookingRef, "error", err)
	}
}

func fromAccount(methods []domain.AccountPaymentMethod) []domain.PaymentCandidate {
	list := make([]domain.PaymentCandidate, 0, len(methods))
	for _, m := range methods {
		list = append(list, domain.PaymentCandidate{
			Ref:            Ref(domain.OriginAccount, m.ID),
			ID:             m.ID,
			Origin:         domain.OriginAccount,
			CardholderName: m.CardholderName,
			MaskedNumber:   m.MaskedNumber,
			Last4:          m.Last4,
			Expiry:         m.Expiry,
			Family:         familyFromBrand(m.Brand),
			IsDefault:      m.IsDefault,
		})
	}
	return list
}

func fromVault(instruments []domain.SavedInstrument) []domain.PaymentCandidate {
	list := make([]domain.PaymentCandidate, 0, len(instruments))
	for _, inst := range instruments {
		list = append(list, domain.PaymentCandidate{
			Ref:            Ref(domain.OriginVault, inst.ID),
			ID:             inst.ID,
			Origin:         domain.OriginVault,
			CardholderName: inst.CardholderName,
			MaskedNumber:   inst.CardNumberMasked,
			Last4:          inst.Last4,
			Expiry:         inst.Expiry,
			Family:         inst.Family,
			IsDefault:      inst.IsDefault,
			Nickname:       inst.Nickname,
		})
	}
	return list
}

func familyFromBrand(brand string) domain.CardFamily {
	switch f := domain.CardFamily(strings.ToLower(strings.TrimSpace(brand))); f {
	case domain.CardFamilyVisa, domain.CardFamilyMastercard, domain.CardFamilyAmex, domain.CardFamilyDiscover:
		return f
	case "master card", "mc":
		return domain.CardFamilyMastercard
	case "american express":
		return domain.CardFamilyAmex
	default:
		return domain.CardFamilyOther
	}
}

var _ ResolverUseCase = (*Resolver)(nil)
