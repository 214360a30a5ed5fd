package vault

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/travelbooking/internal/card"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/Domenick1991/travelbooking/internal/metrics"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/google/uuid"
)

type VaultUseCase interface {
	Save(ctx context.Context, input SaveInput) (*domain.SavedInstrument, error)
	List(ctx context.Context, ownerID string) ([]domain.SavedInstrument, error)
	Get(ctx context.Context, id string) (*domain.SavedInstrument, error)
	Update(ctx context.Context, id string, input UpdateInput) (*domain.SavedInstrument, error)
	SetDefault(ctx context.Context, id string) (*domain.SavedInstrument, error)
	TouchLastUsed(ctx context.Context, id string) (*domain.SavedInstrument, error)
	Delete(ctx context.Context, id string) (*domain.SavedInstrument, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type SaveInput struct {
	OwnerID        string `json:"userId" validate:"required"`
	CardholderName string `json:"cardholderName" validate:"required,max=100"`
	CardNumber     string `json:"cardNumber" validate:"required,cardnumber"`
	ExpiryDate     string `json:"expiryDate" validate:"required,cardexpiry"`
	Nickname       string `json:"nickname" validate:"max=50"`
	IsDefault      bool   `json:"isDefault"`
}

// UpdateInput carries the editable fields; nil means unchanged. The card
// number itself can never be edited.
type UpdateInput struct {
	CardholderName *string `json:"cardholderName"`
	ExpiryDate     *string `json:"expiryDate"`
	Nickname       *string `json:"nickname"`
	IsDefault      *bool   `json:"isDefault"`
}

type VaultService struct {
	repo      repository.InstrumentRepository
	validator *card.Validator
	producer  Producer
	topic     string
	now       func() time.Time

	// per-owner write locks
	locks sync.Map
}

type VaultServiceOption func(*VaultService)

// WithEvents publishes vault changes to topic.
func WithEvents(producer Producer, topic string) VaultServiceOption {
	return func(s *VaultService) {
		s.producer = producer
		s.topic = topic
	}
}

func WithClock(now func() time.Time) VaultServiceOption {
	return func(s *VaultService) {
		s.now = now
	}
}

func NewVaultService(repo repository.InstrumentRepository, opts ...VaultServiceOption) *VaultService {
	s := &VaultService{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = card.NewValidator(s.now)
	return s
}

// Save runs the normalization pipeline and stores the result. The full
// number never leaves this function.
func (s *VaultService) Save(ctx context.Context, input SaveInput) (*domain.SavedInstrument, error) {
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	input.CardholderName = strings.TrimSpace(input.CardholderName)
	input.Nickname = strings.TrimSpace(input.Nickname)
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}
	digits, err := card.NormalizeNumber(input.CardNumber)
	if err != nil {
		return nil, err
	}

	unlock := s.lockOwner(input.OwnerID)
	defer unlock()

	existing, err := s.repo.ListByOwner(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}
	last4 := card.Last4(digits)
	for _, inst := range existing {
		if inst.Last4 == last4 {
			metrics.VaultWrites.WithLabelValues("save", "duplicate").Inc()
			return nil, domain.ErrDuplicateCard
		}
	}

	inst := &domain.SavedInstrument{
		ID:               uuid.NewString(),
		OwnerID:          input.OwnerID,
		CardholderName:   input.CardholderName,
		CardNumberMasked: card.Mask(digits),
		Last4:            last4,
		Expiry:           strings.TrimSpace(input.ExpiryDate),
		Family:           card.Classify(digits),
		IsDefault:        input.IsDefault || len(existing) == 0,
		Nickname:         input.Nickname,
	}
	err = s.repo.Create(ctx, inst)
	metrics.VaultWrites.WithLabelValues("save", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventCardSaved, inst)
	return inst, nil
}

// List returns the owner's unexpired instruments, default first, then most
// recently used, then newest.
func (s *VaultService) List(ctx context.Context, ownerID string) ([]domain.SavedInstrument, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ValidationError{Field: "userId", Msg: "is required"}
	}
	all, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	list := make([]domain.SavedInstrument, 0, len(all))
	for _, inst := range all {
		if !IsExpired(inst, now) {
			list = append(list, inst)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}
		switch {
		case a.LastUsedAt != nil && b.LastUsedAt != nil && !a.LastUsedAt.Equal(*b.LastUsedAt):
			return a.LastUsedAt.After(*b.LastUsedAt)
		case a.LastUsedAt != nil && b.LastUsedAt == nil:
			return true
		case a.LastUsedAt == nil && b.LastUsedAt != nil:
			return false
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return list, nil
}

func (s *VaultService) Get(ctx context.Context, id string) (*domain.SavedInstrument, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Update writes only the fields present in input. The stored default flag
// is never rewritten unless input sets it.
func (s *VaultService) Update(ctx context.Context, id string, input UpdateInput) (*domain.SavedInstrument, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	patch := domain.InstrumentPatch{IsDefault: input.IsDefault}
	fields := domain.FieldErrors{}
	if input.CardholderName != nil {
		name := strings.TrimSpace(*input.CardholderName)
		if name == "" {
			fields.Add("cardholderName", "is required")
		}
		patch.CardholderName = &name
	}
	if input.ExpiryDate != nil {
		expiry := strings.TrimSpace(*input.ExpiryDate)
		if _, _, err := card.ParseExpiry(expiry); err != nil {
			fields.AddError(err)
		}
		patch.Expiry = &expiry
	}
	if input.Nickname != nil {
		nickname := strings.TrimSpace(*input.Nickname)
		patch.Nickname = &nickname
	}
	if err := fields.OrNil(); err != nil {
		return nil, err
	}

	unlock, err := s.lockInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inst, err := s.repo.Update(ctx, id, patch)
	metrics.VaultWrites.WithLabelValues("update", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventCardUpdated, inst)
	return inst, nil
}

// SetDefault makes id the owner's only default instrument.
func (s *VaultService) SetDefault(ctx context.Context, id string) (*domain.SavedInstrument, error) {
	unlock, err := s.lockInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inst, err := s.repo.SetDefault(ctx, id)
	metrics.VaultWrites.WithLabelValues("set_default", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventDefaultChanged, inst)
	return inst, nil
}

func (s *VaultService) TouchLastUsed(ctx context.Context, id string) (*domain.SavedInstrument, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	inst, err := s.repo.TouchLastUsed(ctx, id, s.now())
	metrics.VaultWrites.WithLabelValues("touch", metrics.Outcome(err)).Inc()
	return inst, err
}

// Delete hard-deletes the instrument. When it was the default, the owner is
// left without one until they pick another.
func (s *VaultService) Delete(ctx context.Context, id string) (*domain.SavedInstrument, error) {
	unlock, err := s.lockInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	deleted, err := s.repo.Delete(ctx, id)
	metrics.VaultWrites.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventCardDeleted, deleted)
	return deleted, nil
}

// IsExpired reports whether inst is past the end of its MM/YY month.
func IsExpired(inst domain.SavedInstrument, now time.Time) bool {
	return card.IsExpired(inst.Expiry, now)
}

func (s *VaultService) lockOwner(ownerID string) func() {
	v, _ := s.locks.LoadOrStore(ownerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// lockInstrument takes the write lock of id's owner. Writes that follow must
// read the instrument again; anything read before the lock may be stale.
func (s *VaultService) lockInstrument(ctx context.Context, id string) (func(), error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.lockOwner(current.OwnerID), nil
}

func (s *VaultService) publish(ctx context.Context, eventType string, inst *domain.SavedInstrument) {
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.VaultEvent{
		Type:         eventType,
		OwnerID:      inst.OwnerID,
		InstrumentID: inst.ID,
		MaskedNumber: inst.CardNumberMasked,
		Family:       string(inst.Family),
		IsDefault:    inst.IsDefault,
		OccurredAt:   s.now(),
	}
	if err := s.producer.Publish(ctx, s.topic, inst.OwnerID, event); err != nil {
		logger.GetLogger("vault").Warnw("publish vault event failed", "type", eventType, "instrument_id", inst.ID, "error", err)
	}
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.NotFoundError{Entity: "saved card", ID: id}
	}
	return nil
}

var _ VaultUseCase = (*VaultService)(nil)
