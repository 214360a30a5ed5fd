package vault

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryRepo clears and sets defaults in two separate steps, so only the
// service's owner lock keeps them atomic.
type memoryRepo struct {
	mu        sync.Mutex
	items     map[string]domain.SavedInstrument
	createErr error
	// getHook runs before every Get, outside the repo lock.
	getHook func(id string)
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[string]domain.SavedInstrument{}}
}

func (r *memoryRepo) clearDefaults(ownerID, except string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, inst := range r.items {
		if inst.OwnerID == ownerID && id != except && inst.IsDefault {
			inst.IsDefault = false
			r.items[id] = inst
		}
	}
}

func (r *memoryRepo) Create(_ context.Context, inst *domain.SavedInstrument) error {
	if r.createErr != nil {
		return r.createErr
	}
	if inst.IsDefault {
		r.clearDefaults(inst.OwnerID, inst.ID)
	}
	runtime.Gosched()
	r.mu.Lock()
	defer r.mu.Unlock()
	inst.CreatedAt = time.Now()
	inst.UpdatedAt = inst.CreatedAt
	r.items[inst.ID] = *inst
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*domain.SavedInstrument, error) {
	if r.getHook != nil {
		r.getHook(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.items[id]
	if !ok {
		return nil, domain.NotFoundError{Entity: "saved card", ID: id}
	}
	return &inst, nil
}

func (r *memoryRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.SavedInstrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]domain.SavedInstrument, 0)
	for _, inst := range r.items {
		if inst.OwnerID == ownerID {
			list = append(list, inst)
		}
	}
	return list, nil
}

func (r *memoryRepo) Update(_ context.Context, id string, patch domain.InstrumentPatch) (*domain.SavedInstrument, error) {
	r.mu.Lock()
	inst, ok := r.items[id]
	r.mu.Unlock()
	if !ok {
		return nil, domain.NotFoundError{Entity: "saved card", ID: id}
	}
	if patch.IsDefault != nil && *patch.IsDefault {
		r.clearDefaults(inst.OwnerID, id)
	}
	runtime.Gosched()
	r.mu.Lock()
	defer r.mu.Unlock()
	inst = r.items[id]
	if patch.CardholderName != nil {
		inst.CardholderName = *patch.CardholderName
	}
	if patch.Expiry != nil {
		inst.Expiry = *patch.Expiry
	}
	if patch.Nickname != nil {
		inst.Nickname = *patch.Nickname
	}
	if patch.IsDefault != nil {
		inst.IsDefault = *patch.IsDefault
	}
	r.items[id] = inst
	return &inst, nil
}

func (r *memoryRepo) SetDefault(ctx context.Context, id string) (*domain.SavedInstrument, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.clearDefaults(current.OwnerID, id)
	runtime.Gosched()
	r.mu.Lock()
	defer r.mu.Unlock()
	inst := r.items[id]
	inst.IsDefault = true
	r.items[id] = inst
	return &inst, nil
}

func (r *memoryRepo) TouchLastUsed(_ context.Context, id string, at time.Time) (*domain.SavedInstrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.items[id]
	if !ok {
		return nil, domain.NotFoundError{Entity: "saved card", ID: id}
	}
	inst.LastUsedAt = &at
	r.items[id] = inst
	return &inst, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) (*domain.SavedInstrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.items[id]
	if !ok {
		return nil, domain.NotFoundError{Entity: "saved card", ID: id}
	}
	delete(r.items, id)
	return &inst, nil
}

func (r *memoryRepo) CountByOwner(_ context.Context, ownerID string) (int, error) {
	list, _ := r.ListByOwner(context.Background(), ownerID)
	return len(list), nil
}

func (r *memoryRepo) defaults(ownerID string) int {
	list, _ := r.ListByOwner(context.Background(), ownerID)
	n := 0
	for _, inst := range list {
		if inst.IsDefault {
			n++
		}
	}
	return n
}

var _ repository.InstrumentRepository = (*memoryRepo)(nil)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

var now = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func saveInput(owner, number string) SaveInput {
	return SaveInput{OwnerID: owner, CardholderName: "Ada Lovelace", CardNumber: number, ExpiryDate: "12/28"}
}

func TestVaultService_Save_Visa(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))

	inst, err := service.Save(context.Background(), saveInput("user-1", "4111 1111 1111 1111"))

	require.NoError(t, err)
	assert.Equal(t, domain.CardFamilyVisa, inst.Family)
	assert.True(t, strings.HasSuffix(inst.CardNumberMasked, "1111"))
	assert.Equal(t, "**** **** **** 1111", inst.CardNumberMasked)
	assert.Equal(t, 4, countDigits(inst.CardNumberMasked))
	assert.True(t, inst.IsDefault, "first card becomes default")
	_, err = uuid.Parse(inst.ID)
	assert.NoError(t, err)

	stored, err := repo.Get(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.CardNumberMasked, "4111")
}

func TestVaultService_Save_Discover(t *testing.T) {
	service := NewVaultService(newMemoryRepo(), WithClock(fixedNow))

	inst, err := service.Save(context.Background(), saveInput("user-1", "6011000000000004"))

	require.NoError(t, err)
	assert.Equal(t, domain.CardFamilyDiscover, inst.Family)
	assert.Equal(t, "0004", inst.Last4)
}

func TestVaultService_Save_RejectsInvalidInput(t *testing.T) {
	testCases := []struct {
		name  string
		input SaveInput
		field string
	}{
		{"short number", saveInput("user-1", "4111 1111 1111"), "cardNumber"},
		{"letters", saveInput("user-1", "4111 1111 1111 111x"), "cardNumber"},
		{"dashes", saveInput("user-1", "4111-1111-1111-1111"), "cardNumber"},
		{"bad expiry", SaveInput{OwnerID: "user-1", CardholderName: "A", CardNumber: "4111111111111111", ExpiryDate: "13/28"}, "expiryDate"},
		{"expired", SaveInput{OwnerID: "user-1", CardholderName: "A", CardNumber: "4111111111111111", ExpiryDate: "09/26"}, "expiryDate"},
		{"no holder", SaveInput{OwnerID: "user-1", CardNumber: "4111111111111111", ExpiryDate: "12/28"}, "cardholderName"},
		{"no owner", SaveInput{CardholderName: "A", CardNumber: "4111111111111111", ExpiryDate: "12/28"}, "userId"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo()
			service := NewVaultService(repo, WithClock(fixedNow))

			inst, err := service.Save(context.Background(), tc.input)

			assert.Nil(t, inst)
			var fields domain.FieldErrors
			require.ErrorAs(t, err, &fields)
			assert.Contains(t, fields, tc.field)
			assert.Empty(t, repo.items, "nothing is persisted on validation failure")
		})
	}
}

func TestVaultService_Save_DuplicateLast4(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))
	ctx := context.Background()

	_, err := service.Save(ctx, saveInput("user-1", "4111111111111111"))
	require.NoError(t, err)

	_, err = service.Save(ctx, saveInput("user-1", "5500000000001111"))
	assert.ErrorIs(t, err, domain.ErrDuplicateCard)
	assert.True(t, domain.IsValidation(err))

	_, err = service.Save(ctx, saveInput("user-2", "5500000000001111"))
	assert.NoError(t, err, "other owners are unaffected")
}

func TestVaultService_Save_ExplicitDefaultMovesDefault(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))
	ctx := context.Background()

	first, err := service.Save(ctx, saveInput("user-1", "4111111111111111"))
	require.NoError(t, err)

	second := saveInput("user-1", "5555555555554444")
	second.IsDefault = true
	next, err := service.Save(ctx, second)
	require.NoError(t, err)

	a, _ := repo.Get(ctx, first.ID)
	b, _ := repo.Get(ctx, next.ID)
	assert.False(t, a.IsDefault)
	assert.True(t, b.IsDefault)

	third, err := service.Save(ctx, saveInput("user-1", "3782822463100055"))
	require.NoError(t, err)
	assert.False(t, third.IsDefault)
	assert.Equal(t, 1, repo.defaults("user-1"))
}

func TestVaultService_Save_RepositoryError(t *testing.T) {
	repo := newMemoryRepo()
	repo.createErr = errors.New("db down")
	service := NewVaultService(repo, WithClock(fixedNow))

	_, err := service.Save(context.Background(), saveInput("user-1", "4111111111111111"))
	assert.EqualError(t, err, "db down")
}

func TestVaultService_SetDefault(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))
	ctx := context.Background()

	a, err := service.Save(ctx, saveInput("user-1", "4111111111111111"))
	require.NoError(t, err)
	b, err := service.Save(ctx, saveInput("user-1", "5555555555554444"))
	require.NoError(t, err)
	require.True(t, a.IsDefault)
	require.False(t, b.IsDefault)

	_, err = service.SetDefault(ctx, b.ID)
	require.NoError(t, err)

	readA, err := service.Get(ctx, a.ID)
	require.NoError(t, err)
	readB, err := service.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, readA.IsDefault)
	assert.True(t, readB.IsDefault)
}

func TestVaultService_AtMostOneDefaultUnderConcurrency(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))
	ctx := context.Background()

	numbers := []string{
		"4111111111111111", "5555555555554444", "4012888888881881",
		"5105105105105100", "6011111111111117", "4222222222222222",
	}
	ids := make([]string, 0, len(numbers))
	for _, n := range numbers {
		inst, err := service.Save(ctx, saveInput("user-1", n))
		require.NoError(t, err)
		ids = append(ids, inst.ID)
	}

	var wg sync.WaitGroup
	for round := 0; round < 20; round++ {
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, _ = service.SetDefault(ctx, id)
			}(id)
		}
	}
	wg.Wait()

	assert.Equal(t, 1, repo.defaults("user-1"))
}

func TestVaultService_Delete_DoesNotPromote(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))
	ctx := context.Background()

	a, err := service.Save(ctx, saveInput("user-1", "4111111111111111"))
	require.NoError(t, err)
	_, err = service.Save(ctx, saveInput("user-1", "5555555555554444"))
	require.NoError(t, err)

	deleted, err := service.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, deleted.ID)
	assert.Equal(t, 0, repo.defaults("user-1"))

	_, err = service.Delete(ctx, a.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestVaultService_UnknownOrMalformedID(t *testing.T) {
	service := NewVaultService(newMemoryRepo(), WithClock(fixedNow))
	ctx := context.Background()

	_, err := service.Get(ctx, "not-a-uuid")
	assert.True(t, domain.IsNotFound(err))
	_, err = service.SetDefault(ctx, uuid.NewString())
	assert.True(t, domain.IsNotFound(err))
	_, err = service.TouchLastUsed(ctx, "42")
	assert.True(t, domain.IsNotFound(err))
}

func TestVaultService_Update(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))
	ctx := context.Background()

	inst, err := service.Save(ctx, saveInput("user-1", "4111111111111111"))
	require.NoError(t, err)

	nickname := "travel"
	expiry := "01/30"
	updated, err := service.Update(ctx, inst.ID, UpdateInput{Nickname: &nickname, ExpiryDate: &expiry})
	require.NoError(t, err)
	assert.Equal(t, "travel", updated.Nickname)
	assert.Equal(t, "01/30", updated.Expiry)
	assert.Equal(t, inst.CardNumberMasked, updated.CardNumberMasked)

	bad := "1/30"
	_, err = service.Update(ctx, inst.ID, UpdateInput{ExpiryDate: &bad})
	var fields domain.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "expiryDate")

	stored, _ := repo.Get(ctx, inst.ID)
	assert.Equal(t, "01/30", stored.Expiry, "rejected update leaves the record untouched")
}

func TestVaultService_Update_KeepsConcurrentDefaultChange(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))
	ctx := context.Background()

	a, err := service.Save(ctx, saveInput("user-1", "4111111111111111"))
	require.NoError(t, err)
	b, err := service.Save(ctx, saveInput("user-1", "5555555555554444"))
	require.NoError(t, err)
	require.True(t, a.IsDefault)

	// SetDefault(b) lands between Update's first read of a and its write.
	var fired bool
	repo.getHook = func(id string) {
		if id != a.ID || fired {
			return
		}
		fired = true
		_, err := service.SetDefault(ctx, b.ID)
		require.NoError(t, err)
	}

	nickname := "work"
	updated, err := service.Update(ctx, a.ID, UpdateInput{Nickname: &nickname})
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, "work", updated.Nickname)
	assert.False(t, updated.IsDefault)

	repo.getHook = nil
	readA, err := service.Get(ctx, a.ID)
	require.NoError(t, err)
	readB, err := service.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, readA.IsDefault)
	assert.True(t, readB.IsDefault)
	assert.Equal(t, 1, repo.defaults("user-1"))
}

func TestVaultService_Update_SetsDefault(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))
	ctx := context.Background()

	_, err := service.Save(ctx, saveInput("user-1", "4111111111111111"))
	require.NoError(t, err)
	b, err := service.Save(ctx, saveInput("user-1", "5555555555554444"))
	require.NoError(t, err)

	yes := true
	updated, err := service.Update(ctx, b.ID, UpdateInput{IsDefault: &yes})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, 1, repo.defaults("user-1"))
}

func TestVaultService_TouchLastUsed(t *testing.T) {
	service := NewVaultService(newMemoryRepo(), WithClock(fixedNow))
	ctx := context.Background()

	inst, err := service.Save(ctx, saveInput("user-1", "4111111111111111"))
	require.NoError(t, err)

	touched, err := service.TouchLastUsed(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, touched.LastUsedAt)
	assert.Equal(t, now, *touched.LastUsedAt)
}

func TestVaultService_List_FiltersExpiredAndSorts(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVaultService(repo, WithClock(fixedNow))

	used := func(d time.Duration) *time.Time {
		at := now.Add(-d)
		return &at
	}
	seed := []domain.SavedInstrument{
		{ID: "old-unused", Expiry: "12/28", CreatedAt: now.Add(-72 * time.Hour)},
		{ID: "new-unused", Expiry: "12/28", CreatedAt: now.Add(-time.Hour)},
		{ID: "used-long-ago", Expiry: "12/28", LastUsedAt: used(48 * time.Hour)},
		{ID: "used-recently", Expiry: "12/28", LastUsedAt: used(time.Hour)},
		{ID: "default", Expiry: "12/28", IsDefault: true},
		{ID: "expired", Expiry: "09/26", LastUsedAt: used(time.Minute)},
		{ID: "valid-through-month", Expiry: "10/26", CreatedAt: now.Add(-96 * time.Hour)},
	}
	for _, inst := range seed {
		inst.OwnerID = "user-1"
		repo.items[inst.ID] = inst
	}

	list, err := service.List(context.Background(), "user-1")
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, inst := range list {
		ids = append(ids, inst.ID)
	}
	assert.Equal(t, []string{"default", "used-recently", "used-long-ago", "new-unused", "old-unused", "valid-through-month"}, ids)
}

func TestVaultService_PublishesEvents(t *testing.T) {
	producer := &MockProducer{}
	service := NewVaultService(newMemoryRepo(), WithClock(fixedNow), WithEvents(producer, "vault-events"))
	ctx := context.Background()

	producer.On("Publish", ctx, "vault-events", "user-1", mock.Anything).Return(errors.New("broker down")).Once()

	inst, err := service.Save(ctx, saveInput("user-1", "4111111111111111"))

	require.NoError(t, err, "event publishing is best-effort")
	assert.Equal(t, "1111", inst.Last4)
	producer.AssertExpectations(t)
}

func TestIsExpired(t *testing.T) {
	endOfMonth := time.Date(2026, time.October, 31, 23, 59, 59, 0, time.UTC)
	assert.False(t, IsExpired(domain.SavedInstrument{Expiry: "10/26"}, endOfMonth))
	assert.True(t, IsExpired(domain.SavedInstrument{Expiry: "10/26"}, endOfMonth.Add(time.Second)))
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
