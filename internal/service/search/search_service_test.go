package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSearchCacheRepository struct {
	mock.Mock
}

func (m *MockSearchCacheRepository) Put(ctx context.Context, entry *domain.SearchResultCacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockSearchCacheRepository) Latest(ctx context.Context, searchID string, now time.Time) (*domain.SearchResultCacheEntry, error) {
	args := m.Called(ctx, searchID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SearchResultCacheEntry), args.Error(1)
}

func (m *MockSearchCacheRepository) Sweep(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSearchCacheRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string {
	return "aggregator"
}

func (m *MockProvider) Search(ctx context.Context, params domain.SearchParams) ([]domain.FlightOffer, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FlightOffer), args.Error(1)
}

type MockSessionWriter struct {
	mock.Mock
}

func (m *MockSessionWriter) SaveSearchSession(ctx context.Context, clientID string, results []domain.FlightOffer, params domain.SearchParams) error {
	args := m.Called(ctx, clientID, results, params)
	return args.Error(0)
}

var now = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func validParams() domain.SearchParams {
	return domain.SearchParams{Origin: "jfk", Destination: "lhr", DepartureDate: "2026-11-02", Adults: 1}
}

func normalized(t *testing.T) domain.SearchParams {
	p, err := NormalizeParams(validParams())
	require.NoError(t, err)
	return p
}

func offers() []domain.FlightOffer {
	return []domain.FlightOffer{
		{ID: "off-1", Carrier: "BA", FlightNumber: "BA112", PriceCents: 45000, Currency: "USD"},
		{ID: "off-2", Carrier: "VS", FlightNumber: "VS4", PriceCents: 47000, Currency: "USD"},
	}
}

func TestSearchService_Search_CacheMiss(t *testing.T) {
	repo := &MockSearchCacheRepository{}
	prov := &MockProvider{}
	service := NewSearchService(prov, NewCache(repo, 0, fixedNow))
	ctx := context.Background()
	params := normalized(t)
	id := SearchID(params)

	repo.On("Latest", ctx, id, now).Return(nil, domain.NotFoundError{Entity: "search", ID: id}).Once()
	prov.On("Search", ctx, params).Return(offers(), nil).Once()
	repo.On("Put", ctx, mock.MatchedBy(func(e *domain.SearchResultCacheEntry) bool {
		return e.SearchID == id && e.Active && e.ExpiresAt.Equal(now.Add(30*time.Minute)) && len(e.Results) == 2
	})).Return(nil).Once()

	result, err := service.Search(ctx, SearchInput{Params: validParams()})

	require.NoError(t, err)
	assert.Equal(t, id, result.SearchID)
	assert.False(t, result.Cached)
	assert.Equal(t, now.Add(30*time.Minute), result.ExpiresAt)
	for _, o := range result.Results {
		assert.Equal(t, id, o.SearchID)
		assert.Equal(t, "aggregator", o.Provider)
	}

	repo.AssertExpectations(t)
	prov.AssertExpectations(t)
}

func TestSearchService_Search_CacheHit(t *testing.T) {
	repo := &MockSearchCacheRepository{}
	prov := &MockProvider{}
	service := NewSearchService(prov, NewCache(repo, 0, fixedNow))
	ctx := context.Background()
	params := normalized(t)
	id := SearchID(params)

	entry := &domain.SearchResultCacheEntry{
		SearchID:  id,
		Params:    params,
		Results:   offers(),
		CreatedAt: now.Add(-10 * time.Minute),
		ExpiresAt: now.Add(20 * time.Minute),
		Active:    true,
	}
	repo.On("Latest", ctx, id, now).Return(entry, nil).Once()

	result, err := service.Search(ctx, SearchInput{Params: validParams()})

	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, entry.Results, result.Results)

	repo.AssertExpectations(t)
	prov.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCache_Get_RechecksValidity(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name  string
		entry *domain.SearchResultCacheEntry
		hit   bool
	}{
		{"valid", &domain.SearchResultCacheEntry{SearchID: "s", Active: true, ExpiresAt: now.Add(time.Second)}, true},
		{"expired but active", &domain.SearchResultCacheEntry{SearchID: "s", Active: true, ExpiresAt: now.Add(-time.Second)}, false},
		{"expires exactly now", &domain.SearchResultCacheEntry{SearchID: "s", Active: true, ExpiresAt: now}, false},
		{"inactive", &domain.SearchResultCacheEntry{SearchID: "s", Active: false, ExpiresAt: now.Add(time.Hour)}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &MockSearchCacheRepository{}
			repo.On("Latest", ctx, "s", now).Return(tc.entry, nil).Once()

			entry, ok := NewCache(repo, 0, fixedNow).Get(ctx, "s")

			assert.Equal(t, tc.hit, ok)
			if ok {
				assert.True(t, now.Before(entry.ExpiresAt))
			} else {
				assert.Nil(t, entry)
			}
		})
	}
}

func TestSearchService_Search_CacheErrorsAreMisses(t *testing.T) {
	repo := &MockSearchCacheRepository{}
	prov := &MockProvider{}
	service := NewSearchService(prov, NewCache(repo, 0, fixedNow))
	ctx := context.Background()
	params := normalized(t)
	id := SearchID(params)

	repo.On("Latest", ctx, id, now).Return(nil, errors.New("connection reset")).Once()
	prov.On("Search", ctx, params).Return(offers(), nil).Once()
	repo.On("Put", ctx, mock.AnythingOfType("*domain.SearchResultCacheEntry")).Return(errors.New("connection reset")).Once()

	result, err := service.Search(ctx, SearchInput{Params: validParams()})

	require.NoError(t, err)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, id, result.SearchID)

	repo.AssertExpectations(t)
	prov.AssertExpectations(t)
}

func TestSearchService_Search_ProviderError(t *testing.T) {
	repo := &MockSearchCacheRepository{}
	prov := &MockProvider{}
	service := NewSearchService(prov, NewCache(repo, 0, fixedNow))
	ctx := context.Background()
	params := normalized(t)

	repo.On("Latest", ctx, SearchID(params), now).Return(nil, domain.NotFoundError{}).Once()
	prov.On("Search", ctx, params).Return(nil, errors.New("timeout")).Once()

	result, err := service.Search(ctx, SearchInput{Params: validParams()})

	assert.Nil(t, result)
	assert.True(t, domain.IsUpstreamUnavailable(err))
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestSearchService_Search_ValidationErrors(t *testing.T) {
	service := NewSearchService(&MockProvider{}, NewCache(&MockSearchCacheRepository{}, 0, fixedNow))

	testCases := []struct {
		name   string
		params domain.SearchParams
		field  string
	}{
		{"bad origin", domain.SearchParams{Origin: "NY", Destination: "LHR", DepartureDate: "2026-11-02", Adults: 1}, "origin"},
		{"same airports", domain.SearchParams{Origin: "LHR", Destination: "lhr", DepartureDate: "2026-11-02", Adults: 1}, "destination"},
		{"bad date", domain.SearchParams{Origin: "JFK", Destination: "LHR", DepartureDate: "11/02/2026", Adults: 1}, "departure_date"},
		{"return before departure", domain.SearchParams{Origin: "JFK", Destination: "LHR", DepartureDate: "2026-11-02", ReturnDate: "2026-11-01", Adults: 1}, "return_date"},
		{"no adults", domain.SearchParams{Origin: "JFK", Destination: "LHR", DepartureDate: "2026-11-02"}, "adults"},
		{"unknown cabin", domain.SearchParams{Origin: "JFK", Destination: "LHR", DepartureDate: "2026-11-02", Adults: 1, CabinClass: "luxury"}, "cabin_class"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Search(context.Background(), SearchInput{Params: tc.params})
			require.Error(t, err)
			var fields domain.FieldErrors
			require.ErrorAs(t, err, &fields)
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestSearchService_Search_MirrorsIntoClientSession(t *testing.T) {
	repo := &MockSearchCacheRepository{}
	prov := &MockProvider{}
	sessions := &MockSessionWriter{}
	service := NewSearchService(prov, NewCache(repo, 0, fixedNow), WithSessionMirror(sessions))
	ctx := context.Background()
	params := normalized(t)

	repo.On("Latest", ctx, SearchID(params), now).Return(nil, domain.NotFoundError{}).Once()
	prov.On("Search", ctx, params).Return(offers(), nil).Once()
	repo.On("Put", ctx, mock.Anything).Return(nil).Once()
	sessions.On("SaveSearchSession", ctx, "client-1", mock.Anything, params).Return(errors.New("redis down")).Once()

	result, err := service.Search(ctx, SearchInput{Params: validParams(), ClientID: "client-1"})

	require.NoError(t, err, "mirroring is best-effort")
	assert.Len(t, result.Results, 2)
	sessions.AssertExpectations(t)
}

func TestSearchService_Results(t *testing.T) {
	repo := &MockSearchCacheRepository{}
	service := NewSearchService(&MockProvider{}, NewCache(repo, 0, fixedNow))
	ctx := context.Background()

	repo.On("Latest", ctx, "missing", now).Return(nil, domain.NotFoundError{Entity: "search", ID: "missing"}).Once()
	repo.On("Latest", ctx, "known", now).Return(&domain.SearchResultCacheEntry{
		SearchID: "known", Results: offers(), Active: true, ExpiresAt: now.Add(time.Minute),
	}, nil).Once()

	_, err := service.Results(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))

	result, err := service.Results(ctx, "known")
	require.NoError(t, err)
	assert.Len(t, result.Results, 2)
}

func TestSearchService_Sweep(t *testing.T) {
	repo := &MockSearchCacheRepository{}
	service := NewSearchService(&MockProvider{}, NewCache(repo, 0, fixedNow))
	ctx := context.Background()

	repo.On("Sweep", ctx, now).Return(int64(3), nil).Once()
	assert.Equal(t, int64(3), service.Sweep(ctx))

	repo.On("Sweep", ctx, now).Return(int64(0), errors.New("db down")).Once()
	assert.Equal(t, int64(0), service.Sweep(ctx))

	repo.On("Purge", ctx, now.Add(-24*time.Hour)).Return(int64(7), nil).Once()
	assert.Equal(t, int64(7), service.Purge(ctx, 24*time.Hour))

	repo.AssertExpectations(t)
}

func TestSearchID_StableForEquivalentParams(t *testing.T) {
	a, err := NormalizeParams(domain.SearchParams{Origin: " jfk", Destination: "LHR", DepartureDate: "2026-11-02", Adults: 1})
	require.NoError(t, err)
	b, err := NormalizeParams(domain.SearchParams{Origin: "JFK", Destination: "lhr ", DepartureDate: "2026-11-02", Adults: 1, CabinClass: domain.CabinEconomy})
	require.NoError(t, err)
	c, err := NormalizeParams(domain.SearchParams{Origin: "JFK", Destination: "LHR", DepartureDate: "2026-11-03", Adults: 1})
	require.NoError(t, err)

	assert.Equal(t, SearchID(a), SearchID(b))
	assert.NotEqual(t, SearchID(a), SearchID(c))
}
