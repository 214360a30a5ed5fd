package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/Domenick1991/travelbooking/internal/provider"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var searchNamespace = uuid.MustParse("6f1c1f0e-3a43-4c1e-9d55-0b8f0c3f4a10")

type SearchUseCase interface {
	Search(ctx context.Context, input SearchInput) (*SearchResult, error)
	Results(ctx context.Context, searchID string) (*SearchResult, error)
	Sweep(ctx context.Context) int64
	Purge(ctx context.Context, retention time.Duration) int64
}

// SessionWriter mirrors a completed search into the client session store.
type SessionWriter interface {
	SaveSearchSession(ctx context.Context, clientID string, results []domain.FlightOffer, params domain.SearchParams) error
}

type SearchInput struct {
	Params   domain.SearchParams
	ClientID string
}

type SearchResult struct {
	SearchID  string               `json:"search_id"`
	Params    domain.SearchParams  `json:"params"`
	Results   []domain.FlightOffer `json:"results"`
	Cached    bool                 `json:"cached"`
	ExpiresAt time.Time            `json:"expires_at"`
}

type SearchService struct {
	provider provider.Provider
	cache    *Cache
	sessions SessionWriter
	group    singleflight.Group
}

type SearchServiceOption func(*SearchService)

func WithSessionMirror(w SessionWriter) SearchServiceOption {
	return func(s *SearchService) {
		s.sessions = w
	}
}

func NewSearchService(p provider.Provider, cache *Cache, opts ...SearchServiceOption) *SearchService {
	s := &SearchService{provider: p, cache: cache}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search serves identical searches from the cache while their entry is
// valid and calls the provider otherwise.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchResult, error) {
	params, err := NormalizeParams(input.Params)
	if err != nil {
		return nil, err
	}
	searchID := SearchID(params)

	result, err := s.cachedOrFetch(ctx, searchID, params)
	if err != nil {
		return nil, err
	}

	if input.ClientID != "" && s.sessions != nil {
		if err := s.sessions.SaveSearchSession(ctx, input.ClientID, result.Results, params); err != nil {
			logger.GetLogger("search").Warnw("mirror search into client session failed", "client_id", input.ClientID, "error", err)
		}
	}
	return result, nil
}

func (s *SearchService) cachedOrFetch(ctx context.Context, searchID string, params domain.SearchParams) (*SearchResult, error) {
	if entry, ok := s.cache.Get(ctx, searchID); ok {
		return fromEntry(entry, true), nil
	}

	// concurrent identical searches share one upstream call
	v, err, _ := s.group.Do(searchID, func() (interface{}, error) {
		offers, err := s.provider.Search(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, s.provider.Name(), err)
		}
		for i := range offers {
			offers[i].SearchID = searchID
			if offers[i].Provider == "" {
				offers[i].Provider = s.provider.Name()
			}
		}
		if entry := s.cache.Put(ctx, searchID, params, offers); entry != nil {
			return fromEntry(entry, false), nil
		}
		return &SearchResult{SearchID: searchID, Params: params, Results: offers}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SearchResult), nil
}

// Results looks up a previous search by its handle.
func (s *SearchService) Results(ctx context.Context, searchID string) (*SearchResult, error) {
	entry, ok := s.cache.Get(ctx, searchID)
	if !ok {
		return nil, domain.NotFoundError{Entity: "search", ID: searchID}
	}
	return fromEntry(entry, true), nil
}

func (s *SearchService) Sweep(ctx context.Context) int64 {
	return s.cache.Sweep(ctx)
}

func (s *SearchService) Purge(ctx context.Context, retention time.Duration) int64 {
	return s.cache.Purge(ctx, retention)
}

// SearchID is a stable handle for a set of normalized params.
func SearchID(params domain.SearchParams) string {
	canonical, _ := json.Marshal(params)
	return uuid.NewSHA1(searchNamespace, canonical).String()
}

// NormalizeParams upper-cases airport codes, fills defaults and validates.
func NormalizeParams(p domain.SearchParams) (domain.SearchParams, error) {
	p.Origin = strings.ToUpper(strings.TrimSpace(p.Origin))
	p.Destination = strings.ToUpper(strings.TrimSpace(p.Destination))
	p.DepartureDate = strings.TrimSpace(p.DepartureDate)
	p.ReturnDate = strings.TrimSpace(p.ReturnDate)
	if p.CabinClass == "" {
		p.CabinClass = domain.CabinEconomy
	}

	fields := domain.FieldErrors{}
	if !isIATA(p.Origin) {
		fields.Add("origin", "must be a 3-letter airport code")
	}
	if !isIATA(p.Destination) {
		fields.Add("destination", "must be a 3-letter airport code")
	}
	if p.Origin != "" && p.Origin == p.Destination {
		fields.Add("destination", "must differ from origin")
	}
	departure, err := time.Parse(time.DateOnly, p.DepartureDate)
	if err != nil {
		fields.Add("departure_date", "must be YYYY-MM-DD")
	}
	if p.ReturnDate != "" {
		ret, err := time.Parse(time.DateOnly, p.ReturnDate)
		switch {
		case err != nil:
			fields.Add("return_date", "must be YYYY-MM-DD")
		case !departure.IsZero() && ret.Before(departure):
			fields.Add("return_date", "must not be before departure_date")
		}
	}
	if p.Adults < 1 {
		fields.Add("adults", "at least one adult is required")
	}
	if p.Children < 0 || p.Infants < 0 {
		fields.Add("children", "must not be negative")
	}
	switch p.CabinClass {
	case domain.CabinEconomy, domain.CabinPremiumEconomy, domain.CabinBusiness, domain.CabinFirst:
	default:
		fields.Add("cabin_class", "unknown cabin class")
	}
	return p, fields.OrNil()
}

func fromEntry(e *domain.SearchResultCacheEntry, cached bool) *SearchResult {
	return &SearchResult{
		SearchID:  e.SearchID,
		Params:    e.Params,
		Results:   e.Results,
		Cached:    cached,
		ExpiresAt: e.ExpiresAt,
	}
}

func isIATA(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

var _ SearchUseCase = (*SearchService)(nil)
