// Package session keeps in-progress search and flight-selection state for a
// browsing client so it survives a full reload or an authentication redirect.
//
// Two independent keys are kept per client, each stored as
// {...payload, "timestamp": <epoch-ms>} and usable for a fixed window after
// the write. The window check lives only in restore.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/cache"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/logger"
)

const (
	SearchSessionKey         = "searchSession"
	SelectedBookingTargetKey = "selectedBookingTarget"

	DefaultWindow = 60 * time.Minute
)

// KV is the durable key/value backend. Get returns cache.ErrMissing for an
// absent key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type SearchSession struct {
	Results []domain.FlightOffer `json:"results"`
	Params  domain.SearchParams  `json:"params"`
}

type BookingTarget struct {
	Flight domain.FlightOffer  `json:"flight"`
	Params domain.SearchParams `json:"params"`
}

type searchRecord struct {
	SearchSession
	Timestamp int64 `json:"timestamp"`
}

type targetRecord struct {
	BookingTarget
	Timestamp int64 `json:"timestamp"`
}

type Repository struct {
	kv           KV
	searchWindow time.Duration
	targetWindow time.Duration
	now          func() time.Time
}

type Option func(*Repository)

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithWindows(search, target time.Duration) Option {
	return func(r *Repository) {
		if search > 0 {
			r.searchWindow = search
		}
		if target > 0 {
			r.targetWindow = target
		}
	}
}

func NewRepository(kv KV, opts ...Option) *Repository {
	r := &Repository{
		kv:           kv,
		searchWindow: DefaultWindow,
		targetWindow: DefaultWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) SaveSearchSession(ctx context.Context, clientID string, results []domain.FlightOffer, params domain.SearchParams) error {
	rec := searchRecord{
		SearchSession: SearchSession{Results: results, Params: params},
		Timestamp:     r.now().UnixMilli(),
	}
	return r.save(ctx, clientID, SearchSessionKey, rec, r.searchWindow)
}

// RestoreSearchSession returns the last saved search when it is still inside
// its window. An expired value is deleted.
func (r *Repository) RestoreSearchSession(ctx context.Context, clientID string) (SearchSession, bool, error) {
	var rec searchRecord
	ok, err := r.restore(ctx, clientID, SearchSessionKey, r.searchWindow, &rec, &rec.Timestamp)
	if !ok || err != nil {
		return SearchSession{}, false, err
	}
	return rec.SearchSession, true, nil
}

func (r *Repository) ClearSearchSession(ctx context.Context, clientID string) error {
	return r.clear(ctx, clientID, SearchSessionKey)
}

func (r *Repository) SaveSelectedBookingTarget(ctx context.Context, clientID string, flight domain.FlightOffer, params domain.SearchParams) error {
	rec := targetRecord{
		BookingTarget: BookingTarget{Flight: flight, Params: params},
		Timestamp:     r.now().UnixMilli(),
	}
	return r.save(ctx, clientID, SelectedBookingTargetKey, rec, r.targetWindow)
}

func (r *Repository) RestoreSelectedBookingTarget(ctx context.Context, clientID string) (BookingTarget, bool, error) {
	var rec targetRecord
	ok, err := r.restore(ctx, clientID, SelectedBookingTargetKey, r.targetWindow, &rec, &rec.Timestamp)
	if !ok || err != nil {
		return BookingTarget{}, false, err
	}
	return rec.BookingTarget, true, nil
}

// ClearSelectedBookingTarget is called after a successful booking and when
// the confirmation view is torn down.
func (r *Repository) ClearSelectedBookingTarget(ctx context.Context, clientID string) error {
	return r.clear(ctx, clientID, SelectedBookingTargetKey)
}

func (r *Repository) save(ctx context.Context, clientID, name string, rec any, window time.Duration) error {
	key, err := storageKey(clientID, name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	// backend expiry is only housekeeping; restore enforces the window
	return r.kv.Set(ctx, key, data, 2*window)
}

func (r *Repository) restore(ctx context.Context, clientID, name string, window time.Duration, dst any, timestamp *int64) (bool, error) {
	key, err := storageKey(clientID, name)
	if err != nil {
		return false, err
	}
	data, err := r.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMissing) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(data, dst); err != nil || *timestamp == 0 {
		logger.GetLogger("session").Warnw("dropping unreadable session value", "key", key, "error", err)
		return false, r.kv.Delete(ctx, key)
	}

	if r.now().UnixMilli()-*timestamp >= window.Milliseconds() {
		return false, r.kv.Delete(ctx, key)
	}
	return true, nil
}

func (r *Repository) clear(ctx context.Context, clientID, name string) error {
	key, err := storageKey(clientID, name)
	if err != nil {
		return err
	}
	return r.kv.Delete(ctx, key)
}

func storageKey(clientID, name string) (string, error) {
	if clientID == "" {
		return "", domain.ValidationError{Field: "clientId", Msg: "client session id is required"}
	}
	return "client:" + clientID + ":" + name, nil
}
