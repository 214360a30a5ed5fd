package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

type SearchCacheRepository interface {
	Put(ctx context.Context, entry *domain.SearchResultCacheEntry) error
	Latest(ctx context.Context, searchID string, now time.Time) (*domain.SearchResultCacheEntry, error)
	Sweep(ctx context.Context, now time.Time) (int64, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type PGSearchCacheRepository struct {
	db DB
}

func NewSearchCacheRepository(db DB) SearchCacheRepository {
	return &PGSearchCacheRepository{db: db}
}

// Put always inserts; an earlier entry for the same search id is left to expire.
func (r *PGSearchCacheRepository) Put(ctx context.Context, entry *domain.SearchResultCacheEntry) error {
	params, err := json.Marshal(entry.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	results, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	entry.Active = true
	return r.db.QueryRow(ctx, `INSERT INTO search_cache (search_id, params, results, created_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id`, entry.SearchID, params, results, entry.CreatedAt, entry.ExpiresAt).
		Scan(&entry.ID)
}

func (r *PGSearchCacheRepository) Latest(ctx context.Context, searchID string, now time.Time) (*domain.SearchResultCacheEntry, error) {
	row := r.db.QueryRow(ctx, `SELECT id, search_id, params, results, created_at, expires_at, active
		FROM search_cache
		WHERE search_id=$1 AND active AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`, searchID, now)

	var (
		e       domain.SearchResultCacheEntry
		params  []byte
		results []byte
	)
	if err := row.Scan(&e.ID, &e.SearchID, &params, &results, &e.CreatedAt, &e.ExpiresAt, &e.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundError{Entity: "search", ID: searchID}
		}
		return nil, err
	}
	if err := json.Unmarshal(params, &e.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if err := json.Unmarshal(results, &e.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return &e, nil
}

// Sweep soft-invalidates every entry that expired before now.
func (r *PGSearchCacheRepository) Sweep(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE search_cache SET active=false WHERE active AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// Purge hard-deletes inactive entries created before the retention horizon.
func (r *PGSearchCacheRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM search_cache WHERE NOT active AND created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

var _ SearchCacheRepository = (*PGSearchCacheRepository)(nil)
