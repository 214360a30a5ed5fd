package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation       = "23505"
	ownerLast4Constraint  = "saved_cards_owner_last4_key"
	instrumentColumns     = `id, user_id, cardholder_name, card_number, last4, expiry_date, card_type, is_default, nickname, created_at, updated_at, last_used_at`
	selectOwnerStatement  = `SELECT user_id FROM saved_cards WHERE id=$1`
	lockOwnerStatement    = `SELECT pg_advisory_xact_lock(hashtext($1))`
	clearDefaultStatement = `UPDATE saved_cards SET is_default=false, updated_at=now() WHERE user_id=$1 AND is_default AND id <> $2`
)

type InstrumentRepository interface {
	Create(ctx context.Context, inst *domain.SavedInstrument) error
	Get(ctx context.Context, id string) (*domain.SavedInstrument, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.SavedInstrument, error)
	Update(ctx context.Context, id string, patch domain.InstrumentPatch) (*domain.SavedInstrument, error)
	SetDefault(ctx context.Context, id string) (*domain.SavedInstrument, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) (*domain.SavedInstrument, error)
	Delete(ctx context.Context, id string) (*domain.SavedInstrument, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
}

type PGInstrumentRepository struct {
	db DB
}

func NewInstrumentRepository(db DB) InstrumentRepository {
	return &PGInstrumentRepository{db: db}
}

// Create inserts inst. When inst is the new default, every other default of
// the owner is cleared in the same transaction, under the owner's advisory lock.
func (r *PGInstrumentRepository) Create(ctx context.Context, inst *domain.SavedInstrument) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockOwnerStatement, inst.OwnerID); err != nil {
		return err
	}
	if inst.IsDefault {
		if _, err := tx.Exec(ctx, clearDefaultStatement, inst.OwnerID, inst.ID); err != nil {
			return err
		}
	}

	if err := tx.QueryRow(ctx, `INSERT INTO saved_cards (id, user_id, cardholder_name, card_number, last4, expiry_date, card_type, is_default, nickname)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		inst.ID, inst.OwnerID, inst.CardholderName, inst.CardNumberMasked, inst.Last4, inst.Expiry, inst.Family, inst.IsDefault, inst.Nickname).
		Scan(&inst.CreatedAt, &inst.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == ownerLast4Constraint {
			return domain.ErrDuplicateCard
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGInstrumentRepository) Get(ctx context.Context, id string) (*domain.SavedInstrument, error) {
	row := r.db.QueryRow(ctx, `SELECT `+instrumentColumns+` FROM saved_cards WHERE id=$1`, id)
	return scanInstrument(row, id)
}

func (r *PGInstrumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.SavedInstrument, error) {
	rows, err := r.db.Query(ctx, `SELECT `+instrumentColumns+` FROM saved_cards WHERE user_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.SavedInstrument, 0)
	for rows.Next() {
		inst, err := scanInstrument(rows, "")
		if err != nil {
			return nil, err
		}
		list = append(list, *inst)
	}
	return list, rows.Err()
}

// Update writes only the fields set in patch. is_default is left alone
// unless the patch sets it; setting it clears the owner's other defaults
// under the owner's advisory lock.
func (r *PGInstrumentRepository) Update(ctx context.Context, id string, patch domain.InstrumentPatch) (*domain.SavedInstrument, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ownerID, err := lockOwnerOf(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if patch.IsDefault != nil && *patch.IsDefault {
		if _, err := tx.Exec(ctx, clearDefaultStatement, ownerID, id); err != nil {
			return nil, err
		}
	}

	row := tx.QueryRow(ctx, `UPDATE saved_cards
		SET cardholder_name=COALESCE($1, cardholder_name),
			expiry_date=COALESCE($2, expiry_date),
			nickname=COALESCE($3, nickname),
			is_default=COALESCE($4, is_default),
			updated_at=now()
		WHERE id=$5
		RETURNING `+instrumentColumns, patch.CardholderName, patch.Expiry, patch.Nickname, patch.IsDefault, id)
	inst, err := scanInstrument(row, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inst, nil
}

// SetDefault clears every default of the instrument's owner and sets id, as
// one transaction under the owner's advisory lock.
func (r *PGInstrumentRepository) SetDefault(ctx context.Context, id string) (*domain.SavedInstrument, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ownerID, err := lockOwnerOf(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, clearDefaultStatement, ownerID, id); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `UPDATE saved_cards SET is_default=true, updated_at=now() WHERE id=$1 RETURNING `+instrumentColumns, id)
	inst, err := scanInstrument(row, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inst, nil
}

// lockOwnerOf resolves the owner of id and takes that owner's advisory lock
// for the rest of tx.
func lockOwnerOf(ctx context.Context, tx pgx.Tx, id string) (string, error) {
	var ownerID string
	if err := tx.QueryRow(ctx, selectOwnerStatement, id).Scan(&ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NotFoundError{Entity: "saved card", ID: id}
		}
		return "", err
	}
	if _, err := tx.Exec(ctx, lockOwnerStatement, ownerID); err != nil {
		return "", err
	}
	return ownerID, nil
}

func (r *PGInstrumentRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) (*domain.SavedInstrument, error) {
	row := r.db.QueryRow(ctx, `UPDATE saved_cards SET last_used_at=$1, updated_at=now() WHERE id=$2 RETURNING `+instrumentColumns, at, id)
	return scanInstrument(row, id)
}

// Delete removes the instrument and returns what was deleted. Another
// instrument is never promoted to default.
func (r *PGInstrumentRepository) Delete(ctx context.Context, id string) (*domain.SavedInstrument, error) {
	row := r.db.QueryRow(ctx, `DELETE FROM saved_cards WHERE id=$1 RETURNING `+instrumentColumns, id)
	return scanInstrument(row, id)
}

func (r *PGInstrumentRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM saved_cards WHERE user_id=$1`, ownerID).Scan(&n)
	return n, err
}

func scanInstrument(row pgx.Row, id string) (*domain.SavedInstrument, error) {
	var (
		inst     domain.SavedInstrument
		lastUsed *time.Time
	)
	if err := row.Scan(&inst.ID, &inst.OwnerID, &inst.CardholderName, &inst.CardNumberMasked, &inst.Last4, &inst.Expiry,
		&inst.Family, &inst.IsDefault, &inst.Nickname, &inst.CreatedAt, &inst.UpdatedAt, &lastUsed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundError{Entity: "saved card", ID: id}
		}
		return nil, err
	}
	inst.LastUsedAt = lastUsed
	return &inst, nil
}

var _ InstrumentRepository = (*PGInstrumentRepository)(nil)
