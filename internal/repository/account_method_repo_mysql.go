package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/card"
	"github.com/Domenick1991/travelbooking/internal/domain"
	_ "github.com/go-sql-driver/mysql"
)

// AccountMethodRepository reads the payment methods kept by the account
// service. It is a separate source from the vault.
type AccountMethodRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.AccountPaymentMethod, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type MySQLAccountMethodRepository struct {
	db *sql.DB
}

func NewAccountMethodRepository(db *sql.DB) AccountMethodRepository {
	return &MySQLAccountMethodRepository{db: db}
}

// OpenAccountsDB opens the account service database with the mysql driver.
func OpenAccountsDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open accounts db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func (r *MySQLAccountMethodRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.AccountPaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id,
		       user_id,
		       COALESCE(card_holder,''),
		       COALESCE(card_number,''),
		       COALESCE(expiry,''),
		       COALESCE(brand,''),
		       is_default,
		       created_at
		FROM payment_methods
		WHERE user_id=? AND deleted_at IS NULL
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.AccountPaymentMethod, 0)
	for rows.Next() {
		var (
			m      domain.AccountPaymentMethod
			stored string
		)
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.CardholderName, &stored, &m.Expiry, &m.Brand, &m.IsDefault, &m.CreatedAt); err != nil {
			return nil, err
		}
		// the account service may keep full numbers; only the last four leave this function
		m.MaskedNumber, m.Last4 = card.NormalizeMasked(stored)
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *MySQLAccountMethodRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payment_methods SET deleted_at=NOW() WHERE id=? AND user_id=? AND deleted_at IS NULL`, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFoundError{Entity: "payment method", ID: id}
	}
	return nil
}

var _ AccountMethodRepository = (*MySQLAccountMethodRepository)(nil)
