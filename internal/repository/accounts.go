package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account repository methods
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, name, currency, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.UserID, account.Name, account.Currency,
		account.Balance, account.CreatedAt, account.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT * FROM accounts WHERE id = $1`

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Account not found
		}
		return nil, err
	}

	return &account, nil
}

func (r *PostgresRepository) GetUserAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	query := `SELECT * FROM accounts WHERE user_id = $1 ORDER BY created_at ASC`

	var accounts []models.Account
	err := r.db.SelectContext(ctx, &accounts, query, userID)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *PostgresRepository) UpdateAccount(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts SET name = $1, currency = $2, updated_at = $3
		WHERE id = $4
	`

	account.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		account.Name, account.Currency, account.UpdatedAt, account.ID)

	return err
}

func (r *PostgresRepository) DeleteAccount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

// AddToAccountBalance applies a signed delta as a single atomic UPDATE so
// concurrent balance changes on the same account serialize at the row level
// instead of racing through an application-side read-modify-write.
func (r *PostgresRepository) AddToAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, delta, time.Now().UTC(), accountID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("account not found: %s", accountID)
	}

	return nil
}

func (r *PostgresRepository) CountAccountTransactions(ctx context.Context, accountID string) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE account_id = $1`

	var count int
	err := r.db.GetContext(ctx, &count, query, accountID)
	if err != nil {
		return 0, err
	}

	return count, nil
}
