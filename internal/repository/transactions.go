package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Transaction repository methods
func (r *PostgresRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, account_id, posted_at, amount, direction, merchant, description, notes, category_id, fingerprint, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		txn.ID, txn.AccountID, txn.PostedAt, txn.Amount, txn.Direction,
		txn.Merchant, txn.Description, txn.Notes, txn.CategoryID,
		txn.Fingerprint, txn.CreatedAt, txn.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT * FROM transactions WHERE id = $1`

	var txn models.Transaction
	err := r.db.GetContext(ctx, &txn, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Transaction not found
		}
		return nil, err
	}

	return &txn, nil
}

func (r *PostgresRepository) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	query := `
		UPDATE transactions
		SET posted_at = $1, amount = $2, direction = $3, merchant = $4, description = $5,
		    notes = $6, category_id = $7, fingerprint = $8, updated_at = $9
		WHERE id = $10
	`

	txn.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		txn.PostedAt, txn.Amount, txn.Direction, txn.Merchant, txn.Description,
		txn.Notes, txn.CategoryID, txn.Fingerprint, txn.UpdatedAt, txn.ID)

	return err
}

func (r *PostgresRepository) DeleteTransaction(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	if len(filter.AccountIDs) == 0 {
		return nil, nil
	}

	query := `SELECT * FROM transactions WHERE account_id = ANY($1)`
	args := []interface{}{pq.Array(filter.AccountIDs)}

	appendCondition := func(condition string, arg interface{}) {
		args = append(args, arg)
		query += fmt.Sprintf(" AND %s $%d", condition, len(args))
	}

	if filter.From != nil {
		appendCondition("posted_at >=", *filter.From)
	}
	if filter.To != nil {
		appendCondition("posted_at <=", *filter.To)
	}
	if filter.Direction != nil {
		appendCondition("direction =", *filter.Direction)
	}
	if filter.CategoryID != nil {
		appendCondition("category_id =", *filter.CategoryID)
	}
	if filter.MinAmount != nil {
		appendCondition("amount >=", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		appendCondition("amount <=", *filter.MaxAmount)
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		query += fmt.Sprintf(" AND (merchant ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}

	query += ` ORDER BY posted_at DESC, created_at DESC`

	var txns []models.Transaction
	err := r.db.SelectContext(ctx, &txns, query, args...)
	if err != nil {
		return nil, err
	}

	return txns, nil
}

func (r *PostgresRepository) GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*models.Transaction, error) {
	query := `SELECT * FROM transactions WHERE fingerprint = $1`

	var txn models.Transaction
	err := r.db.GetContext(ctx, &txn, query, fingerprint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Transaction not found
		}
		return nil, err
	}

	return &txn, nil
}

func (r *PostgresRepository) TransactionExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE fingerprint = $1)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, fingerprint)
	if err != nil {
		return false, err
	}

	return exists, nil
}
