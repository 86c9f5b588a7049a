package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/google/uuid"
)

// Import batch repository methods
func (r *PostgresRepository) CreateImportBatch(ctx context.Context, batch *models.ImportBatch) error {
	query := `
		INSERT INTO import_batches (id, user_id, status, filename, source, row_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.UserID, batch.Status, batch.Filename,
		batch.Source, batch.RowCount, batch.CreatedAt, batch.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetImportBatch(ctx context.Context, id string) (*models.ImportBatch, error) {
	query := `SELECT * FROM import_batches WHERE id = $1`

	var batch models.ImportBatch
	err := r.db.GetContext(ctx, &batch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Batch not found
		}
		return nil, err
	}

	return &batch, nil
}

func (r *PostgresRepository) UpdateImportBatch(ctx context.Context, batch *models.ImportBatch) error {
	query := `
		UPDATE import_batches SET status = $1, row_count = $2, updated_at = $3
		WHERE id = $4
	`

	batch.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		batch.Status, batch.RowCount, batch.UpdatedAt, batch.ID)

	return err
}

func (r *PostgresRepository) ListUserImportBatches(ctx context.Context, userID string) ([]models.ImportBatch, error) {
	query := `SELECT * FROM import_batches WHERE user_id = $1 ORDER BY created_at DESC`

	var batches []models.ImportBatch
	err := r.db.SelectContext(ctx, &batches, query, userID)
	if err != nil {
		return nil, err
	}

	return batches, nil
}

// Import row repository methods
func (r *PostgresRepository) CreateImportRow(ctx context.Context, row *models.ImportRow) error {
	query := `
		INSERT INTO import_rows (id, batch_id, row_no, raw_data, normalized, error, duplicate_of_id, suggested_category_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	row.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		row.ID, row.BatchID, row.RowNo, row.RawData, row.Normalized,
		row.Error, row.DuplicateOfID, row.SuggestedCategoryID, row.CreatedAt)

	return err
}

func (r *PostgresRepository) GetImportRows(ctx context.Context, batchID string) ([]models.ImportRow, error) {
	query := `SELECT * FROM import_rows WHERE batch_id = $1 ORDER BY row_no ASC`

	var rows []models.ImportRow
	err := r.db.SelectContext(ctx, &rows, query, batchID)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *PostgresRepository) CountValidImportRows(ctx context.Context, batchID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM import_rows
		WHERE batch_id = $1 AND error IS NULL AND duplicate_of_id IS NULL AND normalized IS NOT NULL
	`
	return r.countRows(ctx, query, batchID)
}

func (r *PostgresRepository) CountDuplicateImportRows(ctx context.Context, batchID string) (int, error) {
	query := `SELECT COUNT(*) FROM import_rows WHERE batch_id = $1 AND duplicate_of_id IS NOT NULL`
	return r.countRows(ctx, query, batchID)
}

func (r *PostgresRepository) CountErrorImportRows(ctx context.Context, batchID string) (int, error) {
	query := `SELECT COUNT(*) FROM import_rows WHERE batch_id = $1 AND error IS NOT NULL`
	return r.countRows(ctx, query, batchID)
}

func (r *PostgresRepository) countRows(ctx context.Context, query, batchID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, query, batchID)
	if err != nil {
		return 0, err
	}
	return count, nil
}
