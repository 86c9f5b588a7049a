package service

import (
	"context"
	"fmt"

	"github.com/finsmart/finsmart-server/internal/importer"
	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/finsmart/finsmart-server/internal/rules"
)

const importSourceCSV = "CSV_UPLOAD"

// PreviewImport parses CSV content into an import batch without touching the
// ledger. Every physical row (1-indexed after the header) is normalized,
// fingerprinted, checked against existing transactions for duplicates and run
// through the rule engine for a category suggestion. Row-level failures are
// recorded on the row and never abort the batch; a structural parse failure
// marks the whole batch FAILED.
func (s *DefaultService) PreviewImport(ctx context.Context, userID, accountID, csvContent, filename string, headerMapping map[string]string) (*models.ImportPreviewResponse, error) {
	account, err := s.getAccountAndVerifyOwnership(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	if filename == "" {
		filename = "preview.csv"
	}

	batch := &models.ImportBatch{
		UserID:   userID,
		Status:   models.BatchStatusPreview,
		Filename: filename,
		Source:   importSourceCSV,
	}
	if err := s.repo.CreateImportBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("error creating import batch: %w", err)
	}

	rawRows, err := importer.ParseCSV(csvContent, headerMapping)
	if err != nil {
		s.failBatch(ctx, batch)
		return nil, fmt.Errorf("%w: unreadable CSV: %v", ErrValidation, err)
	}

	// The rule set is fixed for the whole pass, so rule evaluation order is
	// deterministic across rows.
	activeRules, err := s.repo.GetActiveUserRules(ctx, userID)
	if err != nil {
		s.failBatch(ctx, batch)
		return nil, fmt.Errorf("error getting rules: %w", err)
	}

	// Fingerprints of valid rows earlier in this pass, so a row repeated
	// within one CSV is flagged duplicate even before anything is committed.
	seen := make(map[string]string)

	for i, raw := range rawRows {
		row := s.processImportRow(ctx, batch, account, raw, i+1, activeRules, seen)
		if err := s.repo.CreateImportRow(ctx, row); err != nil {
			s.failBatch(ctx, batch)
			return nil, fmt.Errorf("error saving import row: %w", err)
		}
		if row.IsValid() {
			seen[importer.FingerprintRow(row.Normalized, account.ID)] = row.ID
		}
	}

	batch.RowCount = len(rawRows)
	if err := s.repo.UpdateImportBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("error updating import batch: %w", err)
	}

	stats, err := s.batchStats(ctx, batch)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.GetImportRows(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting import rows: %w", err)
	}

	s.log.Info().
		Str("batchId", batch.ID).
		Int("total", stats.TotalRows).
		Int("valid", stats.ValidRows).
		Int("duplicates", stats.DuplicateRows).
		Int("errors", stats.ErrorRows).
		Msg("preview completed")

	return &models.ImportPreviewResponse{
		Status: "success",
		Batch:  *batch,
		Stats:  stats,
		Rows:   rows,
	}, nil
}

// CommitImport materializes a previewed batch: every valid, non-duplicate
// row becomes a transaction and its ledger delta is applied, in row-number
// order. Any failure during the pass marks the batch FAILED and re-raises;
// rows already written in the pass are not individually rolled back.
func (s *DefaultService) CommitImport(ctx context.Context, userID, accountID, batchID string) (*models.ImportBatchResponse, error) {
	batch, err := s.getBatchAndVerifyOwnership(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}

	if batch.Status != models.BatchStatusPreview {
		return nil, fmt.Errorf("%w: batch is not in PREVIEW status: %s", ErrInvalidState, batch.Status)
	}

	account, err := s.getAccountAndVerifyOwnership(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.GetImportRows(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting import rows: %w", err)
	}

	committed := 0
	for i := range rows {
		row := &rows[i]
		if !row.IsValid() {
			continue
		}

		if err := s.commitRow(ctx, account, row); err != nil {
			s.failBatch(ctx, batch)
			return nil, fmt.Errorf("failed to commit import: %w", err)
		}
		committed++
	}

	batch.Status = models.BatchStatusCommitted
	if err := s.repo.UpdateImportBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("error updating import batch: %w", err)
	}

	s.log.Info().
		Str("batchId", batch.ID).
		Int("committed", committed).
		Msg("committed import batch")

	return s.batchResponse(ctx, batch)
}

// UndoImport reverses a committed batch. For every row with normalized data
// the fingerprint is recomputed, the matching transaction located, its
// ledger delta reversed and the transaction deleted. Rows that never
// produced a transaction (errored or duplicate at preview time) have no
// normalized match and are skipped; the batch ends UNDONE regardless of how
// many transactions were actually found.
func (s *DefaultService) UndoImport(ctx context.Context, userID, accountID, batchID string) (*models.ImportBatchResponse, error) {
	batch, err := s.getBatchAndVerifyOwnership(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}

	if batch.Status != models.BatchStatusCommitted {
		return nil, fmt.Errorf("%w: batch is not in COMMITTED status: %s", ErrInvalidState, batch.Status)
	}

	account, err := s.getAccountAndVerifyOwnership(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.GetImportRows(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting import rows: %w", err)
	}

	deleted := 0
	for i := range rows {
		row := &rows[i]
		if row.Normalized == nil {
			continue
		}

		fingerprint := importer.FingerprintRow(row.Normalized, account.ID)
		txn, err := s.repo.GetTransactionByFingerprint(ctx, fingerprint)
		if err != nil {
			return nil, fmt.Errorf("error looking up transaction: %w", err)
		}
		if txn == nil {
			continue
		}

		if err := s.ledger.Apply(ctx, txn.AccountID, txn.Amount, txn.Direction, false); err != nil {
			return nil, fmt.Errorf("error reverting account balance: %w", err)
		}
		if err := s.repo.DeleteTransaction(ctx, txn.ID); err != nil {
			return nil, fmt.Errorf("error deleting transaction: %w", err)
		}
		deleted++
	}

	batch.Status = models.BatchStatusUndone
	if err := s.repo.UpdateImportBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("error updating import batch: %w", err)
	}

	s.log.Info().
		Str("batchId", batch.ID).
		Int("deleted", deleted).
		Msg("undid import batch")

	return s.batchResponse(ctx, batch)
}

// GetImportBatch returns a batch with its current row statistics.
func (s *DefaultService) GetImportBatch(ctx context.Context, userID, batchID string) (*models.ImportBatchResponse, error) {
	batch, err := s.getBatchAndVerifyOwnership(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}
	return s.batchResponse(ctx, batch)
}

// ListImportBatches lists the user's batches, newest first.
func (s *DefaultService) ListImportBatches(ctx context.Context, userID string) ([]models.ImportBatch, error) {
	batches, err := s.repo.ListUserImportBatches(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing import batches: %w", err)
	}
	return batches, nil
}

// GetImportRows returns a batch's rows in row-number order.
func (s *DefaultService) GetImportRows(ctx context.Context, userID, batchID string) ([]models.ImportRow, error) {
	if _, err := s.getBatchAndVerifyOwnership(ctx, userID, batchID); err != nil {
		return nil, err
	}

	rows, err := s.repo.GetImportRows(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("error getting import rows: %w", err)
	}
	return rows, nil
}

// processImportRow folds one raw CSV row into its outcome: valid (with
// normalized data and optional category suggestion), duplicate (with a
// reference to the existing transaction, or to the earlier row when the
// duplicate is within the same batch) or errored (with the error text).
// Duplicates are not errors.
func (s *DefaultService) processImportRow(ctx context.Context, batch *models.ImportBatch, account *models.Account, raw models.RowData, rowNo int, activeRules []models.Rule, seen map[string]string) *models.ImportRow {
	row := &models.ImportRow{
		BatchID: batch.ID,
		RowNo:   rowNo,
		RawData: raw,
	}

	normalized, err := importer.Normalize(raw)
	if err != nil {
		msg := err.Error()
		row.Error = &msg
		return row
	}
	row.Normalized = normalized

	fingerprint := importer.FingerprintRow(normalized, account.ID)
	if earlierRowID, ok := seen[fingerprint]; ok {
		id := earlierRowID
		row.DuplicateOfID = &id
	} else {
		duplicate, err := s.repo.GetTransactionByFingerprint(ctx, fingerprint)
		if err != nil {
			msg := fmt.Sprintf("error checking duplicates: %v", err)
			row.Error = &msg
			return row
		}
		if duplicate != nil {
			row.DuplicateOfID = &duplicate.ID
		}
	}

	if categoryID, ok := rules.SuggestCategory(activeRules, normalized.Merchant, normalized.Description); ok {
		// Only attach suggestions for categories that still exist
		category, err := s.repo.GetCategory(ctx, categoryID)
		if err == nil && category != nil {
			row.SuggestedCategoryID = &category.ID
		}
	}

	return row
}

// commitRow turns one valid import row into a transaction and applies its
// balance effect.
func (s *DefaultService) commitRow(ctx context.Context, account *models.Account, row *models.ImportRow) error {
	n := row.Normalized

	txn := &models.Transaction{
		AccountID:   account.ID,
		PostedAt:    n.PostedAt,
		Amount:      n.Amount,
		Direction:   n.Direction,
		Merchant:    n.Merchant,
		Description: n.Description,
		CategoryID:  row.SuggestedCategoryID,
		Fingerprint: importer.FingerprintRow(n, account.ID),
	}

	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return fmt.Errorf("error creating transaction for row %d: %w", row.RowNo, err)
	}

	if err := s.ledger.Apply(ctx, account.ID, txn.Amount, txn.Direction, true); err != nil {
		return fmt.Errorf("error updating account balance for row %d: %w", row.RowNo, err)
	}

	return nil
}

func (s *DefaultService) getBatchAndVerifyOwnership(ctx context.Context, userID, batchID string) (*models.ImportBatch, error) {
	batch, err := s.repo.GetImportBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("error getting import batch: %w", err)
	}

	if batch == nil || batch.UserID != userID {
		return nil, fmt.Errorf("%w: import batch %s", ErrNotFound, batchID)
	}

	return batch, nil
}

// batchStats derives row statistics by re-scanning the batch's rows, so they
// are always consistent with current row state.
func (s *DefaultService) batchStats(ctx context.Context, batch *models.ImportBatch) (models.ImportStats, error) {
	valid, err := s.repo.CountValidImportRows(ctx, batch.ID)
	if err != nil {
		return models.ImportStats{}, fmt.Errorf("error counting valid rows: %w", err)
	}
	duplicates, err := s.repo.CountDuplicateImportRows(ctx, batch.ID)
	if err != nil {
		return models.ImportStats{}, fmt.Errorf("error counting duplicate rows: %w", err)
	}
	errored, err := s.repo.CountErrorImportRows(ctx, batch.ID)
	if err != nil {
		return models.ImportStats{}, fmt.Errorf("error counting error rows: %w", err)
	}

	return models.ImportStats{
		TotalRows:     batch.RowCount,
		ValidRows:     valid,
		DuplicateRows: duplicates,
		ErrorRows:     errored,
	}, nil
}

func (s *DefaultService) batchResponse(ctx context.Context, batch *models.ImportBatch) (*models.ImportBatchResponse, error) {
	stats, err := s.batchStats(ctx, batch)
	if err != nil {
		return nil, err
	}
	return &models.ImportBatchResponse{
		Status: "success",
		Batch:  *batch,
		Stats:  stats,
	}, nil
}

// failBatch is best-effort: the original error is what the caller needs to
// see, not a secondary status-update failure.
func (s *DefaultService) failBatch(ctx context.Context, batch *models.ImportBatch) {
	batch.Status = models.BatchStatusFailed
	if err := s.repo.UpdateImportBatch(ctx, batch); err != nil {
		s.log.Error().Err(err).Str("batchId", batch.ID).Msg("failed to mark batch FAILED")
	}
}
