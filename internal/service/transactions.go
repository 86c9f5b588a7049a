package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finsmart/finsmart-server/internal/importer"
	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/finsmart/finsmart-server/internal/repository"
	"github.com/finsmart/finsmart-server/internal/rules"
	"github.com/shopspring/decimal"
)

// TransactionListOptions narrows ListTransactions. Zero fields are ignored.
// AccountID empty means all of the caller's accounts.
type TransactionListOptions struct {
	AccountID  string
	From       *time.Time
	To         *time.Time
	Direction  *models.Direction
	CategoryID *string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	Query      string
}

// Transaction operations
func (s *DefaultService) CreateTransaction(ctx context.Context, userID string, req models.CreateTransactionRequest) (*models.Transaction, error) {
	account, err := s.getAccountAndVerifyOwnership(ctx, userID, req.AccountID)
	if err != nil {
		return nil, err
	}

	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must be >= 0", ErrValidation)
	}

	if req.CategoryID != nil {
		if _, err := s.GetCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	txn := &models.Transaction{
		AccountID:   account.ID,
		PostedAt:    req.PostedAt.UTC(),
		Amount:      req.Amount,
		Direction:   req.Direction,
		Merchant:    strings.TrimSpace(req.Merchant),
		Description: strings.TrimSpace(req.Description),
		Notes:       req.Notes,
		CategoryID:  req.CategoryID,
	}
	txn.Fingerprint = importer.Fingerprint(
		txn.PostedAt, txn.Amount, txn.Direction, txn.Merchant, txn.Description, txn.AccountID)

	existing, err := s.repo.TransactionExistsByFingerprint(ctx, txn.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("error checking duplicate transaction: %w", err)
	}
	if existing {
		return nil, fmt.Errorf("%w: duplicate transaction", ErrValidation)
	}

	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("error creating transaction: %w", err)
	}

	// Update account balance
	if err := s.ledger.Apply(ctx, account.ID, txn.Amount, txn.Direction, true); err != nil {
		return nil, fmt.Errorf("error updating account balance: %w", err)
	}

	s.log.Info().
		Str("transactionId", txn.ID).
		Str("accountId", account.ID).
		Str("direction", string(txn.Direction)).
		Str("amount", txn.Amount.String()).
		Msg("created transaction")

	return txn, nil
}

func (s *DefaultService) GetTransaction(ctx context.Context, userID, transactionID string) (*models.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("error getting transaction: %w", err)
	}
	if txn == nil {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, transactionID)
	}

	// Verify ownership via the account
	if _, err := s.getAccountAndVerifyOwnership(ctx, userID, txn.AccountID); err != nil {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, transactionID)
	}

	return txn, nil
}

func (s *DefaultService) UpdateTransaction(ctx context.Context, userID, transactionID string, req models.UpdateTransactionRequest) (*models.Transaction, error) {
	txn, err := s.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		return nil, err
	}

	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must be >= 0", ErrValidation)
	}

	if req.CategoryID != nil {
		if _, err := s.GetCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	oldAmount, oldDirection := txn.Amount, txn.Direction

	txn.PostedAt = req.PostedAt.UTC()
	txn.Amount = req.Amount
	txn.Direction = req.Direction
	txn.Merchant = strings.TrimSpace(req.Merchant)
	txn.Description = strings.TrimSpace(req.Description)
	txn.Notes = req.Notes
	txn.CategoryID = req.CategoryID
	txn.Fingerprint = importer.Fingerprint(
		txn.PostedAt, txn.Amount, txn.Direction, txn.Merchant, txn.Description, txn.AccountID)

	// The new field tuple must not collide with another transaction
	other, err := s.repo.GetTransactionByFingerprint(ctx, txn.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("error checking duplicate transaction: %w", err)
	}
	if other != nil && other.ID != txn.ID {
		return nil, fmt.Errorf("%w: duplicate transaction", ErrValidation)
	}

	if err := s.repo.UpdateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("error updating transaction: %w", err)
	}

	// Revert the old balance impact, then apply the new one
	if err := s.ledger.Apply(ctx, txn.AccountID, oldAmount, oldDirection, false); err != nil {
		return nil, fmt.Errorf("error reverting account balance: %w", err)
	}
	if err := s.ledger.Apply(ctx, txn.AccountID, txn.Amount, txn.Direction, true); err != nil {
		return nil, fmt.Errorf("error updating account balance: %w", err)
	}

	return txn, nil
}

func (s *DefaultService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	txn, err := s.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteTransaction(ctx, txn.ID); err != nil {
		return fmt.Errorf("error deleting transaction: %w", err)
	}

	// Revert balance impact
	if err := s.ledger.Apply(ctx, txn.AccountID, txn.Amount, txn.Direction, false); err != nil {
		return fmt.Errorf("error reverting account balance: %w", err)
	}

	return nil
}

func (s *DefaultService) ListTransactions(ctx context.Context, userID string, opts TransactionListOptions) ([]models.Transaction, error) {
	// Resolve which accounts the query may touch
	var accountIDs []string
	if opts.AccountID != "" {
		account, err := s.getAccountAndVerifyOwnership(ctx, userID, opts.AccountID)
		if err != nil {
			return nil, err
		}
		accountIDs = []string{account.ID}
	} else {
		accounts, err := s.repo.GetUserAccounts(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("error listing accounts: %w", err)
		}
		if len(accounts) == 0 {
			return nil, nil
		}
		for _, account := range accounts {
			accountIDs = append(accountIDs, account.ID)
		}
	}

	txns, err := s.repo.ListTransactions(ctx, repository.TransactionFilter{
		AccountIDs: accountIDs,
		From:       opts.From,
		To:         opts.To,
		Direction:  opts.Direction,
		CategoryID: opts.CategoryID,
		MinAmount:  opts.MinAmount,
		MaxAmount:  opts.MaxAmount,
		Query:      opts.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}

	return txns, nil
}

// BulkDeleteTransactions deletes the given transactions, skipping ones that
// do not exist or are not owned by the user, and returns how many were
// actually deleted.
func (s *DefaultService) BulkDeleteTransactions(ctx context.Context, userID string, transactionIDs []string) (int, error) {
	deleted := 0
	for _, id := range transactionIDs {
		err := s.DeleteTransaction(ctx, userID, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}

	s.log.Info().Int("deleted", deleted).Str("userId", userID).Msg("bulk deleted transactions")
	return deleted, nil
}

// BulkRecategorizeTransactions sets (or clears, for nil categoryID) the
// category on the given transactions. Balance math is untouched: category is
// not an input to the ledger.
func (s *DefaultService) BulkRecategorizeTransactions(ctx context.Context, userID string, transactionIDs []string, categoryID *string) (int, error) {
	if categoryID != nil {
		if _, err := s.GetCategory(ctx, *categoryID); err != nil {
			return 0, err
		}
	}

	applied := 0
	for _, id := range transactionIDs {
		txn, err := s.GetTransaction(ctx, userID, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return applied, err
		}

		txn.CategoryID = categoryID
		if err := s.repo.UpdateTransaction(ctx, txn); err != nil {
			return applied, fmt.Errorf("error updating transaction: %w", err)
		}
		applied++
	}

	s.log.Info().Int("applied", applied).Str("userId", userID).Msg("bulk recategorized transactions")
	return applied, nil
}

// SuggestCategories asks the external categorizer for category guesses and
// falls back to the local rule engine when the service is unavailable or
// returns fewer answers than transactions. The call never fails on
// categorizer errors: worst case every suggestion comes from the rules.
func (s *DefaultService) SuggestCategories(ctx context.Context, userID string, txns []models.TxnPayload) ([]models.CategorySuggestion, error) {
	activeRules, err := s.repo.GetActiveUserRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting rules: %w", err)
	}

	aiPredictions, aiErr := s.categorizer.Categorize(ctx, txns)
	if aiErr != nil {
		s.log.Warn().Err(aiErr).Msg("categorizer service unavailable, falling back to rules")
	}

	suggestions := make([]models.CategorySuggestion, len(txns))
	for i, txn := range txns {
		if aiErr == nil && i < len(aiPredictions) && aiPredictions[i].GuessCategory != "" {
			suggestions[i] = models.CategorySuggestion{
				Category: aiPredictions[i].GuessCategory,
				Reason:   aiPredictions[i].Reason,
				Source:   "ai",
			}
			continue
		}

		if categoryID, ok := rules.SuggestCategory(activeRules, txn.Merchant, txn.Description); ok {
			suggestions[i] = models.CategorySuggestion{
				CategoryID: categoryID,
				Source:     "rules",
			}
			continue
		}

		suggestions[i] = models.CategorySuggestion{Source: "rules"}
	}

	return suggestions, nil
}
