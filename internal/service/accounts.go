package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/shopspring/decimal"
)

// Account operations
func (s *DefaultService) CreateAccount(ctx context.Context, userID string, req models.CreateAccountRequest) (*models.Account, error) {
	account := &models.Account{
		UserID:   userID,
		Name:     strings.TrimSpace(req.Name),
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		Balance:  decimal.Zero,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	return account, nil
}

func (s *DefaultService) GetAccount(ctx context.Context, userID, accountID string) (*models.Account, error) {
	return s.getAccountAndVerifyOwnership(ctx, userID, accountID)
}

func (s *DefaultService) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	accounts, err := s.repo.GetUserAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing accounts: %w", err)
	}
	return accounts, nil
}

func (s *DefaultService) UpdateAccount(ctx context.Context, userID, accountID string, req models.UpdateAccountRequest) (*models.Account, error) {
	account, err := s.getAccountAndVerifyOwnership(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		account.Name = strings.TrimSpace(req.Name)
	}
	if req.Currency != "" {
		if len(strings.TrimSpace(req.Currency)) != 3 {
			return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
		}
		account.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	}

	if err := s.repo.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("error updating account: %w", err)
	}

	return account, nil
}

func (s *DefaultService) DeleteAccount(ctx context.Context, userID, accountID string) error {
	account, err := s.getAccountAndVerifyOwnership(ctx, userID, accountID)
	if err != nil {
		return err
	}

	// Refuse to delete while transactions still reference the account, so
	// the balance invariant never has to account for orphaned history.
	count, err := s.repo.CountAccountTransactions(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("error counting account transactions: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: account has %d transactions", ErrValidation, count)
	}

	if err := s.repo.DeleteAccount(ctx, account.ID); err != nil {
		return fmt.Errorf("error deleting account: %w", err)
	}

	return nil
}
