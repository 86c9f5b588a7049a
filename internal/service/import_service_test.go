package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsmart/finsmart-server/internal/ai"
	"github.com/finsmart/finsmart-server/internal/logger"
	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/finsmart/finsmart-server/internal/repository"
	"github.com/finsmart/finsmart-server/internal/service"
)

// stubCategorizer returns canned predictions, or an error when err is set.
type stubCategorizer struct {
	predictions []ai.Prediction
	err         error
}

func (s *stubCategorizer) Categorize(ctx context.Context, txns []models.TxnPayload) ([]ai.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.predictions, nil
}

type fixture struct {
	svc     service.Service
	repo    repository.Repository
	userID  string
	account *models.Account
}

func newFixture(t *testing.T, categorizer ai.Client) *fixture {
	repo := repository.NewMemoryRepository()
	if categorizer == nil {
		categorizer = &stubCategorizer{err: errors.New("unavailable")}
	}
	svc := service.NewDefaultService(repo, categorizer, "test-secret", logger.Nop())
	ctx := context.Background()

	user := &models.User{Email: "svc@example.com", Name: "Svc", Password: "x"}
	require.NoError(t, repo.CreateUser(ctx, user))

	account, err := svc.CreateAccount(ctx, user.ID, models.CreateAccountRequest{Name: "Main", Currency: "USD"})
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, userID: user.ID, account: account}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	account, err := f.repo.GetAccount(context.Background(), f.account.ID)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account.Balance
}

func TestCommitRejectsNonPreviewBatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	csv := "date,amount,merchant\n2024-01-15,-5.00,Cafe\n"
	preview, err := f.svc.PreviewImport(ctx, f.userID, f.account.ID, csv, "", nil)
	require.NoError(t, err)

	_, err = f.svc.CommitImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	require.NoError(t, err)

	// COMMITTED is not PREVIEW
	_, err = f.svc.CommitImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	assert.ErrorIs(t, err, service.ErrInvalidState)

	_, err = f.svc.UndoImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	require.NoError(t, err)

	// UNDONE is terminal: neither commit nor undo may run again
	_, err = f.svc.CommitImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	assert.ErrorIs(t, err, service.ErrInvalidState)
	_, err = f.svc.UndoImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	assert.ErrorIs(t, err, service.ErrInvalidState)
}

func TestCommitFailureMarksBatchFailed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	csv := "date,amount,direction,merchant,description\n" +
		"2024-01-15,125.43,DEBIT,Whole Foods,Groceries\n"
	preview, err := f.svc.PreviewImport(ctx, f.userID, f.account.ID, csv, "", nil)
	require.NoError(t, err)
	require.Equal(t, 1, preview.Stats.ValidRows)

	// Sneak in the identical transaction between preview and commit, so the
	// commit-time insert hits the fingerprint uniqueness constraint.
	_, err = f.svc.CreateTransaction(ctx, f.userID, models.CreateTransactionRequest{
		AccountID:   f.account.ID,
		PostedAt:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("125.43"),
		Direction:   models.DirectionDebit,
		Merchant:    "Whole Foods",
		Description: "Groceries",
	})
	require.NoError(t, err)

	_, err = f.svc.CommitImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	require.Error(t, err)

	batch, err := f.svc.GetImportBatch(ctx, f.userID, preview.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusFailed, batch.Batch.Status)

	// FAILED is terminal
	_, err = f.svc.CommitImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	assert.ErrorIs(t, err, service.ErrInvalidState)
}

func TestPreviewRowsNotMutatedByCommit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	csv := "date,amount,merchant\n2024-01-15,-5.00,Cafe\nbad,10.00,Nowhere\n"
	preview, err := f.svc.PreviewImport(ctx, f.userID, f.account.ID, csv, "", nil)
	require.NoError(t, err)

	before, err := f.svc.GetImportRows(ctx, f.userID, preview.Batch.ID)
	require.NoError(t, err)

	_, err = f.svc.CommitImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	require.NoError(t, err)

	after, err := f.svc.GetImportRows(ctx, f.userID, preview.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rows are created during preview and never mutated afterwards")

	// Stats are re-derived from the same unchanged rows
	batch, err := f.svc.GetImportBatch(ctx, f.userID, preview.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Stats.TotalRows)
	assert.Equal(t, 1, batch.Stats.ValidRows)
	assert.Equal(t, 1, batch.Stats.ErrorRows)
}

func TestUndoSkipsTransactionsDeletedOutOfBand(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	csv := "date,amount,direction,merchant,description\n" +
		"2024-01-15,10.00,DEBIT,Cafe,Coffee\n" +
		"2024-01-16,20.00,DEBIT,Bakery,Bread\n"
	preview, err := f.svc.PreviewImport(ctx, f.userID, f.account.ID, csv, "", nil)
	require.NoError(t, err)

	_, err = f.svc.CommitImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	require.NoError(t, err)

	// Delete one of the committed transactions directly
	txns, err := f.svc.ListTransactions(ctx, f.userID, service.TransactionListOptions{AccountID: f.account.ID})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.NoError(t, f.svc.DeleteTransaction(ctx, f.userID, txns[0].ID))

	// Undo removes the remaining one and still finishes UNDONE
	undone, err := f.svc.UndoImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusUndone, undone.Batch.Status)

	remaining, err := f.svc.ListTransactions(ctx, f.userID, service.TransactionListOptions{AccountID: f.account.ID})
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.True(t, f.balance(t).IsZero())
}

func TestBalanceInvariantAcrossMixedOperations(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Direct create
	txn, err := f.svc.CreateTransaction(ctx, f.userID, models.CreateTransactionRequest{
		AccountID: f.account.ID,
		PostedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.RequireFromString("4250.00"),
		Direction: models.DirectionCredit,
		Merchant:  "Employer",
	})
	require.NoError(t, err)

	// Import commit
	csv := "date,amount,merchant\n2024-01-03,-86.40,Woolworths\n2024-01-05,-23.90,Uber Eats\n"
	preview, err := f.svc.PreviewImport(ctx, f.userID, f.account.ID, csv, "", nil)
	require.NoError(t, err)
	_, err = f.svc.CommitImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	require.NoError(t, err)

	// Update the direct transaction
	_, err = f.svc.UpdateTransaction(ctx, f.userID, txn.ID, models.UpdateTransactionRequest{
		PostedAt:  txn.PostedAt,
		Amount:    decimal.RequireFromString("4000.00"),
		Direction: models.DirectionCredit,
		Merchant:  "Employer",
	})
	require.NoError(t, err)

	checkInvariant := func() {
		txns, err := f.svc.ListTransactions(ctx, f.userID, service.TransactionListOptions{AccountID: f.account.ID})
		require.NoError(t, err)

		sum := decimal.Zero
		for _, tx := range txns {
			if tx.Direction == models.DirectionCredit {
				sum = sum.Add(tx.Amount)
			} else {
				sum = sum.Sub(tx.Amount)
			}
		}
		assert.True(t, f.balance(t).Equal(sum),
			"balance %s != signed sum %s", f.balance(t), sum)
	}
	checkInvariant()

	// Undo the import and check again
	_, err = f.svc.UndoImport(ctx, f.userID, f.account.ID, preview.Batch.ID)
	require.NoError(t, err)
	checkInvariant()

	// Delete the last transaction and check once more
	require.NoError(t, f.svc.DeleteTransaction(ctx, f.userID, txn.ID))
	checkInvariant()
	assert.True(t, f.balance(t).IsZero())
}

func TestSuggestCategoriesAIWithRuleFallback(t *testing.T) {
	ctx := context.Background()

	payloads := []models.TxnPayload{
		{Date: "2024-01-15", Amount: decimal.RequireFromString("12.50"), Direction: models.DirectionDebit, Merchant: "Woolworths", Description: "Groceries"},
		{Date: "2024-01-16", Amount: decimal.RequireFromString("30.00"), Direction: models.DirectionDebit, Merchant: "Cinema", Description: "Movies"},
	}

	// AI answers the first transaction only; the rules cover the second
	f := newFixture(t, &stubCategorizer{predictions: []ai.Prediction{
		{GuessCategory: "Groceries", Score: 0.93, Reason: "merchant match"},
		{},
	}})

	category, err := f.svc.CreateCategory(ctx, models.CreateCategoryRequest{Name: "Entertainment"})
	require.NoError(t, err)
	_, err = f.svc.CreateRule(ctx, f.userID, models.CreateRuleRequest{
		Pattern: "cinema", Field: models.RuleFieldMerchant, CategoryID: category.ID,
	})
	require.NoError(t, err)

	suggestions, err := f.svc.SuggestCategories(ctx, f.userID, payloads)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	assert.Equal(t, "ai", suggestions[0].Source)
	assert.Equal(t, "Groceries", suggestions[0].Category)
	assert.Equal(t, "rules", suggestions[1].Source)
	assert.Equal(t, category.ID, suggestions[1].CategoryID)

	// A failing categorizer never fails the call
	failing := newFixture(t, &stubCategorizer{err: errors.New("timeout")})
	suggestions, err = failing.svc.SuggestCategories(ctx, failing.userID, payloads)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "rules", suggestions[0].Source)
}
