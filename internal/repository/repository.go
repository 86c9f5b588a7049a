package repository

import (
	"context"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// TransactionFilter narrows ListTransactions. Nil/zero fields are ignored.
type TransactionFilter struct {
	AccountIDs []string // must be non-empty: restricts results to the caller's accounts
	From       *time.Time
	To         *time.Time
	Direction  *models.Direction
	CategoryID *string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	Query      string // case-insensitive substring over merchant and description
}

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Account operations
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetUserAccounts(ctx context.Context, userID string) ([]models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, id string) error
	// AddToAccountBalance applies a signed delta as a single atomic
	// increment at the storage layer, never read-modify-write.
	AddToAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error
	CountAccountTransactions(ctx context.Context, accountID string) (int, error)

	// Category operations
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)

	// Rule operations
	CreateRule(ctx context.Context, rule *models.Rule) error
	GetRule(ctx context.Context, id string) (*models.Rule, error)
	UpdateRule(ctx context.Context, rule *models.Rule) error
	DeleteRule(ctx context.Context, id string) error
	// GetUserRules returns all of a user's rules ordered by
	// (priority asc, created_at asc); GetActiveUserRules filters to active
	// ones with the same ordering, which the rule engine relies on.
	GetUserRules(ctx context.Context, userID string) ([]models.Rule, error)
	GetActiveUserRules(ctx context.Context, userID string) ([]models.Rule, error)

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
	GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*models.Transaction, error)
	TransactionExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)

	// Import operations
	CreateImportBatch(ctx context.Context, batch *models.ImportBatch) error
	GetImportBatch(ctx context.Context, id string) (*models.ImportBatch, error)
	UpdateImportBatch(ctx context.Context, batch *models.ImportBatch) error
	ListUserImportBatches(ctx context.Context, userID string) ([]models.ImportBatch, error)
	CreateImportRow(ctx context.Context, row *models.ImportRow) error
	// GetImportRows returns a batch's rows in ascending row-number order,
	// which preview listings, commit and undo all rely on.
	GetImportRows(ctx context.Context, batchID string) ([]models.ImportRow, error)
	CountValidImportRows(ctx context.Context, batchID string) (int, error)
	CountDuplicateImportRows(ctx context.Context, batchID string) (int, error)
	CountErrorImportRows(ctx context.Context, batchID string) (int, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}
