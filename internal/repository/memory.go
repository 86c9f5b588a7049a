package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryRepository is an in-memory Repository implementation used by the
// test suites and for local development without Postgres. A single mutex
// serializes all access, so balance increments are atomic the same way the
// Postgres UPDATE is.
type MemoryRepository struct {
	mu sync.Mutex

	users        map[string]models.User
	accounts     map[string]models.Account
	categories   map[string]models.Category
	rules        map[string]models.Rule
	transactions map[string]models.Transaction
	batches      map[string]models.ImportBatch
	rows         map[string]models.ImportRow

	// Monotonic insertion counter: tie-breaks rule ordering when two rules
	// share a priority and a created_at timestamp.
	seq     int64
	seqByID map[string]int64
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[string]models.User),
		accounts:     make(map[string]models.Account),
		categories:   make(map[string]models.Category),
		rules:        make(map[string]models.Rule),
		transactions: make(map[string]models.Transaction),
		batches:      make(map[string]models.ImportBatch),
		rows:         make(map[string]models.ImportRow),
		seqByID:      make(map[string]int64),
	}
}

func (r *MemoryRepository) nextSeq(id string) {
	r.seq++
	r.seqByID[id] = r.seq
}

// User operations

func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.users[id]; ok {
		u := user
		return &u, nil
	}
	return nil, nil
}

// Account operations

func (r *MemoryRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	r.accounts[account.ID] = *account
	r.nextSeq(account.ID)
	return nil
}

func (r *MemoryRepository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.accounts[id]; ok {
		a := account
		return &a, nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var accounts []models.Account
	for _, account := range r.accounts {
		if account.UserID == userID {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return r.seqByID[accounts[i].ID] < r.seqByID[accounts[j].ID]
	})
	return accounts, nil
}

func (r *MemoryRepository) UpdateAccount(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok {
		return fmt.Errorf("account not found: %s", account.ID)
	}
	stored.Name = account.Name
	stored.Currency = account.Currency
	stored.UpdatedAt = time.Now().UTC()
	r.accounts[account.ID] = stored
	return nil
}

func (r *MemoryRepository) DeleteAccount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, id)
	return nil
}

func (r *MemoryRepository) AddToAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found: %s", accountID)
	}
	account.Balance = account.Balance.Add(delta)
	account.UpdatedAt = time.Now().UTC()
	r.accounts[accountID] = account
	return nil
}

func (r *MemoryRepository) CountAccountTransactions(ctx context.Context, accountID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, txn := range r.transactions {
		if txn.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

// Category operations

func (r *MemoryRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	category.CreatedAt = time.Now().UTC()

	r.categories[category.ID] = *category
	return nil
}

func (r *MemoryRepository) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category, ok := r.categories[id]; ok {
		c := category
		return &c, nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, category := range r.categories {
		if category.Name == name {
			c := category
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	categories := make([]models.Category, 0, len(r.categories))
	for _, category := range r.categories {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

// Rule operations

func (r *MemoryRepository) CreateRule(ctx context.Context, rule *models.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	r.rules[rule.ID] = *rule
	r.nextSeq(rule.ID)
	return nil
}

func (r *MemoryRepository) GetRule(ctx context.Context, id string) (*models.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule, ok := r.rules[id]; ok {
		rl := rule
		return &rl, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateRule(ctx context.Context, rule *models.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[rule.ID]; !ok {
		return fmt.Errorf("rule not found: %s", rule.ID)
	}
	rule.UpdatedAt = time.Now().UTC()
	r.rules[rule.ID] = *rule
	return nil
}

func (r *MemoryRepository) DeleteRule(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rules, id)
	return nil
}

func (r *MemoryRepository) GetUserRules(ctx context.Context, userID string) ([]models.Rule, error) {
	return r.userRules(userID, false), nil
}

func (r *MemoryRepository) GetActiveUserRules(ctx context.Context, userID string) ([]models.Rule, error) {
	return r.userRules(userID, true), nil
}

func (r *MemoryRepository) userRules(userID string, activeOnly bool) []models.Rule {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ruleList []models.Rule
	for _, rule := range r.rules {
		if rule.UserID != userID {
			continue
		}
		if activeOnly && !rule.Active {
			continue
		}
		ruleList = append(ruleList, rule)
	}
	sort.Slice(ruleList, func(i, j int) bool {
		if ruleList[i].Priority != ruleList[j].Priority {
			return ruleList[i].Priority < ruleList[j].Priority
		}
		return r.seqByID[ruleList[i].ID] < r.seqByID[ruleList[j].ID]
	})
	return ruleList
}

// Transaction operations

func (r *MemoryRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Mirror the unique index on fingerprint
	for _, existing := range r.transactions {
		if existing.Fingerprint == txn.Fingerprint {
			return fmt.Errorf("duplicate fingerprint: %s", txn.Fingerprint)
		}
	}

	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	r.transactions[txn.ID] = *txn
	r.nextSeq(txn.ID)
	return nil
}

func (r *MemoryRepository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if txn, ok := r.transactions[id]; ok {
		t := txn
		return &t, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transactions[txn.ID]; !ok {
		return fmt.Errorf("transaction not found: %s", txn.ID)
	}
	txn.UpdatedAt = time.Now().UTC()
	r.transactions[txn.ID] = *txn
	return nil
}

func (r *MemoryRepository) DeleteTransaction(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.transactions, id)
	return nil
}

func (r *MemoryRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inAccounts := make(map[string]bool, len(filter.AccountIDs))
	for _, id := range filter.AccountIDs {
		inAccounts[id] = true
	}

	var txns []models.Transaction
	for _, txn := range r.transactions {
		if !inAccounts[txn.AccountID] {
			continue
		}
		if filter.From != nil && txn.PostedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && txn.PostedAt.After(*filter.To) {
			continue
		}
		if filter.Direction != nil && txn.Direction != *filter.Direction {
			continue
		}
		if filter.CategoryID != nil && (txn.CategoryID == nil || *txn.CategoryID != *filter.CategoryID) {
			continue
		}
		if filter.MinAmount != nil && txn.Amount.LessThan(*filter.MinAmount) {
			continue
		}
		if filter.MaxAmount != nil && txn.Amount.GreaterThan(*filter.MaxAmount) {
			continue
		}
		if filter.Query != "" {
			q := strings.ToLower(filter.Query)
			if !strings.Contains(strings.ToLower(txn.Merchant), q) &&
				!strings.Contains(strings.ToLower(txn.Description), q) {
				continue
			}
		}
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].PostedAt.Equal(txns[j].PostedAt) {
			return txns[i].PostedAt.After(txns[j].PostedAt)
		}
		return r.seqByID[txns[i].ID] > r.seqByID[txns[j].ID]
	})
	return txns, nil
}

func (r *MemoryRepository) GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, txn := range r.transactions {
		if txn.Fingerprint == fingerprint {
			t := txn
			return &t, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) TransactionExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	txn, err := r.GetTransactionByFingerprint(ctx, fingerprint)
	if err != nil {
		return false, err
	}
	return txn != nil, nil
}

// Import operations

func (r *MemoryRepository) CreateImportBatch(ctx context.Context, batch *models.ImportBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now

	r.batches[batch.ID] = *batch
	r.nextSeq(batch.ID)
	return nil
}

func (r *MemoryRepository) GetImportBatch(ctx context.Context, id string) (*models.ImportBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if batch, ok := r.batches[id]; ok {
		b := batch
		return &b, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateImportBatch(ctx context.Context, batch *models.ImportBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.batches[batch.ID]
	if !ok {
		return fmt.Errorf("import batch not found: %s", batch.ID)
	}
	stored.Status = batch.Status
	stored.RowCount = batch.RowCount
	stored.UpdatedAt = time.Now().UTC()
	r.batches[batch.ID] = stored
	return nil
}

func (r *MemoryRepository) ListUserImportBatches(ctx context.Context, userID string) ([]models.ImportBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var batches []models.ImportBatch
	for _, batch := range r.batches {
		if batch.UserID == userID {
			batches = append(batches, batch)
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		return r.seqByID[batches[i].ID] > r.seqByID[batches[j].ID]
	})
	return batches, nil
}

func (r *MemoryRepository) CreateImportRow(ctx context.Context, row *models.ImportRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	row.CreatedAt = time.Now().UTC()

	r.rows[row.ID] = *row
	return nil
}

func (r *MemoryRepository) GetImportRows(ctx context.Context, batchID string) ([]models.ImportRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rows []models.ImportRow
	for _, row := range r.rows {
		if row.BatchID == batchID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].RowNo < rows[j].RowNo
	})
	return rows, nil
}

func (r *MemoryRepository) CountValidImportRows(ctx context.Context, batchID string) (int, error) {
	return r.countImportRows(batchID, func(row models.ImportRow) bool {
		return row.IsValid()
	}), nil
}

func (r *MemoryRepository) CountDuplicateImportRows(ctx context.Context, batchID string) (int, error) {
	return r.countImportRows(batchID, func(row models.ImportRow) bool {
		return row.DuplicateOfID != nil
	}), nil
}

func (r *MemoryRepository) CountErrorImportRows(ctx context.Context, batchID string) (int, error) {
	return r.countImportRows(batchID, func(row models.ImportRow) bool {
		return row.Error != nil
	}), nil
}

func (r *MemoryRepository) countImportRows(batchID string, match func(models.ImportRow) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, row := range r.rows {
		if row.BatchID == batchID && match(row) {
			count++
		}
	}
	return count
}
