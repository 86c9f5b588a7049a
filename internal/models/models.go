package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the system
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Direction indicates how a transaction affects an account balance.
// CREDIT increases the balance, DEBIT decreases it.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// Account represents a user's account with a running balance.
// The balance is derived-but-stored: it must always equal the signed sum of
// all transactions currently attributed to the account, and is mutated only
// through the ledger package.
type Account struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"userId"`
	Name      string          `db:"name" json:"name"`
	Currency  string          `db:"currency" json:"currency"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Category is a global transaction category (not per-user).
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Transaction represents a single posted transaction on an account.
// The fingerprint is the duplicate-detection key; it is unique across
// transactions and recomputable from the other fields.
type Transaction struct {
	ID          string          `db:"id" json:"id"`
	AccountID   string          `db:"account_id" json:"accountId"`
	PostedAt    time.Time       `db:"posted_at" json:"postedAt"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Direction   Direction       `db:"direction" json:"direction"`
	Merchant    string          `db:"merchant" json:"merchant"`
	Description string          `db:"description" json:"description"`
	Notes       string          `db:"notes" json:"notes"`
	CategoryID  *string         `db:"category_id" json:"categoryId,omitempty"`
	Fingerprint string          `db:"fingerprint" json:"fingerprint"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Rule field selectors
const (
	RuleFieldMerchant    = "merchant"
	RuleFieldDescription = "description"
	RuleFieldBoth        = "both"
)

// Rule maps a pattern to a category. Rules are evaluated in
// (priority asc, createdAt asc) order; the first match wins.
type Rule struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"userId"`
	Pattern    string    `db:"pattern" json:"pattern"`
	Field      string    `db:"field" json:"field"` // "merchant", "description" or "both"
	CategoryID string    `db:"category_id" json:"categoryId"`
	Active     bool      `db:"active" json:"active"`
	Priority   int       `db:"priority" json:"priority"` // lower value = evaluated first
	Notes      string    `db:"notes" json:"notes"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// BatchStatus is the lifecycle state of an import batch.
// Transitions are one-directional: PREVIEW -> COMMITTED -> UNDONE,
// PREVIEW -> FAILED, COMMITTED -> FAILED. UNDONE and FAILED are terminal.
type BatchStatus string

const (
	BatchStatusPreview   BatchStatus = "PREVIEW"
	BatchStatusCommitted BatchStatus = "COMMITTED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusUndone    BatchStatus = "UNDONE"
)

// ImportBatch represents one CSV import attempt and owns its rows.
type ImportBatch struct {
	ID        string      `db:"id" json:"id"`
	UserID    string      `db:"user_id" json:"userId"`
	Status    BatchStatus `db:"status" json:"status"`
	Filename  string      `db:"filename" json:"filename"`
	Source    string      `db:"source" json:"source"`
	RowCount  int         `db:"row_count" json:"rowCount"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}

// ImportRow is the per-row outcome of a preview pass. It is created during
// preview and never mutated afterwards. Exactly one of the following holds:
// the row is valid (Normalized set, Error and DuplicateOfID nil), a duplicate
// (Normalized and DuplicateOfID set) or errored (Error set).
type ImportRow struct {
	ID                  string         `db:"id" json:"id"`
	BatchID             string         `db:"batch_id" json:"batchId"`
	RowNo               int            `db:"row_no" json:"rowNo"` // 1-indexed, unique within batch
	RawData             RowData        `db:"raw_data" json:"rawData"`
	Normalized          *NormalizedRow `db:"normalized" json:"normalized,omitempty"`
	Error               *string        `db:"error" json:"error,omitempty"`
	DuplicateOfID       *string        `db:"duplicate_of_id" json:"duplicateOfId,omitempty"`
	SuggestedCategoryID *string        `db:"suggested_category_id" json:"suggestedCategoryId,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
}

// IsValid reports whether the row can be committed: normalized data present,
// no error and not flagged as a duplicate.
func (r *ImportRow) IsValid() bool {
	return r.Normalized != nil && r.Error == nil && r.DuplicateOfID == nil
}

// RowData is a raw CSV row (header -> value) stored as JSONB.
type RowData map[string]string

// Value implements driver.Valuer for JSONB storage.
func (d RowData) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB storage.
func (d *RowData) Scan(src interface{}) error {
	if src == nil {
		*d = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into RowData", src)
	}
	return json.Unmarshal(b, d)
}

// NormalizedRow is the canonical transaction shape produced by the
// normalizer: the validated fields an import row materializes from.
type NormalizedRow struct {
	PostedAt    time.Time       `json:"postedAt"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
}

// Value implements driver.Valuer for JSONB storage.
func (n NormalizedRow) Value() (driver.Value, error) {
	return json.Marshal(n)
}

// Scan implements sql.Scanner for JSONB storage.
func (n *NormalizedRow) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into NormalizedRow", src)
	}
	return json.Unmarshal(b, n)
}
