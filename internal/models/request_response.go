package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateAccountRequest struct {
	Name     string `json:"name" binding:"required"`
	Currency string `json:"currency" binding:"required,len=3"`
}

type UpdateAccountRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type CreateTransactionRequest struct {
	AccountID   string          `json:"accountId" binding:"required"`
	PostedAt    time.Time       `json:"postedAt" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Direction   Direction       `json:"direction" binding:"required,oneof=CREDIT DEBIT"`
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
	Notes       string          `json:"notes"`
	CategoryID  *string         `json:"categoryId"`
}

type UpdateTransactionRequest struct {
	PostedAt    time.Time       `json:"postedAt" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Direction   Direction       `json:"direction" binding:"required,oneof=CREDIT DEBIT"`
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
	Notes       string          `json:"notes"`
	CategoryID  *string         `json:"categoryId"`
}

type BulkDeleteRequest struct {
	TransactionIDs []string `json:"transactionIds" binding:"required,min=1"`
}

type BulkRecategorizeRequest struct {
	TransactionIDs []string `json:"transactionIds" binding:"required,min=1"`
	CategoryID     *string  `json:"categoryId"` // nil clears the category
}

type CreateCategoryRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

type CreateRuleRequest struct {
	Pattern    string `json:"pattern" binding:"required"`
	Field      string `json:"field" binding:"required,oneof=merchant description both"`
	CategoryID string `json:"categoryId" binding:"required"`
	Priority   *int   `json:"priority"`
	Notes      string `json:"notes"`
}

type UpdateRuleRequest struct {
	Pattern    *string `json:"pattern"`
	Field      *string `json:"field"`
	CategoryID *string `json:"categoryId"`
	Priority   *int    `json:"priority"`
	Active     *bool   `json:"active"`
	Notes      *string `json:"notes"`
}

type ImportPreviewRequest struct {
	AccountID     string            `json:"accountId" binding:"required"`
	CSVContent    string            `json:"csvContent" binding:"required"`
	Filename      string            `json:"filename"`
	HeaderMapping map[string]string `json:"headerMapping"`
}

type SuggestCategoriesRequest struct {
	Transactions []TxnPayload `json:"transactions" binding:"required,min=1"`
}

// TxnPayload is the transaction shape sent to the external categorizer.
type TxnPayload struct {
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

// ImportStats is derived by re-scanning the batch's rows on every request,
// never cached, so it is always consistent with current row state.
type ImportStats struct {
	TotalRows     int `json:"totalRows"`
	ValidRows     int `json:"validRows"`
	DuplicateRows int `json:"duplicateRows"`
	ErrorRows     int `json:"errorRows"`
}

type ImportPreviewResponse struct {
	Status string      `json:"status"`
	Batch  ImportBatch `json:"batch"`
	Stats  ImportStats `json:"stats"`
	Rows   []ImportRow `json:"rows"`
}

type ImportBatchResponse struct {
	Status string      `json:"status"`
	Batch  ImportBatch `json:"batch"`
	Stats  ImportStats `json:"stats"`
}

type BulkActionResponse struct {
	Status  string `json:"status"`
	Applied int    `json:"applied"`
}

type RuleStatsResponse struct {
	Status   string `json:"status"`
	Total    int    `json:"total"`
	Active   int    `json:"active"`
	Inactive int    `json:"inactive"`
}

// CategorySuggestion is the external categorizer's answer for one
// transaction; Source records whether it came from the AI service or the
// local rule fallback.
type CategorySuggestion struct {
	CategoryID string `json:"categoryId,omitempty"`
	Category   string `json:"category,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Source     string `json:"source"` // "ai" or "rules"
}

type SuggestCategoriesResponse struct {
	Status      string               `json:"status"`
	Suggestions []CategorySuggestion `json:"suggestions"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
