package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finsmart/finsmart-server/internal/ai"
	"github.com/finsmart/finsmart-server/internal/ledger"
	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/finsmart/finsmart-server/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors the API layer maps to HTTP statuses with errors.Is.
var (
	// ErrNotFound covers both genuinely missing entities and entities the
	// caller does not own; ownership failures read the same as missing
	// rows.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState rejects an operation against a batch in the wrong
	// lifecycle state (commit on non-PREVIEW, undo on non-COMMITTED).
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation rejects bad caller input.
	ErrValidation = errors.New("validation failed")
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Account operations
	CreateAccount(ctx context.Context, userID string, req models.CreateAccountRequest) (*models.Account, error)
	GetAccount(ctx context.Context, userID, accountID string) (*models.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]models.Account, error)
	UpdateAccount(ctx context.Context, userID, accountID string, req models.UpdateAccountRequest) (*models.Account, error)
	DeleteAccount(ctx context.Context, userID, accountID string) error

	// Category operations
	CreateCategory(ctx context.Context, req models.CreateCategoryRequest) (*models.Category, error)
	GetCategory(ctx context.Context, categoryID string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)

	// Rule operations
	CreateRule(ctx context.Context, userID string, req models.CreateRuleRequest) (*models.Rule, error)
	GetRule(ctx context.Context, userID, ruleID string) (*models.Rule, error)
	UpdateRule(ctx context.Context, userID, ruleID string, req models.UpdateRuleRequest) (*models.Rule, error)
	DeleteRule(ctx context.Context, userID, ruleID string) error
	ListRules(ctx context.Context, userID string) ([]models.Rule, error)
	RuleStats(ctx context.Context, userID string) (*models.RuleStatsResponse, error)

	// Transaction operations
	CreateTransaction(ctx context.Context, userID string, req models.CreateTransactionRequest) (*models.Transaction, error)
	GetTransaction(ctx context.Context, userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID string, req models.UpdateTransactionRequest) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	ListTransactions(ctx context.Context, userID string, opts TransactionListOptions) ([]models.Transaction, error)
	BulkDeleteTransactions(ctx context.Context, userID string, transactionIDs []string) (int, error)
	BulkRecategorizeTransactions(ctx context.Context, userID string, transactionIDs []string, categoryID *string) (int, error)
	SuggestCategories(ctx context.Context, userID string, txns []models.TxnPayload) ([]models.CategorySuggestion, error)

	// Import operations
	PreviewImport(ctx context.Context, userID, accountID, csvContent, filename string, headerMapping map[string]string) (*models.ImportPreviewResponse, error)
	CommitImport(ctx context.Context, userID, accountID, batchID string) (*models.ImportBatchResponse, error)
	UndoImport(ctx context.Context, userID, accountID, batchID string) (*models.ImportBatchResponse, error)
	GetImportBatch(ctx context.Context, userID, batchID string) (*models.ImportBatchResponse, error)
	ListImportBatches(ctx context.Context, userID string) ([]models.ImportBatch, error)
	GetImportRows(ctx context.Context, userID, batchID string) ([]models.ImportRow, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	ledger        *ledger.Ledger
	categorizer   ai.Client
	jwtSecret     []byte
	tokenDuration time.Duration
	log           zerolog.Logger
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, categorizer ai.Client, jwtSecret string, log zerolog.Logger) *DefaultService {
	return &DefaultService{
		repo:          repo,
		ledger:        ledger.New(repo),
		categorizer:   categorizer,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
		log:           log,
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, fmt.Errorf("%w: user with this email already exists", ErrValidation)
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// Create the user
	user := &models.User{
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrValidation)
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrValidation)
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// getAccountAndVerifyOwnership loads an account and checks it belongs to the
// user. An account owned by someone else reads the same as a missing one.
func (s *DefaultService) getAccountAndVerifyOwnership(ctx context.Context, userID, accountID string) (*models.Account, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error getting account: %w", err)
	}

	if account == nil || account.UserID != userID {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}

	return account, nil
}
