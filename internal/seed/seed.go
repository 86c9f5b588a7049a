// Package seed populates a fresh database with a demo user, account,
// categories, rules and a handful of transactions so the API is explorable
// without a CSV in hand.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/finsmart/finsmart-server/internal/importer"
	"github.com/finsmart/finsmart-server/internal/ledger"
	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/finsmart/finsmart-server/internal/repository"
)

const (
	demoEmail    = "demo@finsmart.local"
	demoPassword = "demo-password-123"

	// Merchant placeholder for seeded rows that have none.
	unknownMerchant = "Unknown"
)

type seedTxn struct {
	date        string
	amount      string
	direction   models.Direction
	merchant    string
	description string
}

// Run is idempotent: if the demo user already exists it does nothing.
func Run(ctx context.Context, repo repository.Repository, log zerolog.Logger) error {
	existing, err := repo.GetUserByEmail(ctx, demoEmail)
	if err != nil {
		return fmt.Errorf("error checking demo user: %w", err)
	}
	if existing != nil {
		log.Debug().Msg("demo data already seeded")
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing demo password: %w", err)
	}

	user := &models.User{
		Email:    demoEmail,
		Name:     "Demo User",
		Password: string(hashed),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("error creating demo user: %w", err)
	}

	account := &models.Account{
		UserID:   user.ID,
		Name:     "Everyday Checking",
		Currency: "AUD",
		Balance:  decimal.Zero,
	}
	if err := repo.CreateAccount(ctx, account); err != nil {
		return fmt.Errorf("error creating demo account: %w", err)
	}

	categories, err := seedCategories(ctx, repo)
	if err != nil {
		return err
	}

	if err := seedRules(ctx, repo, user.ID, categories); err != nil {
		return err
	}

	if err := seedTransactions(ctx, repo, account, categories); err != nil {
		return err
	}

	log.Info().Str("email", demoEmail).Msg("seeded demo data")
	return nil
}

func seedCategories(ctx context.Context, repo repository.Repository) (map[string]string, error) {
	wanted := []models.Category{
		{Name: "Groceries", Color: "#4caf50"},
		{Name: "Dining", Color: "#ff9800"},
		{Name: "Transport", Color: "#2196f3"},
		{Name: "Salary", Color: "#9c27b0"},
		{Name: "Utilities", Color: "#607d8b"},
	}

	ids := make(map[string]string, len(wanted))
	for i := range wanted {
		c := wanted[i]
		existing, err := repo.GetCategoryByName(ctx, c.Name)
		if err != nil {
			return nil, fmt.Errorf("error checking category %s: %w", c.Name, err)
		}
		if existing != nil {
			ids[c.Name] = existing.ID
			continue
		}
		if err := repo.CreateCategory(ctx, &c); err != nil {
			return nil, fmt.Errorf("error creating category %s: %w", c.Name, err)
		}
		ids[c.Name] = c.ID
	}
	return ids, nil
}

func seedRules(ctx context.Context, repo repository.Repository, userID string, categories map[string]string) error {
	seedRules := []models.Rule{
		{Pattern: "woolworths", Field: models.RuleFieldMerchant, CategoryID: categories["Groceries"], Priority: 10},
		{Pattern: "coles", Field: models.RuleFieldMerchant, CategoryID: categories["Groceries"], Priority: 10},
		{Pattern: "regex:uber\\s*eats", Field: models.RuleFieldBoth, CategoryID: categories["Dining"], Priority: 20},
		{Pattern: "uber", Field: models.RuleFieldMerchant, CategoryID: categories["Transport"], Priority: 30},
		{Pattern: "salary", Field: models.RuleFieldDescription, CategoryID: categories["Salary"], Priority: 50},
		{Pattern: "regex:^(agl|origin) energy", Field: models.RuleFieldMerchant, CategoryID: categories["Utilities"], Priority: 40},
	}

	for i := range seedRules {
		r := seedRules[i]
		r.UserID = userID
		r.Active = true
		if err := repo.CreateRule(ctx, &r); err != nil {
			return fmt.Errorf("error creating rule %q: %w", r.Pattern, err)
		}
	}
	return nil
}

func seedTransactions(ctx context.Context, repo repository.Repository, account *models.Account, categories map[string]string) error {
	led := ledger.New(repo)

	txns := []seedTxn{
		{"2026-08-01", "4250.00", models.DirectionCredit, "Acme Corp", "Monthly salary"},
		{"2026-08-03", "86.40", models.DirectionDebit, "Woolworths", "Weekly groceries"},
		{"2026-08-05", "23.90", models.DirectionDebit, "Uber Eats", "Dinner delivery"},
		{"2026-08-09", "15.20", models.DirectionDebit, "Uber", "Ride to airport"},
		{"2026-08-12", "142.75", models.DirectionDebit, "AGL Energy", "Electricity bill"},
		{"2026-08-15", "64.10", models.DirectionDebit, "Coles", "Groceries"},
		{"2026-08-18", "12.00", models.DirectionDebit, "", "ATM withdrawal"},
	}

	for _, t := range txns {
		postedAt, err := time.ParseInLocation("2006-01-02", t.date, time.UTC)
		if err != nil {
			return fmt.Errorf("error parsing seed date %s: %w", t.date, err)
		}
		amount, err := decimal.NewFromString(t.amount)
		if err != nil {
			return fmt.Errorf("error parsing seed amount %s: %w", t.amount, err)
		}

		merchant := t.merchant
		if merchant == "" {
			merchant = unknownMerchant
		}

		txn := &models.Transaction{
			AccountID:   account.ID,
			PostedAt:    postedAt,
			Amount:      amount,
			Direction:   t.direction,
			Merchant:    merchant,
			Description: t.description,
			CategoryID:  categoryFor(categories, merchant, t.description),
			Fingerprint: importer.Fingerprint(postedAt, amount, t.direction, merchant, t.description, account.ID),
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("error creating seed transaction: %w", err)
		}
		if err := led.Apply(ctx, account.ID, amount, t.direction, true); err != nil {
			return fmt.Errorf("error applying seed balance: %w", err)
		}
	}
	return nil
}

// categoryFor keeps seed rows aligned with the seeded rules without pulling
// in the rule engine: the mapping is small enough to spell out.
func categoryFor(categories map[string]string, merchant, description string) *string {
	var name string
	switch merchant {
	case "Woolworths", "Coles":
		name = "Groceries"
	case "Uber Eats":
		name = "Dining"
	case "Uber":
		name = "Transport"
	case "AGL Energy":
		name = "Utilities"
	default:
		if description == "Monthly salary" {
			name = "Salary"
		}
	}
	if name == "" {
		return nil
	}
	id, ok := categories[name]
	if !ok {
		return nil
	}
	return &id
}
