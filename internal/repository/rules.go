package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/google/uuid"
)

// Rule repository methods
func (r *PostgresRepository) CreateRule(ctx context.Context, rule *models.Rule) error {
	query := `
		INSERT INTO rules (id, user_id, pattern, field, category_id, active, priority, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.UserID, rule.Pattern, rule.Field, rule.CategoryID,
		rule.Active, rule.Priority, rule.Notes, rule.CreatedAt, rule.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetRule(ctx context.Context, id string) (*models.Rule, error) {
	query := `SELECT * FROM rules WHERE id = $1`

	var rule models.Rule
	err := r.db.GetContext(ctx, &rule, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Rule not found
		}
		return nil, err
	}

	return &rule, nil
}

func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *models.Rule) error {
	query := `
		UPDATE rules
		SET pattern = $1, field = $2, category_id = $3, active = $4, priority = $5, notes = $6, updated_at = $7
		WHERE id = $8
	`

	rule.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		rule.Pattern, rule.Field, rule.CategoryID, rule.Active,
		rule.Priority, rule.Notes, rule.UpdatedAt, rule.ID)

	return err
}

func (r *PostgresRepository) DeleteRule(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) GetUserRules(ctx context.Context, userID string) ([]models.Rule, error) {
	query := `
		SELECT * FROM rules
		WHERE user_id = $1
		ORDER BY priority ASC, created_at ASC
	`

	var ruleList []models.Rule
	err := r.db.SelectContext(ctx, &ruleList, query, userID)
	if err != nil {
		return nil, err
	}

	return ruleList, nil
}

func (r *PostgresRepository) GetActiveUserRules(ctx context.Context, userID string) ([]models.Rule, error) {
	query := `
		SELECT * FROM rules
		WHERE user_id = $1 AND active = TRUE
		ORDER BY priority ASC, created_at ASC
	`

	var ruleList []models.Rule
	err := r.db.SelectContext(ctx, &ruleList, query, userID)
	if err != nil {
		return nil, err
	}

	return ruleList, nil
}
