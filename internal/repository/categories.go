package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/google/uuid"
)

// Category repository methods
func (r *PostgresRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (id, name, color, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	category.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		category.ID, category.Name, category.Color, category.CreatedAt)

	return err
}

func (r *PostgresRepository) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	query := `SELECT * FROM categories WHERE id = $1`

	var category models.Category
	err := r.db.GetContext(ctx, &category, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Category not found
		}
		return nil, err
	}

	return &category, nil
}

func (r *PostgresRepository) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	query := `SELECT * FROM categories WHERE name = $1`

	var category models.Category
	err := r.db.GetContext(ctx, &category, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Category not found
		}
		return nil, err
	}

	return &category, nil
}

func (r *PostgresRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	query := `SELECT * FROM categories ORDER BY name ASC`

	var categories []models.Category
	err := r.db.SelectContext(ctx, &categories, query)
	if err != nil {
		return nil, err
	}

	return categories, nil
}
