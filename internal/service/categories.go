package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/finsmart/finsmart-server/internal/models"
)

// Category operations. Categories are global, not per-user.
func (s *DefaultService) CreateCategory(ctx context.Context, req models.CreateCategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)

	existing, err := s.repo.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("error checking category existence: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: category %q already exists", ErrValidation, name)
	}

	category := &models.Category{
		Name:  name,
		Color: strings.TrimSpace(req.Color),
	}

	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("error creating category: %w", err)
	}

	return category, nil
}

func (s *DefaultService) GetCategory(ctx context.Context, categoryID string) (*models.Category, error) {
	category, err := s.repo.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("error getting category: %w", err)
	}
	if category == nil {
		return nil, fmt.Errorf("%w: category %s", ErrNotFound, categoryID)
	}
	return category, nil
}

func (s *DefaultService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing categories: %w", err)
	}
	return categories, nil
}
