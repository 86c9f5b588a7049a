package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/finsmart/finsmart-server/internal/models"
)

const defaultRulePriority = 100

// Rule operations
func (s *DefaultService) CreateRule(ctx context.Context, userID string, req models.CreateRuleRequest) (*models.Rule, error) {
	// Validate category exists (categories are global, no user ownership)
	if _, err := s.GetCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	field := strings.ToLower(strings.TrimSpace(req.Field))
	if err := validateRuleField(field); err != nil {
		return nil, err
	}

	priority := defaultRulePriority
	if req.Priority != nil {
		if err := validateRulePriority(*req.Priority); err != nil {
			return nil, err
		}
		priority = *req.Priority
	}

	rule := &models.Rule{
		UserID:     userID,
		Pattern:    strings.TrimSpace(req.Pattern),
		Field:      field,
		CategoryID: req.CategoryID,
		Active:     true,
		Priority:   priority,
		Notes:      req.Notes,
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("error creating rule: %w", err)
	}

	return rule, nil
}

func (s *DefaultService) GetRule(ctx context.Context, userID, ruleID string) (*models.Rule, error) {
	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("error getting rule: %w", err)
	}

	if rule == nil || rule.UserID != userID {
		return nil, fmt.Errorf("%w: rule %s", ErrNotFound, ruleID)
	}

	return rule, nil
}

func (s *DefaultService) UpdateRule(ctx context.Context, userID, ruleID string, req models.UpdateRuleRequest) (*models.Rule, error) {
	rule, err := s.GetRule(ctx, userID, ruleID)
	if err != nil {
		return nil, err
	}

	if req.Pattern != nil {
		rule.Pattern = strings.TrimSpace(*req.Pattern)
	}

	if req.Field != nil {
		field := strings.ToLower(strings.TrimSpace(*req.Field))
		if err := validateRuleField(field); err != nil {
			return nil, err
		}
		rule.Field = field
	}

	if req.CategoryID != nil {
		if _, err := s.GetCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		rule.CategoryID = *req.CategoryID
	}

	if req.Priority != nil {
		if err := validateRulePriority(*req.Priority); err != nil {
			return nil, err
		}
		rule.Priority = *req.Priority
	}

	if req.Active != nil {
		rule.Active = *req.Active
	}

	if req.Notes != nil {
		rule.Notes = *req.Notes
	}

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("error updating rule: %w", err)
	}

	return rule, nil
}

func (s *DefaultService) DeleteRule(ctx context.Context, userID, ruleID string) error {
	rule, err := s.GetRule(ctx, userID, ruleID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteRule(ctx, rule.ID); err != nil {
		return fmt.Errorf("error deleting rule: %w", err)
	}

	s.log.Info().Str("ruleId", ruleID).Str("userId", userID).Msg("deleted rule")
	return nil
}

func (s *DefaultService) ListRules(ctx context.Context, userID string) ([]models.Rule, error) {
	ruleList, err := s.repo.GetUserRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing rules: %w", err)
	}
	return ruleList, nil
}

func (s *DefaultService) RuleStats(ctx context.Context, userID string) (*models.RuleStatsResponse, error) {
	ruleList, err := s.repo.GetUserRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing rules: %w", err)
	}

	stats := &models.RuleStatsResponse{
		Status: "success",
		Total:  len(ruleList),
	}
	for _, rule := range ruleList {
		if rule.Active {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}

	return stats, nil
}

func validateRuleField(field string) error {
	switch field {
	case models.RuleFieldMerchant, models.RuleFieldDescription, models.RuleFieldBoth:
		return nil
	default:
		return fmt.Errorf("%w: invalid field: %s", ErrValidation, field)
	}
}

func validateRulePriority(priority int) error {
	if priority < 1 || priority > 1000 {
		return fmt.Errorf("%w: priority must be between 1 and 1000", ErrValidation)
	}
	return nil
}
