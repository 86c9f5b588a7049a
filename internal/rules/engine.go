package rules

import (
	"regexp"
	"strings"

	"github.com/finsmart/finsmart-server/internal/models"
)

const regexPrefix = "regex:"

// SuggestCategory evaluates the given rules against a transaction's merchant
// and description and returns the category of the first rule that matches.
// The caller supplies rules already ordered by (priority asc, createdAt asc);
// this is a first-match-wins linear scan with no rule combination or scoring.
func SuggestCategory(ruleList []models.Rule, merchant, description string) (string, bool) {
	for _, rule := range ruleList {
		if MatchesField(merchant, description, rule.Pattern, rule.Field) {
			return rule.CategoryID, true
		}
	}
	return "", false
}

// MatchesField checks a pattern against the configured field(s).
// Field "both" matches if either merchant or description matches.
func MatchesField(merchant, description, pattern, field string) bool {
	switch strings.ToLower(field) {
	case models.RuleFieldMerchant:
		return Matches(merchant, pattern)
	case models.RuleFieldDescription:
		return Matches(description, pattern)
	case models.RuleFieldBoth:
		return Matches(merchant, pattern) || Matches(description, pattern)
	default:
		return false
	}
}

// Matches checks if text matches a pattern. The default is a
// case-insensitive substring check. A pattern starting with "regex:" is
// compiled as a case-insensitive regular expression, matched with find
// (contains) semantics rather than full match; an invalid regex falls back
// to a literal substring check on the remainder.
func Matches(text, pattern string) bool {
	if text == "" || pattern == "" {
		return false
	}

	normalizedText := strings.ToLower(strings.TrimSpace(text))
	normalizedPattern := strings.ToLower(strings.TrimSpace(pattern))

	if strings.HasPrefix(normalizedPattern, regexPrefix) {
		expr := strings.TrimSpace(strings.TrimPrefix(normalizedPattern, regexPrefix))
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			// Invalid regex - fall back to substring match
			return strings.Contains(normalizedText, expr)
		}
		return re.MatchString(normalizedText)
	}

	return strings.Contains(normalizedText, normalizedPattern)
}
