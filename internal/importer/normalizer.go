package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/shopspring/decimal"
)

// dateFormats are tried in order; the first successful parse wins.
// Keep this data-driven so formats can be added without touching control flow.
var dateFormats = []string{
	"2006-01-02", // ISO
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
}

// Normalize parses one raw CSV row into the canonical transaction shape.
// It is a pure function of its input: no lookups, no side effects.
//
// The amount column carries magnitude only; direction carries the sign
// semantically. A negative amount with no explicit direction column infers
// DEBIT and takes the absolute value. A negative amount alongside an explicit
// direction is a value error, since the direction is authoritative.
func Normalize(row map[string]string) (*models.NormalizedRow, error) {
	dateStr, err := requiredField(row, "date")
	if err != nil {
		return nil, err
	}
	postedAt, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}

	amountStr, err := requiredField(row, "amount")
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(amountStr)
	if err != nil {
		return nil, err
	}

	var direction models.Direction
	if dirStr := strings.TrimSpace(row["direction"]); dirStr != "" {
		direction, err = ParseDirection(dirStr)
		if err != nil {
			return nil, err
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("amount must be >= 0: %s", amountStr)
		}
	} else {
		if amount.IsNegative() {
			direction = models.DirectionDebit
			amount = amount.Abs()
		} else {
			direction = models.DirectionCredit
		}
	}

	return &models.NormalizedRow{
		PostedAt:    postedAt,
		Amount:      amount,
		Direction:   direction,
		Merchant:    strings.TrimSpace(row["merchant"]),
		Description: strings.TrimSpace(row["description"]),
	}, nil
}

// ParseDirection maps the accepted direction tokens, case-insensitively.
func ParseDirection(s string) (models.Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBIT", "DR", "OUT", "-":
		return models.DirectionDebit, nil
	case "CREDIT", "CR", "IN", "+":
		return models.DirectionCredit, nil
	default:
		return "", fmt.Errorf("invalid direction: %s", s)
	}
}

func requiredField(row map[string]string, field string) (string, error) {
	value := strings.TrimSpace(row[field])
	if value == "" {
		return "", fmt.Errorf("missing required field: %s", field)
	}
	return value, nil
}

// parseDate anchors the parsed day to start-of-day UTC.
func parseDate(s string) (time.Time, error) {
	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s", s)
}

// parseAmount strips currency symbols, grouping commas and whitespace
// before the numeric parse.
func parseAmount(s string) (decimal.Decimal, error) {
	var cleaned strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			cleaned.WriteRune(r)
		}
	}

	amount, err := decimal.NewFromString(cleaned.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount format: %s", s)
	}
	return amount, nil
}
