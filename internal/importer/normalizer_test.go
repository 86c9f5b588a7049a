package importer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsmart/finsmart-server/internal/models"
)

func TestNormalizeBasicRow(t *testing.T) {
	n, err := Normalize(map[string]string{
		"date":        "2024-01-15",
		"amount":      "125.43",
		"direction":   "DEBIT",
		"merchant":    "Whole Foods",
		"description": "Groceries",
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), n.PostedAt)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("125.43")))
	assert.Equal(t, models.DirectionDebit, n.Direction)
	assert.Equal(t, "Whole Foods", n.Merchant)
	assert.Equal(t, "Groceries", n.Description)
}

func TestNormalizeDateFormats(t *testing.T) {
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	for _, dateStr := range []string{"2024-01-15", "15/01/2024", "15-01-2024", "2024/01/15"} {
		n, err := Normalize(map[string]string{"date": dateStr, "amount": "1.00"})
		require.NoError(t, err, "date %q should parse", dateStr)
		assert.Equal(t, want, n.PostedAt, "date %q", dateStr)
	}

	_, err := Normalize(map[string]string{"date": "January 15th", "amount": "1.00"})
	assert.Error(t, err)
}

func TestNormalizeAmountCleaning(t *testing.T) {
	n, err := Normalize(map[string]string{"date": "2024-01-15", "amount": "$1,234.56"})
	require.NoError(t, err)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, models.DirectionCredit, n.Direction)

	_, err = Normalize(map[string]string{"date": "2024-01-15", "amount": "twelve"})
	assert.Error(t, err)
}

func TestNormalizeDirectionInference(t *testing.T) {
	// Negative amount, no direction column: DEBIT of the absolute value
	n, err := Normalize(map[string]string{"date": "2024-01-15", "amount": "-86.40"})
	require.NoError(t, err)
	assert.Equal(t, models.DirectionDebit, n.Direction)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("86.40")))

	// Positive amount, no direction column: CREDIT
	n, err = Normalize(map[string]string{"date": "2024-01-15", "amount": "86.40"})
	require.NoError(t, err)
	assert.Equal(t, models.DirectionCredit, n.Direction)

	// Negative amount with an explicit direction is contradictory
	_, err = Normalize(map[string]string{"date": "2024-01-15", "amount": "-86.40", "direction": "DEBIT"})
	assert.Error(t, err)
}

func TestNormalizeMissingRequiredFields(t *testing.T) {
	_, err := Normalize(map[string]string{"amount": "5.00"})
	assert.Error(t, err)

	_, err = Normalize(map[string]string{"date": "2024-01-15"})
	assert.Error(t, err)

	_, err = Normalize(map[string]string{"date": "2024-01-15", "amount": "  "})
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	for direction, tokens := range map[models.Direction][]string{
		models.DirectionDebit:  {"DEBIT", "debit", "DR", "out", "-"},
		models.DirectionCredit: {"CREDIT", "credit", "CR", "in", "+"},
	} {
		for _, token := range tokens {
			got, err := ParseDirection(token)
			require.NoError(t, err, "token %q", token)
			assert.Equal(t, direction, got, "token %q", token)
		}
	}

	_, err := ParseDirection("SIDEWAYS")
	assert.Error(t, err)
}
