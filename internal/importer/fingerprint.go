package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/shopspring/decimal"
)

// Fingerprint computes the duplicate-detection key for a transaction as a
// 64-character lowercase hex SHA-256 over the canonical field tuple:
//
//	epochSeconds|amount|direction|merchant|description|accountId
//
// The amount uses its minimal decimal representation (trailing zeros
// stripped); text fields are lowercased and trimmed, empty for absent. Two
// transactions are "the same" iff this matches. The value is persisted and
// load-bearing for undo, so it must be stable across process restarts.
func Fingerprint(
	postedAt time.Time,
	amount decimal.Decimal,
	direction models.Direction,
	merchant string,
	description string,
	accountID string,
) string {
	parts := []string{
		strconv.FormatInt(postedAt.Unix(), 10),
		amount.String(), // decimal.String() already strips trailing zeros
		normalizeText(string(direction)),
		normalizeText(merchant),
		normalizeText(description),
		normalizeText(accountID),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// FingerprintRow recomputes the fingerprint for a normalized import row.
// Used both at preview time (dedup) and at undo time (locating the
// transaction a committed row produced).
func FingerprintRow(n *models.NormalizedRow, accountID string) string {
	return Fingerprint(n.PostedAt, n.Amount, n.Direction, n.Merchant, n.Description, accountID)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
