// Package ledger owns account balance maintenance. Every code path that
// creates, updates, deletes or reverses a transaction must route its balance
// effect through here so that an account's stored balance always equals the
// signed sum of the transactions currently attributed to it.
package ledger

import (
	"context"

	"github.com/finsmart/finsmart-server/internal/models"
	"github.com/shopspring/decimal"
)

// AccountStore is the slice of storage the ledger needs: an atomic
// increment of the stored balance. Implementations must apply the delta in
// a single atomic storage operation (e.g. UPDATE ... SET balance = balance
// + $delta) rather than read-modify-write, so concurrent commits, undos and
// direct edits on the same account cannot lose updates.
type AccountStore interface {
	AddToAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error
}

// Ledger applies and reverses signed balance deltas against accounts.
type Ledger struct {
	store AccountStore
}

// New creates a Ledger over the given account store.
func New(store AccountStore) *Ledger {
	return &Ledger{store: store}
}

// Apply adjusts an account's balance for a transaction effect. With add
// true, a CREDIT increases the balance and a DEBIT decreases it; with add
// false the sign is inverted, which reverts a transaction's effect (update
// revert-then-reapply, delete, undo).
func (l *Ledger) Apply(
	ctx context.Context,
	accountID string,
	amount decimal.Decimal,
	direction models.Direction,
	add bool,
) error {
	return l.store.AddToAccountBalance(ctx, accountID, Delta(amount, direction, add))
}

// Delta returns the signed balance change for a transaction effect.
func Delta(amount decimal.Decimal, direction models.Direction, add bool) decimal.Decimal {
	delta := amount
	if direction == models.DirectionDebit {
		delta = delta.Neg()
	}
	if !add {
		delta = delta.Neg()
	}
	return delta
}
