// Package ledger is the engine's view of the external Payment Ledger. The
// core only ever requests one transfer and observes success or failure; value
// custody lives elsewhere.
package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/medconsent/medconsent/internal/platform/errcode"
)

// Ledger executes a single value transfer. A nil error means the transfer
// fully completed; any error means no value moved.
type Ledger interface {
	Transfer(ctx context.Context, from, to uuid.UUID, amount int64) error
}

// Mem is an in-process ledger with explicit balances, used in development
// and tests. Accounts must be funded before they can pay.
type Mem struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
}

func NewMem() *Mem {
	return &Mem{balances: make(map[uuid.UUID]int64)}
}

// Fund credits an account.
func (m *Mem) Fund(account uuid.UUID, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
}

// Balance returns the current balance of an account.
func (m *Mem) Balance(account uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account]
}

func (m *Mem) Transfer(ctx context.Context, from, to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return errcode.New(errcode.InvalidAmount, "transfer amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return errcode.New(errcode.PaymentFailed, "insufficient balance on %s", from)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}
