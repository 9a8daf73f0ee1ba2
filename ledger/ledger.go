// Package ledger is an in-memory account ledger and execution host. It
// stands in for the chain when running the engine locally and in tests.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fortressi/disburse"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownAccount      = errors.New("account does not exist")
	ErrAccountExists       = errors.New("account already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferRejected    = errors.New("transfer rejected")
)

// Ledger holds account balances in yocto. Each balance is updated
// atomically; a transfer that fails after debiting puts the amount back.
type Ledger struct {
	balances *xsync.MapOf[disburse.AccountID, decimal.Decimal]
	failing  *xsync.MapOf[disburse.AccountID, error]
}

var _ disburse.Ledger = (*Ledger)(nil)

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{
		balances: xsync.NewMapOf[disburse.AccountID, decimal.Decimal](),
		failing:  xsync.NewMapOf[disburse.AccountID, error](),
	}
}

// CreateAccount opens an account with an initial balance.
func (l *Ledger) CreateAccount(id disburse.AccountID, balance decimal.Decimal) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if balance.IsNegative() {
		return fmt.Errorf("negative opening balance %s for %s", balance, id)
	}
	if _, loaded := l.balances.LoadOrStore(id, balance); loaded {
		return fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	return nil
}

// Balance returns the balance of id.
func (l *Ledger) Balance(id disburse.AccountID) (decimal.Decimal, error) {
	bal, ok := l.balances.Load(id)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return bal, nil
}

// MustBalance is Balance for accounts known to exist.
func (l *Ledger) MustBalance(id disburse.AccountID) decimal.Decimal {
	bal, err := l.Balance(id)
	if err != nil {
		panic(err)
	}
	return bal
}

// Accounts lists the open accounts in ascending order.
func (l *Ledger) Accounts() []disburse.AccountID {
	ids := make([]disburse.AccountID, 0, l.balances.Size())
	l.balances.Range(func(id disburse.AccountID, _ decimal.Decimal) bool {
		ids = append(ids, id)
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FailTransfersTo makes every transfer to id fail with err. A nil err
// clears the failure.
func (l *Ledger) FailTransfersTo(id disburse.AccountID, err error) {
	if err == nil {
		l.failing.Delete(id)
		return
	}
	l.failing.Store(id, err)
}

// Transfer implements disburse.Ledger.
func (l *Ledger) Transfer(ctx context.Context, from, to disburse.AccountID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("negative transfer amount %s", amount)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := l.failing.Load(to); ok {
		return fmt.Errorf("%w: %s: %v", ErrTransferRejected, to, err)
	}

	if err := l.debit(from, amount); err != nil {
		return err
	}
	if err := l.credit(to, amount); err != nil {
		if rerr := l.credit(from, amount); rerr != nil {
			return errors.Join(err, fmt.Errorf("restoring %s to %s: %w", amount, from, rerr))
		}
		return err
	}
	return nil
}

func (l *Ledger) debit(id disburse.AccountID, amount decimal.Decimal) error {
	var err error
	l.balances.Compute(id, func(bal decimal.Decimal, loaded bool) (decimal.Decimal, bool) {
		if !loaded {
			err = fmt.Errorf("%w: %s", ErrUnknownAccount, id)
			return bal, true
		}
		if bal.LessThan(amount) {
			err = fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, id, bal, amount)
			return bal, false
		}
		return bal.Sub(amount), false
	})
	return err
}

func (l *Ledger) credit(id disburse.AccountID, amount decimal.Decimal) error {
	var err error
	l.balances.Compute(id, func(bal decimal.Decimal, loaded bool) (decimal.Decimal, bool) {
		if !loaded {
			err = fmt.Errorf("%w: %s", ErrUnknownAccount, id)
			return bal, true
		}
		return bal.Add(amount), false
	})
	return err
}
