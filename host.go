package disburse

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExecContext is the host state of one invocation. It is passed explicitly
// to every component instead of being read from the environment, and is
// never mutated once the invocation starts.
type ExecContext struct {
	// CurrentAccount is the operating account that holds the attached
	// deposit and pays every transfer.
	CurrentAccount AccountID `json:"current_account"`
	// Signer signed the transaction. Refunds go here.
	Signer AccountID `json:"signer"`
	// Predecessor is the immediate caller.
	Predecessor AccountID `json:"predecessor"`
	// AttachedDeposit is the payment attached to the call.
	AttachedDeposit decimal.Decimal `json:"attached_deposit"`
	// PrepaidGas is the total allowance for the invocation and all of its
	// continuations.
	PrepaidGas Gas `json:"prepaid_gas"`
	// UsedGas is what the host had burnt before the engine was entered.
	UsedGas Gas `json:"used_gas"`
}

// Ledger moves value between accounts. Each Transfer is an independent
// remote operation: once issued it runs to completion and cannot be
// cancelled. Implementations serialize balance updates themselves.
type Ledger interface {
	Transfer(ctx context.Context, from, to AccountID, amount decimal.Decimal) error
}

// LedgerFunc adapts a function to the Ledger interface.
type LedgerFunc func(ctx context.Context, from, to AccountID, amount decimal.Decimal) error

// Transfer calls f.
func (f LedgerFunc) Transfer(ctx context.Context, from, to AccountID, amount decimal.Decimal) error {
	return f(ctx, from, to, amount)
}
