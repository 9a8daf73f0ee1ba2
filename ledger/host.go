package ledger

import (
	"context"
	"fmt"

	"github.com/fortressi/disburse"
	"github.com/shopspring/decimal"
)

// Host runs invocations of a contract account against a Ledger. The
// attached deposit moves from the signer to the contract before the call
// and moves back if the call returns an error.
type Host struct {
	ledger   *Ledger
	contract disburse.AccountID

	// UsedGas is reported as already burnt when the call starts.
	UsedGas disburse.Gas
}

// NewHost creates a host for contract. The contract account must exist.
func NewHost(l *Ledger, contract disburse.AccountID) (*Host, error) {
	if _, err := l.Balance(contract); err != nil {
		return nil, err
	}
	return &Host{ledger: l, contract: contract}, nil
}

// Contract returns the operating account.
func (h *Host) Contract() disburse.AccountID {
	return h.contract
}

// Call invokes fn on behalf of signer with deposit attached and gas
// prepaid.
func (h *Host) Call(
	ctx context.Context,
	signer disburse.AccountID,
	deposit decimal.Decimal,
	gas disburse.Gas,
	fn func(ctx context.Context, exec disburse.ExecContext) error,
) error {
	if deposit.IsPositive() {
		if err := h.ledger.Transfer(ctx, signer, h.contract, deposit); err != nil {
			return fmt.Errorf("attaching deposit: %w", err)
		}
	}

	exec := disburse.ExecContext{
		CurrentAccount:  h.contract,
		Signer:          signer,
		Predecessor:     signer,
		AttachedDeposit: deposit,
		PrepaidGas:      gas,
		UsedGas:         h.UsedGas,
	}
	err := fn(ctx, exec)
	if err == nil {
		return nil
	}

	if deposit.IsPositive() {
		if rerr := h.ledger.Transfer(context.WithoutCancel(ctx), h.contract, signer, deposit); rerr != nil {
			return fmt.Errorf("%w (deposit not returned: %v)", err, rerr)
		}
	}
	return err
}
