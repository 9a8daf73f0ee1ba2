package disburse

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Dispatcher fans a payment out to its recipients.
type Dispatcher struct {
	// Transfer is the gas attached to each transfer.
	Transfer Gas
}

// Dispatch appends one parallel stage to b with a transfer of slice to every
// recipient, in the given order. Whatever is appended next joins on the whole
// stage.
func (d Dispatcher) Dispatch(b *ChainBuilder, recipients []AccountID, slice decimal.Decimal) error {
	if len(recipients) == 0 {
		return ErrEmptyRecipientList
	}

	steps := make([]Step, 0, len(recipients))
	for _, to := range recipients {
		steps = append(steps, TransferStep(to, slice, d.Transfer))
	}
	if err := b.AppendParallel(steps...); err != nil {
		return fmt.Errorf("failed to dispatch transfers: %w", err)
	}
	return nil
}
