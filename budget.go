package disburse

import (
	"fmt"
	"math/bits"
)

// Gas is a unit of the host's computational allowance.
type Gas uint64

const (
	GGas Gas = 1_000_000_000
	TGas Gas = 1000 * GGas
)

// String renders gas in the largest whole unit that divides it.
func (g Gas) String() string {
	switch {
	case g != 0 && g%TGas == 0:
		return fmt.Sprintf("%dTgas", g/TGas)
	case g != 0 && g%GGas == 0:
		return fmt.Sprintf("%dGgas", g/GGas)
	default:
		return fmt.Sprintf("%dgas", uint64(g))
	}
}

// sumGas adds gas amounts, failing on overflow.
func sumGas(amounts ...Gas) (Gas, error) {
	var total uint64
	for _, g := range amounts {
		var carry uint64
		total, carry = bits.Add64(total, uint64(g), 0)
		if carry != 0 {
			return 0, fmt.Errorf("%w: reservation overflows", ErrBudgetExhausted)
		}
	}
	return Gas(total), nil
}

// Allocate returns the gas left for the current step once the amount already
// consumed and the reservations for later steps are set aside:
//
//	total - consumed - sum(reserved)
//
// It fails with ErrBudgetExhausted rather than underflow.
func Allocate(total, consumed Gas, reserved ...Gas) (Gas, error) {
	held, err := sumGas(append([]Gas{consumed}, reserved...)...)
	if err != nil {
		return 0, err
	}
	if held > total {
		return 0, fmt.Errorf("%w: need %s, have %s", ErrBudgetExhausted, held, total)
	}
	return total - held, nil
}

// ResourceBudget is the ledger of one invocation's allowance across its chain
// of continuations.
//
// Invariant: Total >= Consumed + sum(Reserved). Every mutating method checks
// it first and leaves the budget untouched on failure.
type ResourceBudget struct {
	Total    Gas
	Consumed Gas
	Reserved []Gas
}

// NewResourceBudget starts a budget of total gas, consumed gas already spent.
func NewResourceBudget(total, consumed Gas) (*ResourceBudget, error) {
	if consumed > total {
		return nil, fmt.Errorf("%w: %s already used of %s", ErrBudgetExhausted, consumed, total)
	}
	return &ResourceBudget{Total: total, Consumed: consumed}, nil
}

// Available returns the unreserved, unconsumed gas.
func (b *ResourceBudget) Available() (Gas, error) {
	return Allocate(b.Total, b.Consumed, b.Reserved...)
}

// Reserve sets gas aside for a later step.
func (b *ResourceBudget) Reserve(gas Gas) error {
	if _, err := Allocate(b.Total, b.Consumed, append(b.Reserved, gas)...); err != nil {
		return err
	}
	b.Reserved = append(b.Reserved, gas)
	return nil
}

// Consume charges gas to the budget. A matching reservation, if any, is
// released first so that reserved steps can always be paid for.
func (b *ResourceBudget) Consume(gas Gas) error {
	reserved := b.Reserved
	for i, r := range reserved {
		if r == gas {
			reserved = append(append([]Gas(nil), reserved[:i]...), reserved[i+1:]...)
			break
		}
	}
	consumed, err := sumGas(b.Consumed, gas)
	if err != nil {
		return err
	}
	if _, err := Allocate(b.Total, consumed, reserved...); err != nil {
		return err
	}
	b.Consumed = consumed
	b.Reserved = reserved
	return nil
}

// Remaining returns Total - Consumed, ignoring reservations.
func (b *ResourceBudget) Remaining() Gas {
	return b.Total - b.Consumed
}
