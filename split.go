package disburse

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Disbursement is an even split of an amount over Count recipients.
//
// Slice*Count + Remainder == amount and 0 <= Remainder < Count. The
// remainder stays on the operating account; it is never redistributed.
type Disbursement struct {
	Slice     decimal.Decimal `json:"slice"`
	Remainder decimal.Decimal `json:"remainder"`
	Count     int             `json:"count"`
}

// Total returns Slice*Count + Remainder.
func (d Disbursement) Total() decimal.Decimal {
	return d.Slice.Mul(decimal.NewFromInt(int64(d.Count))).Add(d.Remainder)
}

// Paid returns the amount that leaves the account when every transfer lands.
func (d Disbursement) Paid() decimal.Decimal {
	return d.Slice.Mul(decimal.NewFromInt(int64(d.Count)))
}

// Split floor-divides amount by count.
func Split(amount decimal.Decimal, count int) (Disbursement, error) {
	if count <= 0 {
		return Disbursement{}, ErrDivisionByZero
	}
	if err := checkAmount(amount); err != nil {
		return Disbursement{}, err
	}

	slice, remainder := amount.QuoRem(decimal.NewFromInt(int64(count)), 0)
	return Disbursement{
		Slice:     slice,
		Remainder: remainder,
		Count:     count,
	}, nil
}

func checkAmount(amount decimal.Decimal) error {
	if amount.IsNegative() || !amount.IsInteger() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}
