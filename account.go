package disburse

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// AccountID identifies an account on the ledger.
type AccountID string

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
)

// Lowercase alphanumeric parts separated by a single '-', '_' or '.'.
var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[\-_])*[a-z\d]+\.)*([a-z\d]+[\-_])*[a-z\d]+$`)

// String returns the string representation of the AccountID.
func (a AccountID) String() string {
	return string(a)
}

// Validate checks the identifier against the ledger's syntactic rules. It says
// nothing about whether the account exists.
func (a AccountID) Validate() error {
	if len(a) < minAccountIDLen || len(a) > maxAccountIDLen {
		return fmt.Errorf("account id %q must be %d to %d characters", string(a), minAccountIDLen, maxAccountIDLen)
	}
	if !accountIDPattern.MatchString(string(a)) {
		return fmt.Errorf("account id %q is malformed", string(a))
	}
	return nil
}

// yoctoPerNear is the number of smallest units in one whole unit.
var yoctoPerNear = decimal.New(1, 24)

// NearToYocto converts whole units into the smallest currency unit.
func NearToYocto(near decimal.Decimal) decimal.Decimal {
	return near.Mul(yoctoPerNear).Truncate(0)
}

// YoctoToNear converts an amount in the smallest currency unit to whole units.
func YoctoToNear(yocto decimal.Decimal) decimal.Decimal {
	return yocto.Div(yoctoPerNear)
}
