package disburse

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PaymentRequest is one payable invocation: the attached amount and the
// recipients it should be split over.
type PaymentRequest struct {
	Payer          AccountID       `json:"payer"`
	AttachedAmount decimal.Decimal `json:"attached_amount"`
	Recipients     []AccountID     `json:"recipients"`
}

// NewPaymentRequest builds a request from the host context and caller input.
func NewPaymentRequest(exec ExecContext, recipients []AccountID) PaymentRequest {
	return PaymentRequest{
		Payer:          exec.Signer,
		AttachedAmount: exec.AttachedDeposit,
		Recipients:     append([]AccountID(nil), recipients...),
	}
}

// ValidateRequest runs the structural checks performed before any funds are
// committed. The recipient set is checked after normalization.
//
// Recipient identifiers are not checked for existence: the ledger offers no
// reliable way to confirm that ahead of an actual transfer, and a failed
// transfer is refunded by the compensator.
func ValidateRequest(req PaymentRequest) error {
	if len(Normalize(req.Recipients)) == 0 {
		return ErrEmptyRecipientList
	}
	if req.AttachedAmount.IsZero() {
		return ErrNoPaymentAttached
	}
	return checkAmount(req.AttachedAmount)
}

// ValidateDirectoryID checks the directory identifier's syntax.
func ValidateDirectoryID(id AccountID) error {
	if err := id.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDirectoryIdentifier, err)
	}
	return nil
}
