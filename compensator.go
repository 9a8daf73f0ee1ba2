package disburse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CompensationRecord describes the refund issued for failed transfers.
type CompensationRecord struct {
	FailureCount int             `json:"failure_count"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	RefundTarget AccountID       `json:"refund_target"`
}

// Compensator returns to the payer whatever part of a fan-out did not land.
type Compensator struct {
	ledger Ledger
	log    *zap.Logger
}

// NewCompensator creates a Compensator that refunds through ledger.
func NewCompensator(ledger Ledger, log *zap.Logger) *Compensator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compensator{ledger: ledger, log: log}
}

// RefundUnpaid inspects the transfers call.Joined was chained after and
// refunds failures*slice to the signer in one transfer. call.Amount is the
// slice. The trigger at TriggerSlot is not a transfer and is never counted.
//
// With no failures the slice is returned unchanged. Otherwise the result is
// pending on the refund and carries the refunded amount; if the refund itself
// fails the result is failed and nothing is retried.
func (c *Compensator) RefundUnpaid(ctx context.Context, call Call) PromiseResult {
	slice := call.Amount
	total := len(call.Joined.Branches())
	failures := call.Joined.Failures()

	if failures == 0 {
		c.log.Info(fmt.Sprintf("all %d payments succeeded", total))
		return Succeeded(slice)
	}

	refund := slice.Mul(decimal.NewFromInt(int64(failures)))
	c.log.Info(fmt.Sprintf("%d/%d payments succeeded", total-failures, total))
	c.log.Info(fmt.Sprintf("refunding %s yocto to caller", refund))

	to := call.Exec.Signer
	if err := c.ledger.Transfer(ctx, call.Exec.CurrentAccount, to, refund); err != nil {
		c.log.Error("refund failed",
			zap.String("to", to.String()),
			zap.Stringer("amount", refund),
			zap.Error(err),
		)
		return Failed(fmt.Errorf("refund of %s to %s: %w", refund, to, err))
	}

	return PromiseResult{Status: PromiseSuccessful, Value: refund, Pending: true}
}

// ReportPayment returns amount unchanged. It is the last step of a payout,
// so its result is the per-recipient amount seen by the caller.
func ReportPayment(amount decimal.Decimal) decimal.Decimal {
	return amount
}
