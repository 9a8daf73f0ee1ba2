package disburse

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PromiseStatus is how a settled remote operation ended.
type PromiseStatus int

const (
	PromiseSuccessful PromiseStatus = iota
	PromiseFailed
)

func (s PromiseStatus) String() string {
	switch s {
	case PromiseSuccessful:
		return "successful"
	case PromiseFailed:
		return "failed"
	default:
		return fmt.Sprintf("PromiseStatus(%d)", int(s))
	}
}

// PromiseResult is the settled outcome of one step of a chain.
type PromiseResult struct {
	Status PromiseStatus
	Value  decimal.Decimal
	// Pending is set when the step answered by issuing a further transfer
	// of Value instead of returning Value.
	Pending bool
	Err     error
}

// Succeeded returns a successful result carrying value.
func Succeeded(value decimal.Decimal) PromiseResult {
	return PromiseResult{Status: PromiseSuccessful, Value: value}
}

// Failed returns a failed result.
func Failed(err error) PromiseResult {
	return PromiseResult{Status: PromiseFailed, Err: err}
}

// OK reports whether the result succeeded.
func (r PromiseResult) OK() bool {
	return r.Status == PromiseSuccessful
}

// TriggerSlot is the position of the continuation's own trigger in a
// JoinedOutcome. Predecessor outcomes start right after it.
const TriggerSlot = 0

// JoinedOutcome is what a continuation sees once every branch it joins on
// has settled: its own trigger at TriggerSlot, then one result per joined
// branch in scheduling order.
type JoinedOutcome []PromiseResult

// NewJoinedOutcome prepends the trigger to the branch results.
func NewJoinedOutcome(branches ...PromiseResult) JoinedOutcome {
	out := make(JoinedOutcome, 0, len(branches)+1)
	out = append(out, Succeeded(decimal.Zero))
	return append(out, branches...)
}

// Count returns the number of results including the trigger.
func (j JoinedOutcome) Count() int {
	return len(j)
}

// Branches returns the joined branch results, trigger excluded.
func (j JoinedOutcome) Branches() []PromiseResult {
	if len(j) <= TriggerSlot+1 {
		return nil
	}
	return j[TriggerSlot+1:]
}

// Failures counts failed branches. The trigger is never counted.
func (j JoinedOutcome) Failures() int {
	fails := 0
	for _, r := range j.Branches() {
		if !r.OK() {
			fails++
		}
	}
	return fails
}

// SettlementStatus is the outcome of one recipient transfer.
type SettlementStatus string

const (
	SettlementSucceeded SettlementStatus = "succeeded"
	SettlementFailed    SettlementStatus = "failed"
)

// SettlementOutcome records how the transfer to one recipient ended.
type SettlementOutcome struct {
	Recipient AccountID        `json:"recipient"`
	Status    SettlementStatus `json:"status"`
	Err       string           `json:"error,omitempty"`
}

func settlementFrom(recipient AccountID, r PromiseResult) SettlementOutcome {
	out := SettlementOutcome{Recipient: recipient, Status: SettlementSucceeded}
	if !r.OK() {
		out.Status = SettlementFailed
		if r.Err != nil {
			out.Err = r.Err.Error()
		}
	}
	return out
}
