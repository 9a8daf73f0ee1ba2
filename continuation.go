package disburse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ContinuationName names an endpoint of the engine that the host can
// schedule as a standalone continuation.
type ContinuationName string

const (
	RefundUnpaidName  ContinuationName = "refund_unpaid"
	ReportPaymentName ContinuationName = "report_payment"
)

// Call is what the host hands to a continuation when it fires.
type Call struct {
	Exec ExecContext
	// Joined holds the trigger and the settled results the continuation
	// was chained after.
	Joined JoinedOutcome
	// Amount is the continuation's argument.
	Amount decimal.Decimal
}

// Continuation is a named endpoint that runs after the steps it is chained
// on have settled.
type Continuation interface {
	Name() ContinuationName
	Invoke(ctx context.Context, call Call) PromiseResult
}

// InvokeFunc is the body of a ContinuationFunc.
type InvokeFunc func(ctx context.Context, call Call) PromiseResult

// ContinuationFunc is an implementation of Continuation that uses an
// ordinary function.
type ContinuationFunc struct {
	name ContinuationName
	fn   InvokeFunc
}

// NewContinuationFunc constructs a ContinuationFunc.
func NewContinuationFunc(name ContinuationName, fn InvokeFunc) *ContinuationFunc {
	return &ContinuationFunc{name: name, fn: fn}
}

// Invoke implements the Continuation interface.
func (c *ContinuationFunc) Invoke(ctx context.Context, call Call) PromiseResult {
	return c.fn(ctx, call)
}

// Name implements the Continuation interface.
func (c *ContinuationFunc) Name() ContinuationName {
	return c.name
}

// String implements the fmt.Stringer interface.
func (c *ContinuationFunc) String() string {
	return fmt.Sprintf("ContinuationFunc[%s]", c.name)
}
