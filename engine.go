package disburse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Receipt is the observable result of one invocation that reached dispatch.
type Receipt struct {
	InvocationID InvocationID        `json:"invocation_id"`
	Recipients   []AccountID         `json:"recipients"`
	Disbursement Disbursement        `json:"disbursement"`
	Outcomes     []SettlementOutcome `json:"outcomes"`
	// Compensation is set only when at least one transfer failed and the
	// refund was issued.
	Compensation *CompensationRecord `json:"compensation,omitempty"`
	// Amount is what report_payment returned: the per-recipient slice.
	Amount decimal.Decimal `json:"amount"`
	// Uncompensated is set when funds could not be accounted for: the
	// refund failed or a continuation could not be paid for.
	Uncompensated bool              `json:"uncompensated"`
	Stages        []Stage           `json:"stages"`
	Trace         []ExecutionRecord `json:"-"`
}

// Failures returns the number of transfers that did not land.
func (r *Receipt) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == SettlementFailed {
			n++
		}
	}
	return n
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithDirectory sets the directory used by PayFromDirectory.
func WithDirectory(dir Directory) Option {
	return func(e *Engine) {
		e.dir = dir
	}
}

// WithBudget replaces the default gas reservations.
func WithBudget(cfg BudgetConfig) Option {
	return func(e *Engine) {
		e.budget = cfg
	}
}

// Engine splits an attached payment over a recipient set and pays every
// recipient in parallel, refunding whatever did not land.
type Engine struct {
	ledger Ledger
	dir    Directory
	budget BudgetConfig
	log    *zap.Logger

	directory   *DirectoryClient
	registry    *Registry
	compensator *Compensator
	dispatcher  Dispatcher
}

// NewEngine creates an Engine that moves funds through ledger.
func NewEngine(ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: ledger,
		budget: DefaultBudgetConfig(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.directory = NewDirectoryClient(e.dir, e.budget.Lookup)
	e.compensator = NewCompensator(ledger, e.log)
	e.dispatcher = Dispatcher{Transfer: e.budget.Transfer}
	e.registry = NewRegistry()
	e.mustRegister(NewContinuationFunc(RefundUnpaidName, e.compensator.RefundUnpaid))
	e.mustRegister(NewContinuationFunc(ReportPaymentName, func(_ context.Context, call Call) PromiseResult {
		return Succeeded(ReportPayment(call.Amount))
	}))
	return e
}

func (e *Engine) mustRegister(c Continuation) {
	if err := e.registry.Register(c); err != nil {
		panic(err)
	}
}

// Registry returns the engine's named continuations.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Budget returns the gas reservations in use.
func (e *Engine) Budget() BudgetConfig {
	return e.budget
}

// PayOut splits the attached deposit evenly over recipients.
//
// Errors are always *AbortError and mean no transfer was issued. Once
// transfers are issued PayOut returns a Receipt, whatever their outcome.
func (e *Engine) PayOut(ctx context.Context, exec ExecContext, recipients []AccountID) (*Receipt, error) {
	ilog := NewInvocationLog()

	budget, err := NewResourceBudget(exec.PrepaidGas, exec.UsedGas)
	if err != nil {
		return nil, e.abort(ilog, err)
	}
	return e.payOut(ctx, exec, ilog, budget, recipients, e.budget.Dispatch, e.budget.TxFee)
}

// PayFromDirectory looks up the recipients registered under directoryID and
// pays them as PayOut does. Lookup, dispatch and the transaction fee are
// set aside first; the payout runs on what is left.
func (e *Engine) PayFromDirectory(ctx context.Context, exec ExecContext, directoryID AccountID) (*Receipt, error) {
	ilog := NewInvocationLog()

	if err := ValidateDirectoryID(directoryID); err != nil {
		return nil, e.abort(ilog, err)
	}
	e.advance(ilog, EventLookup)

	outer, err := NewResourceBudget(exec.PrepaidGas, exec.UsedGas)
	if err != nil {
		return nil, e.abort(ilog, err)
	}
	forward, err := Allocate(exec.PrepaidGas, exec.UsedGas, e.budget.Lookup, e.budget.Dispatch, e.budget.TxFee)
	if err != nil {
		return nil, e.abort(ilog, err)
	}

	recipients, err := e.directory.Lookup(ctx, outer, directoryID)
	if err != nil {
		return nil, e.abort(ilog, err)
	}
	e.log.Debug("recipients listed",
		zap.Stringer("invocation", ilog.ID()),
		zap.String("directory", directoryID.String()),
		zap.Int("count", len(recipients)),
		zap.Stringer("forwarded_gas", forward),
	)
	e.advance(ilog, EventListed)

	return e.payOut(ctx, exec, ilog, &ResourceBudget{Total: forward}, recipients)
}

// payOut runs the pipeline from validation onwards. overhead is charged to
// budget before anything else is reserved.
func (e *Engine) payOut(
	ctx context.Context,
	exec ExecContext,
	ilog *InvocationLog,
	budget *ResourceBudget,
	recipients []AccountID,
	overhead ...Gas,
) (*Receipt, error) {
	normalized := Normalize(recipients)
	req := NewPaymentRequest(exec, normalized)
	if err := ValidateRequest(req); err != nil {
		return nil, e.abort(ilog, err)
	}
	e.advance(ilog, EventValidated)

	if err := e.reserve(budget, len(normalized), overhead); err != nil {
		return nil, e.abort(ilog, err)
	}
	e.advance(ilog, EventBudgeted)

	split, err := Split(req.AttachedAmount, len(normalized))
	if err != nil {
		return nil, e.abort(ilog, err)
	}
	chain, err := e.buildChain(normalized, split.Slice)
	if err != nil {
		return nil, e.abort(ilog, err)
	}
	e.advance(ilog, EventSplit)

	e.log.Info("dispatching payments",
		zap.Stringer("invocation", ilog.ID()),
		zap.Int("recipients", split.Count),
		zap.Stringer("slice", split.Slice),
		zap.Stringer("remainder", split.Remainder),
	)

	executor := NewChainExecutor(chain, e.ledger, e.registry, exec, budget, e.log)
	if _, err := executor.Run(ctx); err != nil {
		// The chain was built above, so it is acyclic.
		e.log.DPanic("chain execution failed", zap.Error(err))
	}

	receipt := &Receipt{
		InvocationID: ilog.ID(),
		Recipients:   normalized,
		Disbursement: split,
		Outcomes:     make([]SettlementOutcome, 0, len(normalized)),
	}
	for _, to := range normalized {
		r, _ := executor.ResultByName(TransferStep(to, split.Slice, 0).Name)
		receipt.Outcomes = append(receipt.Outcomes, settlementFrom(to, r))
	}
	e.advance(ilog, EventSettled)

	refund, _ := executor.ResultByName(StepName(RefundUnpaidName))
	switch {
	case !refund.OK():
		receipt.Uncompensated = true
		e.log.Error("failed transfers were not compensated",
			zap.Stringer("invocation", ilog.ID()),
			zap.Int("failures", receipt.Failures()),
			zap.Error(refund.Err),
		)
	case refund.Pending:
		receipt.Compensation = &CompensationRecord{
			FailureCount: receipt.Failures(),
			RefundAmount: refund.Value,
			RefundTarget: exec.Signer,
		}
	}
	e.advance(ilog, EventCompensated)

	report, _ := executor.ResultByName(StepName(ReportPaymentName))
	if report.OK() {
		receipt.Amount = report.Value
	} else {
		receipt.Uncompensated = true
		e.log.Error("payment was not reported",
			zap.Stringer("invocation", ilog.ID()),
			zap.Error(report.Err),
		)
	}
	e.advance(ilog, EventReported)

	receipt.Stages = ilog.Stages()
	receipt.Trace = executor.GetExecutionTrace()
	return receipt, nil
}

// reserve sets aside gas for every step of the chain, then charges overhead.
func (e *Engine) reserve(budget *ResourceBudget, recipients int, overhead []Gas) error {
	amounts := append([]Gas(nil), overhead...)
	amounts = append(amounts, e.budget.Refund, e.budget.Report)
	for i := 0; i < recipients; i++ {
		amounts = append(amounts, e.budget.Transfer)
	}
	for _, g := range amounts {
		if err := budget.Reserve(g); err != nil {
			return fmt.Errorf("reserving gas for %d recipients: %w", recipients, err)
		}
	}
	for _, g := range overhead {
		if err := budget.Consume(g); err != nil {
			return err
		}
	}
	return nil
}

// buildChain lays out transfers to every recipient, then refund_unpaid, then
// report_payment.
func (e *Engine) buildChain(recipients []AccountID, slice decimal.Decimal) (*Chain, error) {
	b := NewChainBuilder()
	if err := e.dispatcher.Dispatch(b, recipients, slice); err != nil {
		return nil, err
	}
	if err := b.Append(CallStep(RefundUnpaidName, slice, e.budget.Refund)); err != nil {
		return nil, err
	}
	if err := b.Append(CallStep(ReportPaymentName, slice, e.budget.Report)); err != nil {
		return nil, err
	}
	return b.Build()
}

// RefundUnpaid runs the compensator over joined.
func (e *Engine) RefundUnpaid(ctx context.Context, exec ExecContext, joined JoinedOutcome, slice decimal.Decimal) PromiseResult {
	return e.compensator.RefundUnpaid(ctx, Call{Exec: exec, Joined: joined, Amount: slice})
}

// ReportPayment returns amount unchanged.
func (e *Engine) ReportPayment(amount decimal.Decimal) decimal.Decimal {
	return ReportPayment(amount)
}

// Invoke is how the host calls a named continuation. Continuations are
// private: only the operating account may call them.
func (e *Engine) Invoke(
	ctx context.Context,
	exec ExecContext,
	method ContinuationName,
	joined JoinedOutcome,
	amount decimal.Decimal,
) (PromiseResult, error) {
	c, err := e.registry.Get(method)
	if err != nil {
		return PromiseResult{}, err
	}
	if exec.Predecessor != exec.CurrentAccount {
		return PromiseResult{}, fmt.Errorf("%w: %s called by %s", ErrPrivateContinuation, method, exec.Predecessor)
	}
	return c.Invoke(ctx, Call{Exec: exec, Joined: joined, Amount: amount}), nil
}

func (e *Engine) advance(ilog *InvocationLog, event StageEvent) {
	if _, err := ilog.Record(event); err != nil {
		e.log.DPanic("illegal stage transition", zap.Error(err))
	}
}

func (e *Engine) abort(ilog *InvocationLog, err error) error {
	stage := ilog.Stage()
	e.advance(ilog, EventAborted)
	e.log.Warn("invocation aborted",
		zap.Stringer("invocation", ilog.ID()),
		zap.Stringer("stage", stage),
		zap.Error(err),
	)
	return Aborted(stage, err)
}
