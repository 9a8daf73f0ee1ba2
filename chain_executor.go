package disburse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/btree"
	"go.uber.org/zap"
)

// StepState represents the execution state of a step
type StepState int

const (
	StepPending StepState = iota
	StepRunning
	StepSucceeded
	StepFailed
)

func (s StepState) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepSucceeded:
		return "succeeded"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ExecutionNode is the execution state of a single step.
type ExecutionNode struct {
	NodeIndex int64
	Name      StepName
	State     StepState
	Result    *PromiseResult
}

// ExecutionRecord tracks the execution of a single step
type ExecutionRecord struct {
	Step      StepName
	NodeID    int64
	StartTime time.Time
	EndTime   time.Time
	Status    StepState
	Error     error
}

// ChainExecutor runs a Chain stage by stage. Steps of one stage are issued
// together and run concurrently; the next stage fires only once every step of
// the current one has settled. A failed step never stops the chain: its
// failure is handed to whatever joins on it.
type ChainExecutor struct {
	chain    *Chain
	ledger   Ledger
	registry *Registry
	exec     ExecContext
	budget   *ResourceBudget
	log      *zap.Logger

	mu      sync.Mutex
	nodes   map[int64]*ExecutionNode
	settled btree.Map[int64, PromiseResult]
	trace   []ExecutionRecord
}

// NewChainExecutor prepares chain for execution. Each step's gas is charged
// to budget when the step fires.
func NewChainExecutor(
	chain *Chain,
	ledger Ledger,
	registry *Registry,
	exec ExecContext,
	budget *ResourceBudget,
	log *zap.Logger,
) *ChainExecutor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &ChainExecutor{
		chain:    chain,
		ledger:   ledger,
		registry: registry,
		exec:     exec,
		budget:   budget,
		log:      log,
		nodes:    make(map[int64]*ExecutionNode, chain.Len()),
	}
	for id, step := range chain.steps {
		e.nodes[id] = &ExecutionNode{NodeIndex: id, Name: step.Name, State: StepPending}
	}
	return e
}

// Run executes the whole chain and returns the final step's result. The
// error is only for a malformed chain; step failures are part of the
// results.
func (e *ChainExecutor) Run(ctx context.Context) (PromiseResult, error) {
	levels, err := e.chain.Levels()
	if err != nil {
		return PromiseResult{}, fmt.Errorf("failed to get execution order: %w", err)
	}

	// Issued steps run to completion.
	ctx = context.WithoutCancel(ctx)

	for _, level := range levels {
		var wg sync.WaitGroup
		for _, id := range level {
			wg.Add(1)
			go func() {
				defer wg.Done()
				e.fire(ctx, id)
			}()
		}
		wg.Wait()
	}

	final, _ := e.Result(e.chain.Final())
	return final, nil
}

func (e *ChainExecutor) fire(ctx context.Context, id int64) {
	step := e.chain.steps[id]
	joined := e.joined(id)

	e.mu.Lock()
	e.nodes[id].State = StepRunning
	chargeErr := e.budget.Consume(step.Gas)
	e.mu.Unlock()

	start := time.Now()
	var result PromiseResult
	if chargeErr != nil {
		result = Failed(fmt.Errorf("step %s not funded: %w", step.Name, chargeErr))
	} else {
		result = e.run(ctx, step, joined)
	}
	end := time.Now()

	status := StepSucceeded
	if !result.OK() {
		status = StepFailed
	}

	e.mu.Lock()
	e.settled.Set(id, result)
	node := e.nodes[id]
	node.State = status
	node.Result = &result
	e.trace = append(e.trace, ExecutionRecord{
		Step:      step.Name,
		NodeID:    id,
		StartTime: start,
		EndTime:   end,
		Status:    status,
		Error:     result.Err,
	})
	e.mu.Unlock()

	e.log.Debug("step settled",
		zap.String("step", string(step.Name)),
		zap.Stringer("kind", step.Kind),
		zap.Stringer("status", result.Status),
		zap.Stringer("gas", step.Gas),
		zap.Error(result.Err),
	)
}

func (e *ChainExecutor) run(ctx context.Context, step *Step, joined JoinedOutcome) PromiseResult {
	switch step.Kind {
	case StepTransfer:
		if err := e.ledger.Transfer(ctx, e.exec.CurrentAccount, step.To, step.Amount); err != nil {
			return Failed(err)
		}
		return Succeeded(step.Amount)
	case StepCall:
		c, err := e.registry.Get(step.Method)
		if err != nil {
			return Failed(err)
		}
		// Continuations are called back by the operating account itself.
		exec := e.exec
		exec.Predecessor = exec.CurrentAccount
		return c.Invoke(ctx, Call{Exec: exec, Joined: joined, Amount: step.Amount})
	default:
		return Failed(fmt.Errorf("unknown step kind %s", step.Kind))
	}
}

// joined collects the settled results id was chained after.
func (e *ChainExecutor) joined(id int64) JoinedOutcome {
	deps := e.chain.Predecessors(id)
	branches := make([]PromiseResult, 0, len(deps))

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, dep := range deps {
		r, ok := e.settled.Get(dep)
		if !ok {
			// Levels guarantees predecessors settle first.
			r = Failed(fmt.Errorf("step %d has not settled", dep))
		}
		branches = append(branches, r)
	}
	return NewJoinedOutcome(branches...)
}

// Result returns the settled result of a step.
func (e *ChainExecutor) Result(id int64) (PromiseResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settled.Get(id)
}

// ResultByName returns the settled result of a named step.
func (e *ChainExecutor) ResultByName(name StepName) (PromiseResult, bool) {
	id, err := e.chain.StepIndex(name)
	if err != nil {
		return PromiseResult{}, false
	}
	return e.Result(id)
}

// GetExecutionState returns the current state of all steps
func (e *ChainExecutor) GetExecutionState() map[int64]ExecutionNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make(map[int64]ExecutionNode, len(e.nodes))
	for k, v := range e.nodes {
		result[k] = *v
	}
	return result
}

// GetExecutionTrace returns a copy of the execution trace in completion
// order.
func (e *ChainExecutor) GetExecutionTrace() []ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	trace := make([]ExecutionRecord, len(e.trace))
	copy(trace, e.trace)
	return trace
}

// GetExecutionOrder returns just the step names in completion order
func (e *ChainExecutor) GetExecutionOrder() []StepName {
	trace := e.GetExecutionTrace()
	order := make([]StepName, len(trace))
	for i, record := range trace {
		order[i] = record.Step
	}
	return order
}
