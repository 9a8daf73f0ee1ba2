package disburse

import (
	"fmt"
	"sort"

	"github.com/fortressi/disburse/dag"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/topo"
)

// StepName is the unique name of a node in a Chain.
type StepName string

// StepKind distinguishes the two things a chain node can do.
type StepKind int

const (
	// StepTransfer moves value from the operating account to a recipient.
	StepTransfer StepKind = iota
	// StepCall invokes a registered continuation.
	StepCall
)

func (k StepKind) String() string {
	switch k {
	case StepTransfer:
		return "transfer"
	case StepCall:
		return "call"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is one node of a continuation chain.
//
// There are two kinds of steps:
//
//   - a transfer (see TransferStep), which sends Amount to To
//   - a call (see CallStep), which invokes the continuation named Method
//     with Amount as its argument
//
// Gas is charged to the invocation budget when the step fires. A step that
// cannot be paid for fails without running.
type Step struct {
	Name   StepName
	Kind   StepKind
	To     AccountID
	Method ContinuationName
	Amount decimal.Decimal
	Gas    Gas
}

// TransferStep builds a transfer of amount to the recipient.
func TransferStep(to AccountID, amount decimal.Decimal, gas Gas) Step {
	return Step{
		Name:   StepName("transfer:" + to),
		Kind:   StepTransfer,
		To:     to,
		Amount: amount,
		Gas:    gas,
	}
}

// CallStep builds a call to a registered continuation.
func CallStep(method ContinuationName, amount decimal.Decimal, gas Gas) Step {
	return Step{
		Name:   StepName(method),
		Kind:   StepCall,
		Method: method,
		Amount: amount,
		Gas:    gas,
	}
}

// Label is the human readable form used in DOT output.
func (s Step) Label() string {
	switch s.Kind {
	case StepTransfer:
		return fmt.Sprintf("transfer %s to %s", s.Amount, s.To)
	default:
		return fmt.Sprintf("%s(%s)", s.Method, s.Amount)
	}
}

// Chain is a directed acyclic graph of steps. A step fires once every step
// it depends on has settled, whatever their outcome.
type Chain struct {
	graph *dag.Graph
	steps map[int64]*Step
	index map[StepName]int64
	last  []int64
}

func newChain() *Chain {
	return &Chain{
		graph: dag.New(),
		steps: make(map[int64]*Step),
		index: make(map[StepName]int64),
	}
}

func (c *Chain) addStep(step Step) int64 {
	node := c.graph.NewNode()
	node.SetDOTID(string(step.Name))
	if err := node.SetAttribute(encoding.Attribute{Key: "label", Value: fmt.Sprintf("%q", step.Label())}); err != nil {
		panic(err)
	}

	c.graph.AddNode(node)
	c.steps[node.ID()] = &step
	c.index[step.Name] = node.ID()
	return node.ID()
}

// Len returns the number of steps.
func (c *Chain) Len() int {
	return len(c.steps)
}

// Step returns the step with the given node ID.
func (c *Chain) Step(id int64) (*Step, error) {
	step, ok := c.steps[id]
	if !ok {
		return nil, fmt.Errorf("step not found: %d", id)
	}
	return step, nil
}

// StepIndex returns the node ID for a step name.
func (c *Chain) StepIndex(name StepName) (int64, error) {
	id, ok := c.index[name]
	if !ok {
		return 0, fmt.Errorf("chain has no step named %q", name)
	}
	return id, nil
}

// Final returns the ID of the step whose result is the chain's result.
func (c *Chain) Final() int64 {
	return c.last[0]
}

// Gas returns the gas of every step added together.
func (c *Chain) Gas() (Gas, error) {
	amounts := make([]Gas, 0, len(c.steps))
	for _, s := range c.steps {
		amounts = append(amounts, s.Gas)
	}
	return sumGas(amounts...)
}

// Predecessors returns the IDs of the steps id joins on, in scheduling
// order.
func (c *Chain) Predecessors(id int64) []int64 {
	var ids []int64
	to := c.graph.To(id)
	for to.Next() {
		ids = append(ids, to.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Levels groups steps into stages. Every step of a stage depends only on
// steps of earlier stages, so a stage can run concurrently and the next one
// starts only after it has fully settled.
func (c *Chain) Levels() ([][]int64, error) {
	sorted, err := topo.SortStabilized(c.graph, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		return nil, fmt.Errorf("topological sort failed (cycle detected?): %w", err)
	}

	depth := make(map[int64]int, len(sorted))
	var levels [][]int64
	for _, node := range sorted {
		id := node.ID()
		d := 0
		for _, dep := range c.Predecessors(id) {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[id] = d
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}
	for _, level := range levels {
		sort.Slice(level, func(i, j int) bool { return level[i] < level[j] })
	}
	return levels, nil
}

// ExportToDot renders the chain in Graphviz format.
func (c *Chain) ExportToDot(name string) (string, error) {
	return c.graph.ExportToDot(name)
}
