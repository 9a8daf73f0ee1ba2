package disburse

import (
	"errors"
	"fmt"

	"github.com/fortressi/disburse/set"
)

// ChainBuilder builds a Chain stage by stage.
type ChainBuilder struct {
	chain *Chain

	// the initial set of steps, if any have been added
	firstAdded []int64

	// The most recently added stage. Callers use the builder by appending a
	// sequence of stages; every step of a new stage depends on every step of
	// lastAdded, which is how a continuation joins on a whole fan-out.
	lastAdded []int64

	names *set.Set[StepName]
}

// NewChainBuilder creates an empty builder.
func NewChainBuilder() *ChainBuilder {
	return &ChainBuilder{
		chain: newChain(),
		names: &set.Set[StepName]{},
	}
}

// Append adds a single step after the current stage.
func (b *ChainBuilder) Append(step Step) error {
	return b.appendStage([]Step{step})
}

// AppendParallel adds steps that run concurrently after the current stage.
func (b *ChainBuilder) AppendParallel(steps ...Step) error {
	return b.appendStage(steps)
}

func (b *ChainBuilder) appendStage(steps []Step) error {
	// An empty stage would split the chain into two disconnected parts.
	if len(steps) == 0 {
		return fmt.Errorf("empty stage")
	}

	for _, step := range steps {
		if b.names.Contains(step.Name) {
			return fmt.Errorf("step with name '%s' already exists", step.Name)
		}
	}

	added := make([]int64, 0, len(steps))
	for _, step := range steps {
		b.names.Add(step.Name)
		id := b.chain.addStep(step)
		for _, prev := range b.lastAdded {
			if err := b.chain.graph.Connect(prev, id); err != nil {
				return fmt.Errorf("dependsOnLast: %w", err)
			}
		}
		added = append(added, id)
	}

	if len(b.firstAdded) == 0 {
		b.firstAdded = added
	}
	b.lastAdded = added
	return nil
}

// Build finalizes the chain. A chain must end in exactly one step so that
// the invocation has a single final result.
func (b *ChainBuilder) Build() (*Chain, error) {
	if len(b.firstAdded) == 0 {
		return nil, fmt.Errorf("chain has no steps")
	}
	if len(b.lastAdded) != 1 {
		return nil, errors.New("chain must end with exactly one step")
	}

	b.chain.last = append([]int64(nil), b.lastAdded...)
	return b.chain, nil
}
