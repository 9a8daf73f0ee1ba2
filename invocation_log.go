package disburse

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InvocationID identifies one payable invocation.
type InvocationID = uuid.UUID

// Stage is where an invocation is in its pipeline.
type Stage int

const (
	StageValidating Stage = iota
	StageLookingUp
	StageBudgeting
	StageSplitting
	StageDispatching
	StageCompensating
	StageReporting
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageValidating:   "validating",
	StageLookingUp:    "looking_up",
	StageBudgeting:    "budgeting",
	StageSplitting:    "splitting",
	StageDispatching:  "dispatching",
	StageCompensating: "compensating",
	StageReporting:    "reporting",
	StageDone:         "done",
	StageFailed:       "failed",
}

// String returns the string representation of the Stage.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// MarshalJSON implements the json.Marshaler interface for Stage.
func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Stage.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	for stage, name := range stageNames {
		if name == str {
			*s = stage
			return nil
		}
	}
	return fmt.Errorf("invalid Stage: %s", str)
}

// Terminal reports whether no further event is accepted.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// StageEvent is what moves an invocation from one stage to the next.
type StageEvent int

const (
	// EventLookup starts a directory lookup.
	EventLookup StageEvent = iota
	// EventListed returns the looked up list to validation.
	EventListed
	// EventValidated accepts the request.
	EventValidated
	// EventBudgeted accepts the gas reservations.
	EventBudgeted
	// EventSplit fixes the per-recipient slice.
	EventSplit
	// EventSettled is the join of every transfer.
	EventSettled
	// EventCompensated is the end of refund_unpaid.
	EventCompensated
	// EventReported is the end of report_payment.
	EventReported
	// EventAborted is a fatal error before dispatch.
	EventAborted
)

func (e StageEvent) String() string {
	switch e {
	case EventLookup:
		return "lookup"
	case EventListed:
		return "listed"
	case EventValidated:
		return "validated"
	case EventBudgeted:
		return "budgeted"
	case EventSplit:
		return "split"
	case EventSettled:
		return "settled"
	case EventCompensated:
		return "compensated"
	case EventReported:
		return "reported"
	case EventAborted:
		return "aborted"
	default:
		return fmt.Sprintf("StageEvent(%d)", int(e))
	}
}

// nextStage returns the stage reached by applying event to s.
//
// Only stages before dispatch can abort. Once transfers are issued the
// pipeline always runs through compensation and reporting.
func nextStage(s Stage, event StageEvent) (Stage, error) {
	switch s {
	case StageValidating:
		switch event {
		case EventLookup:
			return StageLookingUp, nil
		case EventValidated:
			return StageBudgeting, nil
		case EventAborted:
			return StageFailed, nil
		}
	case StageLookingUp:
		switch event {
		case EventListed:
			return StageValidating, nil
		case EventAborted:
			return StageFailed, nil
		}
	case StageBudgeting:
		switch event {
		case EventBudgeted:
			return StageSplitting, nil
		case EventAborted:
			return StageFailed, nil
		}
	case StageSplitting:
		switch event {
		case EventSplit:
			return StageDispatching, nil
		case EventAborted:
			return StageFailed, nil
		}
	case StageDispatching:
		if event == EventSettled {
			return StageCompensating, nil
		}
	case StageCompensating:
		if event == EventCompensated {
			return StageReporting, nil
		}
	case StageReporting:
		if event == EventReported {
			return StageDone, nil
		}
	}

	return s, fmt.Errorf("illegal event %s for stage %s", event, s)
}

// StageTransition is one entry of an InvocationLog.
type StageTransition struct {
	From  Stage      `json:"from"`
	Event StageEvent `json:"event"`
	To    Stage      `json:"to"`
	At    time.Time  `json:"at"`
}

func (t StageTransition) String() string {
	return fmt.Sprintf("%s --%s--> %s", t.From, t.Event, t.To)
}

// InvocationLog records the stage transitions of one invocation.
type InvocationLog struct {
	mu      sync.Mutex
	id      InvocationID
	stage   Stage
	history []StageTransition
}

// NewInvocationLog starts a log in StageValidating with a fresh ID.
func NewInvocationLog() *InvocationLog {
	return &InvocationLog{id: uuid.New(), stage: StageValidating}
}

// ID returns the invocation ID.
func (l *InvocationLog) ID() InvocationID {
	return l.id
}

// Record applies event. The stage is unchanged when the event is illegal.
func (l *InvocationLog) Record(event StageEvent) (Stage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := nextStage(l.stage, event)
	if err != nil {
		return l.stage, fmt.Errorf("invocation %s: %w", l.id, err)
	}
	l.history = append(l.history, StageTransition{
		From:  l.stage,
		Event: event,
		To:    next,
		At:    time.Now(),
	})
	l.stage = next
	return next, nil
}

// Stage returns the current stage.
func (l *InvocationLog) Stage() Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stage
}

// History returns a copy of the recorded transitions.
func (l *InvocationLog) History() []StageTransition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StageTransition(nil), l.history...)
}

// Stages returns the visited stages in order, starting with StageValidating.
func (l *InvocationLog) Stages() []Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	stages := []Stage{StageValidating}
	for _, t := range l.history {
		stages = append(stages, t.To)
	}
	return stages
}

// String implements the fmt.Stringer interface.
func (l *InvocationLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("INVOCATION LOG:\n")
	sb.WriteString(fmt.Sprintf("invocation id: %s\n", l.id))
	sb.WriteString(fmt.Sprintf("stage:         %s\n", l.stage))
	sb.WriteString(fmt.Sprintf("transitions (%d total):\n", len(l.history)))
	sb.WriteString("\n")
	for i, t := range l.history {
		sb.WriteString(fmt.Sprintf("%03d %s\n", i+1, t))
	}
	return sb.String()
}
