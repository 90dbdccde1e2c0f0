package workflow

import "github.com/garyjia/taskdoc/internal/domain/entity"

// State is a task status viewed as a node of the lifecycle graph
type State string

const (
	StatePending    State = State(entity.TaskStatusPending)
	StateInProgress State = State(entity.TaskStatusInProgress)
	StateReview     State = State(entity.TaskStatusReview)
	StateCompleted  State = State(entity.TaskStatusCompleted)
	StateCancelled  State = State(entity.TaskStatusCancelled)
)

var lifecycleOrder = []State{StatePending, StateInProgress, StateReview, StateCompleted, StateCancelled}

// States returns every lifecycle state in display order
func States() []State {
	return append([]State(nil), lifecycleOrder...)
}

// IsTerminal reports whether no edge leaves the state
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// IsValid reports whether s is a lifecycle state
func (s State) IsValid() bool {
	for _, st := range lifecycleOrder {
		if st == s {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// Status converts the state back to the task status it mirrors
func (s State) Status() entity.TaskStatus {
	return entity.TaskStatus(s)
}
