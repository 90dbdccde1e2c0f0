package workflow

import (
	"context"

	"github.com/garyjia/taskdoc/internal/domain/entity"
)

// RatingGate decides whether a task may enter the completed state.
// It returns true for tasks that are not verification tasks.
func RatingGate(task *entity.Task, rating *float64) GuardFunc {
	return func(ctx context.Context) bool {
		if !task.IsVerificationTask() {
			return true
		}
		if task.HasRating() {
			return true
		}
		return rating != nil && entity.ValidRating(*rating)
	}
}

// NewTaskMachine builds the lifecycle machine for a task, positioned at its
// current status. rating is the value supplied alongside the request, if any.
//
// Graph: pending -> in-progress -> review -> completed. Forward skips and moves
// back between non-terminal states are allowed; cancelled is reachable from
// every non-terminal state. completed and cancelled are terminal.
func NewTaskMachine(task *entity.Task, rating *float64) *Machine {
	gate := RatingGate(task, rating)
	g := NewGraph()

	for _, from := range []State{StatePending, StateInProgress, StateReview} {
		for _, to := range []State{StatePending, StateInProgress, StateReview} {
			if from == to {
				continue
			}
			trigger, _ := TriggerFor(to)
			g.Allow(from, trigger, to)
		}
		g.AllowIf(from, TriggerComplete, StateCompleted, gate)
		g.Allow(from, TriggerCancel, StateCancelled)
	}

	return g.Start(State(task.Status))
}
