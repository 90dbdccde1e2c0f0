package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/taskdoc/internal/domain/entity"
)

func ratingPtr(v float64) *float64 { return &v }

func TestNewTaskMachine_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    entity.TaskStatus
		to      State
		wantErr error
	}{
		{"start work", entity.TaskStatusPending, StateInProgress, nil},
		{"skip to review", entity.TaskStatusPending, StateReview, nil},
		{"complete from review", entity.TaskStatusReview, StateCompleted, nil},
		{"complete directly", entity.TaskStatusPending, StateCompleted, nil},
		{"send back from review", entity.TaskStatusReview, StateInProgress, nil},
		{"reopen in-progress", entity.TaskStatusInProgress, StatePending, nil},
		{"cancel pending", entity.TaskStatusPending, StateCancelled, nil},
		{"cancel review", entity.TaskStatusReview, StateCancelled, nil},
		{"leave completed", entity.TaskStatusCompleted, StateInProgress, ErrInvalidTransition},
		{"leave cancelled", entity.TaskStatusCancelled, StatePending, ErrInvalidTransition},
		{"self transition", entity.TaskStatusReview, StateReview, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &entity.Task{ID: 1, Title: "Quarterly filing", Status: tt.from}
			sm := NewTaskMachine(task, nil)

			trigger, ok := TriggerFor(tt.to)
			if !ok {
				t.Fatalf("no trigger for %s", tt.to)
			}

			_, err := sm.Fire(context.Background(), trigger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fire() error = %v, want %v", err, tt.wantErr)
				}
				if sm.State() != State(tt.from) {
					t.Errorf("State() = %v, want unchanged %v", sm.State(), tt.from)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fire() error = %v", err)
			}
			if sm.State() != tt.to {
				t.Errorf("State() = %v, want %v", sm.State(), tt.to)
			}
		})
	}
}

func TestNewTaskMachine_VerificationGate(t *testing.T) {
	tests := []struct {
		name     string
		existing *float64
		supplied *float64
		wantErr  error
	}{
		{"no rating", nil, nil, ErrGuardFailed},
		{"supplied rating", nil, ratingPtr(7.5), nil},
		{"supplied zero", nil, ratingPtr(0), nil},
		{"supplied out of range", nil, ratingPtr(11), ErrGuardFailed},
		{"negative rating", nil, ratingPtr(-1), ErrGuardFailed},
		{"already rated", ratingPtr(9), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &entity.Task{
				ID:     42,
				Title:  "Client Verification Task - FY24",
				Status: entity.TaskStatusReview,
				Rating: tt.existing,
			}
			sm := NewTaskMachine(task, tt.supplied)

			_, err := sm.Fire(context.Background(), TriggerComplete)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fire() error = %v, want %v", err, tt.wantErr)
				}
				if sm.State() != StateReview {
					t.Errorf("State() = %v, want %v", sm.State(), StateReview)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fire() error = %v", err)
			}
			if sm.State() != StateCompleted {
				t.Errorf("State() = %v, want %v", sm.State(), StateCompleted)
			}
		})
	}
}

func TestNewTaskMachine_GateOnlyAffectsCompletion(t *testing.T) {
	task := &entity.Task{ID: 3, Title: "verification task", Status: entity.TaskStatusPending}

	sm := NewTaskMachine(task, nil)
	if _, err := sm.Fire(context.Background(), TriggerCancel); err != nil {
		t.Fatalf("Fire(CANCEL) error = %v", err)
	}
	if sm.State() != StateCancelled {
		t.Errorf("State() = %v, want %v", sm.State(), StateCancelled)
	}
}
