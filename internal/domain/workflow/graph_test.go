package workflow

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/garyjia/taskdoc/internal/domain/entity"
)

func TestState_Predicates(t *testing.T) {
	tests := []struct {
		state    State
		valid    bool
		terminal bool
	}{
		{StatePending, true, false},
		{StateInProgress, true, false},
		{StateReview, true, false},
		{StateCompleted, true, true},
		{StateCancelled, true, true},
		{State("archived"), false, false},
		{State(""), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestTriggerFor(t *testing.T) {
	tests := []struct {
		target State
		want   Trigger
		ok     bool
	}{
		{StatePending, TriggerReopen, true},
		{StateInProgress, TriggerStart, true},
		{StateReview, TriggerSubmitForReview, true},
		{StateCompleted, TriggerComplete, true},
		{StateCancelled, TriggerCancel, true},
		{State("archived"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			got, ok := TriggerFor(tt.target)
			if got != tt.want || ok != tt.ok {
				t.Errorf("TriggerFor(%s) = %v, %v; want %v, %v", tt.target, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestGraph_AllowPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(g *Graph)
	}{
		{"unknown from", func(g *Graph) { g.Allow(State("archived"), TriggerStart, StateInProgress) }},
		{"unknown to", func(g *Graph) { g.Allow(StatePending, TriggerStart, State("archived")) }},
		{"terminal from", func(g *Graph) { g.Allow(StateCompleted, TriggerReopen, StatePending) }},
		{"after start", func(g *Graph) {
			g.Start(StatePending)
			g.Allow(StatePending, TriggerStart, StateInProgress)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn(NewGraph())
		})
	}
}

func TestMachine_Fire(t *testing.T) {
	sm := NewGraph().
		Allow(StatePending, TriggerStart, StateInProgress).
		Allow(StateInProgress, TriggerSubmitForReview, StateReview).
		Start(StatePending)
	ctx := context.Background()

	tr, err := sm.Fire(ctx, TriggerStart)
	if err != nil {
		t.Fatalf("Fire(START) error = %v", err)
	}
	want := Transition{From: StatePending, To: StateInProgress, Trigger: TriggerStart}
	if tr != want {
		t.Errorf("Fire(START) = %+v, want %+v", tr, want)
	}

	if _, err := sm.Fire(ctx, TriggerCancel); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire(CANCEL) error = %v, want ErrInvalidTransition", err)
	}
	if sm.State() != StateInProgress {
		t.Errorf("State() changed after failed Fire: %v", sm.State())
	}
}

func TestMachine_Guard(t *testing.T) {
	allow := false
	sm := NewGraph().
		AllowIf(StateReview, TriggerComplete, StateCompleted, func(ctx context.Context) bool { return allow }).
		Start(StateReview)
	ctx := context.Background()

	if !sm.CanFire(TriggerComplete) {
		t.Fatal("CanFire() should ignore guards")
	}
	if _, err := sm.Fire(ctx, TriggerComplete); !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want ErrGuardFailed", err)
	}
	if sm.State() != StateReview {
		t.Errorf("State() = %v, want %v", sm.State(), StateReview)
	}

	allow = true
	if _, err := sm.Fire(ctx, TriggerComplete); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if sm.State() != StateCompleted {
		t.Errorf("State() = %v, want %v", sm.State(), StateCompleted)
	}
}

func TestMachine_TerminalState(t *testing.T) {
	sm := NewGraph().Allow(StatePending, TriggerCancel, StateCancelled).Start(StateCancelled)

	if got := sm.PermittedTriggers(); len(got) != 0 {
		t.Errorf("PermittedTriggers() = %v, want empty", got)
	}
	if got := sm.Reachable(); len(got) != 0 {
		t.Errorf("Reachable() = %v, want empty", got)
	}
	if _, err := sm.Fire(context.Background(), TriggerReopen); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
}

func TestMachine_PermittedAndReachable(t *testing.T) {
	sm := NewGraph().
		Allow(StatePending, TriggerStart, StateInProgress).
		Allow(StatePending, TriggerCancel, StateCancelled).
		Allow(StatePending, TriggerComplete, StateCompleted).
		Start(StatePending)

	wantTriggers := []Trigger{TriggerCancel, TriggerComplete, TriggerStart}
	if got := sm.PermittedTriggers(); !reflect.DeepEqual(got, wantTriggers) {
		t.Errorf("PermittedTriggers() = %v, want %v", got, wantTriggers)
	}

	wantStates := []State{StateInProgress, StateCompleted, StateCancelled}
	if got := sm.Reachable(); !reflect.DeepEqual(got, wantStates) {
		t.Errorf("Reachable() = %v, want %v", got, wantStates)
	}
}

func TestNewTaskMachine_Reachable(t *testing.T) {
	tests := []struct {
		from State
		want []State
	}{
		{StatePending, []State{StateInProgress, StateReview, StateCompleted, StateCancelled}},
		{StateInProgress, []State{StatePending, StateReview, StateCompleted, StateCancelled}},
		{StateReview, []State{StatePending, StateInProgress, StateCompleted, StateCancelled}},
		{StateCompleted, []State{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			task := &entity.Task{ID: 1, Title: "GST filing", Status: tt.from.Status()}
			if got := NewTaskMachine(task, nil).Reachable(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Reachable() = %v, want %v", got, tt.want)
			}
		})
	}
}
