package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides at fire time whether a permitted edge may be taken
type GuardFunc func(ctx context.Context) bool

type edge struct {
	to    State
	guard GuardFunc
}

// Graph is the set of permitted (state, trigger) -> state edges.
// It can be extended until the first machine is started on it.
type Graph struct {
	edges  map[State]map[Trigger]edge
	frozen bool
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{edges: make(map[State]map[Trigger]edge)}
}

// Allow adds an unguarded edge
func (g *Graph) Allow(from State, trigger Trigger, to State) *Graph {
	return g.AllowIf(from, trigger, to, nil)
}

// AllowIf adds an edge taken only when guard passes. Adding an edge for a
// terminal or unknown state, or after Start, is a programming error.
func (g *Graph) AllowIf(from State, trigger Trigger, to State, guard GuardFunc) *Graph {
	switch {
	case g.frozen:
		panic("workflow: graph modified after Start")
	case !from.IsValid() || !to.IsValid():
		panic(fmt.Sprintf("workflow: edge %s -> %s uses an unknown state", from, to))
	case from.IsTerminal():
		panic(fmt.Sprintf("workflow: terminal state %s cannot have edges", from))
	}

	out, ok := g.edges[from]
	if !ok {
		out = make(map[Trigger]edge)
		g.edges[from] = out
	}
	out[trigger] = edge{to: to, guard: guard}
	return g
}

// Start freezes the graph and returns a machine positioned at state
func (g *Graph) Start(state State) *Machine {
	if !state.IsValid() {
		panic(fmt.Sprintf("workflow: unknown start state %s", state))
	}
	g.frozen = true
	return &Machine{graph: g, state: state}
}

// Transition records one fired edge
type Transition struct {
	From    State
	To      State
	Trigger Trigger
}

// Machine walks a Graph. It is not safe for concurrent use; build one per
// request.
type Machine struct {
	graph *Graph
	state State
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// CanFire reports whether the current state has an edge for trigger.
// Guards are not evaluated.
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.graph.edges[m.state][trigger]
	return ok
}

// Fire takes the edge for trigger. On error the state is unchanged.
func (m *Machine) Fire(ctx context.Context, trigger Trigger) (Transition, error) {
	if m.state.IsTerminal() {
		return Transition{}, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, m.state)
	}
	e, ok := m.graph.edges[m.state][trigger]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s not permitted from %s", ErrInvalidTransition, trigger, m.state)
	}
	if e.guard != nil && !e.guard(ctx) {
		return Transition{}, fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.state)
	}

	t := Transition{From: m.state, To: e.to, Trigger: trigger}
	m.state = e.to
	return t, nil
}

// PermittedTriggers returns the triggers with an edge from the current
// state, sorted by name
func (m *Machine) PermittedTriggers() []Trigger {
	out := make([]Trigger, 0, len(m.graph.edges[m.state]))
	for t := range m.graph.edges[m.state] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reachable returns the states one edge away, in lifecycle order
func (m *Machine) Reachable() []State {
	targets := make(map[State]bool)
	for _, e := range m.graph.edges[m.state] {
		targets[e.to] = true
	}
	out := make([]State, 0, len(targets))
	for _, s := range States() {
		if targets[s] {
			out = append(out, s)
		}
	}
	return out
}
