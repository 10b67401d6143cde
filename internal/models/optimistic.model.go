package models

// Optimistic is a locally applied value awaiting server acknowledgment.
// Pending is what views show; Confirmed is the last value the server accepted.
type Optimistic[T comparable] struct {
	Pending   *T `json:"pending,omitempty"`
	Confirmed *T `json:"confirmed,omitempty"`
}

// Outcome of the server call backing an optimistic change.
type Outcome int

const (
	OutcomeConfirmed Outcome = iota
	OutcomeFailed
)

// ReconcilePolicy decides the value that survives a server outcome.
type ReconcilePolicy[T comparable] func(state Optimistic[T], outcome Outcome) Optimistic[T]

// SelectionPolicy keeps the pending choice only when the server confirms it.
func SelectionPolicy[T comparable](state Optimistic[T], outcome Outcome) Optimistic[T] {
	if outcome == OutcomeConfirmed {
		return Optimistic[T]{Confirmed: state.Pending}
	}
	return Optimistic[T]{Confirmed: state.Confirmed}
}

// ReadPolicy never rolls the optimistic value back. A failed acknowledgment leaves
// the value pending; a later success confirms it.
func ReadPolicy[T comparable](state Optimistic[T], outcome Outcome) Optimistic[T] {
	if outcome == OutcomeConfirmed {
		return Optimistic[T]{Pending: state.Pending, Confirmed: state.Pending}
	}
	return state
}

func (o Optimistic[T]) Propose(value T) Optimistic[T] {
	return Optimistic[T]{Pending: &value, Confirmed: o.Confirmed}
}

func (o Optimistic[T]) Resolve(outcome Outcome, policy ReconcilePolicy[T]) Optimistic[T] {
	return policy(o, outcome)
}

// Value is the pending value if any, else the confirmed one.
func (o Optimistic[T]) Value() (T, bool) {
	if o.Pending != nil {
		return *o.Pending, true
	}
	if o.Confirmed != nil {
		return *o.Confirmed, true
	}
	var zero T
	return zero, false
}

func (o Optimistic[T]) IsPending() bool {
	return o.Pending != nil && (o.Confirmed == nil || *o.Confirmed != *o.Pending)
}

func (o Optimistic[T]) IsConfirmed(value T) bool {
	return o.Confirmed != nil && *o.Confirmed == value
}
