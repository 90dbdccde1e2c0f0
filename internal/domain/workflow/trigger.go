package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerReopen          Trigger = "REOPEN"
	TriggerStart           Trigger = "START"
	TriggerSubmitForReview Trigger = "SUBMIT_FOR_REVIEW"
	TriggerComplete        Trigger = "COMPLETE"
	TriggerCancel          Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor returns the trigger that moves a task into the target state.
func TriggerFor(target State) (Trigger, bool) {
	switch target {
	case StatePending:
		return TriggerReopen, true
	case StateInProgress:
		return TriggerStart, true
	case StateReview:
		return TriggerSubmitForReview, true
	case StateCompleted:
		return TriggerComplete, true
	case StateCancelled:
		return TriggerCancel, true
	}
	return "", false
}
