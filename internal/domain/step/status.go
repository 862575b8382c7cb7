package step

// Status is the outcome of a step's precondition check.
type Status string

const (
	// StatusSatisfied indicates the step's effect is already present.
	StatusSatisfied Status = "satisfied"
	// StatusNeedsApply indicates the step needs to be applied.
	StatusNeedsApply Status = "needs-apply"
	// StatusUnknown indicates the probe failed and the state is unknown.
	StatusUnknown Status = "unknown"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// NeedsAction returns true if this status requires execution.
func (s Status) NeedsAction() bool {
	switch s {
	case StatusNeedsApply, StatusUnknown:
		return true
	case StatusSatisfied:
		return false
	}
	return false
}
