package schema

import "fmt"

const (
	Planned    = "planned"
	InProgress = "in_progress"
	Paused     = "paused"
	Completed  = "completed"
	Cancelled  = "cancelled"
)

var statusTransitions = map[string][]string{
	Planned:    {InProgress, Cancelled},
	InProgress: {Paused, Completed, Cancelled},
	Paused:     {InProgress, Cancelled},
	Completed:  {},
	Cancelled:  {},
}

func CheckValidStatus(status string) error {
	if _, ok := statusTransitions[status]; ok {
		return nil
	}
	return fmt.Errorf("invalid status '%v'", status)
}

// NormalizeStatus maps an empty stored value to the initial state. Rows written
// before the status column existed have no value, they behave as planned.
func NormalizeStatus(status string) string {
	if status == "" {
		return Planned
	}
	return status
}

// AllowedTransitions returns the target states reachable from the given state.
// A state is never reachable from itself.
func AllowedTransitions(status string) []string {
	return statusTransitions[NormalizeStatus(status)]
}

func CanTransition(current, next string) bool {
	for _, allowed := range AllowedTransitions(current) {
		if allowed == next {
			return true
		}
	}
	return false
}
