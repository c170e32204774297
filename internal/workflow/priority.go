package workflow

// WorkflowPriority orders workflows for admission. Lower level means more
// urgent: HIGH < NORMAL < LOW.
type WorkflowPriority string

const (
	PriorityHigh   WorkflowPriority = "HIGH"
	PriorityNormal WorkflowPriority = "NORMAL"
	PriorityLow    WorkflowPriority = "LOW"
)

// String returns the string representation of the priority.
func (p WorkflowPriority) String() string {
	return string(p)
}

// Level returns the numeric rank used for batch ordering. Unknown priorities
// sort after LOW.
func (p WorkflowPriority) Level() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// IsValid reports whether the priority is one of the defined values.
func (p WorkflowPriority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}
