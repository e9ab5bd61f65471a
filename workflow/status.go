package workflow

// Status is the lifecycle state of a workflow instance.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusPaused, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Action is a lifecycle action applied to an instance.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
	ActionFail     Action = "fail"
)

var transitions = map[Status]map[Action]Status{
	StatusNotStarted: {
		ActionStart: StatusInProgress,
		ActionFail:  StatusFailed,
	},
	StatusInProgress: {
		ActionPause:    StatusPaused,
		ActionComplete: StatusCompleted,
		ActionFail:     StatusFailed,
	},
	StatusPaused: {
		ActionResume: StatusInProgress,
		ActionFail:   StatusFailed,
	},
}

// Transition returns the status reached by applying a to from, and false
// when the action is not allowed from that status.
func Transition(from Status, a Action) (Status, bool) {
	to, ok := transitions[from][a]
	return to, ok
}

// StepStatus is the state of one step instance.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
	StepFailed     StepStatus = "failed"
)

// Finished reports whether the step can no longer change.
func (s StepStatus) Finished() bool {
	return s == StepCompleted || s == StepSkipped || s == StepFailed
}
