package autonomy

import "github.com/google/uuid"

// JobState tracks a job through the queue. Terminal states (done,
// killed) only ever trigger removal.
type JobState int

const (
	StateUnchecked JobState = iota
	StateQueued
	StatePending
	StateDone
	StateKilled
)

func (s JobState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StatePending:
		return "pending"
	case StateDone:
		return "done"
	case StateKilled:
		return "killed"
	default:
		return "unchecked"
	}
}

// Priority is informational; the queue is strictly FIFO.
type Priority int

const (
	PriorityDefault Priority = 1
	PriorityMedium  Priority = 2
	PriorityHigh    Priority = 3
)

// Job is an ordered bundle of steps executed as a unit, one step at a
// time.
type Job struct {
	ID       string
	Steps    []*Step
	Priority Priority

	state JobState
	at    int
}

func NewJob(steps []*Step) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Steps:    steps,
		Priority: PriorityDefault,
		state:    StateUnchecked,
	}
}

func (j *Job) State() JobState {
	return j.state
}

func (j *Job) SetState(s JobState) {
	j.state = s
}

func (j *Job) Is(s JobState) bool {
	return j.state == s
}

// CurrentStep returns the step the cursor points at, nil once all steps
// are completed.
func (j *Job) CurrentStep() *Step {
	if j.at >= len(j.Steps) {
		return nil
	}
	return j.Steps[j.at]
}

// Advance moves the cursor past the current step.
func (j *Job) Advance() {
	j.at++
}

// DoneWithSteps reports whether every step has completed.
func (j *Job) DoneWithSteps() bool {
	return j.at >= len(j.Steps)
}
