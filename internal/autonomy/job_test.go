package autonomy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroplant/master-controller/internal/payload"
)

func TestStepDefaults(t *testing.T) {
	now := time.Now()
	step := NewStep("topic", payload.Payload{"value": 1}, now)

	assert.Equal(t, DefaultDeadline, step.Deadline)
	assert.Equal(t, time.Duration(0), step.Wait)
	assert.Equal(t, now, step.Timestamp)
	assert.False(t, step.HasSent())
}

func TestStepMarkSent(t *testing.T) {
	now := time.Now()
	step := NewStep("topic", payload.Payload{"value": 1}, now)

	sentAt := now.Add(time.Second)
	step.MarkSent(sentAt)

	assert.True(t, step.HasSent())
	assert.Equal(t, sentAt, step.SentAt)
}

func TestStepDeadlineBoundary(t *testing.T) {
	now := time.Now()
	step := NewStep("topic", payload.Payload{"value": 1}, now)
	step.Deadline = 5 * time.Second

	assert.False(t, step.DeadlineExceeded(now))
	assert.False(t, step.DeadlineExceeded(now.Add(5*time.Second-time.Nanosecond)))
	// killed at exactly timestamp + deadline
	assert.True(t, step.DeadlineExceeded(now.Add(5*time.Second)))
	assert.True(t, step.DeadlineExceeded(now.Add(6*time.Second)))
}

func TestStepCanonicalKey(t *testing.T) {
	now := time.Now()
	a := NewStep("topic", payload.Payload{"value": 1, "floor": "floor_1"}, now)
	b := NewStep("topic", payload.Payload{"floor": "floor_1", "value": 1}, now.Add(time.Hour))
	c := NewStep("topic", payload.Payload{"value": 2}, now)

	assert.Equal(t, a.CanonicalKey(), b.CanonicalKey())
	assert.NotEqual(t, a.CanonicalKey(), c.CanonicalKey())
}

func TestJobStepCursor(t *testing.T) {
	now := time.Now()
	first := NewStep("a", payload.Payload{"value": 1}, now)
	second := NewStep("b", payload.Payload{"value": 0}, now)
	job := NewJob([]*Step{first, second})

	require.Equal(t, StateUnchecked, job.State())
	assert.Same(t, first, job.CurrentStep())
	assert.False(t, job.DoneWithSteps())

	job.Advance()
	assert.Same(t, second, job.CurrentStep())

	job.Advance()
	assert.Nil(t, job.CurrentStep())
	assert.True(t, job.DoneWithSteps())
}

func TestJobStates(t *testing.T) {
	job := NewJob(nil)

	job.SetState(StateQueued)
	assert.True(t, job.Is(StateQueued))
	job.SetState(StatePending)
	assert.True(t, job.Is(StatePending))
	job.SetState(StateDone)
	assert.Equal(t, "done", job.State().String())
}
