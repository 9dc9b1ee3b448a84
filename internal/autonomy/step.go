package autonomy

import (
	"time"

	"github.com/hydroplant/master-controller/internal/payload"
)

// DefaultDeadline bounds how long a step may wait for its receipt before
// the whole job is killed.
const DefaultDeadline = 60 * time.Second

// Step is one pending publish on the bus plus the bookkeeping needed to
// confirm it: when it was created, whether and when it was sent, how long
// to settle after confirmation and the deadline that kills the job.
type Step struct {
	Topic     string
	Data      payload.Payload
	Wait      time.Duration // settle pause after the awaited value arrives
	Deadline  time.Duration // relative to Timestamp
	Timestamp time.Time
	SentAt    time.Time

	hasSent bool
}

// NewStep creates a step with the default deadline and no settle pause.
func NewStep(topic string, data payload.Payload, now time.Time) *Step {
	return &Step{
		Topic:     topic,
		Data:      data,
		Deadline:  DefaultDeadline,
		Timestamp: now,
	}
}

// MarkSent records that the step's command was published.
func (s *Step) MarkSent(now time.Time) {
	s.hasSent = true
	s.SentAt = now
}

// HasSent reports whether the step's command was already published.
func (s *Step) HasSent() bool {
	return s.hasSent
}

// DeadlineExceeded reports whether now is at or past the step's deadline.
func (s *Step) DeadlineExceeded(now time.Time) bool {
	return !now.Before(s.Timestamp.Add(s.Deadline))
}

// CanonicalKey renders (topic, data) deterministically; two steps with
// the same key are duplicates for queueing purposes.
func (s *Step) CanonicalKey() string {
	return payload.Canonical(s.Topic, s.Data)
}
