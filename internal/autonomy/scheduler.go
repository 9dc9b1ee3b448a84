// Package autonomy runs the controller's job scheduler: periodic interval
// checks enqueue jobs, and a cooperative tick loop advances one step of
// the head job at a time, confirming each step against device receipts.
package autonomy

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hydroplant/master-controller/internal/payload"
	"github.com/hydroplant/master-controller/internal/plant"
	"github.com/hydroplant/master-controller/internal/platform/logger"
)

// Publisher sends one payload to a bus topic.
type Publisher func(topic string, data payload.Payload) error

// TopologyReader is the scheduler's read-only view of the installation.
type TopologyReader interface {
	Actuators() []*plant.Entity
	EntityByUniqueID(uniqueID string) *plant.Entity
	EntityByTopic(topic string) *plant.Entity
}

// Fixed logic-controller endpoints the interval checks look for.
const (
	plantInformationID = "floor_1/plant_information_node/plant_information"
	plantMoverID       = "floor_1/plant_mover_node/plant_mover"
)

const (
	moveDeadline  = 240 * time.Second
	inspectSettle = 10 * time.Second
)

// movementProgram is the fixed migration run: far slots first, so each
// destination is vacated before its source moves.
var movementProgram = [][2]int{{8, 12}, {7, 11}, {6, 10}, {5, 9}}

// Options tunes the scheduler. Zero values fall back to the deployed
// defaults; the function fields exist so tests can inject clocks.
type Options struct {
	Tick          time.Duration // loop period
	IntervalCheck time.Duration // spacing between interval-check passes
	DayStart      int           // lights on when DayStart < hour < DayEnd
	DayEnd        int

	Now   func() time.Time
	Hour  func() int // local wall-clock hour
	Sleep func(time.Duration)
}

func (o Options) withDefaults() Options {
	if o.Tick <= 0 {
		o.Tick = time.Second
	}
	if o.IntervalCheck <= 0 {
		o.IntervalCheck = time.Minute
	}
	if o.DayStart == 0 && o.DayEnd == 0 {
		o.DayStart, o.DayEnd = 7, 21
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Hour == nil {
		o.Hour = func() int { return time.Now().Hour() }
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return o
}

// Scheduler owns the FIFO job queue. It talks to the rest of the
// controller only through the Publisher func and the TopologyReader.
type Scheduler struct {
	log     *logger.Logger
	topo    TopologyReader
	publish Publisher
	opts    Options

	enabled   atomic.Bool
	jobs      []*Job
	lastCheck time.Time
	inspected bool // once-per-session latches
	moved     bool
}

func New(log *logger.Logger, topo TopologyReader, publish Publisher, opts Options) *Scheduler {
	s := &Scheduler{
		log:     log.With("component", "Autonomy"),
		topo:    topo,
		publish: publish,
		opts:    opts.withDefaults(),
	}
	s.enabled.Store(true)
	return s
}

// Toggle enables or disables the scheduler. Disabled ticks neither check
// intervals nor advance jobs.
func (s *Scheduler) Toggle(on bool) {
	s.enabled.Store(on)
	if on {
		s.log.Info("autonomy enabled")
		return
	}
	s.log.Warn("autonomy disabled")
}

// Enabled reports the current toggle state.
func (s *Scheduler) Enabled() bool {
	return s.enabled.Load()
}

// Run drives the tick loop until the context is cancelled. A panic in
// one tick is logged and must not take the loop down.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	s.log.Info("autonomy running", "tick", s.opts.Tick, "interval_check", s.opts.IntervalCheck)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("tick panicked", "panic", r)
					}
				}()
				s.tick()
			}()
		}
	}
}

// tick is one pass of the cooperative loop: refresh now, run due
// interval checks, advance the head job.
func (s *Scheduler) tick() {
	if !s.enabled.Load() {
		return
	}
	now := s.opts.Now()

	if !now.Before(s.lastCheck.Add(s.opts.IntervalCheck)) {
		s.runIntervalChecks(now)
		s.lastCheck = now
	}
	s.advance(now)
}

func (s *Scheduler) runIntervalChecks(now time.Time) {
	s.checkLights(now)
	s.checkPlantInspection(now)
	s.checkPlantMovement(now)
	s.checkWater(now)
}

// checkLights drives every LED to its day/night value. Both bounds are
// strict: at exactly DayStart or DayEnd the lights are off.
func (s *Scheduler) checkLights(now time.Time) {
	hour := s.opts.Hour()
	value := 0
	if s.opts.DayStart < hour && hour < s.opts.DayEnd {
		value = 1
	}

	for _, actuator := range s.topo.Actuators() {
		if !actuator.Is(plant.KindLED) {
			continue
		}
		topic, data := actuator.BuildCommand(payload.Payload{"value": value})
		s.AddJob([]*Step{NewStep(topic, data, now)})
	}
}

// checkPlantInspection enqueues one inspection sweep per session, moving
// the camera target through positions 5..8.
func (s *Scheduler) checkPlantInspection(now time.Time) {
	if s.inspected {
		return
	}
	inspector := s.topo.EntityByUniqueID(plantInformationID)
	if inspector == nil {
		return
	}

	var steps []*Step
	for position := 5; position <= 8; position++ {
		topic, data := inspector.BuildCommand(payload.Payload{"command": "goto", "to": position})
		step := NewStep(topic, data, now)
		step.Deadline = moveDeadline
		step.Wait = inspectSettle
		steps = append(steps, step)
	}
	s.AddJob(steps)
	s.inspected = true
}

// checkPlantMovement enqueues the fixed migration program once per
// session when the plant mover is present.
func (s *Scheduler) checkPlantMovement(now time.Time) {
	if s.moved {
		return
	}
	mover := s.topo.EntityByUniqueID(plantMoverID)
	if mover == nil {
		return
	}

	var steps []*Step
	for _, move := range movementProgram {
		topic, data := mover.BuildCommand(payload.Payload{"command": "goto", "from": move[0], "to": move[1]})
		step := NewStep(topic, data, now)
		step.Deadline = moveDeadline
		steps = append(steps, step)
	}
	s.AddJob(steps)
	s.moved = true
}

// checkWater is a placeholder: sensor-driven water rules are persisted
// upstream but not consumed here yet.
func (s *Scheduler) checkWater(time.Time) {}

// AddJob filters candidate steps and appends a queued job when any
// survive. A step is dropped when its target entity already holds the
// requested value, or when an already-queued job carries a step with the
// same canonical key.
func (s *Scheduler) AddJob(steps []*Step) {
	queued := map[string]bool{}
	for _, job := range s.jobs {
		if !job.Is(StateQueued) {
			continue
		}
		for _, step := range job.Steps {
			queued[step.CanonicalKey()] = true
		}
	}

	var keep []*Step
	for _, step := range steps {
		if s.alreadyHasValue(step) {
			s.log.Debug("dropping redundant step", "topic", step.Topic)
			continue
		}
		if queued[step.CanonicalKey()] {
			s.log.Debug("dropping duplicate step", "topic", step.Topic)
			continue
		}
		keep = append(keep, step)
	}
	if len(keep) == 0 {
		return
	}

	job := NewJob(keep)
	job.SetState(StateQueued)
	s.jobs = append(s.jobs, job)
	s.log.Info("added job", "job_id", job.ID, "steps", len(keep))
}

// alreadyHasValue reports whether the step's target entity already holds
// the requested value. A never-reported entity (nil value) or a step
// without a value field is never redundant.
func (s *Scheduler) alreadyHasValue(step *Step) bool {
	value, ok := step.Data.Value()
	if !ok || value == nil {
		return false
	}
	entity := s.topo.EntityByTopic(step.Topic)
	if entity == nil {
		return false
	}
	current := entity.Value()
	if current == nil {
		return false
	}
	return payload.ValuesEqual(value, current)
}

// advance progresses the head job by at most one action: remove a
// terminal job, promote a queued one, publish the current step, kill on
// deadline, or complete a confirmed step.
func (s *Scheduler) advance(now time.Time) {
	if len(s.jobs) == 0 {
		return
	}
	job := s.jobs[0]

	if job.Is(StateKilled) || job.Is(StateDone) {
		s.jobs = s.jobs[1:]
		s.log.Debug("removed job", "job_id", job.ID, "state", job.State().String())
		return
	}

	if job.Is(StateQueued) {
		job.SetState(StatePending)
	}
	if !job.Is(StatePending) {
		return
	}

	if job.DoneWithSteps() {
		job.SetState(StateDone)
		s.log.Info("job done", "job_id", job.ID)
		return
	}
	step := job.CurrentStep()

	if !step.HasSent() {
		if err := s.publish(step.Topic, step.Data); err != nil {
			s.log.Error("publish step failed", "topic", step.Topic, "error", err)
		}
		step.MarkSent(now)
		return
	}

	if step.DeadlineExceeded(now) {
		job.SetState(StateKilled)
		s.log.Warn("step deadline exceeded, killing job",
			"job_id", job.ID, "topic", step.Topic, "deadline", step.Deadline)
		return
	}

	if s.stepConfirmed(step) {
		s.log.Debug("step confirmed", "topic", step.Topic)
		if step.Wait > 0 {
			s.opts.Sleep(step.Wait)
		}
		job.Advance()
		return
	}
}

// stepConfirmed is the awaited-value predicate, specialized by the
// target's kind: the plant mover reports the stage it reached, the plant
// information node reports the position it reached, everything else
// echoes a value.
func (s *Scheduler) stepConfirmed(step *Step) bool {
	entity := s.topo.EntityByTopic(step.Topic)
	if entity == nil {
		return false
	}

	switch entity.Kind {
	case plant.KindPlantMover:
		to, ok := step.Data["to"]
		if !ok {
			return false
		}
		return payload.ValuesEqual(to, entity.Data()["stage"])

	case plant.KindPlantInformation:
		to, ok := step.Data["to"]
		if !ok {
			return false
		}
		return payload.ValuesEqual(to, entity.Data()["to"])

	default:
		want, ok := step.Data.Value()
		if !ok || want == nil {
			return false
		}
		got := entity.Value()
		if got == nil {
			return false
		}
		return payload.ValuesEqual(want, got)
	}
}
