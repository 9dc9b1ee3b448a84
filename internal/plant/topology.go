// Package plant holds the authoritative model of the physical
// installation: floors, stages and the device endpoints attached to them.
package plant

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hydroplant/master-controller/internal/topics"
)

// ErrUnknownEntity reports a lookup that resolved to nothing.
var ErrUnknownEntity = errors.New("unknown entity")

// Stage owns the actuators of one physical stage.
type Stage struct {
	Name      string
	actuators []*Entity
}

// Floor owns its stages and logic controllers. Floor and stage name sets
// are fixed after construction; only the entity lists mutate.
type Floor struct {
	Name             string
	stages           []*Stage
	logicControllers []*Entity
}

func NewFloor(name string, stageNames ...string) *Floor {
	f := &Floor{Name: name}
	for _, sn := range stageNames {
		f.stages = append(f.stages, &Stage{Name: sn})
	}
	return f
}

func (f *Floor) stageByName(name string) *Stage {
	for _, s := range f.stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// System is the tree of floors, stages and entities. A single RWMutex
// covers the whole tree: the bus worker writes, the autonomy loop reads.
type System struct {
	mu     sync.RWMutex
	floors []*Floor
}

func NewSystem(floors ...*Floor) *System {
	return &System{floors: floors}
}

// Default builds the installation as deployed: three floors of three
// stages each.
func Default() *System {
	return NewSystem(
		NewFloor("floor_1", "stage_1", "stage_2", "stage_3"),
		NewFloor("floor_2", "stage_1", "stage_2", "stage_3"),
		NewFloor("floor_3", "stage_1", "stage_2", "stage_3"),
	)
}

// AddLogicController attaches a logic controller to the floor parsed from
// its unique id. Adding an already-known unique id is a no-op that
// returns the existing entity and created=false.
func (s *System) AddLogicController(uniqueID string) (*Entity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.lookup(uniqueID); e != nil {
		return e, false, nil
	}
	entity, err := NewEntity(uniqueID)
	if err != nil {
		return nil, false, err
	}
	floor := s.floorByName(entity.Floor)
	if floor == nil {
		return nil, false, fmt.Errorf("add logic controller %s: no floor %q", uniqueID, entity.Floor)
	}
	floor.logicControllers = append(floor.logicControllers, entity)
	return entity, true, nil
}

// AddActuator attaches an actuator to the stage parsed from its unique
// id. Adding an already-known unique id is a no-op.
func (s *System) AddActuator(uniqueID string) (*Entity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.lookup(uniqueID); e != nil {
		return e, false, nil
	}
	entity, err := NewEntity(uniqueID)
	if err != nil {
		return nil, false, err
	}
	floor := s.floorByName(entity.Floor)
	if floor == nil {
		return nil, false, fmt.Errorf("add actuator %s: no floor %q", uniqueID, entity.Floor)
	}
	stage := floor.stageByName(entity.Stage)
	if stage == nil {
		return nil, false, fmt.Errorf("add actuator %s: no stage %q on %s", uniqueID, entity.Stage, floor.Name)
	}
	stage.actuators = append(stage.actuators, entity)
	return entity, true, nil
}

// RemoveNode deletes every entity whose node id matches, on every floor
// or only the named one, and returns the bus topics that should be
// unsubscribed. Removal works on snapshots so one sweep never trips over
// its own mutation.
func (s *System) RemoveNode(nodeID, floorName string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unsubscribe []string
	for _, floor := range s.floors {
		if floorName != "" && floorName != floor.Name {
			continue
		}

		kept := floor.logicControllers[:0:0]
		for _, lc := range floor.logicControllers {
			if lc.Node == nodeID {
				unsubscribe = append(unsubscribe, lc.SubscribeTopics()...)
				continue
			}
			kept = append(kept, lc)
		}
		floor.logicControllers = kept

		for _, stage := range floor.stages {
			keptActuators := stage.actuators[:0:0]
			for _, a := range stage.actuators {
				if a.Node == nodeID {
					unsubscribe = append(unsubscribe, a.SubscribeTopics()...)
					continue
				}
				keptActuators = append(keptActuators, a)
			}
			stage.actuators = keptActuators
		}
	}
	return unsubscribe
}

// EntityByUniqueID returns the entity with the given unique id, or nil.
func (s *System) EntityByUniqueID(uniqueID string) *Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(uniqueID)
}

// EntityByTopic resolves a command, receipt or gui_command topic to its
// entity. A trailing /receipt is stripped first.
func (s *System) EntityByTopic(topic string) *Entity {
	uniqueID, err := topics.UniqueID(topics.StripReceipt(topic))
	if err != nil {
		return nil
	}
	return s.EntityByUniqueID(uniqueID)
}

// Actuators lists every actuator in floor, stage, insertion order.
func (s *System) Actuators() []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entity
	for _, floor := range s.floors {
		for _, stage := range floor.stages {
			out = append(out, stage.actuators...)
		}
	}
	return out
}

// LogicControllers lists every logic controller across all floors.
func (s *System) LogicControllers() []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entity
	for _, floor := range s.floors {
		out = append(out, floor.logicControllers...)
	}
	return out
}

// Entities lists every live entity, logic controllers first per floor.
func (s *System) Entities() []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entity
	for _, floor := range s.floors {
		out = append(out, floor.logicControllers...)
		for _, stage := range floor.stages {
			out = append(out, stage.actuators...)
		}
	}
	return out
}

// GUITopics lists every entity's gui_command topic in insertion order.
func (s *System) GUITopics() []string {
	var out []string
	for _, e := range s.Entities() {
		out = append(out, e.GUICommand)
	}
	return out
}

// GUISync maps every entity's gui_command topic to its last observed
// value, logic controllers included.
func (s *System) GUISync() map[string]any {
	out := map[string]any{}
	for _, e := range s.Entities() {
		out[e.GUICommand] = e.Value()
	}
	return out
}

// StateSnapshot maps every actuator's unique id to its last observed
// value, the shape persisted as the last-known state document.
func (s *System) StateSnapshot() map[string]any {
	out := map[string]any{}
	for _, a := range s.Actuators() {
		out[a.UniqueID] = a.Value()
	}
	return out
}

func (s *System) floorByName(name string) *Floor {
	for _, f := range s.floors {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// lookup must be called with the lock held.
func (s *System) lookup(uniqueID string) *Entity {
	for _, floor := range s.floors {
		for _, lc := range floor.logicControllers {
			if lc.UniqueID == uniqueID {
				return lc
			}
		}
		for _, stage := range floor.stages {
			for _, a := range stage.actuators {
				if a.UniqueID == uniqueID {
					return a
				}
			}
		}
	}
	return nil
}
