package plant

import (
	"strings"
	"sync"

	"github.com/hydroplant/master-controller/internal/payload"
	"github.com/hydroplant/master-controller/internal/topics"
)

// Kind tags what a device endpoint is, derived from its part id. The
// autonomy scheduler specializes its receipt predicate by kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindLED
	KindStepper
	KindWaterPump
	KindValve
	KindNPK
	KindPlantMover
	KindPlantInformation
	KindWaterController
	KindPHRegulator
	KindECRegulator
)

var kindNames = map[string]Kind{
	"LED":               KindLED,
	"STEPPER":           KindStepper,
	"WATER_PUMP":        KindWaterPump,
	"VALVE":             KindValve,
	"NPK":               KindNPK,
	"PLANT_MOVER":       KindPlantMover,
	"PLANT_INFORMATION": KindPlantInformation,
	"WATER_CONTROLLER":  KindWaterController,
	"PH_REGULATOR":      KindPHRegulator,
	"EC_REGULATOR":      KindECRegulator,
}

// KindFromPart maps a part id such as "LED" or "plant_mover" to its Kind.
// Unknown parts stay routable as KindUnknown.
func KindFromPart(part string) Kind {
	return kindNames[strings.ToUpper(part)]
}

func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "UNKNOWN"
}

// Entity is one logical device endpoint: an actuator attached to a stage
// or a logic controller attached to a floor. The observed state (last
// payload and its value) is mutated by the bus worker and read by the
// autonomy loop, so it sits behind its own mutex.
type Entity struct {
	UniqueID string
	Floor    string
	Stage    string // empty for logic controllers
	Node     string
	Part     string
	Kind     Kind

	Command    string
	Receipt    string
	GUICommand string

	mu    sync.Mutex
	data  payload.Payload
	value any
}

// NewEntity builds an Entity from its unique id
// (floor_X/[stage_Y/]node_id/part_id).
func NewEntity(uniqueID string) (*Entity, error) {
	floor := topics.Floor(uniqueID)
	if floor == "" {
		return nil, topics.ErrMalformedTopic
	}
	return &Entity{
		UniqueID:   uniqueID,
		Floor:      floor,
		Stage:      topics.Stage(uniqueID),
		Node:       topics.Node(uniqueID),
		Part:       topics.Part(uniqueID),
		Kind:       KindFromPart(topics.Part(uniqueID)),
		Command:    topics.CommandTopic(uniqueID),
		Receipt:    topics.ReceiptTopic(uniqueID),
		GUICommand: topics.GUICommandTopic(uniqueID),
		data:       payload.Payload{},
	}, nil
}

// IsLogicController reports whether the entity hangs off a floor rather
// than a stage.
func (e *Entity) IsLogicController() bool {
	return e.Stage == ""
}

// Is reports whether the entity has the given kind.
func (e *Entity) Is(k Kind) bool {
	return e.Kind == k
}

// BuildCommand merges extra fields with the entity's addressing fields
// and returns the command topic plus the payload to publish.
func (e *Entity) BuildCommand(extra payload.Payload) (string, payload.Payload) {
	data := extra.Clone()
	data["device_id"] = e.Node
	data["id"] = e.Part
	data["floor"] = e.Floor
	data["stage"] = e.Stage
	return e.Command, data
}

// SetData stores the last observed payload and extracts its value field
// (stored as nil when absent).
func (e *Entity) SetData(p payload.Payload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = p.Clone()
	e.value, _ = p.Value()
}

// Value returns the last observed scalar value, nil when never reported.
func (e *Entity) Value() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Data returns a copy of the last observed payload.
func (e *Entity) Data() payload.Payload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data.Clone()
}

// SubscribeTopics lists the bus topics the controller must subscribe to
// while this entity is live.
func (e *Entity) SubscribeTopics() []string {
	return []string{e.GUICommand, e.Receipt}
}
