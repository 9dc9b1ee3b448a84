package plant

import (
	"errors"
	"strings"

	"github.com/hydroplant/master-controller/internal/payload"
)

// ErrMalformedAnnouncement reports a device announcement missing its
// device_id or floor block.
var ErrMalformedAnnouncement = errors.New("malformed device announcement")

// GUIDeviceID is the pseudo-device the GUI announces itself as. It
// carries no topology; the router answers it with a topic/sync snapshot.
const GUIDeviceID = "gui"

// ApplyAnnouncement creates the entities a device announcement lists and
// returns the newly created ones, so the caller can subscribe to their
// topics exactly once. Announcements target exactly one floor:
//
//	{ "device_id": "climate_node",
//	  "floor_1": {
//	    "logic_controllers": ["plant_mover"],
//	    "stage_1": { "actuators": ["LED"], "sensors": [...] } } }
//
// Sensors are announced but not modeled; only actuators and logic
// controllers join the topology.
func (s *System) ApplyAnnouncement(p payload.Payload) ([]*Entity, error) {
	nodeID, _ := p["device_id"].(string)
	if nodeID == "" {
		return nil, ErrMalformedAnnouncement
	}

	var created []*Entity
	for key, raw := range p {
		if !strings.HasPrefix(key, "floor") {
			continue
		}
		floorName := key
		block, ok := raw.(map[string]any)
		if !ok {
			return created, ErrMalformedAnnouncement
		}

		for name, value := range block {
			switch {
			case name == "logic_controllers":
				for _, part := range stringList(value) {
					uniqueID := floorName + "/" + nodeID + "/" + part
					entity, isNew, err := s.AddLogicController(uniqueID)
					if err != nil {
						return created, err
					}
					if isNew {
						created = append(created, entity)
					}
				}

			case strings.HasPrefix(name, "stage"):
				stageBlock, ok := value.(map[string]any)
				if !ok {
					return created, ErrMalformedAnnouncement
				}
				for _, part := range stringList(stageBlock["actuators"]) {
					uniqueID := floorName + "/" + name + "/" + nodeID + "/" + part
					entity, isNew, err := s.AddActuator(uniqueID)
					if err != nil {
						return created, err
					}
					if isNew {
						created = append(created, entity)
					}
				}
			}
		}
	}
	return created, nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
