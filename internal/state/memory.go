package state

import (
	"context"
	"sync"

	"github.com/hydroplant/master-controller/internal/payload"
)

// Memory is a map-backed Store. It backs tests and keeps the controller
// running when the database is unreachable at boot.
type Memory struct {
	mu           sync.Mutex
	state        map[string]any
	measurements []payload.Payload
	logs         []payload.Payload
}

func NewMemory() *Memory {
	return &Memory{state: map[string]any{}}
}

func (m *Memory) LoadState(context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.state))
	for k, v := range m.state {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SaveState(_ context.Context, snapshot map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		m.state[k] = v
	}
	return nil
}

func (m *Memory) AddMeasurement(_ context.Context, nodeID, sensorID string, data payload.Payload) error {
	entry := data.Clone()
	entry["node_id"] = nodeID
	entry["sensor_id"] = sensorID
	m.mu.Lock()
	defer m.mu.Unlock()
	m.measurements = append(m.measurements, entry)
	return nil
}

func (m *Memory) AddLog(_ context.Context, nodeID, sensorID string, data payload.Payload) error {
	entry := data.Clone()
	entry["node_id"] = nodeID
	entry["sensor_id"] = sensorID
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

// Measurements returns the archived measurements, oldest first.
func (m *Memory) Measurements() []payload.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]payload.Payload(nil), m.measurements...)
}

// Logs returns the archived bus log entries, oldest first.
func (m *Memory) Logs() []payload.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]payload.Payload(nil), m.logs...)
}
