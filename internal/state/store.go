// Package state persists the controller's last-known device state plus
// the measurement and bus-log archives.
package state

import (
	"context"

	"github.com/hydroplant/master-controller/internal/payload"
)

// Store is the persistence surface the controller depends on. The
// last-known state is one map of unique id to value, replaced wholesale.
type Store interface {
	LoadState(ctx context.Context) (map[string]any, error)
	SaveState(ctx context.Context, snapshot map[string]any) error

	AddMeasurement(ctx context.Context, nodeID, sensorID string, data payload.Payload) error
	AddLog(ctx context.Context, nodeID, sensorID string, data payload.Payload) error
}
