package controller

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroplant/master-controller/internal/bus"
	"github.com/hydroplant/master-controller/internal/payload"
	"github.com/hydroplant/master-controller/internal/plant"
	"github.com/hydroplant/master-controller/internal/platform/logger"
	"github.com/hydroplant/master-controller/internal/state"
	"github.com/hydroplant/master-controller/internal/topics"
)

type fakeToggler struct {
	calls []bool
}

func (f *fakeToggler) Toggle(on bool) {
	f.calls = append(f.calls, on)
}

type fixture struct {
	bus     *bus.Loopback
	system  *plant.System
	store   *state.Memory
	toggler *fakeToggler
	ctrl    *Controller
}

func newFixture(t *testing.T, policy RestorePolicy) *fixture {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)
	t.Cleanup(log.Sync)

	f := &fixture{
		bus:     bus.NewLoopback(),
		system:  plant.Default(),
		store:   state.NewMemory(),
		toggler: &fakeToggler{},
	}
	f.ctrl = New(log, f.bus, f.system, f.store, policy)
	f.ctrl.SetAutonomy(f.toggler)
	require.NoError(t, f.bus.Connect(context.Background()))
	return f
}

func (f *fixture) inject(t *testing.T, topic string, body string) {
	t.Helper()
	f.bus.Inject(topic, []byte(body))
}

func (f *fixture) announceClimateLED(t *testing.T) *plant.Entity {
	t.Helper()
	f.inject(t, topics.Device, `{
		"device_id": "climate_node",
		"floor_1": {"stage_1": {"actuators": ["LED"]}}
	}`)
	led := f.system.EntityByUniqueID("floor_1/stage_1/climate_node/LED")
	require.NotNil(t, led)
	return led
}

func decodeLast(t *testing.T, messages []bus.Message) payload.Payload {
	t.Helper()
	require.NotEmpty(t, messages)
	return payload.Decode(messages[len(messages)-1].Raw)
}

func TestConnectSubscribesControlTopics(t *testing.T) {
	f := newFixture(t, RestoreOff)

	for _, topic := range []string{
		topics.Device,
		topics.AutonomyToggle,
		topics.IsReady,
		topics.DisconnectedDevice,
		topics.Log,
	} {
		assert.True(t, f.bus.Subscribed(topic), topic)
	}
}

func TestIsReadyAnswersWithBeacon(t *testing.T) {
	f := newFixture(t, RestoreOff)

	f.inject(t, topics.IsReady, `{}`)

	beacons := f.bus.PublishedTo(topics.Ready)
	require.Len(t, beacons, 1)
	assert.JSONEq(t, `{}`, string(beacons[0].Raw))
}

func TestAnnounceCreatesEntitiesAndSubscribes(t *testing.T) {
	f := newFixture(t, RestoreOff)

	led := f.announceClimateLED(t)

	assert.True(t, f.bus.Subscribed(led.GUICommand))
	assert.True(t, f.bus.Subscribed(led.Receipt))

	topicsMsg := f.bus.PublishedTo(topics.GUITopics)
	require.Len(t, topicsMsg, 1)
	var guiTopics []string
	require.NoError(t, json.Unmarshal(topicsMsg[0].Raw, &guiTopics))
	assert.Equal(t, []string{led.GUICommand}, guiTopics)

	syncMsg := f.bus.PublishedTo(topics.GUISync)
	require.Len(t, syncMsg, 1)
	sync := decodeLast(t, syncMsg)
	assert.Contains(t, sync, led.GUICommand)
}

func TestAnnounceTwiceSubscribesOnce(t *testing.T) {
	f := newFixture(t, RestoreOff)

	f.announceClimateLED(t)
	before := len(f.bus.Published())
	f.announceClimateLED(t)

	// second announcement republishes the snapshots but nothing else
	assert.Len(t, f.bus.Published(), before+2)
	assert.Len(t, f.system.Entities(), 1)
}

func TestGUIAnnouncementOnlyRefreshes(t *testing.T) {
	f := newFixture(t, RestoreOff)

	f.inject(t, topics.Device, `{"device_id": "gui"}`)

	assert.Len(t, f.bus.PublishedTo(topics.GUITopics), 1)
	assert.Len(t, f.bus.PublishedTo(topics.GUISync), 1)
	assert.Empty(t, f.system.Entities())
}

func TestMalformedAnnouncementWarnsOperator(t *testing.T) {
	f := newFixture(t, RestoreOff)

	f.inject(t, topics.Device, `this is not json`)

	warnings := f.bus.PublishedTo(topics.GUILog)
	require.Len(t, warnings, 1)
	warning := decodeLast(t, warnings)
	assert.Equal(t, "warning", warning["level"])
	assert.Empty(t, f.system.Entities())
}

func TestRestoreZeroRepublishesZeroCommand(t *testing.T) {
	f := newFixture(t, RestoreZero)
	uniqueID := "floor_1/stage_1/climate_node/LED"
	require.NoError(t, f.store.SaveState(context.Background(),
		map[string]any{uniqueID: float64(1)}))

	led := f.announceClimateLED(t)

	commands := f.bus.PublishedTo(led.Command)
	require.Len(t, commands, 1)
	command := decodeLast(t, commands)
	assert.Equal(t, float64(0), command["value"])
}

func TestRestoreLastRepublishesStoredValue(t *testing.T) {
	f := newFixture(t, RestoreLast)
	uniqueID := "floor_1/stage_1/climate_node/LED"
	require.NoError(t, f.store.SaveState(context.Background(),
		map[string]any{uniqueID: float64(1)}))

	led := f.announceClimateLED(t)

	command := decodeLast(t, f.bus.PublishedTo(led.Command))
	assert.Equal(t, float64(1), command["value"])
}

func TestRestoreOffPublishesNoCommand(t *testing.T) {
	f := newFixture(t, RestoreOff)
	require.NoError(t, f.store.SaveState(context.Background(),
		map[string]any{"floor_1/stage_1/climate_node/LED": float64(1)}))

	led := f.announceClimateLED(t)

	assert.Empty(t, f.bus.PublishedTo(led.Command))
}

func TestGUICommandForwarded(t *testing.T) {
	f := newFixture(t, RestoreOff)
	led := f.announceClimateLED(t)

	f.inject(t, led.GUICommand, `{"value": 1, "time": 1681293600, "status": "x"}`)

	commands := f.bus.PublishedTo(led.Command)
	require.Len(t, commands, 1)
	command := decodeLast(t, commands)
	assert.Equal(t, float64(1), command["value"])
	assert.Equal(t, "climate_node", command["device_id"])
	assert.Equal(t, "LED", command["id"])
	assert.Equal(t, "floor_1", command["floor"])
	assert.Equal(t, "stage_1", command["stage"])
	// transport keys never travel outbound
	assert.NotContains(t, command, "time")
	assert.NotContains(t, command, "status")
}

func TestGUICommandUnknownEntityWarnsOperator(t *testing.T) {
	f := newFixture(t, RestoreOff)

	f.inject(t, "hydroplant/gui_command/floor_1/stage_1/ghost_node/LED", `{"value": 1}`)

	warnings := f.bus.PublishedTo(topics.GUILog)
	require.Len(t, warnings, 1)
	warning := decodeLast(t, warnings)
	assert.Equal(t, "warning", warning["level"])
	assert.Contains(t, warning["message"], "does not exist")
}

func TestAutonomyToggle(t *testing.T) {
	f := newFixture(t, RestoreOff)

	f.inject(t, topics.AutonomyToggle, `{"value": 0}`)
	f.inject(t, topics.AutonomyToggle, `{"value": 1}`)

	assert.Equal(t, []bool{false, true}, f.toggler.calls)
}

func TestReceiptUpdatesStateAndSyncsGUI(t *testing.T) {
	f := newFixture(t, RestoreOff)
	led := f.announceClimateLED(t)
	f.bus.Reset()

	f.inject(t, led.Receipt, `{"value": 1}`)

	assert.Equal(t, float64(1), led.Value())

	stored, err := f.store.LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(1), stored[led.UniqueID])

	sync := decodeLast(t, f.bus.PublishedTo(topics.GUISync))
	assert.Equal(t, float64(1), sync[led.GUICommand])
}

func TestReceiptWithoutValueDoesNotPersist(t *testing.T) {
	f := newFixture(t, RestoreOff)
	led := f.announceClimateLED(t)
	f.bus.Reset()

	f.inject(t, led.Receipt, `{"status": "ok"}`)

	stored, err := f.store.LoadState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, f.bus.PublishedTo(topics.GUISync))
}

func TestReceiptForUnknownEntityDropped(t *testing.T) {
	f := newFixture(t, RestoreOff)

	f.inject(t, "hydroplant/command/floor_1/stage_1/ghost_node/LED/receipt", `{"value": 1}`)

	stored, err := f.store.LoadState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDisconnectRemovesNodeAndUnsubscribes(t *testing.T) {
	f := newFixture(t, RestoreOff)
	led := f.announceClimateLED(t)
	f.bus.Reset()

	f.inject(t, topics.DisconnectedDevice, `{"device_id": "climate_node", "floor": "floor_1"}`)

	assert.Nil(t, f.system.EntityByUniqueID(led.UniqueID))
	assert.False(t, f.bus.Subscribed(led.GUICommand))
	assert.False(t, f.bus.Subscribed(led.Receipt))

	var guiTopics []string
	msgs := f.bus.PublishedTo(topics.GUITopics)
	require.Len(t, msgs, 1)
	require.NoError(t, json.Unmarshal(msgs[0].Raw, &guiTopics))
	assert.Empty(t, guiTopics)
	assert.Len(t, f.bus.PublishedTo(topics.GUISync), 1)
}

func TestDisconnectUnknownNodeIsQuiet(t *testing.T) {
	f := newFixture(t, RestoreOff)
	f.bus.Reset()

	f.inject(t, topics.DisconnectedDevice, `{"device_id": "ghost_node"}`)

	assert.Empty(t, f.bus.Published())
}

func TestMeasurementArchived(t *testing.T) {
	f := newFixture(t, RestoreOff)

	f.inject(t, "hydroplant/measurement/floor_1/stage_1/water_node/ph", `{"value": 6.1}`)

	measurements := f.store.Measurements()
	require.Len(t, measurements, 1)
	assert.Equal(t, "water_node", measurements[0]["node_id"])
	assert.Equal(t, "ph", measurements[0]["sensor_id"])
	assert.Equal(t, 6.1, measurements[0]["value"])
}

func TestBusLogArchived(t *testing.T) {
	f := newFixture(t, RestoreOff)

	f.inject(t, "hydroplant/log/climate_node/LED", `{"message": "overheated"}`)

	logs := f.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "climate_node", logs[0]["node_id"])
	assert.Equal(t, "overheated", logs[0]["message"])
}

func TestMalformedPayloadNeverPanics(t *testing.T) {
	f := newFixture(t, RestoreOff)
	led := f.announceClimateLED(t)

	for _, topic := range []string{
		topics.Device,
		topics.AutonomyToggle,
		topics.DisconnectedDevice,
		led.GUICommand,
		led.Receipt,
	} {
		f.inject(t, topic, `}{ garbage`)
	}
	// the topology survives the garbage
	assert.NotNil(t, f.system.EntityByUniqueID(led.UniqueID))
}
