// Package controller is the router shell of the master controller: it
// owns the bus subscription set, keeps the topology in sync with device
// announcements and disconnects, forwards GUI commands, applies receipts
// and persists last-known state.
package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hydroplant/master-controller/internal/bus"
	"github.com/hydroplant/master-controller/internal/buslog"
	"github.com/hydroplant/master-controller/internal/payload"
	"github.com/hydroplant/master-controller/internal/plant"
	"github.com/hydroplant/master-controller/internal/platform/logger"
	"github.com/hydroplant/master-controller/internal/state"
	"github.com/hydroplant/master-controller/internal/topics"
)

// RestorePolicy decides what command, if any, is republished for a
// reconnecting device whose unique id has persisted state.
type RestorePolicy string

const (
	RestoreOff  RestorePolicy = "off"
	RestoreZero RestorePolicy = "zero" // deployed behavior: drive back to 0
	RestoreLast RestorePolicy = "last"
)

// Toggler is the scheduler handle the router holds; the autonomy toggle
// topic flips it.
type Toggler interface {
	Toggle(on bool)
}

// Controller routes every inbound bus message. All topology mutation
// happens on the bus delivery goroutine.
type Controller struct {
	log     *logger.Logger
	bus     bus.Bus
	system  *plant.System
	store   state.Store
	guiLog  *buslog.Publisher
	restore RestorePolicy

	autonomy Toggler
}

func New(log *logger.Logger, b bus.Bus, system *plant.System, store state.Store, restore RestorePolicy) *Controller {
	c := &Controller{
		log:     log.With("component", "Controller"),
		bus:     b,
		system:  system,
		store:   store,
		restore: restore,
	}
	c.guiLog = buslog.New(c.Publish)
	b.OnMessage(c.handleMessage)
	b.OnConnect(c.subscribeAll)
	return c
}

// SetAutonomy wires the scheduler handle; the router only ever toggles
// it.
func (c *Controller) SetAutonomy(t Toggler) {
	c.autonomy = t
}

// Publish serializes a payload (transport keys stripped) and sends it.
// Also the Publisher the autonomy scheduler and the GUI log sink use.
func (c *Controller) Publish(topic string, data payload.Payload) error {
	raw, err := data.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := c.bus.Publish(topic, raw); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// publishJSON sends a non-object value (topic lists are arrays).
func (c *Controller) publishJSON(topic string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := c.bus.Publish(topic, raw); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// subscribeAll rebuilds the full subscription set: the fixed control
// topics plus both topics of every live entity. Re-fired on every
// reconnect.
func (c *Controller) subscribeAll() {
	fixed := []string{
		topics.Device,
		topics.AutonomyToggle,
		topics.IsReady,
		topics.DisconnectedDevice,
		topics.Log,
		topics.Log + "/#",
		topics.Measurement + "/#",
	}
	if err := c.bus.Subscribe(fixed...); err != nil {
		c.log.Error("subscribe control topics failed", "error", err)
	}
	for _, e := range c.system.Entities() {
		if err := c.bus.Subscribe(e.SubscribeTopics()...); err != nil {
			c.log.Error("resubscribe entity failed", "unique_id", e.UniqueID, "error", err)
		}
	}
	c.log.Info("subscriptions established")
}

// handleMessage dispatches one inbound message. A failure on one message
// must never take the bus worker down, so the whole path sits behind a
// recover.
func (c *Controller) handleMessage(topic string, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("message handler panicked", "topic", topic, "panic", r)
		}
	}()

	data := payload.Decode(raw)
	kind := topics.Classify(topic)
	c.log.Debug("message", "topic", topic, "kind", kind.String())

	switch kind {
	case topics.KindIsReady:
		c.handleIsReady()
	case topics.KindDeviceAnnounce:
		c.handleAnnounce(data)
	case topics.KindAutonomyToggle:
		c.handleAutonomyToggle(data)
	case topics.KindGUICommand:
		c.handleGUICommand(topic, data)
	case topics.KindReceipt:
		c.handleReceipt(topic, data)
	case topics.KindDisconnectDevice:
		c.handleDisconnect(data)
	case topics.KindMeasurement:
		c.handleMeasurement(topic, data)
	case topics.KindLog:
		c.handleBusLog(topic, data)
	default:
		c.log.Debug("ignoring message", "topic", topic)
	}
}

// handleIsReady answers a device probing for the controller with the
// ready beacon.
func (c *Controller) handleIsReady() {
	if err := c.Publish(topics.Ready, payload.Payload{}); err != nil {
		c.log.Error("publish ready beacon failed", "error", err)
	}
}

// handleAnnounce builds topology from a device announcement, subscribes
// to each new entity and refreshes the GUI. The gui pseudo-device
// carries no topology and only triggers the refresh.
func (c *Controller) handleAnnounce(data payload.Payload) {
	deviceID, _ := data["device_id"].(string)
	if deviceID == plant.GUIDeviceID {
		c.log.Info("gui announced")
		c.publishGUITopics()
		c.publishGUISync()
		return
	}

	created, err := c.system.ApplyAnnouncement(data)
	if err != nil {
		c.log.Error("device announcement rejected", "device_id", deviceID, "error", err)
		_ = c.guiLog.Warning("device announcement rejected: "+err.Error(), deviceID, "")
		return
	}
	for _, e := range created {
		if err := c.bus.Subscribe(e.SubscribeTopics()...); err != nil {
			c.log.Error("subscribe entity failed", "unique_id", e.UniqueID, "error", err)
		}
		c.log.Info("entity joined", "unique_id", e.UniqueID, "kind", e.Kind.String())
	}

	c.publishGUITopics()
	c.publishGUISync()
	c.restoreState(created)
}

// restoreState optionally republishes a command for each newly announced
// unique id with persisted state.
func (c *Controller) restoreState(created []*plant.Entity) {
	if c.restore == RestoreOff || len(created) == 0 {
		return
	}
	stored, err := c.store.LoadState(context.Background())
	if err != nil {
		c.log.Warn("load persisted state failed", "error", err)
		return
	}

	for _, e := range created {
		last, ok := stored[e.UniqueID]
		if !ok || last == nil {
			continue
		}
		value := any(0)
		if c.restore == RestoreLast {
			value = last
		}
		topic, command := e.BuildCommand(payload.Payload{"value": value})
		if err := c.Publish(topic, command); err != nil {
			c.log.Error("restore command failed", "unique_id", e.UniqueID, "error", err)
		}
	}
}

// handleAutonomyToggle flips the scheduler on value 1/0.
func (c *Controller) handleAutonomyToggle(data payload.Payload) {
	if c.autonomy == nil {
		return
	}
	value, ok := data.Value()
	if !ok {
		c.log.Warn("autonomy toggle without value")
		return
	}
	c.autonomy.Toggle(payload.ValuesEqual(value, 1))
}

// handleGUICommand resolves the target entity and forwards the command
// to its device topic.
func (c *Controller) handleGUICommand(topic string, data payload.Payload) {
	uniqueID, err := topics.UniqueID(topic)
	if err != nil {
		c.log.Error("malformed gui command topic", "topic", topic, "error", err)
		return
	}
	entity := c.system.EntityByUniqueID(uniqueID)
	if entity == nil {
		c.log.Warn("gui command for unknown entity", "unique_id", uniqueID)
		_ = c.guiLog.Warning(uniqueID+" does not exist", topics.Node(uniqueID), topics.Floor(uniqueID))
		return
	}

	commandTopic, command := entity.BuildCommand(data.Sanitized())
	if err := c.Publish(commandTopic, command); err != nil {
		c.log.Error("forward gui command failed", "unique_id", uniqueID, "error", err)
	}
}

// handleReceipt applies a device acknowledgment to the topology and, when
// it carries a value, persists the new state snapshot and refreshes the
// GUI.
func (c *Controller) handleReceipt(topic string, data payload.Payload) {
	entity := c.system.EntityByTopic(topic)
	if entity == nil {
		c.log.Warn("receipt for unknown entity", "topic", topic)
		return
	}
	entity.SetData(data)
	c.log.Debug("receipt applied", "unique_id", entity.UniqueID, "value", entity.Value())

	if entity.Value() == nil {
		return
	}
	c.persistState()
	c.publishGUISync()
}

// handleDisconnect removes every entity of the disconnected node,
// unsubscribes their topics and refreshes the GUI.
func (c *Controller) handleDisconnect(data payload.Payload) {
	deviceID, _ := data["device_id"].(string)
	if deviceID == "" {
		c.log.Warn("disconnect notice without device_id")
		return
	}
	floor, _ := data["floor"].(string)

	unsubscribe := c.system.RemoveNode(deviceID, floor)
	if len(unsubscribe) == 0 {
		c.log.Debug("disconnect for unknown node", "device_id", deviceID, "floor", floor)
		return
	}
	if err := c.bus.Unsubscribe(unsubscribe...); err != nil {
		c.log.Error("unsubscribe failed", "device_id", deviceID, "error", err)
	}
	c.log.Info("node disconnected", "device_id", deviceID, "floor", floor, "topics", len(unsubscribe))

	c.publishGUITopics()
	c.publishGUISync()
}

// handleMeasurement archives a sensor measurement.
func (c *Controller) handleMeasurement(topic string, data payload.Payload) {
	nodeID := topics.Node(topic)
	sensorID := topics.Part(topic)
	if err := c.store.AddMeasurement(context.Background(), nodeID, sensorID, data); err != nil {
		c.log.Warn("persist measurement failed", "topic", topic, "error", err)
	}
}

// handleBusLog forwards a bus-wide log line to persistence.
func (c *Controller) handleBusLog(topic string, data payload.Payload) {
	nodeID := topics.Node(topic)
	partID := topics.Part(topic)
	if err := c.store.AddLog(context.Background(), nodeID, partID, data); err != nil {
		c.log.Warn("persist bus log failed", "topic", topic, "error", err)
	}
}

func (c *Controller) publishGUITopics() {
	guiTopics := c.system.GUITopics()
	if guiTopics == nil {
		guiTopics = []string{}
	}
	if err := c.publishJSON(topics.GUITopics, guiTopics); err != nil {
		c.log.Error("publish gui topics failed", "error", err)
	}
}

func (c *Controller) publishGUISync() {
	if err := c.Publish(topics.GUISync, payload.Payload(c.system.GUISync())); err != nil {
		c.log.Error("publish gui sync failed", "error", err)
	}
}

func (c *Controller) persistState() {
	if err := c.store.SaveState(context.Background(), c.system.StateSnapshot()); err != nil {
		c.log.Warn("persist state failed", "error", err)
	}
}
