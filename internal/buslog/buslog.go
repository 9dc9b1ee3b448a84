// Package buslog publishes operator-visible log lines on the GUI log
// topic, distinct from the controller's local diagnostic logging.
package buslog

import (
	"github.com/hydroplant/master-controller/internal/payload"
	"github.com/hydroplant/master-controller/internal/topics"
)

// Publish sends one payload to a bus topic; the controller injects its
// own publish func here so the sink carries no bus dependency.
type Publish func(topic string, data payload.Payload) error

type Publisher struct {
	publish Publish
}

func New(publish Publish) *Publisher {
	return &Publisher{publish: publish}
}

func (p *Publisher) Info(message, deviceID, floor string) error {
	return p.emit("info", message, deviceID, floor)
}

func (p *Publisher) Warning(message, deviceID, floor string) error {
	return p.emit("warning", message, deviceID, floor)
}

func (p *Publisher) Error(message, deviceID, floor string) error {
	return p.emit("error", message, deviceID, floor)
}

func (p *Publisher) emit(level, message, deviceID, floor string) error {
	return p.publish(topics.GUILog, payload.Payload{
		"level":     level,
		"message":   message,
		"device_id": deviceID,
		"floor":     floor,
	})
}
