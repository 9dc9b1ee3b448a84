// Package bus abstracts the pub/sub message bus the controller lives on.
package bus

import "context"

// Handler receives one inbound message. The bus delivers messages one at
// a time; all controller mutations happen on that delivery goroutine.
type Handler func(topic string, raw []byte)

// Bus is the controller's view of the broker connection. OnMessage and
// OnConnect must be registered before Connect; OnConnect re-fires on
// every reconnect so the subscription set can be rebuilt.
type Bus interface {
	OnMessage(h Handler)
	OnConnect(fn func())

	Connect(ctx context.Context) error
	Publish(topic string, raw []byte) error
	Subscribe(topicList ...string) error
	Unsubscribe(topicList ...string) error
	Close()
}
