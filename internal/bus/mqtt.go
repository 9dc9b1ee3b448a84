package bus

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/hydroplant/master-controller/internal/platform/logger"
	"github.com/hydroplant/master-controller/internal/topics"
)

const qosAtLeastOnce = 1

// lastWill is published by the broker when the controller drops off.
const lastWill = `{"device_id":"master_controller"}`

// MQTTConfig carries the broker endpoint.
type MQTTConfig struct {
	Host string
	Port int
}

// MQTT is the paho-backed Bus. The paho client is safe for concurrent
// publish, so both the bus worker and the autonomy loop go through it
// directly.
type MQTT struct {
	log       *logger.Logger
	client    mqtt.Client
	handler   Handler
	onConnect func()
}

func NewMQTT(log *logger.Logger, cfg MQTTConfig) *MQTT {
	b := &MQTT{log: log.With("component", "MQTTBus")}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID("master-controller-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetWill(topics.DisconnectedMaster, lastWill, qosAtLeastOnce, false)

	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		if b.handler != nil {
			b.handler(msg.Topic(), msg.Payload())
		}
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		b.log.Info("connected to broker", "host", cfg.Host, "port", cfg.Port)
		if b.onConnect != nil {
			b.onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.log.Warn("broker connection lost", "error", err)
	})

	b.client = mqtt.NewClient(opts)
	return b
}

func (b *MQTT) OnMessage(h Handler) {
	b.handler = h
}

func (b *MQTT) OnConnect(fn func()) {
	b.onConnect = fn
}

// Connect dials the broker, retrying with exponential backoff until the
// context is cancelled.
func (b *MQTT) Connect(ctx context.Context) error {
	dial := func() error {
		token := b.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			b.log.Warn("broker dial failed, retrying", "error", err)
			return err
		}
		return nil
	}
	return backoff.Retry(dial, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
}

func (b *MQTT) Publish(topic string, raw []byte) error {
	token := b.client.Publish(topic, qosAtLeastOnce, false, raw)
	token.Wait()
	return token.Error()
}

func (b *MQTT) Subscribe(topicList ...string) error {
	if len(topicList) == 0 {
		return nil
	}
	filters := make(map[string]byte, len(topicList))
	for _, t := range topicList {
		filters[t] = qosAtLeastOnce
	}
	token := b.client.SubscribeMultiple(filters, nil)
	token.Wait()
	return token.Error()
}

func (b *MQTT) Unsubscribe(topicList ...string) error {
	if len(topicList) == 0 {
		return nil
	}
	token := b.client.Unsubscribe(topicList...)
	token.Wait()
	return token.Error()
}

func (b *MQTT) Close() {
	b.client.Disconnect(250)
}
