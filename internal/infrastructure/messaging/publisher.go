package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"gym-management/internal/domain/event"
	"time"
)

const publishTimeout = 3 * time.Second

type mqttPublisher interface {
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher publishes auth events as JSON to <topic>/<event type>.
type MQTTPublisher struct {
	client mqttPublisher
	topic  string
	qos    byte
}

func NewMQTTPublisher(client mqttPublisher, topic string, qos int) *MQTTPublisher {
	if qos < 0 || qos > 2 {
		qos = 1
	}
	return &MQTTPublisher{client: client, topic: topic, qos: byte(qos)}
}

func (p *MQTTPublisher) Publish(ctx context.Context, e event.AuthEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.topic+"/"+string(e.Type), p.qos, false, body); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, event.AuthEvent) error {
	return nil
}
