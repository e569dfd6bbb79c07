package entity

import (
	"encoding/json"
	"fmt"

	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
)

// MQTTPublisher publishes entity state and availability to the Hearth MQTT
// namespace. State goes to hearth/entity/{id}/state as a JSON document;
// availability goes to hearth/entity/{id}/availability as "online" or
// "offline". Both are published retained so late subscribers see current
// values immediately.
type MQTTPublisher struct {
	client *mqtt.Client
	topics mqtt.Topics
	qos    byte
}

// NewMQTTPublisher wraps an MQTT client as a StatePublisher.
func NewMQTTPublisher(client *mqtt.Client, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, qos: qos}
}

// statePayload is the JSON document published on the state topic.
type statePayload struct {
	Value interface{} `json:"value"`
}

// PublishEntityState publishes the entity's current value.
func (p *MQTTPublisher) PublishEntityState(entityID string, value interface{}) error {
	payload, err := json.Marshal(statePayload{Value: value})
	if err != nil {
		return fmt.Errorf("encoding state for %s: %w", entityID, err)
	}
	return p.client.Publish(p.topics.EntityState(entityID), payload, p.qos, true)
}

// PublishEntityAvailability publishes "online" or "offline".
func (p *MQTTPublisher) PublishEntityAvailability(entityID string, available bool) error {
	payload := "offline"
	if available {
		payload = "online"
	}
	return p.client.PublishString(p.topics.EntityAvailability(entityID), payload, p.qos, true)
}
