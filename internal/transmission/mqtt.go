package transmission

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/bus"
)

// Broker is the subset of the MQTT client used by MQTTConnection.
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler func(payload []byte)) error
	StatusTopic() string
	ConnectionTopic() string
	AvailabilityTopic() string
}

// MQTTConnection publishes status envelopes to the charge point's status
// topic and listens for connection status on its connection topic.
type MQTTConnection struct {
	*verification
	broker Broker
	logger *logrus.Logger
}

func NewMQTTConnection(broker Broker, b *bus.Bus, logger *logrus.Logger) *MQTTConnection {
	return &MQTTConnection{
		verification: newVerification(b, logger),
		broker:       broker,
		logger:       logger,
	}
}

// Start announces availability and subscribes to connection status. It is
// called on every (re)connect because the session is clean.
func (c *MQTTConnection) Start() error {
	if err := c.broker.Subscribe(c.broker.ConnectionTopic(), c.handle); err != nil {
		return fmt.Errorf("mqtt connection: %w", err)
	}
	if err := c.broker.Publish(c.broker.AvailabilityTopic(), []byte("online"), true); err != nil {
		return fmt.Errorf("mqtt connection: %w", err)
	}
	return nil
}

// Lost clears verification after the broker connection dropped.
func (c *MQTTConnection) Lost(err error) {
	c.drop(fmt.Sprintf("connection lost: %v", err))
}

// Send publishes payload to the status topic.
func (c *MQTTConnection) Send(ctx context.Context, payload string) error {
	if !c.IsVerified() {
		return ErrNotVerified
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.broker.Publish(c.broker.StatusTopic(), []byte(payload), false)
}
