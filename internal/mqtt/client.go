package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Handlers are invoked from paho's network goroutines.
type Handlers struct {
	OnConnect        func()
	OnConnectionLost func(err error)
}

// Client wraps the paho client with the charge point's topic layout.
type Client struct {
	client  mqtt.Client
	cpID    string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewClient connects to the broker at mqttURL. Supported schemes are
// mqtt, mqtts, ws and wss.
func NewClient(mqttURL, cpID string, tlsCfg *tls.Config, timeout time.Duration, h Handlers, logger *logrus.Logger) (*Client, error) {
	opts, err := clientOptions(mqttURL, cpID, tlsCfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{cpID: cpID, timeout: timeout, logger: logger}

	opts.SetWill(c.AvailabilityTopic(), "offline", 1, true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
		if h.OnConnectionLost != nil {
			h.OnConnectionLost(err)
		}
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		logger.Debug("MQTT reconnecting...")
	})
	firstConnect := true
	opts.SetOnConnectHandler(func(mqtt.Client) {
		if firstConnect {
			logger.Debug("MQTT connected")
			firstConnect = false
		} else {
			logger.Info("MQTT reconnected")
		}
		if h.OnConnect != nil {
			h.OnConnect()
		}
	})

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to MQTT broker timed out after %s", timeout)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.WithFields(logrus.Fields{
		"broker":    cleanURL(mqttURL),
		"client_id": opts.ClientID,
	}).Info("MQTT client connected")
	return c, nil
}

func clientOptions(mqttURL, cpID string, tlsCfg *tls.Config, logger *logrus.Logger) (*mqtt.ClientOptions, error) {
	parsedURL, err := url.Parse(mqttURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %w", err)
	}

	opts := mqtt.NewClientOptions()
	var brokerURL string
	switch parsedURL.Scheme {
	case "ws":
		brokerURL = mqttURL
	case "wss":
		brokerURL = mqttURL
		opts.SetTLSConfig(tlsCfg)
	case "mqtt":
		brokerURL = strings.Replace(mqttURL, "mqtt://", "tcp://", 1)
	case "mqtts":
		brokerURL = strings.Replace(mqttURL, "mqtts://", "ssl://", 1)
		opts.SetTLSConfig(tlsCfg)
	default:
		return nil, fmt.Errorf("unsupported protocol scheme: %s (supported: ws, wss, mqtt, mqtts)", parsedURL.Scheme)
	}
	logger.WithField("protocol", parsedURL.Scheme).Debug("Using MQTT transport")

	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("cp-%s", cpID))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetMaxReconnectInterval(10 * time.Second)

	if parsedURL.User != nil {
		password, _ := parsedURL.User.Password()
		opts.SetUsername(parsedURL.User.Username())
		opts.SetPassword(password)
	}
	return opts, nil
}

// Publish publishes a message to the specified topic
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish to topic %s timed out after %s", topic, c.timeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	c.logger.WithFields(logrus.Fields{
		"topic":    topic,
		"size":     len(payload),
		"retained": retained,
	}).Debug("Published MQTT message")
	return nil
}

// Subscribe registers handler for topic. The handler receives the raw
// payload.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	token := c.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("subscribe to topic %s timed out after %s", topic, c.timeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	c.logger.WithField("topic", topic).Debug("Subscribed to MQTT topic")
	return nil
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect publishes offline availability and closes the connection.
func (c *Client) Disconnect(quiesce uint) {
	if c.client.IsConnected() {
		_ = c.Publish(c.AvailabilityTopic(), []byte("offline"), true)
	}
	c.client.Disconnect(quiesce)
	c.logger.Debug("MQTT client disconnected")
}

// BaseTopic returns the topic root for this charge point.
func (c *Client) BaseTopic() string {
	return BaseTopic(c.cpID)
}

func (c *Client) StatusTopic() string       { return c.BaseTopic() + "/status" }
func (c *Client) ConnectionTopic() string   { return c.BaseTopic() + "/connection" }
func (c *Client) AvailabilityTopic() string { return c.BaseTopic() + "/availability" }

// BaseTopic builds the topic root for cpID, replacing characters that are
// not valid in a topic level.
func BaseTopic(cpID string) string {
	return "w3cp/" + cleanTopicLevel(cpID)
}

func cleanTopicLevel(part string) string {
	clean := strings.ReplaceAll(part, " ", "_")
	clean = strings.ReplaceAll(clean, "+", "plus")
	clean = strings.ReplaceAll(clean, "#", "hash")
	clean = strings.ReplaceAll(clean, "/", "_")
	return strings.ToLower(clean)
}

// cleanURL removes credentials from URL for logging
func cleanURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.User != nil {
		parsed.User = url.UserPassword("***", "***")
	}
	return parsed.String()
}
