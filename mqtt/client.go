package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"panel-bridge/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client wraps the PAHO MQTT client for the incident notification hand-off.
// The bridge only publishes; downstream notifiers (SMS, email, push) own
// the subscriptions.
type Client struct {
	client mqtt.Client
	logger *slog.Logger
}

// NewClient creates and connects a new MQTT client.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetUsername(cfg.MQTTUsername).
		SetPassword(cfg.MQTTPassword).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(1 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(10 * time.Second).
		SetCleanSession(true)

	wrapped := &Client{
		logger: logger.With("component", "mqtt_client"),
	}
	opts.SetOnConnectHandler(wrapped.onConnect)
	opts.SetConnectionLostHandler(wrapped.onConnectionLost)

	client := mqtt.NewClient(opts)
	wrapped.client = client

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return wrapped, nil
}

// PublishJSON marshals v and publishes it at QoS 1.
func (c *Client) PublishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal MQTT payload: %w", err)
	}
	token := c.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect gracefully disconnects the client.
func (c *Client) Disconnect() {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
		c.logger.Info("MQTT Client disconnected")
	}
}

func (c *Client) onConnect(client mqtt.Client) {
	c.logger.Info("Successfully connected to MQTT broker")
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Error("MQTT connection lost. Reconnecting...", slog.Any("error", err))
}
