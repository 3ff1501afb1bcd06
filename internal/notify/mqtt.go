package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// MQTTPublisher publishes status events as retained JSON messages on
// <prefix>/requests/<id>/status, so a board that connects late still sees the
// latest state of every request.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

// DialMQTT connects to the broker and returns a publisher.
func DialMQTT(o MQTTOptions) (*MQTTPublisher, error) {
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetConnectTimeout(o.Timeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(o.Timeout) {
		return nil, fmt.Errorf("connecting to mqtt broker %s: timed out", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", o.Broker, err)
	}

	return NewMQTTPublisher(client, o.TopicPrefix, o.QoS, o.Timeout), nil
}

// NewMQTTPublisher wraps an already configured client.
func NewMQTTPublisher(client mqtt.Client, prefix string, qos byte, timeout time.Duration) *MQTTPublisher {
	return &MQTTPublisher{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		qos:     qos,
		timeout: timeout,
	}
}

// Topic returns the topic a request's status is published on.
func (p *MQTTPublisher) Topic(requestID string) string {
	if p.prefix == "" {
		return "requests/" + requestID + "/status"
	}
	return p.prefix + "/requests/" + requestID + "/status"
}

// PublishStatus publishes ev and waits for the broker to acknowledge it.
func (p *MQTTPublisher) PublishStatus(ctx context.Context, ev StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding status event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token := p.client.Publish(p.Topic(ev.ID), p.qos, true, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing status event: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publishing status event: %w", ctx.Err())
	}
}

// Close disconnects from the broker, giving in-flight messages a moment to drain.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
