// Package mq bridges realtime issue events onto an MQTT broker.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"civic-reporter/internal/logger"
	"civic-reporter/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishWait = 3 * time.Second

var ErrNotConnected = errors.New("mqtt client not connected")

type Config struct {
	BrokerURL string
	ClientID  string
}

func Connect(cfg Config) (mqtt.Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("MQTT broker URL is empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "civic-reporter"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.WithError(err, "mqtt").Warn("MQTT connection lost")
	}
	opts.OnConnect = func(_ mqtt.Client) {
		logger.Info("MQTT connected", map[string]interface{}{
			"broker":    cfg.BrokerURL,
			"client_id": cfg.ClientID,
		})
	}

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out", cfg.BrokerURL)
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

// Topic returns "<prefix>/<eventType>", e.g. civic/issues/newIssue.
func Topic(prefix string, eventType models.EventType) string {
	return strings.TrimSuffix(prefix, "/") + "/" + string(eventType)
}

// Publisher forwards events to MQTT at QoS 0.
type Publisher struct {
	client mqtt.Client
	prefix string
}

func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

func (p *Publisher) Name() string {
	return "mqtt"
}

func (p *Publisher) Publish(ctx context.Context, event models.RealtimeEvent) error {
	if p.client == nil || !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	tok := p.client.Publish(Topic(p.prefix, event.Type), 0, false, payload)

	wait := publishWait
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
		wait = time.Until(deadline)
	}
	if !tok.WaitTimeout(wait) {
		return fmt.Errorf("publish %s: timed out", event.Type)
	}
	return tok.Error()
}

func Disconnect(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}
