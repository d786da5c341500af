package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

const mqttBuffer = 32

// MQTTTelemetry publishes booth events to a broker and accepts operator
// commands on a command topic.
//
// Topics, under <prefix>/<booth id>:
//
//	state    retained JSON BoothEvent
//	online   retained "true"/"false", with a last will of "false"
//	command  plain command names or {"command": "..."}
type MQTTTelemetry struct {
	cfg    model.MQTTConfig
	queue  *EventQueue
	events chan model.BoothEvent
	client mqtt.Client
	log    zerolog.Logger

	dropped atomic.Int64
}

func NewMQTTTelemetry(cfg model.MQTTConfig, queue *EventQueue, log zerolog.Logger) *MQTTTelemetry {
	return &MQTTTelemetry{
		cfg:    cfg,
		queue:  queue,
		events: make(chan model.BoothEvent, mqttBuffer),
		log:    log.With().Str("component", "mqtt").Str("broker", cfg.Broker).Logger(),
	}
}

func (m *MQTTTelemetry) topic(leaf string) string {
	return strings.Trim(m.cfg.TopicPrefix, "/") + "/" + m.cfg.BoothID + "/" + leaf
}

// Start connects to the broker. Connection failures are retried in the
// background by the client.
func (m *MQTTTelemetry) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID + "-" + m.cfg.BoothID)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(m.topic("online"), "false", 1, true)

	opts.OnConnect = func(c mqtt.Client) {
		m.log.Info().Msg("Connected to broker")
		c.Publish(m.topic("online"), 1, true, "true")
		c.Subscribe(m.topic("command"), 1, m.handleCommand)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.log.Warn().Err(err).Msg("Broker connection lost")
	}

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		m.log.Warn().Msg("Broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Notify queues ev for publishing without blocking.
func (m *MQTTTelemetry) Notify(ev model.BoothEvent) {
	select {
	case m.events <- ev:
	default:
		m.dropped.Add(1)
	}
}

// Run publishes queued events until ctx is done.
func (m *MQTTTelemetry) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			if m.client == nil || !m.client.IsConnected() {
				continue
			}
			body, err := json.Marshal(ev)
			if err != nil {
				m.log.Error().Err(err).Msg("Encoding event")
				continue
			}
			m.client.Publish(m.topic("state"), 0, true, body)
		}
	}
}

func (m *MQTTTelemetry) Close() error {
	if m.client == nil {
		return nil
	}
	if m.client.IsConnected() {
		m.client.Publish(m.topic("online"), 1, true, "false").WaitTimeout(time.Second)
	}
	m.client.Disconnect(250)
	return nil
}

func (m *MQTTTelemetry) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	cmd := parseCommandPayload(msg.Payload())
	ev, ok := model.ParseCommand(cmd, model.SourceRemote)
	if !ok {
		m.log.Warn().Str("topic", msg.Topic()).Str("command", cmd).Msg("Unknown command")
		return
	}
	if !m.queue.Push(ev) {
		m.log.Warn().Str("command", cmd).Msg("Input queue full, command dropped")
		return
	}
	m.log.Info().Str("command", cmd).Msg("Remote command queued")
}

func parseCommandPayload(payload []byte) string {
	var body struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Command != "" {
		return body.Command
	}
	return strings.TrimSpace(string(payload))
}
