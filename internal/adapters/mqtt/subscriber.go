package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"pawtrack/internal/tracking"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// apiKeyField carries the ingestion key inside the message, since MQTT has no headers.
const apiKeyField = "apiKey"

// Ingester stores one decoded telemetry report.
type Ingester interface {
	Ingest(ctx context.Context, apiKey string, raw map[string]any) (tracking.IngestResult, error)
}

type Options struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// Subscriber feeds collar reports published on collars/{deviceId}/telemetry into
// the same ingestion path as the HTTP endpoint.
type Subscriber struct {
	log     *zap.SugaredLogger
	client  paho.Client
	opts    Options
	ingest  Ingester
	timeout time.Duration
}

func NewSubscriber(log *zap.SugaredLogger, opts Options, ingest Ingester, timeout time.Duration) *Subscriber {
	s := &Subscriber{
		log:     log,
		opts:    opts,
		ingest:  ingest,
		timeout: timeout,
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt connection lost", "broker", opts.Broker, "error", err)
		})
	s.client = paho.NewClient(clientOpts)

	return s
}

// Start connects to the broker. The subscription is (re)made on every connect.
func (s *Subscriber) Start() error {
	token := s.client.Connect()
	if token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "connect to mqtt broker %s", s.opts.Broker)
	}
	return nil
}

func (s *Subscriber) Close() {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.opts.Topic).Wait()
	}
	s.client.Disconnect(250)
}

func (s *Subscriber) onConnect(client paho.Client) {
	token := client.Subscribe(s.opts.Topic, s.opts.QoS, s.handle)
	if token.Wait() && token.Error() != nil {
		s.log.Errorw("mqtt subscribe failed", "topic", s.opts.Topic, "error", token.Error())
		return
	}
	s.log.Infow("subscribed to collar telemetry", "broker", s.opts.Broker, "topic", s.opts.Topic)
}

func (s *Subscriber) handle(_ paho.Client, msg paho.Message) {
	log := s.log.With("topic", msg.Topic())

	apiKey, raw, err := decodeMessage(msg.Topic(), msg.Payload())
	if err != nil {
		log.Warnw("dropping collar message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.ingest.Ingest(ctx, apiKey, raw)
	if err != nil {
		log.Warnw("telemetry rejected", "deviceId", tracking.DeviceIDOf(raw), "error", err)
		return
	}
	log.Debugw("telemetry ingested", "id", result.ID, "deviceOwner", result.DeviceOwner)
}

// decodeMessage pulls the key out of the payload and fills deviceId from the topic
// when the collar left it out. A payload naming a different device than its topic
// is refused.
func decodeMessage(topic string, payload []byte) (string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return "", nil, errors.Wrap(err, "decode payload")
	}
	if raw == nil {
		return "", nil, errors.New("payload must be a JSON object")
	}

	apiKey, _ := raw[apiKeyField].(string)
	delete(raw, apiKeyField)

	topicDevice := DeviceIDFromTopic(topic)
	payloadDevice := tracking.DeviceIDOf(raw)
	switch {
	case payloadDevice == "" && topicDevice != "":
		raw["deviceId"] = topicDevice
	case payloadDevice != "" && topicDevice != "" && payloadDevice != topicDevice:
		return "", nil, errors.Errorf("payload deviceId %q does not match topic", payloadDevice)
	}

	return apiKey, raw, nil
}

// DeviceIDFromTopic returns the {deviceId} segment of collars/{deviceId}/telemetry,
// or "" for any other topic shape.
func DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "collars" || parts[2] != "telemetry" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
