package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type telemetryPayload struct {
	APIKey    string  `json:"apiKey,omitempty"`
	DeviceID  string  `json:"deviceId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	GPSValid  bool    `json:"gpsValid"`
	Battery   int     `json:"battery"`
	Timestamp string  `json:"timestamp"`
	Uptime    int64   `json:"uptime"`
	WifiRSSI  int     `json:"wifiRSSI"`
}

type publisher interface {
	Publish(payload telemetryPayload) error
	Close()
}

type httpPublisher struct {
	client *resty.Client
	apiKey string
}

func newHTTPPublisher(baseURL, apiKey string) *httpPublisher {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-API-Key", apiKey)

	return &httpPublisher{client: client, apiKey: apiKey}
}

func (p *httpPublisher) Publish(payload telemetryPayload) error {
	var errBody struct {
		Error string `json:"error"`
	}
	resp, err := p.client.R().
		SetBody(payload).
		SetError(&errBody).
		Post("/api/gps/track")
	if err != nil {
		return errors.Wrap(err, "post telemetry")
	}
	if resp.IsError() {
		return errors.Errorf("server answered %d: %s", resp.StatusCode(), errBody.Error)
	}
	return nil
}

func (p *httpPublisher) Close() {}

type mqttPublisher struct {
	client paho.Client
	apiKey string
}

func newMQTTPublisher(broker, deviceID, apiKey string) (*mqttPublisher, error) {
	clientID := fmt.Sprintf("%s-simulator-%d", deviceID, time.Now().UnixNano())
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "connect to broker %s", broker)
	}
	return &mqttPublisher{client: client, apiKey: apiKey}, nil
}

func (p *mqttPublisher) Publish(payload telemetryPayload) error {
	payload.APIKey = p.apiKey
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode payload")
	}

	topic := fmt.Sprintf("collars/%s/telemetry", payload.DeviceID)
	token := p.client.Publish(topic, 1, false, data)
	token.Wait()
	return errors.Wrapf(token.Error(), "publish to %s", topic)
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}

// walker moves a collar around a start point and drains its battery.
type walker struct {
	lat, lon float64
	battery  float64
	started  time.Time
	lossRate float64
}

func (w *walker) next(deviceID string, now time.Time) telemetryPayload {
	w.lat += (rand.Float64() - 0.5) * 0.0003
	w.lon += (rand.Float64() - 0.5) * 0.0003
	w.battery -= 0.05
	if w.battery < 0 {
		w.battery = 0
	}

	payload := telemetryPayload{
		DeviceID:  deviceID,
		Latitude:  w.lat,
		Longitude: w.lon,
		GPSValid:  true,
		Battery:   int(w.battery),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Uptime:    int64(now.Sub(w.started).Seconds()),
		WifiRSSI:  -45 - rand.Intn(40),
	}
	if rand.Float64() < w.lossRate {
		payload.GPSValid = false
		payload.Latitude, payload.Longitude = 0, 0
	}
	return payload
}

func main() {
	mode := flag.String("mode", "http", "Transport to report over: http or mqtt")
	serverURL := flag.String("server", "http://localhost:8080", "Base URL of the tracking server (http mode)")
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address (mqtt mode)")
	deviceID := flag.String("device-id", "dog-collar-001", "Collar device identifier")
	apiKey := flag.String("api-key", os.Getenv("INGEST_API_KEY"), "Ingestion API key")
	interval := flag.Duration("interval", 5*time.Second, "Interval between reports")
	lat := flag.Float64("lat", 14.5995, "Starting latitude")
	lon := flag.Float64("lon", 120.9842, "Starting longitude")
	lossRate := flag.Float64("gps-loss", 0.05, "Fraction of reports sent without a GPS fix")

	flag.Parse()

	logger, _ := zap.NewDevelopment()
	log := logger.Sugar()

	var pub publisher
	switch *mode {
	case "http":
		pub = newHTTPPublisher(*serverURL, *apiKey)
	case "mqtt":
		p, err := newMQTTPublisher(*brokerAddr, *deviceID, *apiKey)
		if err != nil {
			log.Fatalw("failed to connect", "error", err)
		}
		pub = p
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &walker{lat: *lat, lon: *lon, battery: 100, started: time.Now(), lossRate: *lossRate}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	report := func() {
		payload := w.next(*deviceID, time.Now())
		if err := pub.Publish(payload); err != nil {
			log.Warnw("report failed", "error", err)
			return
		}
		log.Infow("reported", "deviceId", payload.DeviceID, "lat", payload.Latitude, "lon", payload.Longitude,
			"gpsValid", payload.GPSValid, "battery", payload.Battery)
	}

	report()
	for {
		select {
		case <-ctx.Done():
			log.Info("received shutdown signal, stopping")
			return
		case <-ticker.C:
			report()
		}
	}
}
