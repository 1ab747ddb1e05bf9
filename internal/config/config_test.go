package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("MONGODB_NAME", "pawtrack_test")
	t.Setenv("SERVER_PORT", ":8080")
	t.Setenv("INGEST_API_KEY", "collar-key")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.HistoryMaxLimit)
	assert.Equal(t, 5*time.Second, cfg.IngestTimeout)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	assert.Equal(t, "Asia/Manila", cfg.TimeZone)
	assert.Equal(t, "Asia/Manila", cfg.Location().String())
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.MQTTBroker)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HISTORY_MAX_LIMIT", "200")
	t.Setenv("QUERY_TIMEOUT", "3s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.HistoryMaxLimit)
	assert.Equal(t, 3*time.Second, cfg.QueryTimeout)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "collars/+/telemetry", cfg.MQTTTopic)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing api key", env: map[string]string{"INGEST_API_KEY": ""}},
		{name: "bad limit", env: map[string]string{"HISTORY_MAX_LIMIT": "lots"}},
		{name: "zero limit", env: map[string]string{"HISTORY_MAX_LIMIT": "0"}},
		{name: "bad timeout", env: map[string]string{"INGEST_TIMEOUT": "soon"}},
		{name: "unknown zone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
