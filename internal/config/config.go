package config

import (
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	defaultLiveCacheTTL    = 24 * time.Hour
	defaultMQTTClientID    = "pawtrack-ingest"
	defaultMQTTTopic       = "collars/+/telemetry"
	defaultHistoryMaxLimit = 5000
	defaultIngestTimeout   = 5 * time.Second
	defaultQueryTimeout    = 10 * time.Second
	defaultTimeZone        = "Asia/Manila"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
)

type Config struct {
	MongoDBURI   string `validate:"required"`
	MongoDBName  string `validate:"required"`
	ServerPort   string `validate:"required"`
	IngestAPIKey string `validate:"required"`
	JWTSecret    string `validate:"required"`

	// Redis and MQTT are optional; empty addresses disable them.
	RedisAddr     string `validate:"omitempty,hostname_port"`
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	LiveCacheTTL  time.Duration `validate:"required"`
	MQTTBroker    string        `validate:"omitempty,url"`
	MQTTClientID  string        `validate:"required_with=MQTTBroker"`
	MQTTTopic     string        `validate:"required_with=MQTTBroker"`

	HistoryMaxLimit int           `validate:"gte=1"`
	IngestTimeout   time.Duration `validate:"required"`
	QueryTimeout    time.Duration `validate:"required"`
	TimeZone        string        `validate:"required,timezone"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	LogFormat       string        `validate:"oneof=json console"`
}

// LoadConfig reads the environment, after loading a .env file from the working directory if one exists.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		MongoDBURI:    os.Getenv("MONGODB_URI"),
		MongoDBName:   os.Getenv("MONGODB_NAME"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		IngestAPIKey:  os.Getenv("INGEST_API_KEY"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		MQTTBroker:    os.Getenv("MQTT_BROKER"),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", defaultMQTTClientID),
		MQTTTopic:     getEnv("MQTT_TOPIC", defaultMQTTTopic),
		TimeZone:      getEnv("TIMEZONE", defaultTimeZone),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		LogFormat:     getEnv("LOG_FORMAT", defaultLogFormat),
	}

	var err error
	if config.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if config.HistoryMaxLimit, err = getInt("HISTORY_MAX_LIMIT", defaultHistoryMaxLimit); err != nil {
		return nil, err
	}
	if config.LiveCacheTTL, err = getDuration("LIVE_CACHE_TTL", defaultLiveCacheTTL); err != nil {
		return nil, err
	}
	if config.IngestTimeout, err = getDuration("INGEST_TIMEOUT", defaultIngestTimeout); err != nil {
		return nil, err
	}
	if config.QueryTimeout, err = getDuration("QUERY_TIMEOUT", defaultQueryTimeout); err != nil {
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(err, "failed to validate config")
	}

	return config, nil
}

// Location is the zone used to split history into calendar days when the caller gives none.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}
