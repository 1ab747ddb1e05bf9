package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"pawtrack/internal/domain"
	"pawtrack/internal/ports"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const keyPrefix = "pawtrack:live:"

// LiveCache holds the newest telemetry point of each device as JSON under one key per device.
type LiveCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewLiveCache(client *redis.Client, ttl time.Duration) *LiveCache {
	return &LiveCache{client: client, ttl: ttl}
}

func (c *LiveCache) Get(ctx context.Context, deviceID string) (domain.TelemetryPoint, error) {
	val, err := c.client.Get(ctx, key(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return domain.TelemetryPoint{}, ports.ErrCacheMiss
		}
		return domain.TelemetryPoint{}, errors.Wrap(err, "failed to read live point")
	}

	var point domain.TelemetryPoint
	if err := json.Unmarshal([]byte(val), &point); err != nil {
		return domain.TelemetryPoint{}, errors.Wrap(err, "failed to decode live point")
	}

	return point, nil
}

func (c *LiveCache) Set(ctx context.Context, point domain.TelemetryPoint) error {
	data, err := json.Marshal(point)
	if err != nil {
		return errors.Wrap(err, "failed to encode live point")
	}

	return errors.Wrap(c.client.Set(ctx, key(point.DeviceID), data, c.ttl).Err(), "failed to write live point")
}

// Fill writes the point with SETNX. An existing entry is left alone.
func (c *LiveCache) Fill(ctx context.Context, point domain.TelemetryPoint) error {
	data, err := json.Marshal(point)
	if err != nil {
		return errors.Wrap(err, "failed to encode live point")
	}

	return errors.Wrap(c.client.SetNX(ctx, key(point.DeviceID), data, c.ttl).Err(), "failed to fill live point")
}

func key(deviceID string) string {
	return keyPrefix + deviceID
}
