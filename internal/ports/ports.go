package ports

import (
	"context"
	"errors"
	"time"

	"pawtrack/internal/domain"
)

// ErrCacheMiss is returned by a LiveCache that holds no point for the device.
var ErrCacheMiss = errors.New("cache miss")

type DeviceRepository interface {
	Save(ctx context.Context, device domain.Device) (domain.Device, error)
	FindByDeviceID(ctx context.Context, deviceID string) (domain.Device, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Device, error)
	UpdateLiveness(ctx context.Context, deviceID string, batteryLevel int, seenAt time.Time) error
	Update(ctx context.Context, deviceID string, update domain.DeviceUpdate) (domain.Device, error)
}

// TelemetryRepository is append-only: points can be inserted and queried, never changed.
type TelemetryRepository interface {
	Insert(ctx context.Context, point domain.TelemetryPoint) (string, error)
	Find(ctx context.Context, filter domain.TelemetryFilter, order domain.SortOrder, limit int) ([]domain.TelemetryPoint, error)
}

type DogRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.Dog, error)
}

// LiveCache keeps the newest point per device for cheap repeated polling.
type LiveCache interface {
	Get(ctx context.Context, deviceID string) (domain.TelemetryPoint, error)
	Set(ctx context.Context, point domain.TelemetryPoint) error
	// Fill stores point only when the device has no entry, so a read-through
	// never replaces a point written by a newer ingest.
	Fill(ctx context.Context, point domain.TelemetryPoint) error
}
