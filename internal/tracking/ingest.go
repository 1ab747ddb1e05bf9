package tracking

import (
	"context"
	"crypto/subtle"
	"time"

	"pawtrack/internal/domain"
	"pawtrack/internal/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestResult acknowledges a stored point.
type IngestResult struct {
	ID          string `json:"id"`
	DeviceOwner string `json:"deviceOwner"`
}

// Ingestor accepts collar reports from any transport.
type Ingestor struct {
	log       *zap.SugaredLogger
	apiKey    []byte
	registry  *Registry
	telemetry ports.TelemetryRepository
	cache     ports.LiveCache
	timeout   time.Duration
	now       func() time.Time
	newID     func() string
}

// NewIngestor builds an Ingestor. cache may be nil.
func NewIngestor(log *zap.SugaredLogger, apiKey string, registry *Registry, telemetry ports.TelemetryRepository, cache ports.LiveCache, timeout time.Duration) *Ingestor {
	return &Ingestor{
		log:       log,
		apiKey:    []byte(apiKey),
		registry:  registry,
		telemetry: telemetry,
		cache:     cache,
		timeout:   timeout,
		now:       time.Now,
		newID:     newPointID,
	}
}

// Authorize compares the presented ingestion key with the configured one.
// An unconfigured key rejects everything.
func (i *Ingestor) Authorize(apiKey string) bool {
	if len(i.apiKey) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(apiKey), i.apiKey) == 1
}

// Ingest validates and stores one report. Checks run in a fixed order: key, required
// fields, active device, value coercion. The point insert is the only write that can fail
// the call; the liveness and cache updates after it are best effort.
func (i *Ingestor) Ingest(ctx context.Context, apiKey string, raw map[string]any) (IngestResult, error) {
	if !i.Authorize(apiKey) {
		return IngestResult{}, domain.ErrUnauthorized
	}

	if err := CheckRequired(raw); err != nil {
		return IngestResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	deviceID := DeviceIDOf(raw)
	device, err := i.registry.FindActiveByDeviceID(ctx, deviceID)
	if err != nil {
		return IngestResult{}, err
	}

	point, err := ParsePayload(raw)
	if err != nil {
		return IngestResult{}, err
	}
	point.ID = i.newID()
	point.OwnerID = device.OwnerID
	point.CreatedAt = i.now().UTC()

	id, err := i.telemetry.Insert(ctx, point)
	if err != nil {
		return IngestResult{}, &domain.StorageError{Op: "insert telemetry", Err: err}
	}

	if err := i.registry.TouchLiveness(ctx, deviceID, point.Battery, point.CreatedAt); err != nil {
		i.log.Warnw("failed to update device liveness", "deviceId", deviceID, "error", err)
	}

	if i.cache != nil {
		if err := i.cache.Set(ctx, point); err != nil {
			i.log.Warnw("failed to refresh live cache", "deviceId", deviceID, "error", err)
		}
	}

	i.log.Debugw("telemetry ingested",
		"deviceId", deviceID,
		"id", id,
		"gpsValid", point.GPSValid,
		"battery", point.Battery,
	)

	return IngestResult{ID: id, DeviceOwner: device.OwnerID}, nil
}

// newPointID returns a time-ordered UUIDv7 so ids break createdAt ties in insertion order.
func newPointID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
