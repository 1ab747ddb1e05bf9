package tracking

import (
	"context"
	"time"

	"pawtrack/internal/domain"
	"pawtrack/internal/ports"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultLiveLimit applies to recent-points requests that give no limit.
const DefaultLiveLimit = 100

// Live serves the newest raw points for polling clients. Nothing is filtered for
// validity, so a collar without a GPS fix shows up as such.
type Live struct {
	log       *zap.SugaredLogger
	registry  *Registry
	telemetry ports.TelemetryRepository
	cache     ports.LiveCache
	maxLimit  int
	timeout   time.Duration
}

// NewLive builds a Live query. cache may be nil.
func NewLive(log *zap.SugaredLogger, registry *Registry, telemetry ports.TelemetryRepository, cache ports.LiveCache, maxLimit int, timeout time.Duration) *Live {
	return &Live{
		log:       log,
		registry:  registry,
		telemetry: telemetry,
		cache:     cache,
		maxLimit:  maxLimit,
		timeout:   timeout,
	}
}

// GetLatest returns the device's newest point. The caller must own the device.
func (l *Live) GetLatest(ctx context.Context, ownerID, deviceID string) (domain.TelemetryPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if _, err := l.registry.ownedDevice(ctx, ownerID, deviceID); err != nil {
		return domain.TelemetryPoint{}, err
	}

	point, found, err := l.latest(ctx, deviceID)
	if err != nil {
		return domain.TelemetryPoint{}, err
	}
	if !found {
		return domain.TelemetryPoint{}, domain.ErrNoTelemetry
	}
	return point, nil
}

// GetRecent returns up to limit points, newest first.
func (l *Live) GetRecent(ctx context.Context, ownerID, deviceID string, limit int) ([]domain.TelemetryPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if _, err := l.registry.ownedDevice(ctx, ownerID, deviceID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultLiveLimit
	}

	points, err := l.telemetry.Find(ctx, domain.TelemetryFilter{DeviceID: deviceID}, domain.NewestFirst, ClampLimit(limit, l.maxLimit))
	if err != nil {
		return nil, &domain.StorageError{Op: "find telemetry", Err: err}
	}
	return points, nil
}

// GetFleetLatest returns every device of the owner with its newest point, nil when the
// device has never reported.
func (l *Live) GetFleetLatest(ctx context.Context, ownerID string) ([]domain.DeviceLatest, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	devices, err := l.registry.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	fleet := make([]domain.DeviceLatest, len(devices))
	for i, device := range devices {
		fleet[i] = domain.DeviceLatest{Device: device}

		point, found, err := l.latest(ctx, device.DeviceID)
		if err != nil {
			return nil, err
		}
		if found {
			fleet[i].Point = &point
		}
	}

	return fleet, nil
}

// latest consults the cache before the store and back-fills the cache on a store hit.
// The back-fill only fills an empty entry: an ingest that lands between the store
// read and the fill has already cached a newer point. Cache failures only cost the
// fast path.
func (l *Live) latest(ctx context.Context, deviceID string) (domain.TelemetryPoint, bool, error) {
	if l.cache != nil {
		point, err := l.cache.Get(ctx, deviceID)
		switch {
		case err == nil && point.DeviceID == deviceID:
			return point, true, nil
		case err != nil && !errors.Is(err, ports.ErrCacheMiss):
			l.log.Warnw("live cache read failed", "deviceId", deviceID, "error", err)
		}
	}

	points, err := l.telemetry.Find(ctx, domain.TelemetryFilter{DeviceID: deviceID}, domain.NewestFirst, 1)
	if err != nil {
		return domain.TelemetryPoint{}, false, &domain.StorageError{Op: "find latest telemetry", Err: err}
	}
	if len(points) == 0 {
		return domain.TelemetryPoint{}, false, nil
	}

	if l.cache != nil {
		if err := l.cache.Fill(ctx, points[0]); err != nil {
			l.log.Warnw("live cache back-fill failed", "deviceId", deviceID, "error", err)
		}
	}

	return points[0], true, nil
}
