package tracking

import (
	"time"

	"pawtrack/internal/domain"
	"pawtrack/internal/mocks"

	"go.uber.org/zap"
)

const (
	testOwner  = "owner-1"
	testDevice = "dog-collar-001"
	testAPIKey = "collar-key"
)

type fixture struct {
	devices   *mocks.DeviceRepository
	telemetry *mocks.TelemetryRepository
	dogs      *mocks.DogRepository
	cache     *mocks.LiveCache
	registry  *Registry
	ingestor  *Ingestor
	history   *History
	live      *Live
}

var fixedNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	log := zap.NewNop().Sugar()

	f := &fixture{
		devices:   new(mocks.DeviceRepository),
		telemetry: new(mocks.TelemetryRepository),
		dogs:      new(mocks.DogRepository),
		cache:     new(mocks.LiveCache),
	}

	f.registry = NewRegistry(log, f.devices, f.dogs)
	f.registry.now = func() time.Time { return fixedNow }

	f.ingestor = NewIngestor(log, testAPIKey, f.registry, f.telemetry, f.cache, time.Second)
	f.ingestor.now = func() time.Time { return fixedNow }
	f.ingestor.newID = func() string { return "point-1" }

	f.history = NewHistory(log, f.registry, f.telemetry, 5000, time.Second, time.UTC)
	f.live = NewLive(log, f.registry, f.telemetry, f.cache, 5000, time.Second)

	return f
}

func activeDevice() domain.Device {
	return domain.Device{
		ID:              "dev-1",
		DeviceID:        testDevice,
		Name:            "Bantay's collar",
		IsActive:        true,
		OwnerID:         testOwner,
		FirmwareVersion: domain.DefaultFirmwareVersion,
	}
}

func validPoint(id string, createdAt time.Time) domain.TelemetryPoint {
	return domain.TelemetryPoint{
		ID:        id,
		DeviceID:  testDevice,
		OwnerID:   testOwner,
		Latitude:  14.5995,
		Longitude: 120.9842,
		GPSValid:  true,
		Battery:   80,
		Timestamp: createdAt,
		CreatedAt: createdAt,
	}
}
