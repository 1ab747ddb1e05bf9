package mocks

import (
	"context"
	"time"

	"pawtrack/internal/domain"

	"github.com/stretchr/testify/mock"
)

type DeviceRepository struct {
	mock.Mock
}

func (m *DeviceRepository) Save(ctx context.Context, device domain.Device) (domain.Device, error) {
	args := m.Called(ctx, device)
	return args.Get(0).(domain.Device), args.Error(1)
}

func (m *DeviceRepository) FindByDeviceID(ctx context.Context, deviceID string) (domain.Device, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(domain.Device), args.Error(1)
}

func (m *DeviceRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Device, error) {
	args := m.Called(ctx, ownerID)
	devices, _ := args.Get(0).([]domain.Device)
	return devices, args.Error(1)
}

func (m *DeviceRepository) UpdateLiveness(ctx context.Context, deviceID string, batteryLevel int, seenAt time.Time) error {
	args := m.Called(ctx, deviceID, batteryLevel, seenAt)
	return args.Error(0)
}

func (m *DeviceRepository) Update(ctx context.Context, deviceID string, update domain.DeviceUpdate) (domain.Device, error) {
	args := m.Called(ctx, deviceID, update)
	return args.Get(0).(domain.Device), args.Error(1)
}

type TelemetryRepository struct {
	mock.Mock
}

func (m *TelemetryRepository) Insert(ctx context.Context, point domain.TelemetryPoint) (string, error) {
	args := m.Called(ctx, point)
	return args.String(0), args.Error(1)
}

func (m *TelemetryRepository) Find(ctx context.Context, filter domain.TelemetryFilter, order domain.SortOrder, limit int) ([]domain.TelemetryPoint, error) {
	args := m.Called(ctx, filter, order, limit)
	points, _ := args.Get(0).([]domain.TelemetryPoint)
	return points, args.Error(1)
}

type DogRepository struct {
	mock.Mock
}

func (m *DogRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Dog, error) {
	args := m.Called(ctx, ids)
	dogs, _ := args.Get(0).([]domain.Dog)
	return dogs, args.Error(1)
}

type LiveCache struct {
	mock.Mock
}

func (m *LiveCache) Get(ctx context.Context, deviceID string) (domain.TelemetryPoint, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(domain.TelemetryPoint), args.Error(1)
}

func (m *LiveCache) Set(ctx context.Context, point domain.TelemetryPoint) error {
	args := m.Called(ctx, point)
	return args.Error(0)
}

func (m *LiveCache) Fill(ctx context.Context, point domain.TelemetryPoint) error {
	args := m.Called(ctx, point)
	return args.Error(0)
}
