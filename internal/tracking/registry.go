package tracking

import (
	"context"
	"time"

	"pawtrack/internal/domain"
	"pawtrack/internal/ports"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RegisterDeviceInput is what an owner supplies when pairing a new collar.
type RegisterDeviceInput struct {
	DeviceID        string  `json:"deviceId" validate:"required,max=64"`
	Name            string  `json:"name" validate:"required,max=100"`
	OwnerID         string  `json:"-" validate:"required"`
	FirmwareVersion string  `json:"firmwareVersion" validate:"omitempty,max=32"`
	AssignedDogID   *string `json:"assignedDogId,omitempty" validate:"omitempty,min=1"`
}

// Registry maps collar hardware ids to owners and dogs and keeps their liveness fields.
type Registry struct {
	log      *zap.SugaredLogger
	devices  ports.DeviceRepository
	dogs     ports.DogRepository
	validate *validator.Validate
	now      func() time.Time
}

func NewRegistry(log *zap.SugaredLogger, devices ports.DeviceRepository, dogs ports.DogRepository) *Registry {
	return &Registry{
		log:      log,
		devices:  devices,
		dogs:     dogs,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (r *Registry) RegisterDevice(ctx context.Context, in RegisterDeviceInput) (domain.Device, error) {
	if err := r.validate.Struct(in); err != nil {
		return domain.Device{}, errors.Wrap(domain.ErrInvalidInput, err.Error())
	}

	if in.AssignedDogID != nil {
		if err := r.checkDogOwner(ctx, in.OwnerID, *in.AssignedDogID); err != nil {
			return domain.Device{}, err
		}
	}

	firmware := in.FirmwareVersion
	if firmware == "" {
		firmware = domain.DefaultFirmwareVersion
	}

	device := domain.Device{
		ID:               uuid.NewString(),
		DeviceID:         in.DeviceID,
		Name:             in.Name,
		IsActive:         true,
		OwnerID:          in.OwnerID,
		AssignedDogID:    in.AssignedDogID,
		RegistrationDate: r.now().UTC(),
		FirmwareVersion:  firmware,
	}

	saved, err := r.devices.Save(ctx, device)
	if err != nil {
		return domain.Device{}, storageErr("save device", err)
	}

	r.log.Infow("device registered", "deviceId", saved.DeviceID, "ownerId", saved.OwnerID)
	return saved, nil
}

func (r *Registry) FindByDeviceID(ctx context.Context, deviceID string) (domain.Device, error) {
	device, err := r.devices.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return domain.Device{}, storageErr("find device", err)
	}
	return device, nil
}

// FindActiveByDeviceID gates ingestion: unknown and deactivated devices are indistinguishable.
func (r *Registry) FindActiveByDeviceID(ctx context.Context, deviceID string) (domain.Device, error) {
	device, err := r.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return domain.Device{}, err
	}
	if !device.IsActive {
		return domain.Device{}, domain.ErrDeviceNotFound
	}
	return device, nil
}

// TouchLiveness records that the device was heard from. Only lastSeen and batteryLevel change.
func (r *Registry) TouchLiveness(ctx context.Context, deviceID string, batteryLevel int, seenAt time.Time) error {
	batteryLevel = min(max(batteryLevel, 0), 100)

	if err := r.devices.UpdateLiveness(ctx, deviceID, batteryLevel, seenAt); err != nil {
		return storageErr("update liveness", err)
	}
	return nil
}

// ListByOwner returns the owner's devices with assigned dog names filled in.
// A failed dog lookup leaves the names empty rather than failing the listing.
func (r *Registry) ListByOwner(ctx context.Context, ownerID string) ([]domain.DeviceView, error) {
	devices, err := r.devices.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, storageErr("list devices", err)
	}

	var dogIDs []string
	for _, d := range devices {
		if d.AssignedDogID != nil && *d.AssignedDogID != "" {
			dogIDs = append(dogIDs, *d.AssignedDogID)
		}
	}

	names := map[string]string{}
	if len(dogIDs) > 0 {
		dogs, err := r.dogs.FindByIDs(ctx, dogIDs)
		if err != nil {
			r.log.Warnw("failed to resolve dog names", "ownerId", ownerID, "error", err)
		}
		for _, dog := range dogs {
			names[dog.ID] = dog.Name
		}
	}

	views := make([]domain.DeviceView, len(devices))
	for i, d := range devices {
		views[i] = domain.DeviceView{Device: d}
		if d.AssignedDogID != nil {
			views[i].AssignedDogName = names[*d.AssignedDogID]
		}
	}

	return views, nil
}

// UpdateDevice applies an owner's edit. An empty AssignedDogID unassigns the dog.
func (r *Registry) UpdateDevice(ctx context.Context, ownerID, deviceID string, update domain.DeviceUpdate) (domain.Device, error) {
	if _, err := r.ownedDevice(ctx, ownerID, deviceID); err != nil {
		return domain.Device{}, err
	}

	if update.Name != nil && *update.Name == "" {
		return domain.Device{}, errors.Wrap(domain.ErrInvalidInput, "name cannot be empty")
	}
	if update.AssignedDogID != nil && *update.AssignedDogID != "" {
		if err := r.checkDogOwner(ctx, ownerID, *update.AssignedDogID); err != nil {
			return domain.Device{}, err
		}
	}

	updated, err := r.devices.Update(ctx, deviceID, update)
	if err != nil {
		return domain.Device{}, storageErr("update device", err)
	}

	r.log.Infow("device updated", "deviceId", deviceID, "ownerId", ownerID, "isActive", updated.IsActive)
	return updated, nil
}

// ownedDevice answers ErrAccessDenied both for missing devices and for someone else's.
func (r *Registry) ownedDevice(ctx context.Context, ownerID, deviceID string) (domain.Device, error) {
	device, err := r.FindByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, domain.ErrDeviceNotFound) {
			return domain.Device{}, domain.ErrAccessDenied
		}
		return domain.Device{}, err
	}
	if !device.OwnedBy(ownerID) {
		return domain.Device{}, domain.ErrAccessDenied
	}
	return device, nil
}

func (r *Registry) checkDogOwner(ctx context.Context, ownerID, dogID string) error {
	dogs, err := r.dogs.FindByIDs(ctx, []string{dogID})
	if err != nil {
		return storageErr("find dog", err)
	}
	if len(dogs) == 0 || dogs[0].OwnerID != ownerID {
		return errors.Wrapf(domain.ErrInvalidInput, "unknown dog %q", dogID)
	}
	return nil
}

// storageErr passes domain errors through and wraps everything else as a StorageError.
func storageErr(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrDeviceNotFound),
		errors.Is(err, domain.ErrDuplicateDevice):
		return err
	default:
		return &domain.StorageError{Op: op, Err: err}
	}
}
