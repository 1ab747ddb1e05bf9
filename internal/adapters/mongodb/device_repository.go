package mongodb

import (
	"context"
	"time"

	"pawtrack/internal/domain"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DeviceRepository struct {
	collection *mongo.Collection
}

func NewDeviceRepository(db *MongoDB) *DeviceRepository {
	return &DeviceRepository{
		collection: db.Database.Collection(DevicesCollection),
	}
}

func (r *DeviceRepository) Save(ctx context.Context, device domain.Device) (domain.Device, error) {
	_, err := r.collection.InsertOne(ctx, device)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Device{}, domain.ErrDuplicateDevice
		}
		return domain.Device{}, errors.Wrap(err, "failed to save device")
	}

	var savedDevice domain.Device
	err = r.collection.FindOne(ctx, bson.M{"_id": device.ID}).Decode(&savedDevice)
	if err != nil {
		return domain.Device{}, errors.Wrap(err, "failed to fetch saved device")
	}

	return savedDevice, nil
}

func (r *DeviceRepository) FindByDeviceID(ctx context.Context, deviceID string) (domain.Device, error) {
	var device domain.Device
	err := r.collection.FindOne(ctx, bson.M{"deviceId": deviceID}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Device{}, domain.ErrDeviceNotFound
		}
		return domain.Device{}, errors.Wrap(err, "failed to find device")
	}

	return device, nil
}

func (r *DeviceRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Device, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "registrationDate", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"ownerId": ownerID}, findOptions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find devices")
	}
	defer cursor.Close(ctx)

	devices := []domain.Device{}
	if err = cursor.All(ctx, &devices); err != nil {
		return nil, errors.Wrap(err, "failed to decode devices")
	}

	return devices, nil
}

// UpdateLiveness overwrites lastSeen and batteryLevel. Concurrent writers race and the last one wins.
func (r *DeviceRepository) UpdateLiveness(ctx context.Context, deviceID string, batteryLevel int, seenAt time.Time) error {
	update := bson.M{"$set": bson.M{"lastSeen": seenAt, "batteryLevel": batteryLevel}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"deviceId": deviceID}, update)
	if err != nil {
		return errors.Wrap(err, "failed to update device liveness")
	}
	if result.MatchedCount == 0 {
		return domain.ErrDeviceNotFound
	}

	return nil
}

func (r *DeviceRepository) Update(ctx context.Context, deviceID string, update domain.DeviceUpdate) (domain.Device, error) {
	set := bson.M{}
	unset := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.AssignedDogID != nil {
		if *update.AssignedDogID == "" {
			unset["assignedDogId"] = ""
		} else {
			set["assignedDogId"] = *update.AssignedDogID
		}
	}
	if update.IsActive != nil {
		set["isActive"] = *update.IsActive
	}

	doc := bson.D{}
	if len(set) > 0 {
		doc = append(doc, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		doc = append(doc, bson.E{Key: "$unset", Value: unset})
	}
	if len(doc) == 0 {
		return r.FindByDeviceID(ctx, deviceID)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Device
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"deviceId": deviceID}, doc, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Device{}, domain.ErrDeviceNotFound
		}
		return domain.Device{}, errors.Wrap(err, "failed to update device")
	}

	return updated, nil
}
