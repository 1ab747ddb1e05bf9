package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DevicesCollection   = "devices"
	TelemetryCollection = "gps_telemetry"
	DogsCollection      = "dogs"
)

// MongoDB is the process-wide database handle. It is created once at startup and
// shared by every repository; requests never reconnect.
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(ctx context.Context, uri string, dbName string) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	return &MongoDB{Client: client, Database: client.Database(dbName)}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return errors.Wrap(m.Client.Disconnect(ctx), "failed to disconnect from MongoDB")
}

// EnsureIndexes creates the indexes the repositories rely on. It is safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(DevicesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "deviceId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_device_id"),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "registrationDate", Value: 1}},
			Options: options.Index().SetName("owner_registration"),
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create device indexes")
	}

	_, err = db.Collection(TelemetryCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "deviceId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("device_created"),
		},
		{
			Keys: bson.D{
				{Key: "deviceId", Value: 1},
				{Key: "gpsValid", Value: 1},
				{Key: "createdAt", Value: 1},
			},
			Options: options.Index().SetName("device_gps_created"),
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create telemetry indexes")
	}

	return nil
}

// SetUpCollections drops and recreates the collections with schema validation.
// Only the seed and profile tools call it.
func SetUpCollections(ctx context.Context, db *mongo.Database) error {
	deviceValidation := bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": []string{"_id", "deviceId", "name", "isActive", "ownerId", "registrationDate", "firmwareVersion"},
			"properties": bson.M{
				"deviceId":         bson.M{"bsonType": "string"},
				"name":             bson.M{"bsonType": "string"},
				"isActive":         bson.M{"bsonType": "bool"},
				"ownerId":          bson.M{"bsonType": "string"},
				"assignedDogId":    bson.M{"bsonType": "string"},
				"registrationDate": bson.M{"bsonType": "date"},
				"lastSeen":         bson.M{"bsonType": "date"},
				"batteryLevel":     bson.M{"bsonType": "int", "minimum": 0, "maximum": 100},
				"firmwareVersion":  bson.M{"bsonType": "string"},
			},
		},
	}

	// Telemetry is written leniently, so only types are enforced here, never ranges.
	telemetryValidation := bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": []string{"_id", "deviceId", "latitude", "longitude", "gpsValid", "battery", "timestamp", "createdAt"},
			"properties": bson.M{
				"deviceId":  bson.M{"bsonType": "string"},
				"latitude":  bson.M{"bsonType": "double"},
				"longitude": bson.M{"bsonType": "double"},
				"gpsValid":  bson.M{"bsonType": "bool"},
				"battery":   bson.M{"bsonType": []string{"int", "long"}},
				"timestamp": bson.M{"bsonType": "date"},
				"uptime":    bson.M{"bsonType": []string{"int", "long"}},
				"wifiRSSI":  bson.M{"bsonType": []string{"int", "long"}},
				"createdAt": bson.M{"bsonType": "date"},
			},
		},
	}

	dogValidation := bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": []string{"_id", "name", "ownerId"},
			"properties": bson.M{
				"name":    bson.M{"bsonType": "string"},
				"ownerId": bson.M{"bsonType": "string"},
			},
		},
	}

	collections := []struct {
		name      string
		validator bson.M
	}{
		{DevicesCollection, deviceValidation},
		{TelemetryCollection, telemetryValidation},
		{DogsCollection, dogValidation},
	}

	for _, c := range collections {
		if err := db.Collection(c.name).Drop(ctx); err != nil {
			return errors.Wrapf(err, "failed to drop %s collection", c.name)
		}

		opt := options.CreateCollection().SetValidator(c.validator)
		if err := db.CreateCollection(ctx, c.name, opt); err != nil {
			return errors.Wrapf(err, "failed to create %s collection", c.name)
		}
	}

	return EnsureIndexes(ctx, db)
}
