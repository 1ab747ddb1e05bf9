package mongodb

import (
	"context"

	"pawtrack/internal/domain"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TelemetryRepository stores raw collar samples. It exposes no update or delete.
type TelemetryRepository struct {
	collection *mongo.Collection
}

func NewTelemetryRepository(db *MongoDB) *TelemetryRepository {
	return &TelemetryRepository{
		collection: db.Database.Collection(TelemetryCollection),
	}
}

func (r *TelemetryRepository) Insert(ctx context.Context, point domain.TelemetryPoint) (string, error) {
	if point.ID == "" {
		return "", errors.New("telemetry point has no id")
	}

	_, err := r.collection.InsertOne(ctx, point)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert telemetry point")
	}

	return point.ID, nil
}

func (r *TelemetryRepository) Find(ctx context.Context, filter domain.TelemetryFilter, order domain.SortOrder, limit int) ([]domain.TelemetryPoint, error) {
	findOptions := options.Find().SetSort(telemetrySort(order))
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, telemetryQuery(filter), findOptions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find telemetry")
	}
	defer cursor.Close(ctx)

	points := []domain.TelemetryPoint{}
	if err = cursor.All(ctx, &points); err != nil {
		return nil, errors.Wrap(err, "failed to decode telemetry")
	}

	return points, nil
}

// telemetryQuery keeps clause order aligned with the (deviceId, gpsValid, createdAt) index.
func telemetryQuery(filter domain.TelemetryFilter) bson.D {
	query := bson.D{{Key: "deviceId", Value: filter.DeviceID}}

	if filter.OnlyValidGPS {
		query = append(query, bson.E{Key: "gpsValid", Value: true})
	}

	if filter.CreatedFrom != nil || filter.CreatedTo != nil {
		window := bson.D{}
		if filter.CreatedFrom != nil {
			window = append(window, bson.E{Key: "$gte", Value: *filter.CreatedFrom})
		}
		if filter.CreatedTo != nil {
			window = append(window, bson.E{Key: "$lte", Value: *filter.CreatedTo})
		}
		query = append(query, bson.E{Key: "createdAt", Value: window})
	}

	if filter.ExcludeZeroCoords {
		query = append(query,
			bson.E{Key: "latitude", Value: bson.M{"$ne": 0}},
			bson.E{Key: "longitude", Value: bson.M{"$ne": 0}},
		)
	}

	return query
}

func telemetrySort(order domain.SortOrder) bson.D {
	direction := 1
	if order == domain.NewestFirst {
		direction = -1
	}
	return bson.D{{Key: "createdAt", Value: direction}, {Key: "_id", Value: direction}}
}
