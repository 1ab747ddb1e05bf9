package mongodb

import (
	"context"

	"pawtrack/internal/domain"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DogRepository reads the dog registry, which is owned by the records side of the app.
type DogRepository struct {
	collection *mongo.Collection
}

func NewDogRepository(db *MongoDB) *DogRepository {
	return &DogRepository{
		collection: db.Database.Collection(DogsCollection),
	}
}

func (r *DogRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Dog, error) {
	if len(ids) == 0 {
		return []domain.Dog{}, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "failed to find dogs")
	}
	defer cursor.Close(ctx)

	dogs := []domain.Dog{}
	if err = cursor.All(ctx, &dogs); err != nil {
		return nil, errors.Wrap(err, "failed to decode dogs")
	}

	return dogs, nil
}

// Save is used by the seed tool; the web app owns dog records otherwise.
func (r *DogRepository) Save(ctx context.Context, dog domain.Dog) error {
	_, err := r.collection.InsertOne(ctx, dog)
	return errors.Wrap(err, "failed to save dog")
}
