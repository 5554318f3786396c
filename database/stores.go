package database

import (
	"context"
	"fmt"

	"github.com/AgiriTaofeek/natours-app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	UsersCollection    = "users"
	ToursCollection    = "tours"
	ReviewsCollection  = "reviews"
	BookingsCollection = "bookings"
)

// Stores groups the collections of every resource.
type Stores struct {
	Users    Collection[models.User]
	Tours    Collection[models.Tour]
	Reviews  Collection[models.Review]
	Bookings Collection[models.Booking]
}

func NewMongoStores(db *mongo.Database) *Stores {
	return &Stores{
		Users:    NewMongoCollection[models.User](db, UsersCollection),
		Tours:    NewMongoCollection[models.Tour](db, ToursCollection),
		Reviews:  NewMongoCollection[models.Review](db, ReviewsCollection),
		Bookings: NewMongoCollection[models.Booking](db, BookingsCollection),
	}
}

func NewMemoryStores() *Stores {
	return &Stores{
		Users:    NewMemoryCollection[models.User](UsersCollection),
		Tours:    NewMemoryCollection[models.Tour](ToursCollection),
		Reviews:  NewMemoryCollection[models.Review](ReviewsCollection),
		Bookings: NewMemoryCollection[models.Booking](BookingsCollection),
	}
}

// EnsureIndexes creates the indexes every collection relies on.
func (s *Stores) EnsureIndexes(ctx context.Context) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{UsersCollection, func() error {
			return s.Users.EnsureIndexes(ctx, []Index{
				{Keys: bson.D{{Key: "email", Value: 1}}, Unique: true},
			})
		}},
		{ToursCollection, func() error {
			return s.Tours.EnsureIndexes(ctx, []Index{
				{Keys: bson.D{{Key: "name", Value: 1}}, Unique: true},
				{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
				{Keys: bson.D{{Key: "slug", Value: 1}}},
				{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
			})
		}},
		{ReviewsCollection, func() error {
			return s.Reviews.EnsureIndexes(ctx, []Index{
				{Keys: bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}}, Unique: true},
			})
		}},
		{BookingsCollection, func() error {
			return s.Bookings.EnsureIndexes(ctx, []Index{
				{Keys: bson.D{{Key: "user", Value: 1}}},
				{Keys: bson.D{{Key: "tour", Value: 1}}},
			})
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", step.name, err)
		}
	}
	return nil
}
