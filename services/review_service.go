package services

import (
	"context"
	"errors"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/metrics"
	"github.com/AgiriTaofeek/natours-app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type ReviewService struct {
	reviews database.Collection[models.Review]
	tours   database.Collection[models.Tour]
	users   database.Collection[models.User]
}

func NewReviewService(reviews database.Collection[models.Review], tours database.Collection[models.Tour], users database.Collection[models.User]) *ReviewService {
	return &ReviewService{reviews: reviews, tours: tours, users: users}
}

type ratingStats struct {
	ID        primitive.ObjectID `bson:"_id"`
	NRating   int                `bson:"nRating"`
	AvgRating float64            `bson:"avgRating"`
}

// RecalculateRatings recomputes the tour's ratingsAverage and
// ratingsQuantity from its reviews. A deleted tour is not an error.
func (s *ReviewService) RecalculateRatings(ctx context.Context, tourID primitive.ObjectID) error {
	var stats []ratingStats
	err := s.reviews.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$tour",
			"nRating":   bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	}, &stats)
	if err != nil {
		return err
	}

	avg, quantity := models.DefaultRatingsAverage, 0
	if len(stats) > 0 {
		avg, quantity = stats[0].AvgRating, stats[0].NRating
	}

	_, err = s.tours.UpdateOne(ctx, bson.M{"_id": tourID}, bson.M{"$set": bson.M{
		"ratingsAverage":  models.RoundRating(avg),
		"ratingsQuantity": quantity,
	}})
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	metrics.RatingRecalculated()
	return nil
}

// PopulateAuthors attaches the author name and photo to each review.
func (s *ReviewService) PopulateAuthors(ctx context.Context, reviews []models.Review) error {
	ids := make([]primitive.ObjectID, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.User)
	}
	authors, err := userSummaries(ctx, s.users, ids)
	if err != nil {
		return err
	}
	for i := range reviews {
		if a, ok := authors[reviews[i].User]; ok {
			reviews[i].Author = &models.UserSummary{ID: a.ID, Name: a.Name, Photo: a.Photo}
		}
	}
	return nil
}

// ForTour lists a tour's reviews with their authors, newest first.
func (s *ReviewService) ForTour(ctx context.Context, tourID primitive.ObjectID) ([]models.Review, error) {
	reviews, err := s.reviews.Find(ctx, database.Query{
		Filter: bson.M{"tour": tourID},
		Sort:   bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	if err := s.PopulateAuthors(ctx, reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}
