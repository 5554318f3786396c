package services

import (
	"context"
	"time"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/utils"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type TourStat struct {
	Difficulty string  `bson:"_id" json:"_id"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

type MonthlyPlan struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

type TourDistance struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Name     string             `bson:"name" json:"name"`
	Distance float64            `bson:"distance" json:"distance"`
}

type TourService struct {
	tours   database.Collection[models.Tour]
	users   database.Collection[models.User]
	reviews *ReviewService
	now     func() time.Time
}

func NewTourService(tours database.Collection[models.Tour], users database.Collection[models.User], reviews *ReviewService) *TourService {
	return &TourService{tours: tours, users: users, reviews: reviews, now: time.Now}
}

// Prepare fills derived fields before a tour is stored. On create existing
// is nil; on update the stored rating aggregates win over the request.
func (s *TourService) Prepare(_ context.Context, tour *models.Tour, existing *models.Tour) error {
	tour.Slug = slug.Make(tour.Name)
	if existing == nil {
		tour.RatingsAverage = models.DefaultRatingsAverage
		tour.RatingsQuantity = 0
		tour.CreatedAt = s.now()
	} else {
		tour.RatingsAverage = existing.RatingsAverage
		tour.RatingsQuantity = existing.RatingsQuantity
		tour.CreatedAt = existing.CreatedAt
	}
	tour.RatingsAverage = models.RoundRating(tour.RatingsAverage)
	if tour.StartLocation != nil && tour.StartLocation.Type == "" {
		tour.StartLocation.Type = "Point"
	}
	for i := range tour.Locations {
		if tour.Locations[i].Type == "" {
			tour.Locations[i].Type = "Point"
		}
	}
	return nil
}

// PopulateGuides replaces guide ids with their summaries on every tour.
func (s *TourService) PopulateGuides(ctx context.Context, tours []models.Tour) error {
	var ids []primitive.ObjectID
	for _, t := range tours {
		ids = append(ids, t.Guides...)
	}
	guides, err := userSummaries(ctx, s.users, ids)
	if err != nil {
		return err
	}
	for i := range tours {
		tours[i].GuideDetails = nil
		for _, id := range tours[i].Guides {
			if g, ok := guides[id]; ok {
				tours[i].GuideDetails = append(tours[i].GuideDetails, g)
			}
		}
	}
	return nil
}

// PopulateDetail loads guides and reviews for a single tour.
func (s *TourService) PopulateDetail(ctx context.Context, tour *models.Tour) error {
	one := []models.Tour{*tour}
	if err := s.PopulateGuides(ctx, one); err != nil {
		return err
	}
	*tour = one[0]

	reviews, err := s.reviews.ForTour(ctx, tour.ID)
	if err != nil {
		return err
	}
	tour.Reviews = reviews
	return nil
}

// BySlug returns a visible tour with guides and reviews.
func (s *TourService) BySlug(ctx context.Context, name string) (*models.Tour, error) {
	tour, err := s.tours.FindOne(ctx, database.Merge(models.VisibleTours(), bson.M{"slug": name}))
	if err != nil {
		return nil, err
	}
	if err := s.PopulateDetail(ctx, tour); err != nil {
		return nil, err
	}
	return tour, nil
}

func (s *TourService) ByID(ctx context.Context, id primitive.ObjectID) (*models.Tour, error) {
	return s.tours.FindOne(ctx, database.ByID(id, models.VisibleTours()))
}

// Visible lists every visible tour, newest first.
func (s *TourService) Visible(ctx context.Context) ([]models.Tour, error) {
	return s.tours.Find(ctx, database.Query{
		Filter: models.VisibleTours(),
		Sort:   bson.D{{Key: "createdAt", Value: -1}},
	})
}

// ByIDs lists the visible tours with the given ids.
func (s *TourService) ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Tour, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []models.Tour{}, nil
	}
	return s.tours.Find(ctx, database.Query{
		Filter: database.Merge(models.VisibleTours(), bson.M{"_id": bson.M{"$in": ids}}),
	})
}

func (s *TourService) Stats(ctx context.Context) ([]TourStat, error) {
	stats := []TourStat{}
	err := s.tours.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": 4.5}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$ne": "EASY"}}}},
	}, &stats)
	return stats, err
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlan, error) {
	plan := []MonthlyPlan{}
	err := s.tours.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{
			"$gte": time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			"$lte": time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}, &plan)
	return plan, err
}

// Within lists visible tours starting within distance (in unit) of the
// point.
func (s *TourService) Within(ctx context.Context, distance, lat, lng float64, unit string) ([]models.Tour, error) {
	radius := utils.RadiusInRadians(distance, unit)
	return s.tours.Find(ctx, database.Query{
		Filter: database.Merge(models.VisibleTours(), bson.M{"startLocation": bson.M{
			"$geoWithin": bson.M{"$centerSphere": bson.A{bson.A{lng, lat}, radius}},
		}}),
	})
}

// Distances returns every visible tour's distance from the point in unit,
// nearest first.
func (s *TourService) Distances(ctx context.Context, lat, lng float64, unit string) ([]TourDistance, error) {
	out := []TourDistance{}
	err := s.tours.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":               bson.M{"type": "Point", "coordinates": bson.A{lng, lat}},
			"distanceField":      "distance",
			"distanceMultiplier": utils.DistanceMultiplier(unit),
			"query":              models.VisibleTours(),
		}}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}, &out)
	return out, err
}
