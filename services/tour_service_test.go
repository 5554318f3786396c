package services

import (
	"context"
	"testing"
	"time"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTourService(t *testing.T) (*TourService, *database.Stores) {
	t.Helper()
	stores := database.NewMemoryStores()
	require.NoError(t, stores.EnsureIndexes(context.Background()))
	reviews := NewReviewService(stores.Reviews, stores.Tours, stores.Users)
	return NewTourService(stores.Tours, stores.Users, reviews), stores
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 9, 0, 0, 0, time.UTC)
}

func TestPrepareDerivesSlugAndGuardsRatings(t *testing.T) {
	svc, _ := newTourService(t)
	created := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)

	tour := models.Tour{Name: "The Snow Adventurer", RatingsAverage: 1, RatingsQuantity: 999}
	require.NoError(t, svc.Prepare(context.Background(), &tour, nil))
	assert.Equal(t, "the-snow-adventurer", tour.Slug)
	assert.Equal(t, models.DefaultRatingsAverage, tour.RatingsAverage)
	assert.Zero(t, tour.RatingsQuantity)
	assert.False(t, tour.CreatedAt.IsZero())

	existing := models.Tour{RatingsAverage: 4.8, RatingsQuantity: 7, CreatedAt: created}
	update := models.Tour{Name: "The Park Camper Deluxe", RatingsAverage: 2, RatingsQuantity: 1}
	require.NoError(t, svc.Prepare(context.Background(), &update, &existing))
	assert.Equal(t, "the-park-camper-deluxe", update.Slug)
	assert.Equal(t, 4.8, update.RatingsAverage)
	assert.Equal(t, 7, update.RatingsQuantity)
	assert.Equal(t, created, update.CreatedAt)
}

func TestStatsGroupsByDifficulty(t *testing.T) {
	svc, stores := newTourService(t)
	insertTour(t, stores.Tours, models.Tour{Name: "Medium One", Difficulty: models.DifficultyMedium, Price: 100, RatingsAverage: 4.6, RatingsQuantity: 3})
	insertTour(t, stores.Tours, models.Tour{Name: "Medium Two", Difficulty: models.DifficultyMedium, Price: 300, RatingsAverage: 4.8, RatingsQuantity: 5})
	insertTour(t, stores.Tours, models.Tour{Name: "Hard One", Difficulty: models.DifficultyDifficult, Price: 900, RatingsAverage: 4.9, RatingsQuantity: 2})
	insertTour(t, stores.Tours, models.Tour{Name: "Easy One", Difficulty: models.DifficultyEasy, Price: 50, RatingsAverage: 4.7})
	insertTour(t, stores.Tours, models.Tour{Name: "Low Rated", Difficulty: models.DifficultyDifficult, Price: 10, RatingsAverage: 3.0})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "MEDIUM", stats[0].Difficulty)
	assert.Equal(t, 2, stats[0].NumTours)
	assert.Equal(t, 8, stats[0].NumRatings)
	assert.InDelta(t, 200, stats[0].AvgPrice, 1e-9)
	assert.Equal(t, float64(100), stats[0].MinPrice)
	assert.Equal(t, float64(300), stats[0].MaxPrice)

	assert.Equal(t, "DIFFICULT", stats[1].Difficulty)
	assert.Equal(t, 1, stats[1].NumTours)
}

func TestMonthlyPlan(t *testing.T) {
	svc, stores := newTourService(t)
	insertTour(t, stores.Tours, models.Tour{Name: "Forest Hiker", Price: 1, StartDates: []time.Time{day(2021, time.April, 25), day(2021, time.July, 20), day(2022, time.April, 1)}})
	insertTour(t, stores.Tours, models.Tour{Name: "Sea Explorer", Price: 1, StartDates: []time.Time{day(2021, time.April, 5)}})

	plan, err := svc.MonthlyPlan(context.Background(), 2021)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, 4, plan[0].Month)
	assert.Equal(t, 2, plan[0].NumTourStarts)
	assert.ElementsMatch(t, []string{"Forest Hiker", "Sea Explorer"}, plan[0].Tours)
	assert.Equal(t, 7, plan[1].Month)
	assert.Equal(t, 1, plan[1].NumTourStarts)
}

func TestWithinAndDistances(t *testing.T) {
	svc, stores := newTourService(t)
	la := models.NewPoint(-118.2437, 34.0522)
	sf := models.NewPoint(-122.4194, 37.7749)
	secret := models.NewPoint(-118.25, 34.05)
	insertTour(t, stores.Tours, models.Tour{Name: "LA Walk", Price: 1, StartLocation: &la})
	insertTour(t, stores.Tours, models.Tour{Name: "SF Walk", Price: 1, StartLocation: &sf})
	insertTour(t, stores.Tours, models.Tour{Name: "Hidden Walk", Price: 1, StartLocation: &secret, SecretTour: true})

	near, err := svc.Within(context.Background(), 50, 34.1, -118.3, "mi")
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, "LA Walk", near[0].Name)

	far, err := svc.Within(context.Background(), 700, 34.1, -118.3, "km")
	require.NoError(t, err)
	assert.Len(t, far, 2)

	dists, err := svc.Distances(context.Background(), 34.0522, -118.2437, "km")
	require.NoError(t, err)
	require.Len(t, dists, 2)
	assert.Equal(t, "LA Walk", dists[0].Name)
	assert.InDelta(t, 0, dists[0].Distance, 0.01)
	assert.Equal(t, "SF Walk", dists[1].Name)
	assert.InDelta(t, 559, dists[1].Distance, 5)
}

func TestBySlugPopulatesGuidesAndReviews(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTourService(t)
	guide := insertUser(t, stores.Users, "Lead Guide", "lead@example.com", models.RoleLeadGuide)
	tour := models.Tour{Name: "The City Wanderer", Price: 1, Guides: nil}
	tour.Guides = append(tour.Guides, guide.ID)
	require.NoError(t, svc.Prepare(ctx, &tour, nil))
	saved := insertTour(t, stores.Tours, tour)

	reviewer := insertUser(t, stores.Users, "Reviewer", "rev@example.com", models.RoleUser)
	require.NoError(t, stores.Reviews.Insert(ctx, &models.Review{Review: "Lovely", Rating: 5, Tour: saved.ID, User: reviewer.ID}))

	got, err := svc.BySlug(ctx, "the-city-wanderer")
	require.NoError(t, err)
	require.Len(t, got.GuideDetails, 1)
	assert.Equal(t, "Lead Guide", got.GuideDetails[0].Name)
	require.Len(t, got.Reviews, 1)
	require.NotNil(t, got.Reviews[0].Author)
	assert.Equal(t, "Reviewer", got.Reviews[0].Author.Name)

	_, err = svc.BySlug(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}
