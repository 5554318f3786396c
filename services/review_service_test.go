package services

import (
	"context"
	"testing"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRecalculateRatings(t *testing.T) {
	ctx := context.Background()
	stores := database.NewMemoryStores()
	svc := NewReviewService(stores.Reviews, stores.Tours, stores.Users)

	tour := insertTour(t, stores.Tours, models.Tour{Name: "The Forest Hiker", Price: 397})
	alice := insertUser(t, stores.Users, "Alice", "alice@example.com", models.RoleUser)
	bob := insertUser(t, stores.Users, "Bob", "bob@example.com", models.RoleUser)
	carol := insertUser(t, stores.Users, "Carol", "carol@example.com", models.RoleUser)

	var reviews []*models.Review
	for i, u := range []*models.User{alice, bob, carol} {
		r := &models.Review{Review: "Great", Rating: []float64{4, 5, 5}[i], Tour: tour.ID, User: u.ID}
		require.NoError(t, stores.Reviews.Insert(ctx, r))
		reviews = append(reviews, r)
	}
	require.NoError(t, svc.RecalculateRatings(ctx, tour.ID))

	got, err := stores.Tours.FindOne(ctx, bson.M{"_id": tour.ID})
	require.NoError(t, err)
	assert.Equal(t, 4.7, got.RatingsAverage)
	assert.Equal(t, 3, got.RatingsQuantity)

	for _, r := range reviews {
		_, err := stores.Reviews.DeleteOne(ctx, bson.M{"_id": r.ID})
		require.NoError(t, err)
	}
	require.NoError(t, svc.RecalculateRatings(ctx, tour.ID))

	got, err = stores.Tours.FindOne(ctx, bson.M{"_id": tour.ID})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRatingsAverage, got.RatingsAverage)
	assert.Equal(t, 0, got.RatingsQuantity)
}

func TestRecalculateRatingsIgnoresDeletedTour(t *testing.T) {
	stores := database.NewMemoryStores()
	svc := NewReviewService(stores.Reviews, stores.Tours, stores.Users)
	assert.NoError(t, svc.RecalculateRatings(context.Background(), insertUser(t, stores.Users, "X", "x@example.com", models.RoleUser).ID))
}

func TestPopulateAuthorsSkipsMissingUsers(t *testing.T) {
	ctx := context.Background()
	stores := database.NewMemoryStores()
	svc := NewReviewService(stores.Reviews, stores.Tours, stores.Users)
	tour := insertTour(t, stores.Tours, models.Tour{Name: "The Sea Explorer", Price: 497})
	alice := insertUser(t, stores.Users, "Alice", "alice@example.com", models.RoleUser)

	require.NoError(t, stores.Reviews.Insert(ctx, &models.Review{Review: "Nice", Rating: 4, Tour: tour.ID, User: alice.ID}))
	require.NoError(t, stores.Reviews.Insert(ctx, &models.Review{Review: "Meh", Rating: 3, Tour: tour.ID, User: tour.ID}))

	reviews, err := svc.ForTour(ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	authors := 0
	for _, r := range reviews {
		if r.Author != nil {
			authors++
			assert.Equal(t, "Alice", r.Author.Name)
			assert.Empty(t, r.Author.Email)
		}
	}
	assert.Equal(t, 1, authors)
}
