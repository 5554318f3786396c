package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/logging"
	"github.com/AgiriTaofeek/natours-app/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const (
	tourID  = "5c88fa8cf4afda39709c2955"
	aliceID = "5c8a1d5b0190b214360dc057"
	bobID   = "5c8a1dfa2f8fb814b56fa181"
)

func writeDataSet(t *testing.T, hash string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		ToursFile: `[{
			"_id": "` + tourID + `",
			"name": "The Sea Explorer",
			"duration": 7,
			"maxGroupSize": 15,
			"difficulty": "medium",
			"price": 497,
			"summary": "Exploring the jaw-dropping US east coast by foot and by boat",
			"imageCover": "tour-2-cover.jpg",
			"startDates": ["2021-06-19T09:00:00.000Z"],
			"startLocation": {"coordinates": [-80.185942, 25.774772], "address": "Miami, USA"},
			"locations": [{"coordinates": [-80.128473, 25.781842], "day": 1, "description": "Lummus Park Beach"}],
			"guides": ["` + bobID + `"]
		}]`,
		UsersFile: `[
			{"_id": "` + aliceID + `", "name": "Alice", "email": "Alice@Example.com", "password": "` + hash + `"},
			{"_id": "` + bobID + `", "name": "Bob", "email": "bob@example.com", "role": "lead-guide", "password": "` + hash + `", "active": true}
		]`,
		ReviewsFile: `[
			{"review": "Wonderful", "rating": 5, "tour": "` + tourID + `", "user": "` + aliceID + `"},
			{"review": "Good", "rating": 4, "tour": "` + tourID + `", "user": "` + bobID + `"}
		]`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("test1234"), bcrypt.MinCost)
	require.NoError(t, err)
	dir := writeDataSet(t, string(hash))

	stores := database.NewMemoryStores()
	require.NoError(t, stores.EnsureIndexes(ctx))
	reviews := services.NewReviewService(stores.Reviews, stores.Tours, stores.Users)

	res, err := Import(ctx, stores, dir, reviews, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, Result{Tours: 1, Users: 2, Reviews: 2}, res)

	id, _ := primitive.ObjectIDFromHex(tourID)
	tour, err := stores.Tours.FindOne(ctx, bson.M{"_id": id})
	require.NoError(t, err)
	assert.Equal(t, "the-sea-explorer", tour.Slug)
	assert.Equal(t, "Point", tour.StartLocation.Type)
	assert.Equal(t, "Point", tour.Locations[0].Type)
	assert.Equal(t, 4.5, tour.RatingsAverage)
	assert.Equal(t, 2, tour.RatingsQuantity)
	assert.False(t, tour.CreatedAt.IsZero())

	alice, err := stores.Users.FindOne(ctx, bson.M{"email": "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "user", string(alice.Role))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(alice.Password), []byte("test1234")))

	bob, err := stores.Users.FindOne(ctx, bson.M{"email": "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "lead-guide", string(bob.Role))
	assert.True(t, bob.IsActive())
}

func TestImportMissingFile(t *testing.T) {
	stores := database.NewMemoryStores()
	reviews := services.NewReviewService(stores.Reviews, stores.Tours, stores.Users)

	_, err := Import(context.Background(), stores, t.TempDir(), reviews, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ToursFile)
}

func TestImportTwiceHitsUniqueIndex(t *testing.T) {
	ctx := context.Background()
	dir := writeDataSet(t, "$2a$04$abcdefghijklmnopqrstuu")
	stores := database.NewMemoryStores()
	require.NoError(t, stores.EnsureIndexes(ctx))
	reviews := services.NewReviewService(stores.Reviews, stores.Tours, stores.Users)

	_, err := Import(ctx, stores, dir, reviews, logging.Discard())
	require.NoError(t, err)
	_, err = Import(ctx, stores, dir, reviews, logging.Discard())
	var dup *database.DuplicateKeyError
	assert.ErrorAs(t, err, &dup)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	dir := writeDataSet(t, "$2a$04$abcdefghijklmnopqrstuu")
	stores := database.NewMemoryStores()
	reviews := services.NewReviewService(stores.Reviews, stores.Tours, stores.Users)
	_, err := Import(ctx, stores, dir, reviews, logging.Discard())
	require.NoError(t, err)

	require.NoError(t, Delete(ctx, stores, logging.Discard()))
	for _, count := range []func() (int64, error){
		func() (int64, error) { return stores.Tours.Count(ctx, bson.M{}) },
		func() (int64, error) { return stores.Users.Count(ctx, bson.M{}) },
		func() (int64, error) { return stores.Reviews.Count(ctx, bson.M{}) },
	} {
		n, err := count()
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}
