package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type point struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type item struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Name     string             `bson:"name"`
	Level    string             `bson:"level,omitempty"`
	Price    float64            `bson:"price"`
	Secret   bool               `bson:"secret"`
	Dates    []time.Time        `bson:"dates,omitempty"`
	Location *point             `bson:"location,omitempty"`
}

func (i *item) GetID() primitive.ObjectID    { return i.ID }
func (i *item) SetID(id primitive.ObjectID) { i.ID = id }

func seedItems(t *testing.T, c Collection[item], items ...item) []item {
	t.Helper()
	out := make([]item, 0, len(items))
	for _, it := range items {
		it := it
		require.NoError(t, c.Insert(context.Background(), &it))
		out = append(out, it)
	}
	return out
}

func TestMemoryCollectionInsertAssignsID(t *testing.T) {
	c := NewMemoryCollection[item]("items")
	it := item{Name: "a"}
	require.NoError(t, c.Insert(context.Background(), &it))
	assert.False(t, it.ID.IsZero())

	got, err := c.FindOne(context.Background(), bson.M{"_id": it.ID})
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func TestMemoryCollectionFilterOperators(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[item]("items")
	seedItems(t, c,
		item{Name: "cheap", Price: 100, Level: "easy"},
		item{Name: "mid", Price: 500, Level: "medium"},
		item{Name: "dear", Price: 1000, Level: "difficult", Secret: true},
	)

	cases := []struct {
		name   string
		filter bson.M
		want   []string
	}{
		{"eq", bson.M{"level": "medium"}, []string{"mid"}},
		{"range", bson.M{"price": bson.M{"$gte": 100, "$lt": 1000}}, []string{"cheap", "mid"}},
		{"in", bson.M{"level": bson.M{"$in": bson.A{"easy", "difficult"}}}, []string{"cheap", "dear"}},
		{"ne", bson.M{"secret": bson.M{"$ne": true}}, []string{"cheap", "mid"}},
		{"exists", bson.M{"missing": bson.M{"$exists": false}}, []string{"cheap", "mid", "dear"}},
		{"and", bson.M{"$and": bson.A{bson.M{"price": bson.M{"$gt": 100}}, bson.M{"secret": false}}}, []string{"mid"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Find(ctx, Query{Filter: tc.filter})
			require.NoError(t, err)
			names := make([]string, 0, len(got))
			for _, it := range got {
				names = append(names, it.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}
}

func TestMemoryCollectionSortSkipLimitProjection(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[item]("items")
	seedItems(t, c,
		item{Name: "b", Price: 200, Level: "easy"},
		item{Name: "a", Price: 200, Level: "medium"},
		item{Name: "c", Price: 50, Level: "easy"},
	)

	got, err := c.Find(ctx, Query{
		Sort:       bson.D{{Key: "price", Value: -1}, {Key: "name", Value: 1}},
		Projection: bson.D{{Key: "name", Value: 1}},
		Skip:       1,
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Name)
	assert.Equal(t, "c", got[1].Name)
	assert.Empty(t, got[0].Level)
	assert.Zero(t, got[0].Price)
	assert.False(t, got[0].ID.IsZero())
}

func TestMemoryCollectionUniqueIndex(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[item]("items")
	require.NoError(t, c.EnsureIndexes(ctx, []Index{{Keys: bson.D{{Key: "name", Value: 1}}, Unique: true}}))
	seeded := seedItems(t, c, item{Name: "one"}, item{Name: "two"})

	err := c.Insert(ctx, &item{Name: "one"})
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "name", dup.Field)
	assert.Equal(t, "one", dup.Value)

	_, err = c.UpdateOne(ctx, bson.M{"_id": seeded[1].ID}, bson.M{"$set": bson.M{"name": "one"}})
	require.ErrorAs(t, err, &dup)

	_, err = c.UpdateOne(ctx, bson.M{"_id": seeded[0].ID}, bson.M{"$set": bson.M{"name": "one", "price": 3}})
	require.NoError(t, err)
}

func TestMemoryCollectionUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[item]("items")
	seeded := seedItems(t, c, item{Name: "x", Price: 10, Level: "easy"}, item{Name: "y", Price: 20})

	updated, err := c.UpdateOne(ctx, bson.M{"_id": seeded[0].ID}, bson.M{
		"$set":   bson.M{"price": 15.5},
		"$unset": bson.M{"level": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 15.5, updated.Price)
	assert.Empty(t, updated.Level)

	_, err = c.UpdateOne(ctx, bson.M{"_id": primitive.NewObjectID()}, bson.M{"$set": bson.M{"price": 1}})
	assert.True(t, errors.Is(err, ErrNotFound))

	deleted, err := c.DeleteOne(ctx, bson.M{"_id": seeded[1].ID})
	require.NoError(t, err)
	assert.Equal(t, "y", deleted.Name)

	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = c.DeleteOne(ctx, bson.M{"_id": seeded[1].ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCollectionAggregateGroup(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[item]("items")
	seedItems(t, c,
		item{Name: "a", Level: "easy", Price: 100},
		item{Name: "b", Level: "medium", Price: 300},
		item{Name: "c", Level: "medium", Price: 500},
	)

	var stats []struct {
		ID       string  `bson:"_id"`
		Count    int     `bson:"count"`
		AvgPrice float64 `bson:"avgPrice"`
		MinPrice float64 `bson:"minPrice"`
		Names    []string `bson:"names"`
	}
	err := c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      bson.M{"$toUpper": "$level"},
			"count":    bson.M{"$sum": 1},
			"avgPrice": bson.M{"$avg": "$price"},
			"minPrice": bson.M{"$min": "$price"},
			"names":    bson.M{"$push": "$name"},
		}}},
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$ne": "EASY"}}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
	}, &stats)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "MEDIUM", stats[0].ID)
	assert.Equal(t, 2, stats[0].Count)
	assert.Equal(t, 400.0, stats[0].AvgPrice)
	assert.Equal(t, 300.0, stats[0].MinPrice)
	assert.Equal(t, []string{"b", "c"}, stats[0].Names)
}

func TestMemoryCollectionAggregateUnwindByMonth(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[item]("items")
	seedItems(t, c,
		item{Name: "a", Dates: []time.Time{
			time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC),
		}},
		item{Name: "b", Dates: []time.Time{
			time.Date(2021, 7, 9, 0, 0, 0, 0, time.UTC),
			time.Date(2022, 7, 9, 0, 0, 0, 0, time.UTC),
		}},
	)

	var plan []struct {
		Month int      `bson:"month"`
		Count int      `bson:"numTourStarts"`
		Tours []string `bson:"tours"`
	}
	err := c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$unwind", Value: "$dates"}},
		{{Key: "$match", Value: bson.M{"dates": bson.M{
			"$gte": time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			"$lte": time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC),
		}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$dates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}}}},
		{{Key: "$limit", Value: 12}},
	}, &plan)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, 7, plan[0].Month)
	assert.Equal(t, 2, plan[0].Count)
	assert.ElementsMatch(t, []string{"a", "b"}, plan[0].Tours)
	assert.Equal(t, 3, plan[1].Month)
}

func TestMemoryCollectionGeo(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[item]("items")
	require.NoError(t, c.EnsureIndexes(ctx, []Index{{Keys: bson.D{{Key: "location", Value: "2dsphere"}}}}))
	seedItems(t, c,
		item{Name: "miami", Location: &point{Type: "Point", Coordinates: []float64{-80.185942, 25.774772}}},
		item{Name: "banff", Location: &point{Type: "Point", Coordinates: []float64{-116.214531, 51.417611}}},
		item{Name: "nowhere"},
	)

	// 400 km around Miami.
	within, err := c.Find(ctx, Query{Filter: bson.M{"location": bson.M{
		"$geoWithin": bson.M{"$centerSphere": bson.A{bson.A{-80.128473, 25.781842}, 400 / 6378.1}},
	}}})
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.Equal(t, "miami", within[0].Name)

	var near []struct {
		Name     string  `bson:"name"`
		Distance float64 `bson:"distance"`
	}
	err = c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":               bson.M{"type": "Point", "coordinates": []float64{-118.113491, 34.111745}},
			"distanceField":      "distance",
			"distanceMultiplier": 0.001,
		}}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}, &near)
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, "banff", near[0].Name)
	assert.InDelta(t, 2000, near[0].Distance, 150)
	assert.Equal(t, "miami", near[1].Name)
	assert.Greater(t, near[1].Distance, near[0].Distance)
}

func TestMerge(t *testing.T) {
	merged := Merge(bson.M{"secret": bson.M{"$ne": true}}, bson.M{"price": 5})
	assert.Equal(t, bson.M{"secret": bson.M{"$ne": true}, "price": 5}, merged)

	clash := Merge(bson.M{"secret": bson.M{"$ne": true}}, bson.M{"secret": true})
	require.Contains(t, clash, "$and")

	c := NewMemoryCollection[item]("items")
	seedItems(t, c, item{Name: "hidden", Secret: true})
	n, err := c.Count(context.Background(), clash)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestParseObjectID(t *testing.T) {
	_, err := ParseObjectID("_id", "nope")
	var cast *CastError
	require.ErrorAs(t, err, &cast)
	assert.Equal(t, "_id", cast.Path)
	assert.Equal(t, "nope", cast.Value)
}
