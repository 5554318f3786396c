package query

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type fixedCounter struct {
	total int64
	seen  bson.M
}

func (c *fixedCounter) Count(_ context.Context, filter bson.M) (int64, error) {
	c.seen = filter
	return c.total, nil
}

var tourSchema = Schema{
	"duration":   {Kind: Number, Multi: true},
	"price":      {Kind: Number, Multi: true},
	"difficulty": {Kind: String, Multi: true},
	"secretTour": {Kind: Bool},
}

func parse(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestFilterRangeAndEquality(t *testing.T) {
	f := New(&fixedCounter{}, nil, parse(t, "duration[gte]=5&difficulty=easy&price[lt]=1500&page=2&sort=price&limit=3&fields=name"), tourSchema).Filter()

	q := f.Query()
	assert.Equal(t, bson.M{
		"duration":   bson.M{"$gte": 5.0},
		"difficulty": "easy",
		"price":      bson.M{"$lt": 1500.0},
	}, q.Filter)
}

func TestFilterPollution(t *testing.T) {
	q := New(&fixedCounter{}, nil, parse(t, "duration=5&duration=9&name=a&name=b"), tourSchema).Filter().Query()
	assert.Equal(t, bson.M{"$in": bson.A{5.0, 9.0}}, q.Filter["duration"])
	assert.Equal(t, "b", q.Filter["name"])
}

func TestFilterSanitises(t *testing.T) {
	q := New(&fixedCounter{}, nil, parse(t, "$where=1&a.b=2&price[ne]=3&email[$gt]=x"), tourSchema).Filter().Query()
	assert.Empty(t, q.Filter)
}

func TestFilterMergesBase(t *testing.T) {
	base := bson.M{"secretTour": bson.M{"$ne": true}}
	q := New(&fixedCounter{}, base, parse(t, "price=397"), tourSchema).Filter().Query()
	assert.Equal(t, bson.M{"secretTour": bson.M{"$ne": true}, "price": 397.0}, q.Filter)

	clash := New(&fixedCounter{}, base, parse(t, "secretTour=true"), tourSchema).Filter().Query()
	assert.Contains(t, clash.Filter, "$and")
}

func TestSort(t *testing.T) {
	q := New(&fixedCounter{}, nil, url.Values{}, nil).Sort().Query()
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, q.Sort)

	q = New(&fixedCounter{}, nil, parse(t, "sort=-ratingsAverage,price"), nil).Sort().Query()
	assert.Equal(t, bson.D{{Key: "ratingsAverage", Value: -1}, {Key: "price", Value: 1}}, q.Sort)
}

func TestLimitFields(t *testing.T) {
	q := New(&fixedCounter{}, nil, url.Values{}, nil).LimitFields().Query()
	assert.Equal(t, bson.D{{Key: "__v", Value: 0}}, q.Projection)

	q = New(&fixedCounter{}, nil, parse(t, "fields=name,price"), nil).LimitFields().Query()
	assert.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "price", Value: 1}}, q.Projection)

	q = New(&fixedCounter{}, nil, parse(t, "fields=-description"), nil).LimitFields().Query()
	assert.Equal(t, bson.D{{Key: "description", Value: 0}}, q.Projection)
}

func TestPaginate(t *testing.T) {
	ctx := context.Background()

	f, err := New(&fixedCounter{total: 9}, nil, url.Values{}, nil).Paginate(ctx)
	require.NoError(t, err)
	q := f.Query()
	assert.EqualValues(t, 0, q.Skip)
	assert.EqualValues(t, DefaultLimit, q.Limit)

	f, err = New(&fixedCounter{total: 9}, nil, parse(t, "page=3&limit=3"), nil).Paginate(ctx)
	require.NoError(t, err)
	q = f.Query()
	assert.EqualValues(t, 6, q.Skip)
	assert.EqualValues(t, 3, q.Limit)

	f, err = New(&fixedCounter{total: 9}, nil, parse(t, "page=abc&limit=-4"), nil).Paginate(ctx)
	require.NoError(t, err)
	q = f.Query()
	assert.EqualValues(t, 0, q.Skip)
	assert.EqualValues(t, DefaultLimit, q.Limit)
}

func TestPaginateBeyondEnd(t *testing.T) {
	counter := &fixedCounter{total: 9}
	base := bson.M{"active": bson.M{"$ne": false}}
	_, err := New(counter, base, parse(t, "page=4&limit=3"), nil).Filter().Paginate(context.Background())

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
	assert.Equal(t, "This page does not exist", appErr.Message)
	assert.Equal(t, base, counter.seen)
}

func TestPaginateOverflowingSkip(t *testing.T) {
	for _, raw := range []string{
		"page=4611686018427387905&limit=4",
		"page=9223372036854775807&limit=9223372036854775807",
		"page=2&limit=9223372036854775807",
	} {
		counter := &fixedCounter{total: 3}
		_, err := New(counter, bson.M{}, parse(t, raw), nil).Filter().Paginate(context.Background())

		appErr, ok := apperror.As(err)
		require.True(t, ok, raw)
		assert.Equal(t, http.StatusNotFound, appErr.StatusCode, raw)
		assert.Equal(t, "This page does not exist", appErr.Message, raw)
	}
}
