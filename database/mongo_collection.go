package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCollection[T any] struct {
	coll *mongo.Collection
}

// NewMongoCollection wraps a driver collection.
func NewMongoCollection[T any](db *mongo.Database, name string) Collection[T] {
	return &mongoCollection[T]{coll: db.Collection(name)}
}

func (c *mongoCollection[T]) Name() string { return c.coll.Name() }

func (c *mongoCollection[T]) Insert(ctx context.Context, doc *T) error {
	assignID(doc)
	_, err := c.coll.InsertOne(ctx, doc)
	return c.translate(err)
}

func (c *mongoCollection[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var out T
	if err := c.coll.FindOne(ctx, nonNil(filter)).Decode(&out); err != nil {
		return nil, c.translate(err)
	}
	return &out, nil
}

func (c *mongoCollection[T]) Find(ctx context.Context, q Query) ([]T, error) {
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := c.coll.Find(ctx, nonNil(q.Filter), opts)
	if err != nil {
		return nil, c.translate(err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *mongoCollection[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	return c.coll.CountDocuments(ctx, nonNil(filter))
}

func (c *mongoCollection[T]) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out T
	if err := c.coll.FindOneAndUpdate(ctx, nonNil(filter), update, opts).Decode(&out); err != nil {
		return nil, c.translate(err)
	}
	return &out, nil
}

func (c *mongoCollection[T]) DeleteOne(ctx context.Context, filter bson.M) (*T, error) {
	var out T
	if err := c.coll.FindOneAndDelete(ctx, nonNil(filter)).Decode(&out); err != nil {
		return nil, c.translate(err)
	}
	return &out, nil
}

func (c *mongoCollection[T]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, nonNil(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cursor, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func (c *mongoCollection[T]) EnsureIndexes(ctx context.Context, indexes []Index) error {
	if len(indexes) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(indexes))
	for _, idx := range indexes {
		m := mongo.IndexModel{Keys: idx.Keys}
		if idx.Unique {
			m.Options = options.Index().SetUnique(true)
		}
		models = append(models, m)
	}
	_, err := c.coll.Indexes().CreateMany(ctx, models)
	return err
}

func (c *mongoCollection[T]) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return parseDuplicateKey(c.coll.Name(), err)
	}
	return err
}

func nonNil(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
