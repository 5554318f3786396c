package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Query is a resolved find: filter, ordering, projection and window.
type Query struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.D
	Skip       int64
	Limit      int64
}

// Index describes a collection index. A key value of "2dsphere" marks a
// geospatial index, any other value is the sort direction.
type Index struct {
	Keys   bson.D
	Unique bool
}

// Model is implemented by documents that own their ObjectID.
type Model interface {
	GetID() primitive.ObjectID
	SetID(id primitive.ObjectID)
}

// Collection is the typed document store used by every resource.
type Collection[T any] interface {
	Name() string
	Insert(ctx context.Context, doc *T) error
	FindOne(ctx context.Context, filter bson.M) (*T, error)
	Find(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	// UpdateOne applies update to the first match and returns the document
	// as it is after the update.
	UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*T, error)
	// DeleteOne removes the first match and returns it.
	DeleteOne(ctx context.Context, filter bson.M) (*T, error)
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
	// Aggregate runs pipeline and decodes the result set into out, which
	// must be a pointer to a slice.
	Aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error
	EnsureIndexes(ctx context.Context, indexes []Index) error
}

// Merge combines filters. Filters that constrain the same key are joined
// with $and so neither side is lost.
func Merge(filters ...bson.M) bson.M {
	out := bson.M{}
	var conflicts bson.A
	for _, f := range filters {
		if len(f) == 0 {
			continue
		}
		clash := false
		for k := range f {
			if _, ok := out[k]; ok {
				clash = true
				break
			}
		}
		if clash {
			conflicts = append(conflicts, f)
			continue
		}
		for k, v := range f {
			out[k] = v
		}
	}
	if len(conflicts) == 0 {
		return out
	}
	return bson.M{"$and": append(bson.A{out}, conflicts...)}
}

// ByID returns a filter for id within the given scope.
func ByID(id primitive.ObjectID, scope bson.M) bson.M {
	return Merge(scope, bson.M{"_id": id})
}

func assignID(doc any) {
	m, ok := doc.(Model)
	if !ok {
		return
	}
	if m.GetID().IsZero() {
		m.SetID(primitive.NewObjectID())
	}
}
