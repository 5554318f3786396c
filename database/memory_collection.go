package database

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// memoryCollection keeps documents in insertion order as normalised bson
// maps. It backs development runs without a cluster and the test suites.
type memoryCollection[T any] struct {
	name    string
	mu      sync.RWMutex
	docs    []bson.M
	indexes []Index
}

// NewMemoryCollection returns an empty in-process collection.
func NewMemoryCollection[T any](name string) Collection[T] {
	return &memoryCollection[T]{name: name}
}

func (c *memoryCollection[T]) Name() string { return c.name }

func (c *memoryCollection[T]) Insert(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	assignID(doc)
	m, err := toMap(doc)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUnique(m, -1); err != nil {
		return err
	}
	c.docs = append(c.docs, m)
	return nil
}

func (c *memoryCollection[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := toMap(filter)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, doc := range c.docs {
		if matches(doc, f) {
			return decode[T](doc)
		}
	}
	return nil, ErrNotFound
}

func (c *memoryCollection[T]) Find(ctx context.Context, q Query) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := toMap(q.Filter)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	var hits []bson.M
	for _, doc := range c.docs {
		if matches(doc, f) {
			hits = append(hits, doc)
		}
	}
	c.mu.RUnlock()

	sortDocs(hits, q.Sort)
	if q.Skip > 0 {
		if q.Skip >= int64(len(hits)) {
			hits = nil
		} else {
			hits = hits[q.Skip:]
		}
	}
	if q.Limit > 0 && q.Limit < int64(len(hits)) {
		hits = hits[:q.Limit]
	}

	out := make([]T, 0, len(hits))
	for _, doc := range hits {
		if len(q.Projection) > 0 {
			doc = project(doc, q.Projection.Map())
		}
		v, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (c *memoryCollection[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := toMap(filter)
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, doc := range c.docs {
		if matches(doc, f) {
			n++
		}
	}
	return n, nil
}

func (c *memoryCollection[T]) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := toMap(filter)
	if err != nil {
		return nil, err
	}
	u, err := toMap(update)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if !matches(doc, f) {
			continue
		}
		updated, err := toMap(doc)
		if err != nil {
			return nil, err
		}
		if err := applyUpdate(updated, u); err != nil {
			return nil, err
		}
		if err := c.checkUnique(updated, i); err != nil {
			return nil, err
		}
		c.docs[i] = updated
		return decode[T](updated)
	}
	return nil, ErrNotFound
}

func (c *memoryCollection[T]) DeleteOne(ctx context.Context, filter bson.M) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := toMap(filter)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if matches(doc, f) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return decode[T](doc)
		}
	}
	return nil, ErrNotFound
}

func (c *memoryCollection[T]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := toMap(filter)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.docs[:0]
	var n int64
	for _, doc := range c.docs {
		if matches(doc, f) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return n, nil
}

func (c *memoryCollection[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	docs := make([]bson.M, 0, len(c.docs))
	for _, doc := range c.docs {
		cp, err := toMap(doc)
		if err != nil {
			c.mu.RUnlock()
			return err
		}
		docs = append(docs, cp)
	}
	geoField := c.geoField()
	c.mu.RUnlock()

	results, err := runPipeline(docs, pipeline, geoField)
	if err != nil {
		return err
	}
	if results == nil {
		results = []bson.M{}
	}

	raw, err := bson.Marshal(bson.M{"results": results})
	if err != nil {
		return err
	}
	return bson.Raw(raw).Lookup("results").Unmarshal(out)
}

func (c *memoryCollection[T]) EnsureIndexes(ctx context.Context, indexes []Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = append(c.indexes, indexes...)
	return nil
}

func (c *memoryCollection[T]) geoField() string {
	for _, idx := range c.indexes {
		for _, k := range idx.Keys {
			if s, ok := k.Value.(string); ok && s == "2dsphere" {
				return k.Key
			}
		}
	}
	return ""
}

// checkUnique must be called with the write lock held. skip is the index of
// the document being replaced, or -1 on insert.
func (c *memoryCollection[T]) checkUnique(doc bson.M, skip int) error {
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		values := make([]any, len(idx.Keys))
		present := false
		for i, k := range idx.Keys {
			v, found := lookup(doc, k.Key)
			values[i] = v
			present = present || found
		}
		if !present {
			continue
		}
		for i, other := range c.docs {
			if i == skip {
				continue
			}
			same := true
			for j, k := range idx.Keys {
				v, found := lookup(other, k.Key)
				if !equals(v, found, values[j]) {
					same = false
					break
				}
			}
			if same {
				return &DuplicateKeyError{Collection: c.name, Field: keyNames(idx.Keys), Value: values[0]}
			}
		}
	}
	return nil
}

func keyNames(keys bson.D) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Key
	}
	return strings.Join(names, ", ")
}

func applyUpdate(doc bson.M, update bson.M) error {
	for op, arg := range update {
		fields, ok := asMap(arg)
		if !ok {
			return fmt.Errorf("update operator %s expects a document", op)
		}
		switch op {
		case "$set":
			for path, v := range fields {
				if path == "_id" {
					continue
				}
				setPath(doc, path, v)
			}
		case "$unset":
			for path := range fields {
				unsetPath(doc, path)
			}
		case "$inc":
			for path, v := range fields {
				delta, ok := toFloat(v)
				if !ok {
					return fmt.Errorf("cannot $inc %s by a non-number", path)
				}
				cur, _ := lookup(doc, path)
				base, _ := toFloat(cur)
				setPath(doc, path, base+delta)
			}
		default:
			return fmt.Errorf("unsupported update operator %s", op)
		}
	}
	return nil
}

func decode[T any](doc bson.M) (*T, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
