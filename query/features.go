// Package query turns request query strings into store queries.
package query

import (
	"context"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var rangeKey = regexp.MustCompile(`^([A-Za-z0-9_]+)\[(gte|gt|lte|lt)\]$`)

type Kind int

const (
	String Kind = iota
	Number
	Bool
	Date
	ObjectID
)

// Field describes how a query value for a field is coerced. Multi marks
// fields whose repeated values are kept as a set instead of the last one.
type Field struct {
	Kind  Kind
	Multi bool
}

type Schema map[string]Field

// Counter is the part of a collection pagination needs.
type Counter interface {
	Count(ctx context.Context, filter bson.M) (int64, error)
}

// Features builds a database.Query in stages: Filter, Sort, LimitFields
// and Paginate, always in that order.
type Features struct {
	source Counter
	params url.Values
	schema Schema
	base   bson.M

	filter     bson.M
	sort       bson.D
	projection bson.D
	skip       int64
	limit      int64
}

func New(source Counter, base bson.M, params url.Values, schema Schema) *Features {
	if params == nil {
		params = url.Values{}
	}
	return &Features{
		source: source,
		params: params,
		schema: schema,
		base:   base,
		filter: database.Merge(base),
	}
}

// Filter translates every non-reserved parameter into a predicate.
func (f *Features) Filter() *Features {
	conds := map[string]bson.M{}
	for key, values := range f.params {
		if reserved[key] || len(values) == 0 || strings.ContainsAny(key, "$.") {
			continue
		}

		field, op := key, "$eq"
		if strings.Contains(key, "[") {
			m := rangeKey.FindStringSubmatch(key)
			if m == nil {
				continue
			}
			field, op = m[1], "$"+m[2]
		}

		spec := f.schema[field]
		c, ok := conds[field]
		if !ok {
			c = bson.M{}
			conds[field] = c
		}
		if op == "$eq" && spec.Multi && len(values) > 1 {
			in := make(bson.A, 0, len(values))
			for _, v := range values {
				in = append(in, coerce(spec.Kind, v))
			}
			c["$in"] = in
			continue
		}
		c[op] = coerce(spec.Kind, values[len(values)-1])
	}

	filter := bson.M{}
	for field, c := range conds {
		if v, ok := c["$eq"]; ok && len(c) == 1 {
			filter[field] = v
			continue
		}
		filter[field] = c
	}
	f.filter = database.Merge(f.base, filter)
	return f
}

// Sort orders by a comma separated list; a leading "-" sorts descending.
func (f *Features) Sort() *Features {
	f.sort = bson.D{{Key: "createdAt", Value: -1}}
	raw := last(f.params, "sort")
	if raw == "" {
		return f
	}
	var keys bson.D
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir, part = -1, part[1:]
		}
		if part == "" || strings.Contains(part, "$") {
			continue
		}
		keys = append(keys, bson.E{Key: part, Value: dir})
	}
	if len(keys) > 0 {
		f.sort = keys
	}
	return f
}

// LimitFields projects the listed fields, or hides the "-" prefixed ones.
func (f *Features) LimitFields() *Features {
	f.projection = bson.D{{Key: "__v", Value: 0}}
	raw := last(f.params, "fields")
	if raw == "" {
		return f
	}
	var include, exclude bson.D
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "-") {
			if name := part[1:]; name != "" && !strings.Contains(name, "$") {
				exclude = append(exclude, bson.E{Key: name, Value: 0})
			}
			continue
		}
		if part != "" && !strings.Contains(part, "$") {
			include = append(include, bson.E{Key: part, Value: 1})
		}
	}
	switch {
	case len(include) > 0:
		f.projection = include
	case len(exclude) > 0:
		f.projection = exclude
	}
	return f
}

// Paginate computes the window. An explicitly requested page beyond the
// matching documents is a 404.
func (f *Features) Paginate(ctx context.Context) (*Features, error) {
	page := positive(last(f.params, "page"), DefaultPage)
	limit := positive(last(f.params, "limit"), DefaultLimit)
	// skip would overflow int64
	if page-1 > math.MaxInt64/limit {
		return nil, apperror.NotFound("This page does not exist")
	}
	f.skip = (page - 1) * limit
	f.limit = limit

	if _, ok := f.params["page"]; ok {
		total, err := f.source.Count(ctx, f.filter)
		if err != nil {
			return nil, err
		}
		if f.skip >= total {
			return nil, apperror.NotFound("This page does not exist")
		}
	}
	return f, nil
}

func (f *Features) Query() database.Query {
	return database.Query{
		Filter:     f.filter,
		Sort:       f.sort,
		Projection: f.projection,
		Skip:       f.skip,
		Limit:      f.limit,
	}
}

func last(params url.Values, key string) string {
	values := params[key]
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

func positive(raw string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func coerce(kind Kind, raw string) any {
	switch kind {
	case Number:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	case Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case Date:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	case ObjectID:
		if id, err := primitive.ObjectIDFromHex(raw); err == nil {
			return id
		}
	}
	return raw
}
