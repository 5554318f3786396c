package database

import (
	"bytes"
	"reflect"
	"strings"
	"time"

	"github.com/AgiriTaofeek/natours-app/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toMap normalises any bson-encodable value into a bson.M so documents and
// filters share one representation.
func toMap(v any) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := bson.M{}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func asMap(v any) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return bson.M(m), true
	case bson.D:
		return m.Map(), true
	}
	return nil, false
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return a, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// lookup resolves a dotted path.
func lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc bson.M, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = bson.M{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func matches(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			subs, _ := asArray(cond)
			for _, s := range subs {
				sub, ok := asMap(s)
				if !ok || !matches(doc, sub) {
					return false
				}
			}
		case "$or":
			subs, _ := asArray(cond)
			matched := false
			for _, s := range subs {
				if sub, ok := asMap(s); ok && matches(doc, sub) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		default:
			val, found := lookup(doc, key)
			if !matchCondition(val, found, cond) {
				return false
			}
		}
	}
	return true
}

func operatorDoc(cond any) (bson.M, bool) {
	m, ok := asMap(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func matchCondition(val any, found bool, cond any) bool {
	ops, ok := operatorDoc(cond)
	if !ok {
		return equals(val, found, cond)
	}
	for op, arg := range ops {
		if !applyOperator(op, val, found, arg) {
			return false
		}
	}
	return true
}

func applyOperator(op string, val any, found bool, arg any) bool {
	switch op {
	case "$eq":
		return equals(val, found, arg)
	case "$ne":
		return !equals(val, found, arg)
	case "$gt", "$gte", "$lt", "$lte":
		if !found {
			return false
		}
		return anyElement(val, func(v any) bool {
			c, ok := compareValues(v, arg)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			}
			return c <= 0
		})
	case "$in":
		return in(val, found, arg)
	case "$nin":
		return !in(val, found, arg)
	case "$exists":
		want, _ := arg.(bool)
		return want == found
	case "$geoWithin":
		return found && geoWithin(val, arg)
	}
	return false
}

func in(val any, found bool, arg any) bool {
	candidates, _ := asArray(arg)
	for _, c := range candidates {
		if equals(val, found, c) {
			return true
		}
	}
	return false
}

// anyElement applies pred to val, or to each element when val is an array.
func anyElement(val any, pred func(any) bool) bool {
	if arr, ok := asArray(val); ok {
		for _, v := range arr {
			if pred(v) {
				return true
			}
		}
		return false
	}
	return pred(val)
}

func equals(val any, found bool, want any) bool {
	if want == nil {
		return !found || val == nil
	}
	if !found {
		return false
	}
	if arr, ok := asArray(val); ok {
		if _, wantArr := asArray(want); !wantArr {
			for _, v := range arr {
				if c, ok := compareValues(v, want); ok && c == 0 {
					return true
				}
			}
			return false
		}
	}
	c, ok := compareValues(val, want)
	return ok && c == 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time(), true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

// compareValues orders two scalars of the same class; ok is false when the
// values cannot be compared.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return cmpFloat(fa, fb), true
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(x[:], y[:]), true
	}
	if xa, ok := asArray(a); ok {
		ya, ok := asArray(b)
		if !ok || len(xa) != len(ya) {
			return 0, false
		}
		for i := range xa {
			c, ok := compareValues(xa[i], ya[i])
			if !ok || c != 0 {
				return c, ok
			}
		}
		return 0, true
	}
	if xm, ok := asMap(a); ok {
		ym, ok := asMap(b)
		if !ok || len(xm) != len(ym) {
			return 0, false
		}
		for k, v := range xm {
			c, ok := compareValues(v, ym[k])
			if !ok || c != 0 {
				return 1, true
			}
		}
		return 0, true
	}
	return 0, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// typeRank follows the server's cross-type sort order.
func typeRank(v any, found bool) int {
	if !found || v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case primitive.DateTime, time.Time:
		return 9
	}
	if _, ok := asArray(v); ok {
		return 4
	}
	return 3
}

func compareForSort(a any, aFound bool, b any, bFound bool) int {
	ra, rb := typeRank(a, aFound), typeRank(b, bFound)
	if ra != rb {
		return ra - rb
	}
	c, _ := compareValues(a, b)
	return c
}

// pointCoordinates extracts [lng, lat] from a GeoJSON point or legacy pair.
func pointCoordinates(v any) (lng, lat float64, ok bool) {
	if m, isMap := asMap(v); isMap {
		v = m["coordinates"]
	}
	arr, isArr := asArray(v)
	if !isArr || len(arr) < 2 {
		return 0, 0, false
	}
	lng, ok1 := toFloat(arr[0])
	lat, ok2 := toFloat(arr[1])
	return lng, lat, ok1 && ok2
}

func geoWithin(val any, arg any) bool {
	spec, ok := asMap(arg)
	if !ok {
		return false
	}
	sphere, ok := asArray(spec["$centerSphere"])
	if !ok || len(sphere) != 2 {
		return false
	}
	cLng, cLat, ok := pointCoordinates(sphere[0])
	if !ok {
		return false
	}
	radius, ok := toFloat(sphere[1])
	if !ok {
		return false
	}
	lng, lat, ok := pointCoordinates(val)
	if !ok {
		return false
	}
	return utils.CentralAngle(cLat, cLng, lat, lng) <= radius
}
