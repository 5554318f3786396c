package database

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AgiriTaofeek/natours-app/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// runPipeline evaluates the subset of aggregation stages the application
// issues. docs are owned by the caller and may be modified.
func runPipeline(docs []bson.M, pipeline mongo.Pipeline, geoField string) ([]bson.M, error) {
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("pipeline stage %d must have exactly one field", i)
		}
		name, arg := stage[0].Key, stage[0].Value

		var err error
		switch name {
		case "$match":
			docs, err = matchStage(docs, arg)
		case "$group":
			docs, err = groupStage(docs, arg)
		case "$unwind":
			docs, err = unwindStage(docs, arg)
		case "$sort":
			keys, ok := sortKeys(arg)
			if !ok {
				return nil, fmt.Errorf("$sort expects a document")
			}
			sortDocs(docs, keys)
		case "$project":
			spec, ok := asMap(arg)
			if !ok {
				return nil, fmt.Errorf("$project expects a document")
			}
			for j := range docs {
				docs[j] = project(docs[j], spec)
			}
		case "$addFields", "$set":
			spec, ok := asMap(arg)
			if !ok {
				return nil, fmt.Errorf("%s expects a document", name)
			}
			for _, doc := range docs {
				for k, expr := range spec {
					setPath(doc, k, evalExpr(doc, expr))
				}
			}
		case "$limit":
			n, ok := toFloat(arg)
			if !ok {
				return nil, fmt.Errorf("$limit expects a number")
			}
			if int(n) < len(docs) {
				docs = docs[:int(n)]
			}
		case "$skip":
			n, ok := toFloat(arg)
			if !ok {
				return nil, fmt.Errorf("$skip expects a number")
			}
			if int(n) >= len(docs) {
				docs = docs[:0]
			} else {
				docs = docs[int(n):]
			}
		case "$geoNear":
			if i != 0 {
				return nil, fmt.Errorf("$geoNear is only valid as the first stage in a pipeline")
			}
			docs, err = geoNearStage(docs, arg, geoField)
		default:
			return nil, fmt.Errorf("unsupported pipeline stage %s", name)
		}
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func matchStage(docs []bson.M, arg any) ([]bson.M, error) {
	filter, err := toMap(arg)
	if err != nil {
		return nil, err
	}
	out := docs[:0]
	for _, doc := range docs {
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func unwindStage(docs []bson.M, arg any) ([]bson.M, error) {
	path, ok := arg.(string)
	if !ok {
		if m, isMap := asMap(arg); isMap {
			path, ok = m["path"].(string)
		}
	}
	if !ok || !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("$unwind expects a field path")
	}
	path = path[1:]

	var out []bson.M
	for _, doc := range docs {
		v, found := lookup(doc, path)
		if !found {
			continue
		}
		arr, isArr := asArray(v)
		if !isArr {
			out = append(out, doc)
			continue
		}
		for _, el := range arr {
			cp, err := toMap(doc)
			if err != nil {
				return nil, err
			}
			setPath(cp, path, el)
			out = append(out, cp)
		}
	}
	return out, nil
}

type accumulator struct {
	op   string
	expr any
}

func groupStage(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := asMap(arg)
	if !ok {
		return nil, fmt.Errorf("$group expects a document")
	}
	idExpr, ok := spec["_id"]
	if !ok {
		return nil, fmt.Errorf("$group requires an _id")
	}
	fields := map[string]accumulator{}
	for name, v := range spec {
		if name == "_id" {
			continue
		}
		m, ok := asMap(v)
		if !ok || len(m) != 1 {
			return nil, fmt.Errorf("$group field %s must be an accumulator", name)
		}
		for op, expr := range m {
			fields[name] = accumulator{op: op, expr: expr}
		}
	}

	type group struct {
		id   any
		docs []bson.M
	}
	var order []string
	groups := map[string]*group{}
	for _, doc := range docs {
		id := evalExpr(doc, idExpr)
		key := fmt.Sprintf("%T:%v", id, id)
		g, ok := groups[key]
		if !ok {
			g = &group{id: id}
			groups[key] = g
			order = append(order, key)
		}
		g.docs = append(g.docs, doc)
	}

	out := make([]bson.M, 0, len(order))
	for _, key := range order {
		g := groups[key]
		res := bson.M{"_id": g.id}
		for name, acc := range fields {
			v, err := accumulate(acc, g.docs)
			if err != nil {
				return nil, err
			}
			res[name] = v
		}
		out = append(out, res)
	}
	return out, nil
}

func accumulate(acc accumulator, docs []bson.M) (any, error) {
	switch acc.op {
	case "$sum", "$avg":
		var sum float64
		n := 0
		integral := true
		for _, doc := range docs {
			f, ok := toFloat(evalExpr(doc, acc.expr))
			if !ok {
				continue
			}
			if _, isFloat := evalExpr(doc, acc.expr).(float64); isFloat {
				integral = false
			}
			sum += f
			n++
		}
		if acc.op == "$avg" {
			if n == 0 {
				return nil, nil
			}
			return sum / float64(n), nil
		}
		if integral {
			return int64(sum), nil
		}
		return sum, nil
	case "$min", "$max":
		var best any
		found := false
		for _, doc := range docs {
			v := evalExpr(doc, acc.expr)
			if v == nil {
				continue
			}
			if !found {
				best, found = v, true
				continue
			}
			c := compareForSort(v, true, best, true)
			if (acc.op == "$min" && c < 0) || (acc.op == "$max" && c > 0) {
				best = v
			}
		}
		return best, nil
	case "$push":
		out := bson.A{}
		for _, doc := range docs {
			out = append(out, evalExpr(doc, acc.expr))
		}
		return out, nil
	case "$first":
		if len(docs) == 0 {
			return nil, nil
		}
		return evalExpr(docs[0], acc.expr), nil
	}
	return nil, fmt.Errorf("unsupported accumulator %s", acc.op)
}

func evalExpr(doc bson.M, expr any) any {
	if s, ok := expr.(string); ok {
		if strings.HasPrefix(s, "$") {
			v, _ := lookup(doc, s[1:])
			return v
		}
		return s
	}
	m, ok := asMap(expr)
	if !ok {
		return expr
	}
	if len(m) == 1 {
		for op, arg := range m {
			if !strings.HasPrefix(op, "$") {
				break
			}
			v := evalExpr(doc, arg)
			switch op {
			case "$toUpper":
				if v == nil {
					return ""
				}
				return strings.ToUpper(fmt.Sprint(v))
			case "$toLower":
				if v == nil {
					return ""
				}
				return strings.ToLower(fmt.Sprint(v))
			case "$month":
				if t, ok := toTime(v); ok {
					return int32(t.UTC().Month())
				}
				return nil
			case "$year":
				if t, ok := toTime(v); ok {
					return int32(t.UTC().Year())
				}
				return nil
			}
			return nil
		}
	}
	out := bson.M{}
	for k, v := range m {
		out[k] = evalExpr(doc, v)
	}
	return out
}

func sortKeys(arg any) (bson.D, bool) {
	if d, ok := arg.(bson.D); ok {
		return d, true
	}
	m, ok := asMap(arg)
	if !ok {
		return nil, false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d, true
}

func sortDocs(docs []bson.M, keys bson.D) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			a, aFound := lookup(docs[i], k.Key)
			b, bFound := lookup(docs[j], k.Key)
			c := compareForSort(a, aFound, b, bFound)
			if c == 0 {
				continue
			}
			if dir, _ := toFloat(k.Value); dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.HasPrefix(x, "$")
	}
	f, ok := toFloat(v)
	return ok && f != 0
}

func project(doc bson.M, spec bson.M) bson.M {
	inclusive := false
	for k, v := range spec {
		if k != "_id" && truthy(v) {
			inclusive = true
			break
		}
	}

	if !inclusive {
		out, err := toMap(doc)
		if err != nil {
			return doc
		}
		for k, v := range spec {
			if !truthy(v) {
				unsetPath(out, k)
			}
		}
		return out
	}

	out := bson.M{}
	if v, ok := spec["_id"]; !ok || truthy(v) {
		if id, found := doc["_id"]; found {
			out["_id"] = id
		}
	}
	for k, v := range spec {
		if k == "_id" || !truthy(v) {
			continue
		}
		if expr, ok := v.(string); ok {
			setPath(out, k, evalExpr(doc, expr))
			continue
		}
		if val, found := lookup(doc, k); found {
			setPath(out, k, val)
		}
	}
	return out
}

func geoNearStage(docs []bson.M, arg any, geoField string) ([]bson.M, error) {
	if geoField == "" {
		return nil, fmt.Errorf("$geoNear requires a 2dsphere index")
	}
	spec, ok := asMap(arg)
	if !ok {
		return nil, fmt.Errorf("$geoNear expects a document")
	}
	lng, lat, ok := pointCoordinates(spec["near"])
	if !ok {
		return nil, fmt.Errorf("$geoNear requires a near point")
	}
	distanceField, _ := spec["distanceField"].(string)
	if distanceField == "" {
		return nil, fmt.Errorf("$geoNear requires a distanceField")
	}
	multiplier := 1.0
	if m, ok := toFloat(spec["distanceMultiplier"]); ok {
		multiplier = m
	}
	var filter bson.M
	if q, ok := spec["query"]; ok {
		var err error
		if filter, err = toMap(q); err != nil {
			return nil, err
		}
	}

	type ranked struct {
		doc  bson.M
		dist float64
	}
	var hits []ranked
	for _, doc := range docs {
		if filter != nil && !matches(doc, filter) {
			continue
		}
		v, found := lookup(doc, geoField)
		if !found {
			continue
		}
		dLng, dLat, ok := pointCoordinates(v)
		if !ok {
			continue
		}
		metres := utils.CentralAngle(lat, lng, dLat, dLng) * utils.EarthRadiusKm * 1000
		hits = append(hits, ranked{doc: doc, dist: metres * multiplier})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]bson.M, 0, len(hits))
	for _, h := range hits {
		setPath(h.doc, distanceField, h.dist)
		out = append(out, h.doc)
	}
	return out, nil
}
