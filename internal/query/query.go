// Package query turns list-endpoint query strings into MongoDB find parameters.
package query

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"folio/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var operators = map[string]string{
	"gt": "$gt", "gte": "$gte", "lt": "$lt", "lte": "$lte", "ne": "$ne", "eq": "$eq",
}

// Query is a shaped list request.
type Query struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Page       int64
	Limit      int64
}

// Default is the query used when no parameters are given: newest first,
// hidden fields excluded, first page of ten.
func Default(s *Schema) Query {
	return Query{
		Filter:     bson.M{},
		Sort:       bson.D{{Key: "createdAt", Value: -1}},
		Projection: s.HiddenProjection(),
		Page:       DefaultPage,
		Limit:      DefaultLimit,
	}
}

// Parse applies filtering, sorting, field selection and pagination, in that
// order, from params. Unknown fields and operators are ignored. A value that
// cannot be converted to its field's type is a TypeMismatch error.
// Keys are applied in sorted order, so a plain value for a path is seen
// before its operators and becomes their $eq unless [eq] is also given.
func Parse(s *Schema, params map[string]string) (Query, error) {
	q := Default(s)

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := params[key]
		if reserved[key] {
			continue
		}
		path, op := splitKey(key)
		field, ok := s.Lookup(path)
		if !ok {
			continue
		}
		value, err := coerce(field, raw)
		if err != nil {
			return Query{}, err
		}
		if op == "" {
			q.Filter[path] = value
			continue
		}
		mongoOp, ok := operators[op]
		if !ok {
			continue
		}
		cond, isCond := q.Filter[path].(bson.M)
		if !isCond {
			cond = bson.M{}
			if eq, set := q.Filter[path]; set {
				cond["$eq"] = eq
			}
		}
		cond[mongoOp] = value
		q.Filter[path] = cond
	}

	if sort := parseSort(s, params["sort"]); len(sort) > 0 {
		q.Sort = sort
	}
	if proj := parseFields(s, params["fields"]); len(proj) > 0 {
		q.Projection = proj
	}
	q.Page = positive(params["page"], DefaultPage)
	q.Limit = min(positive(params["limit"], DefaultLimit), MaxLimit)

	return q, nil
}

// Skip is the offset of the requested page.
func (q Query) Skip() int64 {
	return (q.Page - 1) * q.Limit
}

// Scope returns a copy of q whose filter also requires every key of extra.
// Keys in extra override caller-supplied conditions on the same path.
func (q Query) Scope(extra bson.M) Query {
	filter := bson.M{}
	for k, v := range q.Filter {
		filter[k] = v
	}
	for k, v := range extra {
		filter[k] = v
	}
	q.Filter = filter
	return q
}

// FindOptions converts q into driver options.
func (q Query) FindOptions() *options.FindOptions {
	opts := options.Find().SetSort(q.Sort)
	if q.Projection != nil {
		opts.SetProjection(q.Projection)
	}
	if q.Limit > 0 {
		opts.SetSkip(q.Skip()).SetLimit(q.Limit)
	}
	return opts
}

func splitKey(key string) (string, string) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}
	return key[:open], key[open+1 : len(key)-1]
}

func coerce(f Field, raw string) (any, error) {
	switch f.Kind {
	case KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, models.NewTypeMismatchError(f.Path, raw)
		}
		return v, nil
	case KindInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, models.NewTypeMismatchError(f.Path, raw)
		}
		return v, nil
	case KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, models.NewTypeMismatchError(f.Path, raw)
		}
		return v, nil
	case KindTime:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if v, err := time.Parse(layout, raw); err == nil {
				return v, nil
			}
		}
		return nil, models.NewTypeMismatchError(f.Path, raw)
	case KindObjectID:
		v, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, models.NewTypeMismatchError(f.Path, raw)
		}
		return v, nil
	default:
		return raw, nil
	}
}

func parseSort(s *Schema, raw string) bson.D {
	var sort bson.D
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if name, ok := strings.CutPrefix(part, "-"); ok {
			part, dir = name, -1
		}
		if _, ok := s.Lookup(part); !ok {
			continue
		}
		sort = append(sort, bson.E{Key: part, Value: dir})
	}
	return sort
}

func parseFields(s *Schema, raw string) bson.M {
	proj := bson.M{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if _, ok := s.Lookup(part); ok {
			proj[part] = 1
		}
	}
	return proj
}

func positive(raw string, def int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v < 1 {
		return def
	}
	return v
}
