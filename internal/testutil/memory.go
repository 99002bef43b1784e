// Package testutil provides in-memory stores that stand in for the MongoDB
// repositories in handler and service tests.
package testutil

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"
	"time"

	"folio/internal/models"
	"folio/internal/query"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection is an in-memory document collection. Documents are stored in
// their BSON form so updates use the same field names as MongoDB.
type Collection[D models.Document] struct {
	mu     sync.Mutex
	docs   []bson.M
	unique []string
	now    func() time.Time
}

// NewCollection returns an empty collection enforcing unique on the given fields.
func NewCollection[D models.Document](unique ...string) *Collection[D] {
	return &Collection[D]{unique: unique, now: time.Now}
}

func encode(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decode[D any](m bson.M) (D, error) {
	var doc D
	raw, err := bson.Marshal(m)
	if err != nil {
		return doc, err
	}
	err = bson.Unmarshal(raw, &doc)
	return doc, err
}

func (c *Collection[D]) duplicate(m bson.M, skip int) error {
	for _, field := range c.unique {
		v, ok := m[field]
		if !ok || v == "" {
			continue
		}
		for i, other := range c.docs {
			if i != skip && reflect.DeepEqual(other[field], v) {
				return models.NewDuplicateKeyError(field, v)
			}
		}
	}
	return nil
}

func (c *Collection[D]) Create(_ context.Context, doc D) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if doc.GetID().IsZero() {
		doc.SetID(primitive.NewObjectID())
	}
	doc.Touch(c.now())
	m, err := encode(doc)
	if err != nil {
		return err
	}
	if err := c.duplicate(m, -1); err != nil {
		return err
	}
	c.docs = append(c.docs, m)
	return nil
}

func (c *Collection[D]) FindByID(ctx context.Context, id string) (D, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		var zero D
		return zero, models.NewTypeMismatchError("_id", id)
	}
	return c.FindOne(ctx, bson.M{"_id": oid})
}

func (c *Collection[D]) FindOne(_ context.Context, filter bson.M) (D, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(filter)
	if i < 0 {
		var zero D
		return zero, models.ErrDocumentNotFound
	}
	return decode[D](c.docs[i])
}

// Find applies equality filters, the sort's first key and pagination.
func (c *Collection[D]) Find(_ context.Context, q query.Query) ([]D, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []bson.M
	for _, m := range c.docs {
		if matches(m, q.Filter) {
			matched = append(matched, m)
		}
	}
	if len(q.Sort) > 0 {
		key, desc := q.Sort[0].Key, q.Sort[0].Value == -1
		sort.SliceStable(matched, func(i, j int) bool {
			return less(matched[i][key], matched[j][key]) != desc
		})
	}
	if q.Limit > 0 {
		start := min(int(q.Skip()), len(matched))
		end := min(start+int(q.Limit), len(matched))
		matched = matched[start:end]
	}

	out := make([]D, 0, len(matched))
	for _, m := range matched {
		doc, err := decode[D](m)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *Collection[D]) UpdateByID(ctx context.Context, id string, doc D) (D, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		var zero D
		return zero, models.NewTypeMismatchError("_id", id)
	}
	doc.Touch(c.now())
	set, err := encode(doc)
	if err != nil {
		var zero D
		return zero, err
	}
	delete(set, "_id")
	delete(set, "createdAt")
	return c.Update(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
}

// Update supports $set, $unset, $addToSet, $push and $pull.
func (c *Collection[D]) Update(_ context.Context, filter, update bson.M) (D, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero D

	i := c.index(filter)
	if i < 0 {
		return zero, models.ErrDocumentNotFound
	}
	next := bson.M{}
	for k, v := range c.docs[i] {
		next[k] = v
	}
	for op, arg := range update {
		fields, ok := arg.(bson.M)
		if !ok {
			return zero, fmt.Errorf("unsupported update argument for %s", op)
		}
		for field, v := range fields {
			if err := applyOp(next, op, field, v); err != nil {
				return zero, err
			}
		}
	}
	// round trip so pushed structs are stored in BSON form
	doc, err := decode[D](next)
	if err != nil {
		return zero, err
	}
	stored, err := encode(doc)
	if err != nil {
		return zero, err
	}
	if err := c.duplicate(stored, i); err != nil {
		return zero, err
	}
	c.docs[i] = stored
	return doc, nil
}

func (c *Collection[D]) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.NewTypeMismatchError("_id", id)
	}
	_, err = c.FindOneAndDelete(ctx, bson.M{"_id": oid})
	return err
}

func (c *Collection[D]) FindOneAndDelete(_ context.Context, filter bson.M) (D, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(filter)
	if i < 0 {
		var zero D
		return zero, models.ErrDocumentNotFound
	}
	doc, err := decode[D](c.docs[i])
	if err != nil {
		return doc, err
	}
	c.docs = slices.Delete(c.docs, i, i+1)
	return doc, nil
}

// Len is the number of stored documents.
func (c *Collection[D]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *Collection[D]) index(filter bson.M) int {
	for i, m := range c.docs {
		if matches(m, filter) {
			return i
		}
	}
	return -1
}

// matches handles equality, $gt on times and a top-level $or.
func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		if k == "$or" {
			alts, _ := want.(bson.A)
			ok := false
			for _, alt := range alts {
				if f, isM := alt.(bson.M); isM && matches(doc, f) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
			continue
		}
		if cond, ok := want.(bson.M); ok {
			if gt, ok := cond["$gt"].(time.Time); ok {
				got, isDT := doc[k].(primitive.DateTime)
				if !isDT || !got.Time().After(gt) {
					return false
				}
				continue
			}
		}
		if !equal(doc[k], want) {
			return false
		}
	}
	return true
}

func equal(got, want any) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	wrapped, err := encode(bson.M{"v": want})
	if err != nil {
		return false
	}
	return reflect.DeepEqual(got, wrapped["v"])
}

func less(a, b any) bool {
	switch x := a.(type) {
	case primitive.DateTime:
		y, _ := b.(primitive.DateTime)
		return x < y
	case string:
		y, _ := b.(string)
		return x < y
	default:
		return fmt.Sprint(a) < fmt.Sprint(b)
	}
}

func applyOp(doc bson.M, op, field string, v any) error {
	switch op {
	case "$set":
		doc[field] = v
	case "$unset":
		delete(doc, field)
	case "$push":
		doc[field] = append(array(doc[field]), v)
	case "$addToSet":
		arr := array(doc[field])
		for _, e := range arr {
			if equal(e, v) {
				return nil
			}
		}
		doc[field] = append(arr, v)
	case "$pull":
		arr := array(doc[field])
		kept := bson.A{}
		for _, e := range arr {
			if !pulled(e, v) {
				kept = append(kept, e)
			}
		}
		doc[field] = kept
	default:
		return fmt.Errorf("unsupported update operator %s", op)
	}
	return nil
}

func array(v any) bson.A {
	switch a := v.(type) {
	case bson.A:
		return append(bson.A{}, a...)
	default:
		return bson.A{}
	}
}

func pulled(elem, cond any) bool {
	match, ok := cond.(bson.M)
	if !ok {
		return equal(elem, cond)
	}
	var fields bson.M
	switch e := elem.(type) {
	case bson.M:
		fields = e
	case bson.D:
		fields = e.Map()
	default:
		return false
	}
	return matches(fields, match)
}
