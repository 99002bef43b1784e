// Package repository provides MongoDB-backed persistence for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"folio/internal/models"
	"folio/internal/observability"
	"folio/internal/query"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is a typed view over one MongoDB collection. D is a pointer to
// a document struct embedding models.Base, e.g. *models.Post.
type Collection[D models.Document] struct {
	coll   *mongo.Collection
	schema *query.Schema
	now    func() time.Time
}

// NewCollection wraps coll for documents of type D.
func NewCollection[D models.Document](coll *mongo.Collection) *Collection[D] {
	return &Collection[D]{
		coll:   coll,
		schema: query.SchemaFor[D](),
		now:    time.Now,
	}
}

// Schema describes the queryable fields of D.
func (r *Collection[D]) Schema() *query.Schema {
	return r.schema
}

// Name is the collection name.
func (r *Collection[D]) Name() string {
	return r.coll.Name()
}

func (r *Collection[D]) track(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := observability.StartRepositorySpan(ctx, op, r.coll.Name())
	done := observability.TrackQuery(op, r.coll.Name())
	return ctx, func(err error) {
		done()
		if errors.Is(err, models.ErrDocumentNotFound) {
			err = nil
		}
		observability.EndSpan(span, err)
	}
}

// Create assigns an id and timestamps, then inserts doc.
func (r *Collection[D]) Create(ctx context.Context, doc D) (err error) {
	ctx, end := r.track(ctx, "insert_one")
	defer func() { end(err) }()

	if doc.GetID().IsZero() {
		doc.SetID(primitive.NewObjectID())
	}
	doc.Touch(r.now())

	if _, err = r.coll.InsertOne(ctx, doc); err != nil {
		return translate(err, "insert "+r.coll.Name())
	}
	return nil
}

// FindByID loads a document by its hex id. Hidden fields are not loaded.
func (r *Collection[D]) FindByID(ctx context.Context, id string) (D, error) {
	oid, err := ParseID(id)
	if err != nil {
		var zero D
		return zero, err
	}
	return r.FindOne(ctx, bson.M{"_id": oid})
}

// FindOne returns the first match without hidden fields.
func (r *Collection[D]) FindOne(ctx context.Context, filter bson.M) (D, error) {
	opts := options.FindOne()
	if p := r.schema.HiddenProjection(); p != nil {
		opts.SetProjection(p)
	}
	return r.findOne(ctx, filter, opts)
}

// FindOneWithSecrets returns the first match including hidden fields such as
// password hashes. Only credential checks should use it.
func (r *Collection[D]) FindOneWithSecrets(ctx context.Context, filter bson.M) (D, error) {
	return r.findOne(ctx, filter, options.FindOne())
}

func (r *Collection[D]) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (doc D, err error) {
	ctx, end := r.track(ctx, "find_one")
	defer func() { end(err) }()

	if err = r.coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		var zero D
		return zero, translate(err, "find "+r.coll.Name())
	}
	return doc, nil
}

// Find runs a shaped list query. The result is never nil.
func (r *Collection[D]) Find(ctx context.Context, q query.Query) (docs []D, err error) {
	ctx, end := r.track(ctx, "find")
	defer func() { end(err) }()

	filter := q.Filter
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := r.coll.Find(ctx, filter, q.FindOptions())
	if err != nil {
		return nil, translate(err, "find "+r.coll.Name())
	}
	defer cursor.Close(ctx)

	docs = make([]D, 0)
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.coll.Name(), err)
	}
	return docs, nil
}

// UpdateByID writes every visible field of doc except _id and createdAt,
// and returns the stored result.
func (r *Collection[D]) UpdateByID(ctx context.Context, id string, doc D) (D, error) {
	oid, err := ParseID(id)
	if err != nil {
		var zero D
		return zero, err
	}
	doc.Touch(r.now())
	set, err := r.setDocument(doc)
	if err != nil {
		var zero D
		return zero, err
	}
	return r.Update(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
}

// Update applies a raw update to the first match and returns the result.
func (r *Collection[D]) Update(ctx context.Context, filter, update bson.M) (doc D, err error) {
	ctx, end := r.track(ctx, "find_one_and_update")
	defer func() { end(err) }()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if p := r.schema.HiddenProjection(); p != nil {
		opts.SetProjection(p)
	}
	if err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		var zero D
		return zero, translate(err, "update "+r.coll.Name())
	}
	return doc, nil
}

// DeleteByID removes a document by its hex id.
func (r *Collection[D]) DeleteByID(ctx context.Context, id string) (err error) {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	ctx, end := r.track(ctx, "delete_one")
	defer func() { end(err) }()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translate(err, "delete "+r.coll.Name())
	}
	if res.DeletedCount == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

// FindOneAndDelete removes the first match and returns it.
func (r *Collection[D]) FindOneAndDelete(ctx context.Context, filter bson.M) (doc D, err error) {
	ctx, end := r.track(ctx, "find_one_and_delete")
	defer func() { end(err) }()

	if err = r.coll.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		var zero D
		return zero, translate(err, "delete "+r.coll.Name())
	}
	return doc, nil
}

func (r *Collection[D]) setDocument(doc D) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.coll.Name(), err)
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.coll.Name(), err)
	}
	delete(set, "_id")
	delete(set, "createdAt")
	for _, h := range r.schema.Hidden() {
		delete(set, h)
	}
	return set, nil
}

// ParseID converts a hex id, failing with a TypeMismatch on bad input.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.NewTypeMismatchError("_id", id)
	}
	return oid, nil
}

var dupKeyPattern = regexp.MustCompile(`index: (\S+) dup key: \{ ?"?([\w.]+)"?: (.*?) ?\}`)

// translate maps driver errors onto the error taxonomy.
func translate(err error, op string) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.ErrDocumentNotFound
	case mongo.IsDuplicateKeyError(err):
		return duplicateKey(err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func duplicateKey(err error) *models.AppError {
	field, value := "key", ""
	if m := dupKeyPattern.FindStringSubmatch(err.Error()); m != nil {
		field = m[2]
		value = strings.Trim(m[3], `"' `)
		if field == "" {
			field = strings.TrimSuffix(strings.TrimSuffix(m[1], "_1"), "_-1")
		}
	}
	appErr := models.NewDuplicateKeyError(field, value)
	appErr.Err = err
	return appErr
}
