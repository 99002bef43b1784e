package repository

import (
	"context"
	"time"

	"folio/internal/database"
	"folio/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepository stores author accounts.
type UserRepository struct {
	*Collection[*models.User]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{Collection: NewCollection[*models.User](db.Collection(database.UsersCollection))}
}

// FindByEmail looks up a user without credentials.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.FindOne(ctx, bson.M{"email": email})
}

// FindByEmailWithPassword looks up a user including the password hash.
func (r *UserRepository) FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	return r.FindOneWithSecrets(ctx, bson.M{"email": email})
}

// FindByIDWithPassword loads a user including the password hash.
func (r *UserRepository) FindByIDWithPassword(ctx context.Context, id string) (*models.User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return r.FindOneWithSecrets(ctx, bson.M{"_id": oid})
}

// FindByResetToken finds the user holding an unexpired reset token hash.
func (r *UserRepository) FindByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	return r.FindOne(ctx, bson.M{
		"passwordResetToken":   hash,
		"passwordResetExpires": bson.M{"$gt": now},
	})
}

// SetResetToken stores a reset token hash and its expiry.
func (r *UserRepository) SetResetToken(ctx context.Context, id string, hash string, expires time.Time) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	_, err = r.Update(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"passwordResetToken": hash, "passwordResetExpires": expires, "updatedAt": r.now()},
	})
	return err
}

// ClearResetToken removes any pending reset token.
func (r *UserRepository) ClearResetToken(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	_, err = r.Update(ctx, bson.M{"_id": oid}, bson.M{
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
	return err
}

// SetPassword stores a new hash, records the change time and consumes any
// reset token in the same write.
func (r *UserRepository) SetPassword(ctx context.Context, id string, hash string, changedAt time.Time) (*models.User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return r.Update(ctx, bson.M{"_id": oid}, bson.M{
		"$set":   bson.M{"password": hash, "passwordChangedAt": changedAt, "updatedAt": r.now()},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
}
