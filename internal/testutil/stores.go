package testutil

import (
	"context"
	"time"

	"folio/internal/models"
	"folio/internal/query"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore mirrors repository.UserRepository in memory.
type UserStore struct {
	*Collection[*models.User]
}

func NewUserStore() *UserStore {
	return &UserStore{Collection: NewCollection[*models.User]("email")}
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.FindOne(ctx, bson.M{"email": email})
}

func (s *UserStore) FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	return s.FindOne(ctx, bson.M{"email": email})
}

func (s *UserStore) FindByIDWithPassword(ctx context.Context, id string) (*models.User, error) {
	return s.FindByID(ctx, id)
}

func (s *UserStore) FindByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	return s.FindOne(ctx, bson.M{
		"passwordResetToken":   hash,
		"passwordResetExpires": bson.M{"$gt": now},
	})
}

func (s *UserStore) SetResetToken(ctx context.Context, id string, hash string, expires time.Time) error {
	_, err := s.byID(ctx, id, bson.M{"$set": bson.M{"passwordResetToken": hash, "passwordResetExpires": expires}})
	return err
}

func (s *UserStore) ClearResetToken(ctx context.Context, id string) error {
	_, err := s.byID(ctx, id, bson.M{"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""}})
	return err
}

func (s *UserStore) SetPassword(ctx context.Context, id string, hash string, changedAt time.Time) (*models.User, error) {
	return s.byID(ctx, id, bson.M{
		"$set":   bson.M{"password": hash, "passwordChangedAt": changedAt},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
}

func (s *UserStore) byID(ctx context.Context, id string, update bson.M) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.NewTypeMismatchError("_id", id)
	}
	return s.Update(ctx, bson.M{"_id": oid}, update)
}

// PostStore mirrors repository.PostRepository in memory, without a cache.
type PostStore struct {
	*Collection[*models.Post]
	Forgotten []string
}

func NewPostStore() *PostStore {
	return &PostStore{Collection: NewCollection[*models.Post]("slug")}
}

func (s *PostStore) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.FindOne(ctx, bson.M{"slug": slug})
}

func (s *PostStore) Slider(ctx context.Context) ([]models.SliderItem, error) {
	posts, err := s.Find(ctx, query.Query{
		Filter: bson.M{"isSlider": true},
		Sort:   bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	items := make([]models.SliderItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, models.SliderItem{
			ID:          p.ID,
			Slug:        p.Slug,
			Title:       p.Title,
			CoverImage:  p.CoverImage,
			Description: p.Description,
		})
	}
	return items, nil
}

func (s *PostStore) Forget(_ context.Context, slugs ...string) {
	s.Forgotten = append(s.Forgotten, slugs...)
}
