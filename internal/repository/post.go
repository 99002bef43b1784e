package repository

import (
	"context"

	"folio/internal/cache"
	"folio/internal/database"
	"folio/internal/models"
	"folio/internal/query"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// PostRepository stores posts and keeps the slug and slider caches coherent.
type PostRepository struct {
	*Collection[*models.Post]
	cache *cache.Cache
}

// NewPostRepository creates a new post repository. c may wrap a nil client.
func NewPostRepository(db *mongo.Database, c *cache.Cache) *PostRepository {
	return &PostRepository{
		Collection: NewCollection[*models.Post](db.Collection(database.PostsCollection)),
		cache:      c,
	}
}

func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.Collection.Create(ctx, post); err != nil {
		return err
	}
	r.Forget(ctx, post.Slug)
	return nil
}

// FindBySlug is served from the cache when possible.
func (r *PostRepository) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	err := r.cache.Aside(ctx, "post", cache.PostSlugKey(slug), &post, cache.PostTTL, func() error {
		found, err := r.FindOne(ctx, bson.M{"slug": slug})
		if err != nil {
			return err
		}
		post = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Slider returns featured posts, newest first, in carousel form.
func (r *PostRepository) Slider(ctx context.Context) ([]models.SliderItem, error) {
	items := []models.SliderItem{}
	err := r.cache.Aside(ctx, "slider", cache.SliderKey, &items, cache.SliderTTL, func() error {
		posts, err := r.Find(ctx, query.Query{
			Filter:     bson.M{"isSlider": true},
			Sort:       bson.D{{Key: "createdAt", Value: -1}},
			Projection: bson.M{"slug": 1, "title": 1, "coverImage": 1, "description": 1},
		})
		if err != nil {
			return err
		}
		items = make([]models.SliderItem, 0, len(posts))
		for _, p := range posts {
			items = append(items, models.SliderItem{
				ID:          p.ID,
				Slug:        p.Slug,
				Title:       p.Title,
				CoverImage:  p.CoverImage,
				Description: p.Description,
			})
		}
		return nil
	})
	return items, err
}

func (r *PostRepository) UpdateByID(ctx context.Context, id string, post *models.Post) (*models.Post, error) {
	updated, err := r.Collection.UpdateByID(ctx, id, post)
	if err != nil {
		return nil, err
	}
	r.Forget(ctx, updated.Slug)
	return updated, nil
}

func (r *PostRepository) Update(ctx context.Context, filter, update bson.M) (*models.Post, error) {
	updated, err := r.Collection.Update(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	r.Forget(ctx, updated.Slug)
	return updated, nil
}

func (r *PostRepository) DeleteByID(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	_, err = r.FindOneAndDelete(ctx, bson.M{"_id": oid})
	return err
}

func (r *PostRepository) FindOneAndDelete(ctx context.Context, filter bson.M) (*models.Post, error) {
	deleted, err := r.Collection.FindOneAndDelete(ctx, filter)
	if err != nil {
		return nil, err
	}
	r.Forget(ctx, deleted.Slug)
	return deleted, nil
}

// Forget drops the slider cache and the given slug entries.
func (r *PostRepository) Forget(ctx context.Context, slugs ...string) {
	keys := []string{cache.SliderKey}
	for _, s := range slugs {
		if s != "" {
			keys = append(keys, cache.PostSlugKey(s))
		}
	}
	r.cache.Invalidate(ctx, keys...)
}
