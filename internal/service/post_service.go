package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"folio/internal/models"
	"folio/internal/storage"
	"folio/internal/validation"

	"github.com/gosimple/slug"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const msgPostNotFound = "Post not found"

// PostStore is the persistence the post service needs.
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	FindBySlug(ctx context.Context, slug string) (*models.Post, error)
	FindByID(ctx context.Context, id string) (*models.Post, error)
	FindOne(ctx context.Context, filter bson.M) (*models.Post, error)
	Slider(ctx context.Context) ([]models.SliderItem, error)
	Update(ctx context.Context, filter, update bson.M) (*models.Post, error)
	FindOneAndDelete(ctx context.Context, filter bson.M) (*models.Post, error)
	Forget(ctx context.Context, slugs ...string)
}

// PostInput is the editable part of a post. Nil fields are left unchanged
// on update.
type PostInput struct {
	Title             *string         `json:"title"`
	Description       *string         `json:"description"`
	EstimatedReadTime *string         `json:"estimatedReadTime"`
	CoverImage        *string         `json:"coverImage"`
	Content           *string         `json:"content"`
	Assets            *[]models.Asset `json:"assets"`
}

// DeleteFileInput names an asset and, optionally, the post holding it.
type DeleteFileInput struct {
	CloudStorageID string `json:"cloudStorageId"`
	PostSlug       string `json:"postSlug"`
	DatabaseID     string `json:"databaseId"`
	URL            string `json:"url"`
}

// DeleteFileResult is either a standalone deletion or the post's remaining assets.
type DeleteFileResult struct {
	SingleDeleted bool
	FileID        string
	CoverImage    string
	Assets        []models.Asset
}

// PostOptions are the post service settings taken from config.
type PostOptions struct {
	AssetPrefix   string
	MaxAssetBytes int64
}

type PostService struct {
	posts  PostStore
	assets storage.AssetStore
	opts   PostOptions
	now    func() time.Time
}

func NewPostService(posts PostStore, assets storage.AssetStore, opts PostOptions) *PostService {
	return &PostService{posts: posts, assets: assets, opts: opts, now: time.Now}
}

// WithClock replaces the time source.
func (s *PostService) WithClock(now func() time.Time) *PostService {
	s.now = now
	return s
}

// Slug derives the URL slug for a title.
func Slug(title string) string {
	return slug.Make(title)
}

// Create stores a new unpublished post.
func (s *PostService) Create(ctx context.Context, in PostInput) (*models.Post, error) {
	post := &models.Post{Likes: []string{}, Comments: []models.Comment{}, Assets: []models.Asset{}}
	apply(post, in)
	post.Slug = Slug(post.Title)
	if err := validatePost(post); err != nil {
		return nil, err
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// validatePost also rejects titles that slugify to nothing, such as "!!!!!".
func validatePost(post *models.Post) error {
	if err := validation.Struct(post); err != nil {
		return err
	}
	if post.Slug == "" {
		return models.NewValidationError("title must contain at least one letter or digit")
	}
	return nil
}

func apply(post *models.Post, in PostInput) {
	if in.Title != nil {
		post.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		post.Description = *in.Description
	}
	if in.EstimatedReadTime != nil {
		post.EstimatedReadTime = *in.EstimatedReadTime
	}
	if in.CoverImage != nil {
		post.CoverImage = *in.CoverImage
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.Assets != nil {
		post.Assets = *in.Assets
	}
	for i := range post.Assets {
		if post.Assets[i].ID.IsZero() {
			post.Assets[i].ID = primitive.NewObjectID()
		}
	}
}

// GetBySlug returns one post.
func (s *PostService) GetBySlug(ctx context.Context, postSlug string) (*models.Post, error) {
	post, err := s.posts.FindBySlug(ctx, postSlug)
	return post, notFound(err)
}

// Slider returns the carousel entries.
func (s *PostService) Slider(ctx context.Context) ([]models.SliderItem, error) {
	return s.posts.Slider(ctx)
}

// Update applies in to the post at slug, re-deriving the slug when the
// title changes. Likes, comments and publication state are not touched.
func (s *PostService) Update(ctx context.Context, slugParam string, in PostInput) (*models.Post, error) {
	post, err := s.posts.FindOne(ctx, bson.M{"slug": slugParam})
	if err != nil {
		return nil, notFound(err)
	}
	oldSlug := post.Slug

	apply(post, in)
	post.Slug = Slug(post.Title)
	if err := validatePost(post); err != nil {
		return nil, err
	}

	updated, err := s.posts.Update(ctx, bson.M{"_id": post.ID}, bson.M{"$set": bson.M{
		"title":             post.Title,
		"slug":              post.Slug,
		"description":       post.Description,
		"estimatedReadTime": post.EstimatedReadTime,
		"coverImage":        post.CoverImage,
		"content":           post.Content,
		"assets":            post.Assets,
		"updatedAt":         s.now(),
	}})
	if err != nil {
		return nil, notFound(err)
	}
	if oldSlug != updated.Slug {
		s.posts.Forget(ctx, oldSlug)
	}
	return updated, nil
}

// Delete removes a post, addressed by slug or id, then its stored assets.
// Asset failures are logged and do not fail the request.
func (s *PostService) Delete(ctx context.Context, slugOrID string) error {
	filter := bson.M{"slug": slugOrID}
	if oid, err := primitive.ObjectIDFromHex(slugOrID); err == nil {
		filter = bson.M{"$or": bson.A{bson.M{"_id": oid}, bson.M{"slug": slugOrID}}}
	}
	post, err := s.posts.FindOneAndDelete(ctx, filter)
	if err != nil {
		return notFound(err)
	}
	for _, a := range post.Assets {
		if err := s.assets.Delete(ctx, a.FileID); err != nil {
			slog.ErrorContext(ctx, "failed to delete post asset", "post", post.Slug, "file_id", a.FileID, "error", err)
		}
	}
	return nil
}

// React toggles author's like. Without an author a new like-token is minted
// and returned.
func (s *PostService) React(ctx context.Context, postSlug, author string) (*models.Post, string, error) {
	filter := bson.M{"slug": postSlug}
	if author == "" {
		token, err := gonanoid.New()
		if err != nil {
			return nil, "", models.NewInternalError(err)
		}
		post, err := s.posts.Update(ctx, filter, bson.M{"$addToSet": bson.M{"likes": token}})
		return post, token, notFound(err)
	}

	post, err := s.posts.FindOne(ctx, filter)
	if err != nil {
		return nil, "", notFound(err)
	}
	op := "$addToSet"
	if post.HasLike(author) {
		op = "$pull"
	}
	post, err = s.posts.Update(ctx, filter, bson.M{op: bson.M{"likes": author}})
	return post, "", notFound(err)
}

// Comment appends a reader comment and returns all comments.
func (s *PostService) Comment(ctx context.Context, postSlug, author, text string) ([]models.Comment, error) {
	c := models.Comment{
		ID:        primitive.NewObjectID(),
		Author:    strings.TrimSpace(author),
		Text:      strings.TrimSpace(text),
		CreatedAt: s.now(),
	}
	if err := validation.Struct(c); err != nil {
		return nil, err
	}
	post, err := s.posts.Update(ctx, bson.M{"slug": postSlug}, bson.M{"$push": bson.M{"comments": c}})
	if err != nil {
		return nil, notFound(err)
	}
	return post.Comments, nil
}

// DeleteComment removes one comment and returns the rest.
func (s *PostService) DeleteComment(ctx context.Context, postSlug, commentID string) ([]models.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(commentID)
	if err != nil {
		return nil, models.NewTypeMismatchError("commentId", commentID)
	}
	post, err := s.posts.Update(ctx, bson.M{"slug": postSlug}, bson.M{"$pull": bson.M{"comments": bson.M{"_id": oid}}})
	if err != nil {
		return nil, notFound(err)
	}
	return post.Comments, nil
}

// NextPublishState is the publish toggle: unpublishing a featured post
// also unfeatures it.
func NextPublishState(published, slider bool) (bool, bool) {
	if published && slider {
		return false, false
	}
	return !published, slider
}

// NextSliderState is the slider toggle: featuring a post publishes it.
func NextSliderState(published, slider bool) (bool, bool) {
	switch {
	case !slider && !published:
		return true, true
	case !slider:
		return published, true
	default:
		return published, false
	}
}

// TogglePublish flips publication of the post with id postID.
func (s *PostService) TogglePublish(ctx context.Context, postID string) (*models.Post, error) {
	return s.toggle(ctx, postID, NextPublishState)
}

// ToggleSlider flips whether the post with id postID is featured.
func (s *PostService) ToggleSlider(ctx context.Context, postID string) (*models.Post, error) {
	return s.toggle(ctx, postID, NextSliderState)
}

func (s *PostService) toggle(ctx context.Context, postID string, next func(published, slider bool) (bool, bool)) (*models.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, notFound(err)
	}
	published, slider := next(post.IsPublished, post.IsSlider)
	updated, err := s.posts.Update(ctx, bson.M{"_id": post.ID}, bson.M{"$set": bson.M{
		"isPublished": published,
		"isSlider":    slider,
		"updatedAt":   s.now(),
	}})
	return updated, notFound(err)
}

// UploadFile sniffs and stores an image or PDF under the asset prefix.
func (s *PostService) UploadFile(ctx context.Context, content []byte) (storage.Object, error) {
	file, err := storage.Sniff(content, s.opts.MaxAssetBytes)
	if err != nil {
		return storage.Object{}, err
	}
	return s.assets.Upload(ctx, storage.Key(s.opts.AssetPrefix, file.Ext), file.Content, file.ContentType)
}

// DeleteFile removes an asset from storage and, when a post is named, from
// that post, choosing a new cover image if the removed one was the cover.
func (s *PostService) DeleteFile(ctx context.Context, in DeleteFileInput) (*DeleteFileResult, error) {
	if in.CloudStorageID == "" {
		return nil, models.NewValidationError("cloudStorageId is required")
	}
	if in.PostSlug == "" {
		if err := s.assets.Delete(ctx, in.CloudStorageID); err != nil {
			return nil, err
		}
		return &DeleteFileResult{SingleDeleted: true, FileID: in.CloudStorageID}, nil
	}

	post, err := s.posts.FindOne(ctx, bson.M{"slug": in.PostSlug})
	if err != nil {
		return nil, notFound(err)
	}
	assetID, err := primitive.ObjectIDFromHex(in.DatabaseID)
	if err != nil {
		return nil, models.NewTypeMismatchError("databaseId", in.DatabaseID)
	}
	if err := s.assets.Delete(ctx, in.CloudStorageID); err != nil {
		return nil, err
	}

	update := bson.M{"$pull": bson.M{"assets": bson.M{"_id": assetID}}}
	if in.URL != "" && in.URL == post.CoverImage {
		update["$set"] = bson.M{"coverImage": nextCover(post.Assets, assetID)}
	}
	updated, err := s.posts.Update(ctx, bson.M{"_id": post.ID}, update)
	if err != nil {
		return nil, notFound(err)
	}
	return &DeleteFileResult{CoverImage: updated.CoverImage, Assets: updated.Assets}, nil
}

// nextCover is the first remaining non-PDF asset URL, or "".
func nextCover(assets []models.Asset, removed primitive.ObjectID) string {
	for _, a := range assets {
		if a.ID == removed {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(a.URL), ".pdf") {
			return a.URL
		}
	}
	return ""
}

func notFound(err error) error {
	if errors.Is(err, models.ErrDocumentNotFound) {
		return models.NewNotFoundMessage(msgPostNotFound)
	}
	return err
}
