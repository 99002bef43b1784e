package testutil

import (
	"context"
	"testing"

	"folio/internal/models"
	"folio/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCollection_UpdateOperators(t *testing.T) {
	ctx := context.Background()
	posts := NewPostStore()
	post := &models.Post{Title: "first", Slug: "first", Likes: []string{}, Comments: []models.Comment{}}
	require.NoError(t, posts.Create(ctx, post))
	filter := bson.M{"_id": post.ID}

	got, err := posts.Update(ctx, filter, bson.M{"$addToSet": bson.M{"likes": "a"}})
	require.NoError(t, err)
	got, err = posts.Update(ctx, filter, bson.M{"$addToSet": bson.M{"likes": "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Likes)

	comment := models.Comment{ID: primitive.NewObjectID(), Author: "bob", Text: "nice"}
	got, err = posts.Update(ctx, filter, bson.M{"$push": bson.M{"comments": comment}})
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)

	got, err = posts.Update(ctx, filter, bson.M{"$pull": bson.M{"comments": bson.M{"_id": comment.ID}}})
	require.NoError(t, err)
	assert.Empty(t, got.Comments)

	got, err = posts.Update(ctx, filter, bson.M{"$set": bson.M{"isSlider": true}})
	require.NoError(t, err)
	assert.True(t, got.IsSlider)
}

func TestCollection_UniqueAndFind(t *testing.T) {
	ctx := context.Background()
	posts := NewPostStore()
	require.NoError(t, posts.Create(ctx, &models.Post{Slug: "a", IsPublished: true}))
	require.NoError(t, posts.Create(ctx, &models.Post{Slug: "b"}))

	err := posts.Create(ctx, &models.Post{Slug: "a"})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.KindDuplicateKey, appErr.Kind)

	found, err := posts.Find(ctx, query.Query{Filter: bson.M{"isPublished": true}, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0].Slug)

	_, err = posts.FindByID(ctx, "nope")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.KindTypeMismatch, appErr.Kind)
}
