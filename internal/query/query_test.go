package query

import (
	"testing"
	"time"

	"folio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSchemaFor_User(t *testing.T) {
	t.Parallel()
	s := SchemaFor[*models.User]()

	f, ok := s.Lookup("email")
	require.True(t, ok)
	assert.Equal(t, KindString, f.Kind)

	f, ok = s.Lookup("_id")
	require.True(t, ok)
	assert.Equal(t, KindObjectID, f.Kind)

	f, ok = s.Lookup("createdAt")
	require.True(t, ok)
	assert.Equal(t, KindTime, f.Kind)

	_, ok = s.Lookup("password")
	assert.False(t, ok, "hidden fields are not queryable")

	assert.ElementsMatch(t, []string{"password", "passwordResetToken", "passwordResetExpires"}, s.Hidden())
	assert.Equal(t, bson.M{"password": 0, "passwordResetToken": 0, "passwordResetExpires": 0}, s.HiddenProjection())
}

func TestSchemaFor_PostNestedPaths(t *testing.T) {
	t.Parallel()
	s := SchemaFor[models.Post]()

	f, ok := s.Lookup("comments.author")
	require.True(t, ok)
	assert.Equal(t, KindString, f.Kind)

	f, ok = s.Lookup("isPublished")
	require.True(t, ok)
	assert.Equal(t, KindBool, f.Kind)

	f, ok = s.Lookup("likes")
	require.True(t, ok)
	assert.Equal(t, KindString, f.Kind)

	assert.Nil(t, s.HiddenProjection())
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()
	q, err := Parse(SchemaFor[models.Post](), map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, bson.M{}, q.Filter)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, q.Sort)
	assert.Equal(t, int64(1), q.Page)
	assert.Equal(t, int64(10), q.Limit)
	assert.Equal(t, int64(0), q.Skip())
}

func TestParse_Filters(t *testing.T) {
	t.Parallel()
	s := SchemaFor[models.Post]()
	id := primitive.NewObjectID()

	tests := []struct {
		name   string
		params map[string]string
		want   bson.M
	}{
		{"Equality", map[string]string{"isPublished": "true"}, bson.M{"isPublished": true}},
		{"Range", map[string]string{"createdAt[gte]": "2026-01-01", "createdAt[lt]": "2026-02-01"}, bson.M{
			"createdAt": bson.M{
				"$gte": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				"$lt":  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			},
		}},
		{"Not Equal", map[string]string{"title[ne]": "Draft title"}, bson.M{"title": bson.M{"$ne": "Draft title"}}},
		{"Equality With Operator", map[string]string{"title": "x", "title[ne]": "y"}, bson.M{
			"title": bson.M{"$eq": "x", "$ne": "y"},
		}},
		{"Explicit Eq Wins", map[string]string{"title": "x", "title[eq]": "z"}, bson.M{"title": bson.M{"$eq": "z"}}},
		{"ObjectID", map[string]string{"_id": id.Hex()}, bson.M{"_id": id}},
		{"Unknown Field Dropped", map[string]string{"$where": "1", "nope": "x"}, bson.M{}},
		{"Unknown Operator Dropped", map[string]string{"title[regex]": ".*"}, bson.M{}},
		{"Reserved Keys Skipped", map[string]string{"page": "2", "limit": "5", "sort": "title", "fields": "title"}, bson.M{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(s, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Filter)
		})
	}
}

func TestParse_MixedFiltersAreStable(t *testing.T) {
	t.Parallel()
	s := SchemaFor[models.Post]()
	params := map[string]string{"title": "x", "title[ne]": "y", "title[gt]": "a"}

	first, err := Parse(s, params)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		q, err := Parse(s, params)
		require.NoError(t, err)
		require.Equal(t, first.Filter, q.Filter)
	}
	assert.Equal(t, bson.M{"title": bson.M{"$eq": "x", "$ne": "y", "$gt": "a"}}, first.Filter)
}

func TestParse_TypeMismatch(t *testing.T) {
	t.Parallel()
	_, err := Parse(SchemaFor[models.Post](), map[string]string{"isSlider": "maybe"})

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.KindTypeMismatch, appErr.Kind)
	assert.Equal(t, "isSlider", appErr.Field)
	assert.Equal(t, "maybe", appErr.Value)
}

func TestParse_SortFieldsPagination(t *testing.T) {
	t.Parallel()
	s := SchemaFor[*models.User]()

	q, err := Parse(s, map[string]string{
		"sort":   "lastName,-createdAt,password",
		"fields": "firstName,email,password",
		"page":   "3",
		"limit":  "20",
	})
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "lastName", Value: 1}, {Key: "createdAt", Value: -1}}, q.Sort)
	assert.Equal(t, bson.M{"firstName": 1, "email": 1}, q.Projection)
	assert.Equal(t, int64(40), q.Skip())
	assert.Equal(t, int64(20), q.Limit)
}

func TestParse_PaginationBounds(t *testing.T) {
	t.Parallel()
	s := SchemaFor[models.Project]()
	tests := []struct {
		page, limit         string
		wantPage, wantLimit int64
	}{
		{"0", "0", 1, 10},
		{"-2", "abc", 1, 10},
		{"2", "500", 2, 100},
	}
	for _, tt := range tests {
		q, err := Parse(s, map[string]string{"page": tt.page, "limit": tt.limit})
		require.NoError(t, err)
		assert.Equal(t, tt.wantPage, q.Page)
		assert.Equal(t, tt.wantLimit, q.Limit)
	}
}

func TestQuery_Scope(t *testing.T) {
	t.Parallel()
	q, err := Parse(SchemaFor[models.Post](), map[string]string{"isPublished": "false", "title": "Hello world"})
	require.NoError(t, err)

	scoped := q.Scope(bson.M{"isPublished": true})
	assert.Equal(t, bson.M{"isPublished": true, "title": "Hello world"}, scoped.Filter)
	assert.Equal(t, false, q.Filter["isPublished"], "original query is untouched")
}
