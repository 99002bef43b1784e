package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a blog article.
type Post struct {
	Base              `bson:",inline"`
	Title             string    `bson:"title" json:"title" validate:"required,min=5"`
	Slug              string    `bson:"slug" json:"slug"`
	Description       string    `bson:"description" json:"description" validate:"required,min=100,max=200"`
	EstimatedReadTime string    `bson:"estimatedReadTime" json:"estimatedReadTime" validate:"required"`
	IsPublished       bool      `bson:"isPublished" json:"isPublished"`
	IsSlider          bool      `bson:"isSlider" json:"isSlider"`
	CoverImage        string    `bson:"coverImage" json:"coverImage"`
	Assets            []Asset   `bson:"assets" json:"assets" validate:"dive"`
	Content           string    `bson:"content" json:"content" validate:"required,min=100"`
	Comments          []Comment `bson:"comments" json:"comments" validate:"dive"`
	Likes             []string  `bson:"likes" json:"likes"`
}

// Asset references a file held by the asset storage provider.
type Asset struct {
	ID     primitive.ObjectID `bson:"_id" json:"_id"`
	FileID string             `bson:"fileId" json:"fileId" validate:"required"`
	URL    string             `bson:"url" json:"url" validate:"required"`
}

// Comment is an anonymous reader comment embedded in a post.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	Author    string             `bson:"author" json:"author" validate:"required,min=3,max=50"`
	Text      string             `bson:"text" json:"text" validate:"required,min=3,max=300"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// SliderItem is the projection served to the home page carousel.
type SliderItem struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Slug        string             `bson:"slug" json:"slug"`
	Title       string             `bson:"title" json:"title"`
	CoverImage  string             `bson:"coverImage" json:"coverImage"`
	Description string             `bson:"description" json:"description"`
}

// HasLike reports whether token is in the like set.
func (p *Post) HasLike(token string) bool {
	return slices.Contains(p.Likes, token)
}
