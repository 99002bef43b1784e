// Package models contains data structures for the application's domain models.
package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrDocumentNotFound is returned by stores when no document matches.
var ErrDocumentNotFound = errors.New("document not found")

// Document is implemented by every persisted type through the embedded Base.
type Document interface {
	GetID() primitive.ObjectID
	SetID(id primitive.ObjectID)
	Touch(now time.Time)
	ResetMeta()
}

// Base carries the identifier and timestamps shared by all collections.
type Base struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (b *Base) GetID() primitive.ObjectID { return b.ID }

func (b *Base) SetID(id primitive.ObjectID) { b.ID = id }

// ResetMeta clears fields the client must not choose.
func (b *Base) ResetMeta() {
	*b = Base{}
}

// Touch sets UpdatedAt, and CreatedAt on first save.
func (b *Base) Touch(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}
