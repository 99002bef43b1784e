package repository

import (
	"folio/internal/database"
	"folio/internal/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// NewProjectRepository returns the project collection. Projects need no
// behaviour beyond the generic collection.
func NewProjectRepository(db *mongo.Database) *Collection[*models.Project] {
	return NewCollection[*models.Project](db.Collection(database.ProjectsCollection))
}
