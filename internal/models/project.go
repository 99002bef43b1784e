package models

// Project is a portfolio showcase entry.
type Project struct {
	Base        `bson:",inline"`
	Title       string `bson:"title" json:"title" validate:"required,min=5,max=100"`
	Description string `bson:"description" json:"description" validate:"required,min=100,max=2000"`
	IsTeam      *bool  `bson:"isTeam" json:"isTeam" validate:"required"`
	GithubLink  string `bson:"githubLink" json:"githubLink" validate:"required,min=20,max=1000,url"`
}
