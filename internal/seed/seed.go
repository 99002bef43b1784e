// Package seed fills a development database with fake posts and projects.
// It is never used by the API itself.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"folio/internal/models"
	"folio/internal/service"
	"folio/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Creator is the single write the seeder needs from a store.
type Creator[D models.Document] interface {
	Create(ctx context.Context, doc D) error
}

// Options control how much data is generated.
type Options struct {
	NumPosts    int
	NumProjects int
	// PublishRatio is the share of posts created as published.
	PublishRatio float64
	// MaxDays spreads createdAt over the past MaxDays days.
	MaxDays int
	Seed    int64
}

// Factory builds valid fake documents.
type Factory struct {
	faker *gofakeit.Faker
	opts  Options
	now   func() time.Time
}

// NewFactory returns a Factory. A zero Seed uses a random one.
func NewFactory(opts Options) *Factory {
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	return &Factory{faker: gofakeit.New(opts.Seed), opts: opts, now: time.Now}
}

// text returns between lo and hi characters of lorem sentences.
func (f *Factory) text(lo, hi int) string {
	var b strings.Builder
	for b.Len() < lo {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.faker.Sentence(f.faker.Number(6, 14)))
	}
	s := b.String()
	if len(s) > hi {
		s = strings.TrimSpace(s[:hi])
	}
	return s
}

func (f *Factory) createdAt() time.Time {
	back := time.Duration(f.faker.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	return f.now().Add(-back)
}

// Post builds an unsaved post with a cover image and one or two assets.
func (f *Factory) Post(published bool) *models.Post {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(4, 8)), ".")
	assets := make([]models.Asset, f.faker.Number(1, 2))
	for i := range assets {
		key := fmt.Sprintf("seed/%s.jpg", f.faker.UUID())
		assets[i] = models.Asset{
			ID:     primitive.NewObjectID(),
			FileID: key,
			URL:    "https://picsum.photos/seed/" + key,
		}
	}

	post := &models.Post{
		Title:             title,
		Slug:              service.Slug(title),
		Description:       f.text(100, 200),
		EstimatedReadTime: fmt.Sprintf("%d min", f.faker.Number(2, 15)),
		IsPublished:       published,
		IsSlider:          published && f.faker.Number(1, 4) == 1,
		CoverImage:        assets[0].URL,
		Assets:            assets,
		Content:           f.faker.Paragraph(3, 5, 12, "\n\n"),
		Comments:          []models.Comment{},
		Likes:             []string{},
	}
	post.CreatedAt = f.createdAt()
	post.UpdatedAt = post.CreatedAt
	return post
}

// Project builds an unsaved project.
func (f *Factory) Project() *models.Project {
	team := f.faker.Bool()
	project := &models.Project{
		Title:       strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 6)), "."),
		Description: f.text(150, 600),
		IsTeam:      &team,
		GithubLink:  fmt.Sprintf("https://github.com/%s/%s", strings.ToLower(f.faker.Username()), service.Slug(f.faker.HipsterWord()+" "+f.faker.Noun())),
	}
	project.CreatedAt = f.createdAt()
	project.UpdatedAt = project.CreatedAt
	return project
}

// Seeder writes generated documents through the repositories.
type Seeder struct {
	posts    Creator[*models.Post]
	projects Creator[*models.Project]
	factory  *Factory
	opts     Options
}

func NewSeeder(posts Creator[*models.Post], projects Creator[*models.Project], opts Options) *Seeder {
	return &Seeder{posts: posts, projects: projects, factory: NewFactory(opts), opts: opts}
}

// Result counts what was inserted.
type Result struct {
	Posts    int
	Projects int
	Skipped  int
}

// Run inserts the configured number of posts and projects. Documents that
// collide with existing slugs are skipped.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var res Result
	for i := 0; i < s.opts.NumPosts; i++ {
		published := float64(i) < float64(s.opts.NumPosts)*s.opts.PublishRatio
		ok, err := insert(ctx, s.posts, s.factory.Post(published))
		if err != nil {
			return res, fmt.Errorf("seed post %d: %w", i, err)
		}
		if ok {
			res.Posts++
		} else {
			res.Skipped++
		}
	}
	for i := 0; i < s.opts.NumProjects; i++ {
		ok, err := insert(ctx, s.projects, s.factory.Project())
		if err != nil {
			return res, fmt.Errorf("seed project %d: %w", i, err)
		}
		if ok {
			res.Projects++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

func insert[D models.Document](ctx context.Context, store Creator[D], doc D) (bool, error) {
	if err := validation.Struct(doc); err != nil {
		return false, err
	}
	err := store.Create(ctx, doc)
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Kind == models.KindDuplicateKey {
		slog.WarnContext(ctx, "Skipping duplicate seed document", slog.String("field", appErr.Field))
		return false, nil
	}
	return err == nil, err
}
