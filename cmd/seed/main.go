// Command seed inserts fake posts and projects into a development database.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/repository"
	"folio/internal/seed"
)

func main() {
	numPosts := flag.Int("posts", 20, "Number of posts to create")
	numProjects := flag.Int("projects", 6, "Number of projects to create")
	ratio := flag.Float64("published", 0.7, "Share of posts created as published")
	flag.Parse()

	if err := run(seed.Options{NumPosts: *numPosts, NumProjects: *numProjects, PublishRatio: *ratio}); err != nil {
		log.Fatal(err)
	}
}

func run(opts seed.Options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		return errors.New("refusing to seed a production database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	if err := database.EnsureIndexes(ctx, store.DB()); err != nil {
		return err
	}

	db := store.DB()
	posts := repository.NewPostRepository(db, cache.New(nil))
	res, err := seed.NewSeeder(posts, repository.NewProjectRepository(db), opts).Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("seeded %d posts and %d projects (%d skipped)", res.Posts, res.Projects, res.Skipped)
	return nil
}
