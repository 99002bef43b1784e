// Command migrate creates the MongoDB indexes the API relies on.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"folio/internal/config"
	"folio/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := database.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close(context.Background())

	if err := database.EnsureIndexes(ctx, store.DB()); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	log.Println("indexes are up to date")
	return nil
}
