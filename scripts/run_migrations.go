package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/safar/salon-engine/internal/config"
	"github.com/safar/salon-engine/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := database.Direction(os.Args[1])
	if direction != database.Up && direction != database.Down {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, dialect, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	files, err := database.MigrationFiles(dialect, direction)
	if err != nil {
		log.Fatalf("List migrations: %v", err)
	}
	for _, file := range files {
		log.Printf("Running migration: %s", file)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := database.Migrate(ctx, db, dialect, direction)
	if err != nil {
		log.Fatalf("Migrate: %v", err)
	}

	log.Printf("Successfully ran %d %s migration(s) %s", n, dialect, direction)
}
