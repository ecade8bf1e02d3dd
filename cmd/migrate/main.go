package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Rrens/appstruct/internal/config"
	"github.com/Rrens/appstruct/internal/repository/mongodb"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fail("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer cancel()

	fmt.Printf("Connecting to database %q...\n", cfg.Database.Name)

	db, err := mongodb.NewDB(ctx, cfg.Database)
	if err != nil {
		fail("Failed to connect to database: %v", err)
	}
	defer db.Close(context.Background())

	if err := mongodb.EnsureIndexes(ctx, db.Database); err != nil {
		fail("Failed to create indexes: %v", err)
	}

	fmt.Println("Indexes are up to date")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
