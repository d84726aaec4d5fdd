package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"taskhub/database"
	"taskhub/logging"
)

func main() {
	godotenv.Load()
	logging.Init(logging.Options{Level: os.Getenv("LOG_LEVEL")})

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logging.Logger.Fatal("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		logging.Logger.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close(context.Background())

	if err := database.Migrate(ctx, conn); err != nil {
		logging.Logger.Fatalf("Migration failed: %v", err)
	}

	fmt.Println("\nAll migrations completed!")
}
