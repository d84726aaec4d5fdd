package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"taskhub/middleware"
)

// Mints a bearer token for local development.
func main() {
	godotenv.Load()

	ownerFlag := flag.String("owner", "", "owner id (random when empty)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET not set")
		os.Exit(1)
	}

	owner := uuid.New()
	if *ownerFlag != "" {
		parsed, err := uuid.Parse(*ownerFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid owner id: %v\n", err)
			os.Exit(1)
		}
		owner = parsed
	}

	token, err := middleware.GenerateToken([]byte(secret), owner, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "owner: %s\n", owner)
	fmt.Println(token)
}
