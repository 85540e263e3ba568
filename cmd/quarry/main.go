package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/quarry-labs/quarry/internal/adapters/driving/cli"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
