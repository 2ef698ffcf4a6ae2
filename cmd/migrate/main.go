// migrate applies the embedded schema migrations: go run ./cmd/migrate -direction up
package main

import (
	"flag"
	"fmt"
	"os"

	"solsignal/internal/platform/config"
	"solsignal/internal/platform/postgres"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set")
		os.Exit(1)
	}

	if err := postgres.Migrate(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
