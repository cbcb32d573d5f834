package main

import (
	"fmt"
	"log"

	"whatsapp-bulk-worker/internal/adapters/status/postgres"
	"whatsapp-bulk-worker/internal/config"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	fmt.Println("🔗 Connecting to database...")

	store, err := postgres.New(conf.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	defer store.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println("🔄 Running migrations...")

	if err := store.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	fmt.Println("✅ Migration complete: dispatches table ready")
}
