// Package main repairs a dirty migration state. golang-migrate marks a version
// dirty when a migration starts but the process dies before it finishes; every
// later run then refuses to start with "Dirty database version". This tool reads
// the normal service configuration (CONFIG_PATH and FBS_* variables), clears the
// dirty flag, and leaves the version number alone so the next `server migrate up`
// retries cleanly. Inspect the schema by hand before running it.
package main

import (
	"context"
	"log"
	"os"

	"github.com/feedback-system/feedback-system/internal/config"
	"github.com/feedback-system/feedback-system/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(context.Background(), cfg.Database.GetDSN(), db.PoolOptions{MaxOpen: 1, MaxIdle: 1})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to check migration state: %v", err)
	}
	log.Printf("Current migration state: version=%d, dirty=%v", version, dirty)

	if !dirty {
		log.Println("Migration state is already clean")
		return
	}

	log.Println("Fixing dirty migration state...")
	if _, err := database.Exec("UPDATE schema_migrations SET dirty = false"); err != nil {
		log.Fatalf("Failed to fix dirty state: %v", err)
	}

	version, dirty, err = db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to check final migration state: %v", err)
	}
	log.Printf("Final migration state: version=%d, dirty=%v", version, dirty)
}
