package main

import (
	"context"
	"time"

	mongoMigration "slotbook/internal/migrations/mongo"
	"slotbook/pkg/config"
)

const (
	JobName          = "mongo-migration"
	migrationTimeout = 120 * time.Second
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), migrationTimeout)
	defer cancel()

	cfg := config.Load(JobName)
	if cfg.StoreBackend != config.StoreBackendMongo {
		cfg.Log.Fatal("Migrations need STORE_BACKEND=mongo", "store_backend", cfg.StoreBackend)
	}
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Mongo migration job")
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	cfg.Log.Info("Migration completed successfully")
}
