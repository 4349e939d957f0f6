package main

// Apply or inspect database migrations:
//   go run ./cmd/migrate [up|down|status|version]

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cv-tailor/internal/shared/config"
	"cv-tailor/internal/shared/storage/db"
	"cv-tailor/internal/shared/telemetry"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.Defaults(db.ProfileMigrate)))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, command); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err.Error()})
		sqlDB.Close()
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"command": command})
}
