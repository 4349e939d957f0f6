package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"cv-tailor/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

var gooseInit sync.Once

// gooseLogger routes goose output through the structured logger.
type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }

func setupGoose() error {
	var err error
	gooseInit.Do(func() {
		goose.SetBaseFS(migrationFiles)
		goose.SetLogger(gooseLogger{s: telemetry.Logger().Sugar().With("component", "goose")})
		err = goose.SetDialect("postgres")
	})
	return err
}

// RunMigrations applies every pending embedded migration. A nil database is a
// no-op so in-memory dev runs can call it unconditionally.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	return Migrate(ctx, database, "up")
}

// Migrate runs one goose command against the embedded migrations: up, down,
// status or version.
func Migrate(ctx context.Context, database *sql.DB, command string) error {
	if database == nil {
		return nil
	}
	if err := setupGoose(); err != nil {
		return err
	}
	switch command {
	case "up", "":
		return goose.UpContext(ctx, database, migrationsDir)
	case "down":
		return goose.DownContext(ctx, database, migrationsDir)
	case "status":
		return goose.StatusContext(ctx, database, migrationsDir)
	case "version":
		return goose.VersionContext(ctx, database, migrationsDir)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}
