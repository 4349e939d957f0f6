package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"cv-tailor/internal/shared/telemetry"
)

// Profile selects pool defaults for the kind of process opening the pool.
type Profile int

const (
	ProfileServer Profile = iota
	ProfileLambda
	ProfileMigrate
)

func (p Profile) String() string {
	switch p {
	case ProfileLambda:
		return "lambda"
	case ProfileMigrate:
		return "migrate"
	default:
		return "server"
	}
}

// Options controls pool sizing and the connect ping.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var (
	openDB = sql.Open

	singletonMu sync.Mutex
	singletonDB *sql.DB
)

// IsLambdaRuntime reports whether the process runs inside AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

// Defaults returns pool defaults for p. Lambda keeps the pool tiny since
// every concurrent invocation holds its own.
func Defaults(p Profile) Options {
	switch p {
	case ProfileLambda:
		return Options{
			MaxOpenConns:    2,
			MaxIdleConns:    1,
			ConnMaxIdleTime: 30 * time.Second,
			ConnMaxLifetime: 15 * time.Minute,
			PingTimeout:     3 * time.Second,
		}
	case ProfileMigrate:
		return Options{
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxIdleTime: 2 * time.Minute,
			ConnMaxLifetime: time.Hour,
			PingTimeout:     10 * time.Second,
		}
	default:
		return Options{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 2 * time.Minute,
			ConnMaxLifetime: time.Hour,
			PingTimeout:     5 * time.Second,
		}
	}
}

// OptionsFromEnv applies DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME, DB_CONN_MAX_IDLE_TIME and DB_PING_TIMEOUT over
// defaults. Unparseable values are logged and ignored.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	envInt("DB_MAX_OPEN_CONNS", &opts.MaxOpenConns)
	envInt("DB_MAX_IDLE_CONNS", &opts.MaxIdleConns)
	envDuration("DB_CONN_MAX_LIFETIME", &opts.ConnMaxLifetime)
	envDuration("DB_CONN_MAX_IDLE_TIME", &opts.ConnMaxIdleTime)
	envDuration("DB_PING_TIMEOUT", &opts.PingTimeout)
	return opts
}

// Open connects with the profile that matches the runtime. Inside Lambda the
// pool is shared across invocations of the same execution environment.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if IsLambdaRuntime() {
		return GetSingleton(ctx, databaseURL, OptionsFromEnv(Defaults(ProfileLambda)))
	}
	return Connect(ctx, databaseURL, OptionsFromEnv(Defaults(ProfileServer)))
}

// Connect opens a pgx-backed pool and pings it. Callers share the result.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	pool, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applyOptions(pool, opts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logPoolStats(pool, "db.connect")
	return pool, nil
}

// GetSingleton returns the process-wide pool, connecting on first use.
// Concurrent callers wait for the same attempt; a failed attempt is retried by
// the next caller.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if singletonDB != nil {
		return singletonDB, nil
	}
	pool, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	singletonDB = pool
	telemetry.Info("db.singleton_init", nil)
	return singletonDB, nil
}

func applyOptions(pool *sql.DB, opts Options) {
	fallback := Defaults(ProfileServer)
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = fallback.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = fallback.MaxIdleConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = fallback.ConnMaxLifetime
	}
	pool.SetMaxOpenConns(opts.MaxOpenConns)
	pool.SetMaxIdleConns(opts.MaxIdleConns)
	pool.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func logPoolStats(pool *sql.DB, msg string) {
	stats := pool.Stats()
	telemetry.Info(msg, map[string]any{
		"open":     stats.OpenConnections,
		"in_use":   stats.InUse,
		"idle":     stats.Idle,
		"wait":     stats.WaitCount,
		"max_open": stats.MaxOpenConnections,
	})
}

func envInt(key string, dst *int) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "error": err.Error()})
		return
	}
	*dst = v
}

func envDuration(key string, dst *time.Duration) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "error": err.Error()})
		return
	}
	*dst = v
}
