package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// withOpener swaps openDB for the duration of the test.
func withOpener(t *testing.T, open func(name, dsn string) (*sql.DB, error)) {
	t.Helper()
	prev := openDB
	openDB = open
	t.Cleanup(func() { openDB = prev })
}

func resetSingleton(t *testing.T) {
	t.Helper()
	singletonMu.Lock()
	singletonDB = nil
	singletonMu.Unlock()
	t.Cleanup(func() {
		singletonMu.Lock()
		singletonDB = nil
		singletonMu.Unlock()
	})
}

func pingingMock(t *testing.T, pingErr error) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	pool, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	ping := mock.ExpectPing()
	if pingErr != nil {
		ping.WillReturnError(pingErr)
		mock.ExpectClose()
	}
	return pool, mock
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", Defaults(ProfileServer)); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestConnectClosesPoolWhenPingFails(t *testing.T) {
	pool, mock := pingingMock(t, errors.New("connection refused"))
	withOpener(t, func(name, dsn string) (*sql.DB, error) {
		if name != "pgx" {
			t.Fatalf("expected pgx driver, got %q", name)
		}
		return pool, nil
	})

	if _, err := Connect(context.Background(), "postgres://db", Defaults(ProfileServer)); err == nil {
		t.Fatalf("expected ping error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestConnectAppliesOptions(t *testing.T) {
	pool, mock := pingingMock(t, nil)
	withOpener(t, func(string, string) (*sql.DB, error) { return pool, nil })

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "not-a-duration")

	opts := OptionsFromEnv(Defaults(ProfileServer))
	got, err := Connect(context.Background(), "postgres://db", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got.Stats().MaxOpenConnections != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", got.Stats().MaxOpenConnections)
	}
	want := Options{
		MaxOpenConns:    7,
		MaxIdleConns:    3,
		ConnMaxLifetime: 20 * time.Minute,
		ConnMaxIdleTime: 45 * time.Second,
		PingTimeout:     Defaults(ProfileServer).PingTimeout,
	}
	if opts != want {
		t.Fatalf("options = %+v, want %+v", opts, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSingletonReusesPool(t *testing.T) {
	resetSingleton(t)
	opened := 0
	withOpener(t, func(string, string) (*sql.DB, error) {
		opened++
		pool, _ := pingingMock(t, nil)
		return pool, nil
	})

	first, err := GetSingleton(context.Background(), "postgres://db", Defaults(ProfileLambda))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := GetSingleton(context.Background(), "postgres://db", Defaults(ProfileLambda))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first != second || opened != 1 {
		t.Fatalf("expected one shared pool, opened %d", opened)
	}
}

func TestGetSingletonRetriesAfterFailure(t *testing.T) {
	resetSingleton(t)
	attempt := 0
	withOpener(t, func(string, string) (*sql.DB, error) {
		attempt++
		if attempt == 1 {
			return nil, errors.New("dns failure")
		}
		pool, _ := pingingMock(t, nil)
		return pool, nil
	})

	if _, err := GetSingleton(context.Background(), "postgres://db", Defaults(ProfileLambda)); err == nil {
		t.Fatalf("expected first call to fail")
	}
	pool, err := GetSingleton(context.Background(), "postgres://db", Defaults(ProfileLambda))
	if err != nil || pool == nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestOpenUsesSingletonInsideLambda(t *testing.T) {
	resetSingleton(t)
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "cv-tailor-api")
	withOpener(t, func(string, string) (*sql.DB, error) {
		pool, _ := pingingMock(t, nil)
		return pool, nil
	})

	pool, err := Open(context.Background(), "postgres://db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if pool.Stats().MaxOpenConnections != Defaults(ProfileLambda).MaxOpenConns {
		t.Fatalf("expected lambda pool size, got %d", pool.Stats().MaxOpenConnections)
	}
	if singletonDB != pool {
		t.Fatalf("expected pool to be cached")
	}
}
