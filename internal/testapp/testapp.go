// Package testapp spawns isolated instances of the service for integration
// tests. Every Spawn binds its own OS-assigned port and provisions a freshly
// named, migrated database, so tests may run in parallel.
//
// Environment:
//
//	NEWSLETTER_TEST_CONFIG   configuration file (default: nearest configuration.yaml upwards)
//	NEWSLETTER_TEST_DOCKER=1 run PostgreSQL in a throwaway container instead
//	NEWSLETTER_TEST_KEEP_DB=1 keep the per-test databases for inspection
//	NEWSLETTER_TEST_LOG=1    write server logs to stdout
package testapp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"newsletter/internal/config"
	"newsletter/internal/db"
	"newsletter/internal/logging"
	"newsletter/internal/server"
	"newsletter/internal/store"
)

// TestApp is one running instance of the service.
type TestApp struct {
	Address  string // base URL, e.g. http://127.0.0.1:54321
	Port     int
	Pool     *pgxpool.Pool
	Store    *store.Postgres
	Settings config.Settings
	Client   *http.Client
}

// Main runs the tests and tears down the shared container, if one was
// started. Use it from TestMain: os.Exit(testapp.Main(m)).
func Main(m *testing.M) int {
	code := m.Run()
	stopContainer()
	return code
}

// Spawn starts the service in the background against a brand new database.
// The server is stopped and the database dropped when the test ends.
func Spawn(t testing.TB) *TestApp {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind random port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	settings := baseSettings(t)
	settings.ApplicationHost = "127.0.0.1"
	settings.ApplicationPort = uint16(port)
	settings.Database.DatabaseName = uuid.NewString()

	pool := configureDatabase(t, settings.Database)
	st := store.NewPostgres(pool)

	srv, err := server.New(ln, server.Config{
		Store:  st,
		Pinger: st,
		Logger: testLogger(),
	})
	if err != nil {
		ln.Close()
		t.Fatalf("failed to build server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server stopped with error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Errorf("server did not stop in time")
		}
	})

	return &TestApp{
		Address:  "http://" + ln.Addr().String(),
		Port:     port,
		Pool:     pool,
		Store:    st,
		Settings: settings,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// configureDatabase creates the database, migrates it and opens a pool.
// Cleanup closes the pool and drops the database.
func configureDatabase(t testing.TB, dbs config.DatabaseSettings) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	if err := db.CreateDatabase(ctx, dbs.ConnectionStringWithoutDB(), dbs.DatabaseName); err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if os.Getenv("NEWSLETTER_TEST_KEEP_DB") == "1" {
			t.Logf("keeping database %s", dbs.DatabaseName)
			return
		}
		dropCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.DropDatabase(dropCtx, dbs.ConnectionStringWithoutDB(), dbs.DatabaseName); err != nil {
			t.Errorf("failed to drop database %s: %v", dbs.DatabaseName, err)
		}
	})

	if err := db.RunMigrations(dbs.ConnectionString()); err != nil {
		t.Fatalf("failed to migrate the database: %v", err)
	}

	pool, err := db.OpenPool(ctx, dbs.ConnectionString())
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// PostSubscriptions sends body as a url-encoded form to /subscriptions.
func (a *TestApp) PostSubscriptions(t testing.TB, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.Address+"/subscriptions", strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(t, req)
}

// PostForm is PostSubscriptions with the body encoded from values.
func (a *TestApp) PostForm(t testing.TB, values url.Values) *http.Response {
	t.Helper()
	return a.PostSubscriptions(t, values.Encode())
}

// GetHealthCheck requests /health_check.
func (a *TestApp) GetHealthCheck(t testing.TB) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.Address+"/health_check", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return a.do(t, req)
}

func (a *TestApp) do(t testing.TB, req *http.Request) *http.Response {
	t.Helper()
	resp, err := a.Client.Do(req)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func baseSettings(t testing.TB) config.Settings {
	t.Helper()

	var s config.Settings
	path, err := configPath()
	switch {
	case err == nil:
		s, err = config.LoadWithEnv(path)
		if err != nil {
			t.Fatalf("failed to read configuration: %v", err)
		}
	case !dockerEnabled():
		t.Fatalf("no configuration for tests: %v (set NEWSLETTER_TEST_CONFIG or NEWSLETTER_TEST_DOCKER=1)", err)
	}

	if dockerEnabled() {
		dbs, err := containerDatabase()
		if err != nil {
			t.Fatalf("could not start postgres container: %v", err)
		}
		s.Database = dbs
	}
	return s
}

// configPath resolves NEWSLETTER_TEST_CONFIG or the nearest configuration
// file found walking up from the working directory.
func configPath() (string, error) {
	if p := os.Getenv("NEWSLETTER_TEST_CONFIG"); p != "" {
		return p, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, config.DefaultPath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(config.DefaultPath + " not found")
		}
		dir = parent
	}
}

func testLogger() *slog.Logger {
	if os.Getenv("NEWSLETTER_TEST_LOG") == "1" {
		return logging.New(config.LogSettings{Level: "debug"}, os.Stdout)
	}
	return logging.Discard()
}
