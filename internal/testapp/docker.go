package testapp

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"newsletter/internal/config"
)

const (
	containerUser     = "postgres"
	containerPassword = "password"
)

var container struct {
	once     sync.Once
	pool     *dockertest.Pool
	resource *dockertest.Resource
	settings config.DatabaseSettings
	err      error
}

func dockerEnabled() bool {
	return os.Getenv("NEWSLETTER_TEST_DOCKER") == "1"
}

// containerDatabase starts one postgres container per test binary and
// returns settings pointing at it.
func containerDatabase() (config.DatabaseSettings, error) {
	container.once.Do(func() {
		container.settings, container.err = startContainer()
	})
	return container.settings, container.err
}

func startContainer() (config.DatabaseSettings, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return config.DatabaseSettings{}, fmt.Errorf("could not connect to docker: %w", err)
	}
	pool.MaxWait = 60 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15",
		Env: []string{
			"POSTGRES_USER=" + containerUser,
			"POSTGRES_PASSWORD=" + containerPassword,
		},
	}, func(cfg *docker.HostConfig) {
		cfg.AutoRemove = true
		cfg.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return config.DatabaseSettings{}, fmt.Errorf("could not start postgres: %w", err)
	}
	container.pool = pool
	container.resource = resource
	// Reap the container even if the test binary is killed.
	_ = resource.Expire(600)

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	if err != nil {
		return config.DatabaseSettings{}, fmt.Errorf("container port: %w", err)
	}
	dbs := config.DatabaseSettings{
		Username: containerUser,
		Password: containerPassword,
		Host:     "localhost",
		Port:     uint16(port),
	}

	if err := pool.Retry(func() error {
		conn, err := sql.Open("postgres", dbs.ConnectionStringWithoutDB())
		if err != nil {
			return err
		}
		defer conn.Close()
		return conn.Ping()
	}); err != nil {
		return config.DatabaseSettings{}, fmt.Errorf("postgres not ready: %w", err)
	}
	return dbs, nil
}

func stopContainer() {
	if container.resource == nil {
		return
	}
	_ = container.pool.Purge(container.resource)
}
