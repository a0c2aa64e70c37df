package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/code-payments/endpoint-mock/pkg/retry"
	"github.com/code-payments/endpoint-mock/pkg/retry/backoff"
)

const (
	imageRepository = "postgres"
	imageTag        = "13-alpine"

	// Upper bound on a container's lifetime if the test binary dies before
	// purging it.
	containerExpiry = 5 * time.Minute

	containerPort = "5432/tcp"
	user          = "endpointmock"
	password      = "endpointmock"
	dbname        = "endpointmock_test"

	connectAttempts = 60
	connectInterval = 500 * time.Millisecond
)

// StartPostgresDB runs a disposable postgres container and returns a client
// connected to it. The returned cleanup func closes the client and purges the
// container. It is always non-nil.
func StartPostgresDB(pool *dockertest.Pool) (*sql.DB, func(), error) {
	_, db, cleanup, err := startPostgres(pool)
	return db, cleanup, err
}

func startPostgres(pool *dockertest.Pool) (*dockertest.Resource, *sql.DB, func(), error) {
	noop := func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: imageRepository,
		Tag:        imageTag,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, nil, noop, errors.Wrap(err, "failed to start postgres container")
	}

	purge := func() {
		_ = pool.Purge(resource)
	}

	// Expire never returns an error
	_ = resource.Expire(uint(containerExpiry.Seconds()))

	url := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		user,
		password,
		resource.GetHostPort(containerPort),
		dbname,
	)

	var db *sql.DB
	_, err = retry.Retry(
		func() error {
			if db == nil {
				db, err = sql.Open("pgx", url)
				if err != nil {
					return err
				}
			}
			return db.Ping()
		},
		retry.Limit(connectAttempts),
		retry.Backoff(backoff.Constant(connectInterval), connectInterval),
	)
	if err != nil {
		if db != nil {
			db.Close()
		}
		purge()
		return nil, nil, noop, errors.Wrap(err, "timed out waiting for postgres container")
	}

	return resource, db, func() {
		db.Close()
		purge()
	}, nil
}
