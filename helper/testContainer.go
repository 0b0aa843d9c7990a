package helper

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Images used by the integration tests.
const (
	VectorImage = "pgvector/pgvector:pg17"
	GraphImage  = "apache/age:release_PG16_1.5.0"
)

const (
	testDatabase = "database"
	testUsername = "user"
	testPassword = "password"
)

// MustStartPostgresContainer starts a postgres container with pgvector.
// It returns the teardown function and the mapped port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	return StartPostgresContainer(VectorImage)
}

// MustStartGraphContainer starts a postgres container with Apache AGE.
func MustStartGraphContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	return StartPostgresContainer(GraphImage)
}

// StartPostgresContainer starts the given postgres compatible image.
func StartPostgresContainer(image string) (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(
		ctx,
		image,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUsername),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("error starting postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("error getting connection string: %w", err)
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing connection string: %v", err)
	}

	return pgContainer.Terminate, u.Port(), nil
}

// SetTestDatabaseConfigEnvs points NewDatabaseConfiguration at a test container.
func SetTestDatabaseConfigEnvs(t *testing.T, dbPort string) {
	t.Setenv(EnvDBHost, "localhost")
	t.Setenv(EnvDBPort, dbPort)
	t.Setenv(EnvDBDatabase, testDatabase)
	t.Setenv(EnvDBUsername, testUsername)
	t.Setenv(EnvDBPassword, testPassword)
	t.Setenv(EnvDBSchema, "public")
	t.Setenv(EnvDBSSLMode, "disable")
}
