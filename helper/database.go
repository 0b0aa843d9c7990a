package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Environment variables read by NewDatabaseConfiguration.
const (
	EnvDBHost     = "ENTITYSTORE_DB_HOST"
	EnvDBPort     = "ENTITYSTORE_DB_PORT"
	EnvDBDatabase = "ENTITYSTORE_DB_DATABASE"
	EnvDBUsername = "ENTITYSTORE_DB_USERNAME"
	EnvDBPassword = "ENTITYSTORE_DB_PASSWORD"
	EnvDBSchema   = "ENTITYSTORE_DB_SCHEMA"
	EnvDBSSLMode  = "ENTITYSTORE_DB_SSLMODE"
	EnvGraph      = "ENTITYSTORE_GRAPH"
)

// DatabaseConfiguration holds the connection settings of one store.
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
	// Graph is the AGE graph the store mirrors identity entities into.
	// Empty disables the graph mirror.
	Graph string
}

// NewDatabaseConfiguration reads the configuration from the environment.
// A .env file in the working directory is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:     envOrDefault(EnvDBHost, "localhost"),
		Port:     envOrDefault(EnvDBPort, "5432"),
		Database: os.Getenv(EnvDBDatabase),
		Username: os.Getenv(EnvDBUsername),
		Password: os.Getenv(EnvDBPassword),
		Schema:   envOrDefault(EnvDBSchema, "public"),
		SSLMode:  envOrDefault(EnvDBSSLMode, "disable"),
		Graph:    os.Getenv(EnvGraph),
	}

	if config.Database == "" {
		return nil, NewError("database configuration", fmt.Errorf("%s is not set", EnvDBDatabase))
	}
	if config.Username == "" {
		return nil, NewError("database configuration", fmt.Errorf("%s is not set", EnvDBUsername))
	}

	return config, nil
}

// ConnectionString builds the lib/pq keyword/value connection string.
func (c *DatabaseConfiguration) ConnectionString() string {
	parts := []string{
		"host=" + quoteConnValue(c.Host),
		"port=" + quoteConnValue(c.Port),
		"dbname=" + quoteConnValue(c.Database),
		"user=" + quoteConnValue(c.Username),
		"password=" + quoteConnValue(c.Password),
		"sslmode=" + quoteConnValue(c.SSLMode),
	}
	if c.Schema != "" {
		parts = append(parts, "search_path="+quoteConnValue(c.Schema))
	}
	return strings.Join(parts, " ")
}

// Database is a connection pool owned by one store instance.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens and pings a connection pool.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, NewError("database configuration validation", fmt.Errorf("database configuration is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	instance, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, NewError("open database", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = instance.PingContext(ctx)
	if err != nil {
		_ = instance.Close()
		return nil, NewError("ping database", err)
	}

	instance.SetMaxOpenConns(10)
	instance.SetConnMaxIdleTime(5 * time.Minute)

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host), slog.String("database", config.Database))

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
	}, nil
}

// NewTestDatabase opens a database for tests and panics if that fails.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	db, err := NewDatabase("test", config, NewLogger(os.Stdout, slog.LevelDebug))
	if err != nil {
		panic(err)
	}
	return db
}

// Close closes the connection pool.
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func quoteConnValue(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
