//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

// mysqlIdentifierRe matches a legal MySQL identifier: letters, digits,
// underscore, dollar sign, not starting with a digit.
var mysqlIdentifierRe = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z0-9_$]*$`)

// MySQLContainer is a throwaway MySQL instance for repository integration
// tests, with a ready-to-use connection and table truncation between tests.
type MySQLContainer struct {
	container *mysql.MySQLContainer
	db        *sql.DB
	dsn       string
}

// MySQLConfig controls MySQL container creation.
type MySQLConfig struct {
	// Database is the schema created at startup (default "sitewatch_test").
	Database string
	// Username and Password for the application user.
	Username string
	Password string
	// ImageTag selects the mysql image version (default "8.0").
	ImageTag string
}

// DefaultMySQLConfig matches what the datastore expects in production:
// MySQL 8.0 and a dedicated application user.
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		Database: "sitewatch_test",
		Username: "testuser",
		Password: "testpass",
		ImageTag: "8.0",
	}
}

// NewMySQLContainer starts a MySQL container and opens a pooled connection
// to it. A nil config uses DefaultMySQLConfig(). Containers are always
// created fresh; the repository tests rely on a clean schema.
func NewMySQLContainer(ctx context.Context, config *MySQLConfig) (*MySQLContainer, error) {
	if config == nil {
		defaultCfg := DefaultMySQLConfig()
		config = &defaultCfg
	}

	// RunContainer blocks until the server accepts connections.
	mysqlContainer, err := mysql.RunContainer(ctx,
		mysql.WithDatabase(config.Database),
		mysql.WithUsername(config.Username),
		mysql.WithPassword(config.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start MySQL container: %w", err)
	}

	// multiStatements lets Reset run its FK-toggle/truncate batches.
	dsn, err := mysqlContainer.ConnectionString(ctx, "multiStatements=true")
	if err != nil {
		// Terminate with a background context so cleanup survives an
		// already-expired parent.
		_ = mysqlContainer.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		_ = mysqlContainer.Terminate(context.Background())
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = mysqlContainer.Terminate(context.Background())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLContainer{
		container: mysqlContainer,
		db:        db,
		dsn:       dsn,
	}, nil
}

// GetDSN returns the connection string, suitable for handing to gorm's mysql
// driver or to database/sql directly.
func (c *MySQLContainer) GetDSN() string {
	return c.dsn
}

// DB returns the shared connection pool. Callers must not close it; the pool
// lives until Terminate.
func (c *MySQLContainer) DB() *sql.DB {
	return c.db
}

// Reset truncates the given tables with foreign key checks suspended, so
// each test starts from empty equipment/schedule/log tables. Table names are
// validated before any SQL runs.
func (c *MySQLContainer) Reset(ctx context.Context, tables []string) error {
	if c.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	for _, table := range tables {
		if !mysqlIdentifierRe.MatchString(table) {
			return fmt.Errorf("invalid table name: %s", table)
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE `%s`", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1"); err != nil {
		return fmt.Errorf("failed to enable foreign key checks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Terminate closes the connection pool and removes the container.
func (c *MySQLContainer) Terminate(ctx context.Context) error {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			fmt.Printf("Warning: failed to close database connection: %v\n", err)
		}
		c.db = nil
	}
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	return nil
}
