// Package database opens the gorm connection behind the conversation store.
// SQLite (pure Go, github.com/glebarez/sqlite) is the default; MySQL and
// PostgreSQL are selected with --database.driver.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbopts "github.com/kart-io/docuverse/pkg/options/database"
)

// Client wraps gorm.DB.
type Client struct {
	db   *gorm.DB
	opts *dbopts.Options
}

// New opens the database described by opts, configures the pool and pings it.
func New(ctx context.Context, opts *dbopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}

	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(logLevel(opts.LogLevel), opts.SlowThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if opts.Driver == dbopts.DriverSQLite {
		// sqlite 只允许单写者，串行化连接避免 SQLITE_BUSY。
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxIdleConnections > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
		}
		if opts.MaxOpenConnections > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
		}
		if opts.MaxConnectionLifeTime > 0 {
			sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Driver, err)
	}

	return &Client{db: db, opts: opts}, nil
}

func dialectorFor(opts *dbopts.Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case dbopts.DriverSQLite, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		return sqlite.Open(opts.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), nil
	case dbopts.DriverMySQL:
		return mysqldriver.Open(MySQLDSN(opts)), nil
	case dbopts.DriverPostgres:
		return postgres.Open(PostgresDSN(opts)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func logLevel(level int) gormlogger.LogLevel {
	switch level {
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

// Name returns the driver name.
func (c *Client) Name() string {
	return c.opts.Driver
}

// Ping checks if the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// SqlDB returns the underlying sql.DB instance.
func (c *Client) SqlDB() (*sql.DB, error) {
	return c.db.DB()
}
