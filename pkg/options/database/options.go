// Package database provides relational database configuration options.
package database

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docuverse/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// PasswordEnv 未通过参数传入密码时读取的环境变量。
const PasswordEnv = "DOCUVERSE_DB_PASSWORD"

// Options defines configuration options for the conversation database.
type Options struct {
	Driver                string        `json:"driver" mapstructure:"driver"`
	Path                  string        `json:"path" mapstructure:"path"`
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	SSLMode               string        `json:"ssl-mode" mapstructure:"ssl-mode"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	SlowThreshold         time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
	LogLevel              int           `json:"log-level" mapstructure:"log-level"`
}

// NewOptions creates a new Options object with default values.
// An empty Path is resolved to <data-dir>/conversations.db by the server.
func NewOptions() *Options {
	return &Options{
		Driver:                DriverSQLite,
		Host:                  "127.0.0.1",
		Database:              "docuverse",
		SSLMode:               "disable",
		MaxIdleConnections:    10,
		MaxOpenConnections:    100,
		MaxConnectionLifeTime: 10 * time.Second,
		SlowThreshold:         200 * time.Millisecond,
		LogLevel:              1, // Silent
	}
}

// AddFlags adds flags for database options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Database driver (sqlite, mysql, postgres).")
	fs.StringVar(&o.Path, p+"path", o.Path, "SQLite database file (default <data-dir>/conversations.db).")
	fs.StringVar(&o.Host, p+"host", o.Host, "Database host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Database port (default per driver).")
	fs.StringVar(&o.Username, p+"username", o.Username, "Database username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Database password (prefer "+PasswordEnv+").")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database name.")
	fs.StringVar(&o.SSLMode, p+"ssl-mode", o.SSLMode, "PostgreSQL SSL mode.")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Max idle connections.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Max open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Max connection life time.")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold, "Queries slower than this are logged as warnings.")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "GORM log level (1 silent, 2 error, 3 warn, 4 info).")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Driver {
	case DriverSQLite:
	case DriverMySQL, DriverPostgres:
		if o.Host == "" {
			errs = append(errs, fmt.Errorf("host is required for %s", o.Driver))
		}
		if o.Database == "" {
			errs = append(errs, fmt.Errorf("database is required for %s", o.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported driver %q", o.Driver))
	}
	if o.LogLevel < 1 || o.LogLevel > 4 {
		errs = append(errs, fmt.Errorf("log-level must be in [1, 4]"))
	}
	return errs
}

// Complete fills in the password from the environment and per-driver default ports.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv(PasswordEnv)
	}
	if o.Port == 0 {
		switch o.Driver {
		case DriverMySQL:
			o.Port = 3306
		case DriverPostgres:
			o.Port = 5432
		}
	}
	return nil
}
