package database

import (
	"fmt"
	"net/url"
	"strings"

	dbopts "github.com/kart-io/docuverse/pkg/options/database"
)

// MySQLDSN creates a MySQL DSN: username:password@tcp(host:port)/database?params.
// The password is escaped so characters like @ and / do not break parsing.
func MySQLDSN(opts *dbopts.Options) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		opts.Username,
		url.QueryEscape(opts.Password),
		opts.Host,
		opts.Port,
		opts.Database,
	)
}

// PostgresDSN creates a key=value PostgreSQL DSN.
func PostgresDSN(opts *dbopts.Options) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host,
		opts.Port,
		opts.Username,
		escapePostgresValue(opts.Password),
		opts.Database,
		opts.SSLMode,
	)
}

// escapePostgresValue quotes values with spaces, quotes or backslashes.
func escapePostgresValue(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " '\\") {
		return value
	}
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "''")
	return "'" + escaped + "'"
}
