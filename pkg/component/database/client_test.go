package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbopts "github.com/kart-io/docuverse/pkg/options/database"
)

func TestNewSQLite(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.Path = filepath.Join(t.TempDir(), "test.db")

	c, err := New(context.Background(), opts)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, dbopts.DriverSQLite, c.Name())
	assert.NoError(t, c.Ping(context.Background()))
	assert.NotNil(t, c.DB())
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.Driver = "oracle"
	_, err := New(context.Background(), opts)
	assert.Error(t, err)

	_, err = New(context.Background(), nil)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.Host = "db"
	opts.Port = 3306
	opts.Username = "root"
	opts.Password = "p@ss/word"
	opts.Database = "docs"
	assert.Equal(t, "root:p%40ss%2Fword@tcp(db:3306)/docs?charset=utf8mb4&parseTime=True&loc=Local", MySQLDSN(opts))

	opts.Port = 5432
	opts.Password = "it's"
	assert.Equal(t, "host=db port=5432 user=root password='it''s' dbname=docs sslmode=disable", PostgresDSN(opts))
}
