package database

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Empty(t, o.Validate())
	assert.Equal(t, DriverSQLite, o.Driver)
}

func TestCompleteDefaultPort(t *testing.T) {
	t.Setenv(PasswordEnv, "s3cret")

	o := NewOptions()
	o.Driver = DriverPostgres
	require.NoError(t, o.Complete())
	assert.Equal(t, 5432, o.Port)
	assert.Equal(t, "s3cret", o.Password)

	o = NewOptions()
	o.Driver = DriverMySQL
	require.NoError(t, o.Complete())
	assert.Equal(t, 3306, o.Port)
}

func TestValidate(t *testing.T) {
	o := NewOptions()
	o.Driver = "oracle"
	o.LogLevel = 9
	assert.Len(t, o.Validate(), 2)

	o = NewOptions()
	o.Driver = DriverMySQL
	o.Host = ""
	o.Database = ""
	assert.Len(t, o.Validate(), 2)
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs, "database")

	require.NoError(t, fs.Parse([]string{"--database.driver=mysql", "--database.port=3307"}))
	assert.Equal(t, DriverMySQL, o.Driver)
	assert.Equal(t, 3307, o.Port)
}
