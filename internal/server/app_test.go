package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dmitrijs2005/cartographer/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	return c
}

func TestNewApp_UnknownLogBackend(t *testing.T) {
	c := testConfig()
	c.LogBackend = "syslog"

	app, err := NewApp(context.Background(), c)

	require.Error(t, err)
	assert.Nil(t, app)
}

func TestNewApp_DatabaseOpenFails(t *testing.T) {
	orig := sqlOpen
	t.Cleanup(func() { sqlOpen = orig })
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driver)
		return nil, errors.New("boom")
	}

	_, err := NewApp(context.Background(), testConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db init error")
}
