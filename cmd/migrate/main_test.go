package main

import (
	"bytes"
	"errors"
	"testing"

	"bloomcart-be/internal/migrate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDSN(t *testing.T) {
	t.Run("DB_URL Wins", func(t *testing.T) {
		getenv := func(key string) string {
			if key == "DB_URL" {
				return "postgres://u:p@db:5432/bloomcart?sslmode=disable"
			}
			return ""
		}

		assert.Equal(t, "postgres://u:p@db:5432/bloomcart?sslmode=disable", resolveDSN(getenv))
	})

	t.Run("Falls Back To DB Settings", func(t *testing.T) {
		t.Setenv("DB_URL", "")
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("DB_USER", "bloom")
		t.Setenv("DB_PASSWORD", "secret")
		t.Setenv("DB_NAME", "bloomcart")
		t.Setenv("DB_PORT", "5432")

		dsn := resolveDSN(func(string) string { return "" })

		assert.Equal(t, "host=localhost user=bloom password=secret dbname=bloomcart port=5432 sslmode=disable", dsn)
	})
}

func TestRun(t *testing.T) {
	t.Run("Up", func(t *testing.T) {
		var got migrate.Mode
		err := run("up", "dsn", func(_ string, m migrate.Mode) error {
			got = m
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, migrate.ModeUp, got)
	})

	t.Run("Down", func(t *testing.T) {
		var got migrate.Mode
		err := run("down", "dsn", func(_ string, m migrate.Mode) error {
			got = m
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, migrate.ModeDown, got)
	})

	t.Run("Unknown Mode", func(t *testing.T) {
		called := false
		err := run("sideways", "dsn", func(string, migrate.Mode) error {
			called = true
			return nil
		})

		assert.ErrorContains(t, err, "unknown mode")
		assert.False(t, called)
	})

	t.Run("Apply Error", func(t *testing.T) {
		err := run("up", "dsn", func(string, migrate.Mode) error {
			return errors.New("dirty database version 3")
		})

		assert.ErrorContains(t, err, "dirty database")
	})

	t.Run("Missing DSN", func(t *testing.T) {
		err := run("up", "", func(string, migrate.Mode) error { return nil })
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, listMigrations(&out))

	assert.Contains(t, out.String(), ".up.sql")
}
