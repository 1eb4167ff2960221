package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		addr = "localhost:8000"
		dsn  = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		key  = "c29tZV9zZWNyZXQ="
		orig = []string{"http://localhost:3000"}
	)

	tcases := []struct {
		name string
		addr string
		dsn  string
		key  string
		err  bool
	}{
		{
			name: "valid config",
			addr: addr,
			dsn:  dsn,
			key:  key,
		},
		{
			name: "empty address",
			dsn:  dsn,
			key:  key,
			err:  true,
		},
		{
			name: "empty DSN",
			addr: addr,
			key:  key,
			err:  true,
		},
		{
			name: "empty signing key",
			addr: addr,
			dsn:  dsn,
			err:  true,
		},
		{
			name: "signing key is not base64",
			addr: addr,
			dsn:  dsn,
			key:  "not_base64!",
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.addr, tc.dsn, tc.key, orig, "migrations")
			if tc.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)

			assert.Equal(t, tc.addr, config.ServerAddr)
			assert.Equal(t, tc.dsn, config.DatabaseDSN)
			assert.Equal(t, orig, config.AllowedOrigins)
			assert.Equal(t, "migrations", config.MigrationsDir)
			assert.Equal(t, []byte("some_secret"), config.SigningKey)
		})
	}
}
