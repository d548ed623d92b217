package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
  host: db
  port: 5432
auth:
  jwt_secret: s3cret
kafka:
  brokers: ["k1:9092", "k2:9092"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "wallet_events", cfg.Kafka.Topic.WalletEvents)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, 5*time.Minute, cfg.Auth.SigninWindow())
	assert.Equal(t, int64(100), cfg.Business.InitialBalanceMin)
	assert.Equal(t, int64(1000000), cfg.Business.InitialBalanceMax)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: from-file
`)
	t.Setenv("WALLET_AUTH_JWT_SECRET", "from-env")
	t.Setenv("WALLET_SERVER_PORT", "7070")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "server:\n  port: 1\n"))
	assert.ErrorContains(t, err, "jwt_secret")

	_, err = LoadConfig(writeConfig(t, `
auth:
  jwt_secret: x
business:
  initial_balance_min: 500
  initial_balance_max: 100
`))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `
auth:
  jwt_secret: x
database:
  driver: oracle
`))
	assert.ErrorContains(t, err, "oracle")
}
