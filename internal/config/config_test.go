package config_test

import (
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/linemk/storefront-orders/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config_test_*.yaml")
	assert.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(content)
	assert.NoError(t, err)
	assert.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func TestMustLoadByPath_Success(t *testing.T) {
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")

	content := `
env: "local"
http_server:
  address: "localhost:8080"
  timeout: "4s"
  idle_timeout: "60s"
database:
  host: "localhost"
  port: 5432
  user: "postgres"
  name: "storefront"
jwt:
  token_ttl: 60
migrations:
  path: "./migrations"
checkout:
  lock_timeout: "3s"
  max_retries: 2
redis:
  address: "localhost:6379"
events:
  broker: "kafka"
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topic: "orders"
`
	cfg := config.MustLoadByPath(writeConfig(t, content))

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 4*time.Second, cfg.HTTPServer.Timeout)
	assert.Equal(t, 60*time.Second, cfg.HTTPServer.IdleTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "mypassword", cfg.Database.Password)
	assert.Equal(t, "storefront", cfg.Database.Name)
	assert.Equal(t, 60, cfg.JWT.TokenTTL)
	assert.Equal(t, "mysecret", cfg.JWT.Secret)
	assert.Equal(t, "./migrations", cfg.Migrations.Path)
	assert.Equal(t, 3*time.Second, cfg.Checkout.LockTimeout)
	assert.Equal(t, 2, cfg.Checkout.MaxRetries)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "kafka", cfg.Events.Broker)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "orders", cfg.Events.Topic)
}

func TestMustLoadByPath_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")

	content := `
env: "prod"
database:
  user: "postgres"
  name: "storefront"
`
	cfg := config.MustLoadByPath(writeConfig(t, content))

	assert.Equal(t, 5*time.Second, cfg.Checkout.LockTimeout)
	assert.Equal(t, 1, cfg.Checkout.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Redis.StatusTTL)
	assert.Equal(t, "log", cfg.Events.Broker)
	assert.Equal(t, time.Second, cfg.Events.PollInterval)
	assert.Equal(t, 50, cfg.Events.BatchSize)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestMustLoadByPath_FileNotFound(t *testing.T) {
	assert.Panics(t, func() {
		config.MustLoadByPath("non_existent_config.yaml")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5433, User: "shop", Password: "p@ss", Name: "storefront"}
	assert.Equal(t, "postgres://shop:p%40ss@db:5433/storefront?sslmode=disable", cfg.DSN())

	// пробел в пароле не должен превращаться в '+'
	cfg.Password = "p ss+1"
	u, err := url.Parse(cfg.DSN())
	require.NoError(t, err)
	pass, _ := u.User.Password()
	assert.Equal(t, "p ss+1", pass)
	assert.NotContains(t, cfg.DSN(), "p+ss")
}
