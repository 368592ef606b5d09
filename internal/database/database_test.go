package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/econ-trends/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", DBName: "econ", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=econ sslmode=disable", DSN(cfg))

	cfg.DatabaseURL = "postgres://u:p@elsewhere:5432/econ"
	assert.Equal(t, "postgres://u:p@elsewhere:5432/econ", DSN(cfg))
}

func TestPoolConfigFrom(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres", Password: "postgres",
		DBName: "econ_trends", SSLMode: "disable",
		MaxOpenConns: 25, MaxIdleConns: 5,
		ConnMaxLifetime: "300s", ConnMaxIdleTime: "60s",
	}

	poolConfig, err := poolConfigFrom(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(25), poolConfig.MaxConns)
	assert.Equal(t, int32(5), poolConfig.MinConns)
	assert.Equal(t, 300*time.Second, poolConfig.MaxConnLifetime)
	assert.Equal(t, 60*time.Second, poolConfig.MaxConnIdleTime)
	assert.IsType(t, &QueryTracer{}, poolConfig.ConnConfig.Tracer)
}

func TestPoolConfigFrom_InvalidDuration(t *testing.T) {
	_, err := poolConfigFrom(config.DatabaseConfig{
		Host: "localhost", Port: 5432, DBName: "x", SSLMode: "disable",
		ConnMaxLifetime: "forever",
	})
	assert.ErrorContains(t, err, "conn_max_lifetime")
}

func TestPostgresDB_NilSafety(t *testing.T) {
	var db *PostgresDB
	assert.NotPanics(t, db.Close)
	assert.Error(t, db.HealthCheck(context.Background()))
	assert.Error(t, (&PostgresDB{}).HealthCheck(context.Background()))
}

func TestRedisOptions(t *testing.T) {
	opts := RedisOptions(config.RedisConfig{Host: "cache", Port: 6380, Password: "pw", DB: 2})

	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestRedisClient_NilSafety(t *testing.T) {
	var r *RedisClient
	assert.NotPanics(t, r.Close)
	assert.Error(t, r.HealthCheck(context.Background()))
}
