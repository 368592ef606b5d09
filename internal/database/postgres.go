package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/econ-trends/internal/config"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresConnection opens a traced pool and verifies it with a ping.
func NewPostgresConnection(ctx context.Context, cfg config.DatabaseConfig) (*PostgresDB, error) {
	poolConfig, err := poolConfigFrom(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host":      poolConfig.ConnConfig.Host,
		"database":  poolConfig.ConnConfig.Database,
		"max_conns": poolConfig.MaxConns,
	}).Info("Successfully connected to PostgreSQL")

	return &PostgresDB{Pool: pool}, nil
}

// DSN renders the connection string. DatabaseURL wins when set.
func DSN(cfg config.DatabaseConfig) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
}

func poolConfigFrom(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 && int32(cfg.MaxIdleConns) <= poolConfig.MaxConns {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if d, err := parseOptionalDuration(cfg.ConnMaxLifetime); err != nil {
		return nil, fmt.Errorf("invalid conn_max_lifetime: %w", err)
	} else if d > 0 {
		poolConfig.MaxConnLifetime = d
	}
	if d, err := parseOptionalDuration(cfg.ConnMaxIdleTime); err != nil {
		return nil, fmt.Errorf("invalid conn_max_idle_time: %w", err)
	} else if d > 0 {
		poolConfig.MaxConnIdleTime = d
	}

	poolConfig.ConnConfig.Tracer = NewQueryTracer()
	return poolConfig, nil
}

func parseOptionalDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func (db *PostgresDB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
		logrus.Info("PostgreSQL connection closed")
	}
}

func (db *PostgresDB) HealthCheck(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database not initialized")
	}
	return db.Pool.Ping(ctx)
}
