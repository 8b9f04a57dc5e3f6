package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"zapstock/internal/config"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Service owns the connection pool and exposes it as a *sql.DB for repositories and migrations.
type Service interface {
	DB() *sql.DB
	Health() map[string]string
	Close() error
}

type service struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// New opens a pgx pool for cfg and verifies connectivity.
func New(ctx context.Context, cfg config.DatabaseConfig) (Service, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// NUMERIC columns scan into shopspring decimals on every pooled connection.
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &service{
		pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
	}, nil
}

func (s *service) DB() *sql.DB {
	return s.db
}

// Health pings the database and reports pool statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats := map[string]string{}
	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	ps := s.pool.Stat()
	stats["status"] = "up"
	stats["total_conns"] = strconv.Itoa(int(ps.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(ps.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(ps.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(ps.MaxConns()))
	return stats
}

func (s *service) Close() error {
	err := s.db.Close()
	s.pool.Close()
	return err
}
