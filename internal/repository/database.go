// Package repository is the Postgres-backed bar source. Bars are stored
// at base resolution and aggregated to the requested granularity with
// time_bucket at query time.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backsim/internal/engine"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrIntervalNotSupported = errors.New("interval not supported")
	// ErrNoBars wraps the engine's DataUnavailable sentinel so the
	// orchestrator can exclude the symbol instead of aborting the run.
	ErrNoBars = fmt.Errorf("no bars in datasource: %w", engine.ErrDataUnavailable)
)

type barRow struct {
	Bucket time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

type barStore interface {
	GetAggregates(ctx context.Context, symbol, bucket string, start, end time.Time) ([]barRow, error)
}

// Database holds the connection pool and the bar query layer.
type Database struct {
	bars barStore
	conn *pgxpool.Pool
}

// NewDatabase creates a Database and verifies connectivity.
func NewDatabase(ctx context.Context, dbURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	return &Database{bars: &pgxBarStore{conn: conn}, conn: conn}, nil
}

// Close releases the connection pool.
func (db *Database) Close() {
	if db.conn != nil {
		db.conn.Close()
	}
}

const aggregatesQuery = `
SELECT time_bucket($1::interval, time) AS bucket,
       first(open, time)               AS open,
       max(high)                       AS high,
       min(low)                        AS low,
       last(close, time)               AS close,
       sum(volume)                     AS volume
FROM bars
WHERE symbol = $2
  AND time >= $3
  AND time < $4
GROUP BY bucket
ORDER BY bucket`

type pgxBarStore struct {
	conn *pgxpool.Pool
}

func (s *pgxBarStore) GetAggregates(ctx context.Context, symbol, bucket string, start, end time.Time) ([]barRow, error) {
	rows, err := s.conn.Query(ctx, aggregatesQuery, bucket, symbol, start, end)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[barRow])
}
