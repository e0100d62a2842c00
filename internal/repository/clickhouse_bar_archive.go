package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ChartPulse/internal/domain/models"
	pkgch "ChartPulse/pkg/clickhouse"
)

// BarsSchema creates the archive database and table. ReplacingMergeTree
// keyed on (partition, symbol, timeframe, t) makes repeated writes of the
// same bar converge to the latest row.
var BarsSchema = []string{
	"CREATE DATABASE IF NOT EXISTS chartpulse",
	`CREATE TABLE IF NOT EXISTS chartpulse.bars (
        partition String,
        symbol String,
        timeframe String,
        t DateTime64(3),
        open Float64,
        high Float64,
        low Float64,
        close Float64,
        volume Float64,
        stored_at DateTime DEFAULT now()
    ) ENGINE=ReplacingMergeTree(stored_at) ORDER BY (partition, symbol, timeframe, t)`,
}

// CHBarArchive implements BarArchive backed by ClickHouse.
type CHBarArchive struct {
	client *pkgch.Client
	db     *sql.DB
	table  string
}

// NewCHBarArchive wraps an existing ClickHouse client.
func NewCHBarArchive(client *pkgch.Client) *CHBarArchive {
	return &CHBarArchive{client: client, db: client.DB(), table: "chartpulse.bars"}
}

// StoreBars batch-inserts a merged series. Chunked to 2000 rows per
// statement to bound round-trips.
func (a *CHBarArchive) StoreBars(ctx context.Context, key models.CacheKey, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, b := range bars[start:end] {
			if b.T <= 0 {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				key.Partition,
				key.Symbol,
				key.Timeframe,
				time.UnixMilli(b.T),
				b.O,
				b.H,
				b.L,
				b.C,
				b.V,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (partition, symbol, timeframe, t, open, high, low, close, volume) VALUES %s",
			a.table, strings.Join(values, ","))
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store bars %s: %w", key.String(), err)
		}
	}
	return nil
}

// Health checks the connection.
func (a *CHBarArchive) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

// Close closes the connection pool.
func (a *CHBarArchive) Close() error {
	return a.client.Close()
}
