package pricecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/newthinker/lookback/internal/core"
)

// SQLite persists price series across restarts
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	mu  sync.Mutex
}

// NewSQLite opens (or creates) the database at path and runs migrations.
// A zero ttl never expires entries.
func NewSQLite(path string, ttl time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrCacheFailed, fmt.Errorf("open sqlite: %w", err))
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrCacheFailed, fmt.Errorf("set WAL mode: %w", err))
	}

	c := &SQLite{db: db, ttl: ttl, now: time.Now}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrCacheFailed, fmt.Errorf("migrate: %w", err))
	}
	return c, nil
}

func (c *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_series (
			cache_key  TEXT PRIMARY KEY,
			symbol     TEXT NOT NULL,
			name       TEXT,
			points     TEXT NOT NULL,
			stored_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_series_stored ON price_series(stored_at)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLite) Get(ctx context.Context, key string) (*core.PriceSeries, error) {
	var (
		symbol, name, points string
		storedAt             int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT symbol, name, points, stored_at FROM price_series WHERE cache_key = ?`, key,
	).Scan(&symbol, &name, &points, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrCacheFailed, fmt.Errorf("get %s: %w", key, err))
	}
	if c.ttl > 0 && c.now().Sub(time.Unix(storedAt, 0)) > c.ttl {
		return nil, nil
	}

	series := &core.PriceSeries{Symbol: symbol, Name: name}
	if err := json.Unmarshal([]byte(points), &series.Points); err != nil {
		return nil, core.WrapError(core.ErrCacheFailed, fmt.Errorf("decode %s: %w", key, err))
	}
	return series, nil
}

func (c *SQLite) Put(ctx context.Context, key string, series *core.PriceSeries) error {
	points, err := json.Marshal(series.Points)
	if err != nil {
		return core.WrapError(core.ErrCacheFailed, fmt.Errorf("encode %s: %w", key, err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO price_series (cache_key, symbol, name, points, stored_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
			symbol = excluded.symbol, name = excluded.name,
			points = excluded.points, stored_at = excluded.stored_at`,
		key, series.Symbol, series.Name, string(points), c.now().Unix(),
	)
	if err != nil {
		return core.WrapError(core.ErrCacheFailed, fmt.Errorf("put %s: %w", key, err))
	}
	return nil
}

func (c *SQLite) Purge(ctx context.Context) (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.ttl).Unix()

	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.ExecContext(ctx, `DELETE FROM price_series WHERE stored_at < ?`, cutoff)
	if err != nil {
		return 0, core.WrapError(core.ErrCacheFailed, fmt.Errorf("purge: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.WrapError(core.ErrCacheFailed, fmt.Errorf("purge: %w", err))
	}
	return int(n), nil
}

func (c *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_series`).Scan(&n); err != nil {
		return 0, core.WrapError(core.ErrCacheFailed, fmt.Errorf("count: %w", err))
	}
	return n, nil
}

// Close closes the database
func (c *SQLite) Close() error {
	return c.db.Close()
}
