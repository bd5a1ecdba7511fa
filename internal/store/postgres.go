package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logCap int
}

// NewPostgres wraps an existing pool. logCap bounds the monitor_log table.
func NewPostgres(pool *pgxpool.Pool, logCap int) *Postgres {
	if logCap <= 0 {
		logCap = 500
	}
	return &Postgres{pool: pool, logCap: logCap}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id                TEXT PRIMARY KEY,
			url               TEXT NOT NULL UNIQUE,
			name              TEXT NOT NULL DEFAULT '',
			image_url         TEXT NOT NULL DEFAULT '',
			current_price     DOUBLE PRECISION NOT NULL DEFAULT 0,
			previous_price    DOUBLE PRECISION,
			stock_status      TEXT NOT NULL DEFAULT 'unknown',
			monitor_state     TEXT NOT NULL DEFAULT 'active',
			error_count       INT NOT NULL DEFAULT 0,
			invalid_count     INT NOT NULL DEFAULT 0,
			last_error        TEXT,
			last_checked      TIMESTAMPTZ,
			last_in_stock     TIMESTAMPTZ,
			history           JSONB NOT NULL DEFAULT '[]',
			auto_add_to_cart  BOOLEAN NOT NULL DEFAULT FALSE,
			selected_variants JSONB NOT NULL DEFAULT '{}',
			max_quantity      INT NOT NULL DEFAULT 1,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS settings (
			id  INT PRIMARY KEY CHECK (id = 1),
			doc JSONB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS monitor_log (
			id         TEXT PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			product_id TEXT NOT NULL DEFAULT '',
			event      TEXT NOT NULL,
			details    TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS monitor_log_ts_idx ON monitor_log (ts DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const productColumns = `id, url, name, image_url, current_price, previous_price,
	stock_status, monitor_state, error_count, invalid_count, last_error,
	last_checked, last_in_stock, history, auto_add_to_cart, selected_variants,
	max_quantity, created_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	var history, variants []byte
	err := row.Scan(
		&p.ID, &p.URL, &p.Name, &p.ImageURL, &p.CurrentPrice, &p.PreviousPrice,
		&p.StockStatus, &p.MonitorState, &p.ErrorCount, &p.InvalidCount,
		&p.LastError, &p.LastChecked, &p.LastInStock, &history,
		&p.AutoAddToCart, &variants, &p.MaxQuantity, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(history, &p.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if err := json.Unmarshal(variants, &p.SelectedVariants); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	return &p, nil
}

func (s *Postgres) LoadProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("load products: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Postgres) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *Postgres) GetProductByURL(ctx context.Context, url string) (*models.Product, error) {
	return scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE url = $1`, url))
}

func (s *Postgres) AddProduct(ctx context.Context, p models.Product) error {
	return s.upsert(ctx, p, false)
}

func (s *Postgres) SaveProduct(ctx context.Context, p models.Product) error {
	return s.upsert(ctx, p, true)
}

func (s *Postgres) upsert(ctx context.Context, p models.Product, update bool) error {
	history, err := json.Marshal(p.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	variants, err := json.Marshal(p.SelectedVariants)
	if err != nil {
		return fmt.Errorf("encode variants: %w", err)
	}
	if p.History == nil {
		history = []byte("[]")
	}
	if p.SelectedVariants == nil {
		variants = []byte("{}")
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	if update {
		query += `
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url, name = EXCLUDED.name, image_url = EXCLUDED.image_url,
			current_price = EXCLUDED.current_price, previous_price = EXCLUDED.previous_price,
			stock_status = EXCLUDED.stock_status, monitor_state = EXCLUDED.monitor_state,
			error_count = EXCLUDED.error_count, invalid_count = EXCLUDED.invalid_count,
			last_error = EXCLUDED.last_error, last_checked = EXCLUDED.last_checked,
			last_in_stock = EXCLUDED.last_in_stock, history = EXCLUDED.history,
			auto_add_to_cart = EXCLUDED.auto_add_to_cart,
			selected_variants = EXCLUDED.selected_variants,
			max_quantity = EXCLUDED.max_quantity`
	}

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.URL, p.Name, p.ImageURL, p.CurrentPrice, p.PreviousPrice,
		p.StockStatus, p.MonitorState, p.ErrorCount, p.InvalidCount, p.LastError,
		p.LastChecked, p.LastInStock, history, p.AutoAddToCart, variants,
		p.MaxQuantity, p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrDuplicateURL
		}
		return fmt.Errorf("save product: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) LoadSettings(ctx context.Context) (models.Settings, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM settings WHERE id = 1`).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	// Decode through a patch so fields added after the row was written fall
	// back to defaults.
	var patch models.SettingsPatch
	if err := json.Unmarshal(doc, &patch); err != nil {
		return models.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return patch.Apply(models.DefaultSettings()).Normalize(), nil
}

func (s *Postgres) SaveSettings(ctx context.Context, settings models.Settings) error {
	doc, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO settings (id, doc) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, doc)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Postgres) AppendLog(ctx context.Context, e models.LogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO monitor_log (id, ts, product_id, event, details)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Timestamp, e.ProductID, e.Event, e.Details)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	// Enforce the global cap, oldest entries dropped first.
	_, err = s.pool.Exec(ctx, `
		DELETE FROM monitor_log
		WHERE id IN (
			SELECT id FROM monitor_log ORDER BY ts DESC OFFSET $1
		)
	`, s.logCap)
	if err != nil {
		return fmt.Errorf("trim log: %w", err)
	}
	return nil
}

func (s *Postgres) RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	if limit <= 0 || limit > s.logCap {
		limit = s.logCap
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, product_id, event, details
		FROM monitor_log ORDER BY ts DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LogEntry, 0, limit)
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ProductID, &e.Event, &e.Details); err != nil {
			return nil, fmt.Errorf("recent logs: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Postgres) ReplaceAll(ctx context.Context, b *models.Bundle) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace all: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("replace all: %w", err)
	}
	for _, p := range b.Products {
		history, err := json.Marshal(p.History)
		if err != nil {
			return fmt.Errorf("encode history: %w", err)
		}
		variants, err := json.Marshal(p.SelectedVariants)
		if err != nil {
			return fmt.Errorf("encode variants: %w", err)
		}
		if p.History == nil {
			history = []byte("[]")
		}
		if p.SelectedVariants == nil {
			variants = []byte("{}")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO products (`+productColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`, p.ID, p.URL, p.Name, p.ImageURL, p.CurrentPrice, p.PreviousPrice,
			p.StockStatus, p.MonitorState, p.ErrorCount, p.InvalidCount, p.LastError,
			p.LastChecked, p.LastInStock, history, p.AutoAddToCart, variants,
			p.MaxQuantity, p.CreatedAt); err != nil {
			return fmt.Errorf("replace all: %w", err)
		}
	}

	doc, err := json.Marshal(b.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO settings (id, doc) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, doc); err != nil {
		return fmt.Errorf("replace all: %w", err)
	}

	return tx.Commit(ctx)
}
