// Package sqlite persists the operational run log.
// One row per reconciliation run, plus per-item results for operators.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/magneticstudio/catalogd/internal/domain"
)

// DB wraps the sqlite operational store.
type DB struct {
	db *sql.DB
}

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			started_at      TEXT NOT NULL,
			finished_at     TEXT NOT NULL,
			dry_run         INTEGER NOT NULL DEFAULT 0,
			items_total     INTEGER NOT NULL DEFAULT 0,
			created         INTEGER NOT NULL DEFAULT 0,
			updated         INTEGER NOT NULL DEFAULT 0,
			prices_created  INTEGER NOT NULL DEFAULT 0,
			images_attached INTEGER NOT NULL DEFAULT 0,
			failed          INTEGER NOT NULL DEFAULT 0,
			error           TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS run_items (
			run_id     TEXT NOT NULL,
			name       TEXT NOT NULL,
			product_id TEXT NOT NULL DEFAULT '',
			price_id   TEXT NOT NULL DEFAULT '',
			attached   INTEGER NOT NULL DEFAULT 0,
			error      TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, name)
		)`,
	}
}

// Open opens (or creates) the store under the given directory.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "catalogd.db"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The store is written by one reconciler at a time.
	db.SetMaxOpenConns(1)

	for _, stmt := range Migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &DB{db: db}, nil
}

// Close releases the underlying handle.
func (d *DB) Close() error { return d.db.Close() }

// ─── Run Log Operations ─────────────────────────────────────────────────────

// AppendRun inserts one run record and its per-item results.
func (d *DB) AppendRun(rec domain.RunRecord, items []domain.ItemResult) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dry := 0
	if rec.DryRun {
		dry = 1
	}
	_, err = tx.Exec(`
		INSERT INTO runs (id, started_at, finished_at, dry_run, items_total,
			created, updated, prices_created, images_attached, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.StartedAt.UTC().Format(time.RFC3339), rec.FinishedAt.UTC().Format(time.RFC3339),
		dry, rec.ItemsTotal, rec.Created, rec.Updated, rec.PricesCreated,
		rec.ImagesAttached, rec.Failed, rec.Error)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, it := range items {
		attached := 0
		if it.Attached {
			attached = 1
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO run_items (run_id, name, product_id, price_id, attached, error)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, it.Name, it.ProductID, it.PriceID, attached, it.Err)
		if err != nil {
			return fmt.Errorf("insert run item: %w", err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns the newest run records, most recent first.
func (d *DB) RecentRuns(limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.Query(`
		SELECT id, started_at, finished_at, dry_run, items_total,
			created, updated, prices_created, images_attached, failed, error
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var started, finished string
		var dry int
		if err := rows.Scan(&rec.ID, &started, &finished, &dry, &rec.ItemsTotal,
			&rec.Created, &rec.Updated, &rec.PricesCreated, &rec.ImagesAttached,
			&rec.Failed, &rec.Error); err != nil {
			return nil, err
		}
		rec.DryRun = dry == 1
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RunItems returns the per-item results for one run.
func (d *DB) RunItems(runID string) ([]domain.ItemResult, error) {
	rows, err := d.db.Query(`
		SELECT name, product_id, price_id, attached, error
		FROM run_items WHERE run_id = ? ORDER BY name
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ItemResult
	for rows.Next() {
		var it domain.ItemResult
		var attached int
		if err := rows.Scan(&it.Name, &it.ProductID, &it.PriceID, &attached, &it.Err); err != nil {
			return nil, err
		}
		it.Attached = attached == 1
		out = append(out, it)
	}
	return out, rows.Err()
}
