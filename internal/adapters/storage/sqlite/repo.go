package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/evanschultz/selftrack/internal/app"
	"github.com/evanschultz/selftrack/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// memoryDBCounter keeps in-memory databases from sharing one cache.
var memoryDBCounter atomic.Int64

// Repository stores tracking batches and captured periods.
type Repository struct {
	db *sql.DB
}

// Open opens the database at path, creating parent directories and running migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	dsn := fmt.Sprintf("file:selftrack-mem-%d?mode=memory&cache=shared", memoryDBCounter.Add(1))
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			operating_system TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS periods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL,
			start_ms INTEGER NOT NULL,
			end_ms INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			executable TEXT NOT NULL DEFAULT '',
			class_name TEXT NOT NULL DEFAULT '',
			interactive TEXT NOT NULL,
			FOREIGN KEY(batch_id) REFERENCES batches(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at ASC, id ASC);`,
		`CREATE INDEX IF NOT EXISTS idx_periods_batch_start ON periods(batch_id, start_ms ASC, id ASC);`,
		`CREATE INDEX IF NOT EXISTS idx_periods_start ON periods(start_ms ASC, id ASC);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `ALTER TABLE periods ADD COLUMN class_name TEXT NOT NULL DEFAULT ''`); err != nil && !isDuplicateColumnErr(err) {
		return fmt.Errorf("migrate sqlite add periods.class_name: %w", err)
	}
	return nil
}

// CreateBatch inserts one batch row.
func (r *Repository) CreateBatch(ctx context.Context, b domain.Batch) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO batches(id, name, operating_system, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.Name, string(b.OperatingSystem), ts(b.StartedAt), nullableTS(b.EndedAt))
	return err
}

// UpdateBatch updates batch metadata.
func (r *Repository) UpdateBatch(ctx context.Context, b domain.Batch) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE batches
		SET name = ?, operating_system = ?, started_at = ?, ended_at = ?
		WHERE id = ?
	`, b.Name, string(b.OperatingSystem), ts(b.StartedAt), nullableTS(b.EndedAt), b.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetBatch returns one batch or app.ErrNotFound.
func (r *Repository) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, operating_system, started_at, ended_at
		FROM batches
		WHERE id = ?
	`, id)
	return scanBatch(row)
}

// ListBatches returns batches oldest first.
func (r *Repository) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, operating_system, started_at, ended_at
		FROM batches
		ORDER BY started_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AppendPeriods inserts periods for one batch in a single transaction.
func (r *Repository) AppendPeriods(ctx context.Context, batchID string, periods []domain.ActivityPeriod) (err error) {
	if len(periods) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT 1 FROM batches WHERE id = ?`, batchID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = app.ErrNotFound
		}
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO periods(batch_id, start_ms, end_ms, title, executable, class_name, interactive)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range periods {
		if _, err = stmt.ExecContext(ctx,
			batchID,
			p.Start,
			p.End,
			p.Details.Title,
			p.Details.Executable,
			p.Details.ClassName,
			string(p.Details.Interactive),
		); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// ListPeriods returns the periods of one batch in start order.
func (r *Repository) ListPeriods(ctx context.Context, batchID string) ([]domain.ActivityPeriod, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT start_ms, end_ms, title, executable, class_name, interactive
		FROM periods
		WHERE batch_id = ?
		ORDER BY start_ms ASC, id ASC
	`, batchID)
	if err != nil {
		return nil, err
	}
	return scanPeriods(rows)
}

// ListPeriodsBetween returns periods from every batch fully contained in [fromMS, toMS].
func (r *Repository) ListPeriodsBetween(ctx context.Context, fromMS, toMS int64) ([]domain.ActivityPeriod, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT start_ms, end_ms, title, executable, class_name, interactive
		FROM periods
		WHERE start_ms >= ? AND end_ms <= ?
		ORDER BY start_ms ASC, id ASC
	`, fromMS, toMS)
	if err != nil {
		return nil, err
	}
	return scanPeriods(rows)
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(s scanner) (domain.Batch, error) {
	var (
		b          domain.Batch
		osRaw      string
		startedRaw string
		ended      sql.NullString
	)
	if err := s.Scan(&b.ID, &b.Name, &osRaw, &startedRaw, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Batch{}, app.ErrNotFound
		}
		return domain.Batch{}, err
	}
	b.OperatingSystem = domain.OperatingSystem(osRaw)
	b.StartedAt = parseTS(startedRaw)
	b.EndedAt = parseNullTS(ended)
	return b, nil
}

func scanPeriods(rows *sql.Rows) ([]domain.ActivityPeriod, error) {
	defer rows.Close()
	out := []domain.ActivityPeriod{}
	for rows.Next() {
		var (
			p           domain.ActivityPeriod
			interactive string
		)
		if err := rows.Scan(&p.Start, &p.End, &p.Details.Title, &p.Details.Executable, &p.Details.ClassName, &interactive); err != nil {
			return nil, err
		}
		p.Details.Interactive = domain.Interaction(interactive)
		out = append(out, p)
	}
	return out, rows.Err()
}

// translateNoRows maps zero affected rows to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
