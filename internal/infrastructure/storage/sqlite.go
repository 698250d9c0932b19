package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteReportRepository keeps the assessment history in SQLite. The full
// report is stored as JSON next to the columns used for listing.
type SQLiteReportRepository struct {
	db *sql.DB
}

var _ port.ReportRepository = (*SQLiteReportRepository)(nil)

// OpenSQLite opens (or creates) the database at path and applies pending
// migrations.
func OpenSQLite(path string, logger port.Logger) (*SQLiteReportRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// PRAGMAs are per connection; one connection also serialises writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if err := migrateUp(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteReportRepository{db: db}, nil
}

func migrateUp(db *sql.DB, logger port.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if logger != nil {
		m.Log = migrateLogger{logger}
	}
	// m is not closed: closing it would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{ port.Logger }

func (l migrateLogger) Printf(format string, v ...any) { l.Logger.Printf("[migrate] "+format, v...) }
func (l migrateLogger) Verbose() bool                  { return false }

// Save inserts or replaces report. An empty ID is filled with a new UUID
// and a zero timestamp with the current time.
func (r *SQLiteReportRepository) Save(ctx context.Context, report *entity.Report) error {
	if report == nil {
		return fmt.Errorf("%w: nil report", entity.ErrInvalidInput)
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now()
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	score := 0
	if report.Accessibility != nil {
		score = report.Accessibility.Score
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (id, image_path, score, final_score, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.ImagePath, score, report.FinalScore(), report.Timestamp.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get loads one report.
func (r *SQLiteReportRepository) Get(ctx context.Context, id string) (*entity.Report, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}
	return decodeReport(payload)
}

// Recent returns up to n reports, newest first.
func (r *SQLiteReportRepository) Recent(ctx context.Context, n int) ([]*entity.Report, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM reports ORDER BY created_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("select reports: %w", err)
	}
	defer rows.Close()

	var out []*entity.Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rep, err := decodeReport(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *SQLiteReportRepository) Close() error {
	return r.db.Close()
}

func decodeReport(payload string) (*entity.Report, error) {
	var rep entity.Report
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rep, nil
}
