package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/scanwatch/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "scanwatch.db"

// HistoryDB stores scan history in SQLite.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
	clock  clockwork.Clock
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Several watch commands may run
	// at the same time against one history file.
	EnableWAL bool

	// Clock stamps every write. Nil means the real clock.
	Clock clockwork.Clock
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ScanRecord is one row of the history.
type ScanRecord struct {
	JobID   model.ID
	RepoURL string
	BaseURL string
	Status  model.Status

	// TotalPages and TotalEntries are -1 until a findings page was seen.
	TotalPages   int
	TotalEntries int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasTotals reports whether finding totals have been recorded.
func (r ScanRecord) HasTotals() bool {
	return r.TotalEntries >= 0
}

// StatusEvent is one observed status transition.
type StatusEvent struct {
	Status     model.Status
	ObservedAt time.Time
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	hdb := &HistoryDB{db: db, dbPath: dbPath, clock: clock}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		job_id TEXT PRIMARY KEY,
		repo_url TEXT NOT NULL DEFAULT '',
		base_url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		total_pages INTEGER,
		total_entries INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_updated ON scans(updated_at);

	CREATE TABLE IF NOT EXISTS status_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		status TEXT NOT NULL,
		observed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_job ON status_events(job_id);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (h *HistoryDB) now() string {
	return h.clock.Now().UTC().Format(timeLayout)
}

// RecordSubmission stores a newly created scan. Submitting the same id
// again refreshes its URLs.
func (h *HistoryDB) RecordSubmission(ctx context.Context, id model.ID, repoURL, baseURL string) error {
	now := h.now()
	_, err := h.db.ExecContext(ctx, `
	INSERT INTO scans (job_id, repo_url, base_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(job_id) DO UPDATE SET
		repo_url = excluded.repo_url,
		base_url = excluded.base_url,
		updated_at = excluded.updated_at
	`, id.String(), repoURL, baseURL, now, now)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// RecordStatus stores an observed status. Scans that were not submitted
// from this machine are added on first sight.
func (h *HistoryDB) RecordStatus(ctx context.Context, id model.ID, baseURL string, status model.Status) error {
	now := h.now()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO scans (job_id, base_url, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(job_id) DO UPDATE SET
		status = excluded.status,
		updated_at = excluded.updated_at
	`, id.String(), baseURL, string(status), now, now); err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO status_events (job_id, status, observed_at) VALUES (?, ?, ?)
	`, id.String(), string(status), now); err != nil {
		return fmt.Errorf("failed to record status event: %w", err)
	}

	return tx.Commit()
}

// RecordTotals stores the finding totals reported with a findings page.
func (h *HistoryDB) RecordTotals(ctx context.Context, id model.ID, totalPages, totalEntries int) error {
	res, err := h.db.ExecContext(ctx, `
	UPDATE scans SET total_pages = ?, total_entries = ?, updated_at = ?
	WHERE job_id = ?
	`, totalPages, totalEntries, h.now(), id.String())
	if err != nil {
		return fmt.Errorf("failed to record totals: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("scan %s is not in the history", id)
	}
	return nil
}

const scanColumns = `job_id, repo_url, base_url, status, total_pages, total_entries, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ScanRecord, error) {
	var (
		r                 ScanRecord
		id, status        string
		pages, entries    sql.NullInt64
		created, modified string
	)
	if err := row.Scan(&id, &r.RepoURL, &r.BaseURL, &status, &pages, &entries, &created, &modified); err != nil {
		return ScanRecord{}, err
	}

	r.JobID = model.ID(id)
	r.Status = model.Status(status)
	r.TotalPages, r.TotalEntries = -1, -1
	if pages.Valid {
		r.TotalPages = int(pages.Int64)
	}
	if entries.Valid {
		r.TotalEntries = int(entries.Int64)
	}
	r.CreatedAt = parseTimestamp(created)
	r.UpdatedAt = parseTimestamp(modified)
	return r, nil
}

// GetScan returns the record for id, or nil if it is unknown.
func (h *HistoryDB) GetScan(ctx context.Context, id model.ID) (*ScanRecord, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE job_id = ?`, id.String())
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return &r, nil
}

// ListScans returns up to limit records, most recently updated first.
// A non-positive limit returns every record.
func (h *HistoryDB) ListScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scans ORDER BY updated_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// StatusHistory returns every recorded transition of id in order.
func (h *HistoryDB) StatusHistory(ctx context.Context, id model.ID) ([]StatusEvent, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT status, observed_at FROM status_events WHERE job_id = ? ORDER BY id
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var events []StatusEvent
	for rows.Next() {
		var status, observed string
		if err := rows.Scan(&status, &observed); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		events = append(events, StatusEvent{Status: model.Status(status), ObservedAt: parseTimestamp(observed)})
	}
	return events, rows.Err()
}

var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time for unparseable input.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
