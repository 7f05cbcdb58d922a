package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/qwc999/infpoisk/internal/model"
)

// DB is the corpus index.
type DB struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file and its directory if
	// they don't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the index at path.
func Open(path string, opts Options) (*DB, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, path)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a new file.
	dsn := path + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = path + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	idx := &DB{
		db:   db,
		path: path,
		now:  time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := idx.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return idx, nil
}

// Path returns the database file path.
func (idx *DB) Path() string {
	return idx.path
}

// Close closes the database connection.
func (idx *DB) Close() error {
	return idx.db.Close()
}

func (idx *DB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		seeds TEXT NOT NULL,
		output_dir TEXT NOT NULL DEFAULT '',
		documents_saved INTEGER NOT NULL DEFAULT 0,
		urls_visited INTEGER NOT NULL DEFAULT 0,
		urls_failed INTEGER NOT NULL DEFAULT 0,
		urls_skipped INTEGER NOT NULL DEFAULT 0,
		pages_crawled INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- doc_id matches the doc_%08d file name inside output_dir
	CREATE TABLE IF NOT EXISTS documents (
		output_dir TEXT NOT NULL DEFAULT '',
		doc_id INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		source TEXT,
		date TEXT,
		content_hash TEXT NOT NULL,
		content_length INTEGER NOT NULL,
		saved_at TEXT NOT NULL,
		PRIMARY KEY (output_dir, doc_id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id);
	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
	CREATE INDEX IF NOT EXISTS idx_documents_url ON documents(url);
	`

	_, err := idx.db.ExecContext(context.Background(), schema)
	return err
}

// StartRun inserts a run in the running state. Starting an existing ID
// resets it.
func (idx *DB) StartRun(ctx context.Context, run *model.RunRecord) error {
	if run.ID == "" {
		return ErrInvalidRun
	}

	seeds, err := json.Marshal(nonNil(run.SeedURLs))
	if err != nil {
		return fmt.Errorf("failed to serialize seeds: %w", err)
	}

	status := run.Status
	if status == "" {
		status = model.RunStatusRunning
	}
	started := run.StartedAt
	if started.IsZero() {
		started = idx.now()
	}

	query := `
	INSERT INTO runs (id, started_at, status, seeds, output_dir)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		started_at = excluded.started_at,
		finished_at = NULL,
		status = excluded.status,
		seeds = excluded.seeds,
		output_dir = excluded.output_dir,
		documents_saved = 0,
		urls_visited = 0,
		urls_failed = 0,
		urls_skipped = 0,
		pages_crawled = 0
	`

	if _, err := idx.db.ExecContext(ctx, query,
		run.ID,
		formatTime(started),
		string(status),
		string(seeds),
		run.OutputDir,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run.
func (idx *DB) FinishRun(ctx context.Context, run *model.RunRecord) error {
	if run.ID == "" {
		return ErrInvalidRun
	}

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = idx.now()
	}
	status := run.Status
	if status == "" {
		status = model.RunStatusCompleted
	}

	query := `
	UPDATE runs SET
		finished_at = ?,
		status = ?,
		documents_saved = ?,
		urls_visited = ?,
		urls_failed = ?,
		urls_skipped = ?,
		pages_crawled = ?
	WHERE id = ?
	`

	result, err := idx.db.ExecContext(ctx, query,
		formatTime(finished),
		string(status),
		run.Stats.DocumentsSaved,
		run.Stats.URLsVisited,
		run.Stats.URLsFailed,
		run.Stats.URLsSkipped,
		run.Stats.PagesCrawled,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update run %s: not started", run.ID)
	}
	return nil
}

// DocumentRecord is an indexed document.
type DocumentRecord struct {
	OutputDir     string    `json:"output_dir"`
	DocID         int       `json:"doc_id"`
	RunID         string    `json:"run_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Source        string    `json:"source"`
	Date          string    `json:"date"`
	ContentHash   string    `json:"content_hash"`
	ContentLength int       `json:"content_length"`
	SavedAt       time.Time `json:"saved_at"`
}

// RecordDocument indexes a saved document under the output directory of
// runID. Document IDs are only unique within one output directory, so an
// ID already present for the same directory is overwritten.
func (idx *DB) RecordDocument(ctx context.Context, runID string, doc *model.Document) error {
	query := `
	INSERT INTO documents (output_dir, doc_id, run_id, url, title, source, date, content_hash, content_length, saved_at)
	VALUES (COALESCE((SELECT output_dir FROM runs WHERE id = ?), ''), ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(output_dir, doc_id) DO UPDATE SET
		run_id = excluded.run_id,
		url = excluded.url,
		title = excluded.title,
		source = excluded.source,
		date = excluded.date,
		content_hash = excluded.content_hash,
		content_length = excluded.content_length,
		saved_at = excluded.saved_at
	`

	_, err := idx.db.ExecContext(ctx, query,
		runID,
		doc.ID,
		runID,
		doc.URL,
		doc.Title,
		doc.Source,
		doc.Date,
		ContentHash(doc.Text),
		model.Content{Text: doc.Text}.Length(),
		formatTime(idx.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, status, seeds, output_dir,
	documents_saved, urls_visited, urls_failed, urls_skipped, pages_crawled`

// GetRun retrieves a run by ID. It returns nil if the run does not exist.
func (idx *DB) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(idx.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (idx *DB) ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountDocuments counts indexed documents, restricted to one run when
// runID is not empty.
func (idx *DB) CountDocuments(ctx context.Context, runID string) (int, error) {
	query := "SELECT COUNT(*) FROM documents"
	args := make([]any, 0, 1)
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}

	var count int
	if err := idx.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// FindByHash returns the documents whose text hashes to hash, oldest first.
func (idx *DB) FindByHash(ctx context.Context, hash string) ([]DocumentRecord, error) {
	query := `
	SELECT output_dir, doc_id, run_id, url, title, source, date, content_hash, content_length, saved_at
	FROM documents
	WHERE content_hash = ?
	ORDER BY saved_at, output_dir, doc_id
	`

	rows, err := idx.db.QueryContext(ctx, query, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var results []DocumentRecord
	for rows.Next() {
		var rec DocumentRecord
		var title, source, date sql.NullString
		var savedAt string

		if err := rows.Scan(
			&rec.OutputDir,
			&rec.DocID,
			&rec.RunID,
			&rec.URL,
			&title,
			&source,
			&date,
			&rec.ContentHash,
			&rec.ContentLength,
			&savedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		rec.Title = title.String
		rec.Source = source.String
		rec.Date = date.String
		rec.SavedAt = model.ParseTimestamp(savedAt)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// ContentHash returns the hex SHA3-256 digest of text.
func ContentHash(text string) string {
	sum := sha3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.RunRecord, error) {
	var run model.RunRecord
	var started, status, seeds string
	var finished sql.NullString

	if err := row.Scan(
		&run.ID,
		&started,
		&finished,
		&status,
		&seeds,
		&run.OutputDir,
		&run.Stats.DocumentsSaved,
		&run.Stats.URLsVisited,
		&run.Stats.URLsFailed,
		&run.Stats.URLsSkipped,
		&run.Stats.PagesCrawled,
	); err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	run.StartedAt = model.ParseTimestamp(started)
	run.Stats.StartTime = run.StartedAt
	if finished.Valid {
		run.FinishedAt = model.ParseTimestamp(finished.String)
		run.Stats.EndTime = run.FinishedAt
	}
	if err := json.Unmarshal([]byte(seeds), &run.SeedURLs); err != nil {
		return nil, fmt.Errorf("failed to parse seeds: %w", err)
	}
	return &run, nil
}

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
