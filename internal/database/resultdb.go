package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/rufus/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "rufus.db"

// ResultDB stores finished crawl runs in SQLite: one row per run with the
// full report as JSON, plus the ranked results and harvested pages as rows
// so that history can be listed without decoding every report.
type ResultDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ResultDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}
	// Concurrent processes (a crawl and a history query) wait for the lock.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *ResultDB) Close() error {
	return rdb.db.Close()
}

// Path returns the database file path.
func (rdb *ResultDB) Path() string {
	return rdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ResultDB) createTables() error {
	schema := `
	-- Runs store one crawl request each, with the complete report as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		instruction TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		passes INTEGER NOT NULL,
		refined INTEGER NOT NULL,
		result_count INTEGER NOT NULL,
		mean_score REAL NOT NULL,
		top_score REAL NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);

	-- Results are the ranked documents of a run
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		rank INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		score REAL NOT NULL,
		UNIQUE(run_id, rank)
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_url ON results(url);

	-- Pages are the pages the final pass harvested
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		relevance REAL NOT NULL,
		depth INTEGER NOT NULL,
		raw_hash TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunMetadata summarizes a stored run without loading its report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Seed is the URL the crawl started from.
	Seed string

	// Instruction is the goal of the crawl.
	Instruction string

	// Timestamp is when the run was stored.
	Timestamp time.Time

	// Passes is the number of crawl passes.
	Passes int

	// Refined is true when a refinement pass ran.
	Refined bool

	// ResultCount is the number of ranked results.
	ResultCount int

	// MeanScore and TopScore summarize the results.
	MeanScore float64
	TopScore  float64
}

// ResultRecord is one ranked result of a run.
type ResultRecord struct {
	Rank  int
	URL   string
	Title string
	Score float64
}

// PageRecord is one harvested page of a run.
type PageRecord struct {
	URL       string
	Relevance float64
	Depth     int
	RawHash   string
}

// SaveRun stores a finished report with its results and harvested pages in
// one transaction and returns the run ID.
func (rdb *ResultDB) SaveRun(ctx context.Context, report *model.CrawlReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	summary := model.NewSummary(report)

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after Commit
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (seed, instruction, passes, refined, result_count, mean_score, top_score, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Seed,
		report.Instruction,
		summary.Passes,
		summary.Refined,
		summary.ResultCount,
		summary.MeanScore,
		summary.TopScore,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	for i, res := range report.Results {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (run_id, rank, url, title, score) VALUES (?, ?, ?, ?, ?)`,
			runID, i+1, res.URL, res.Title, res.Score,
		); err != nil {
			return 0, fmt.Errorf("failed to save result: %w", err)
		}
	}

	for _, page := range report.Harvested {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO pages (run_id, url, relevance, depth, raw_hash) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, url) DO UPDATE SET
			relevance = excluded.relevance,
			depth = excluded.depth,
			raw_hash = excluded.raw_hash
		`,
			runID, page.URL, page.Relevance, page.Depth, page.Hash(),
		); err != nil {
			return 0, fmt.Errorf("failed to save page: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// GetRun retrieves the report of a run by its ID.
// It returns nil, nil when no such run exists.
func (rdb *ResultDB) GetRun(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetLatestRun retrieves the most recent run for seed.
// It returns nil, nil when the seed was never crawled.
func (rdb *ResultDB) GetLatestRun(ctx context.Context, seed string) (*model.CrawlReport, error) {
	var id int64
	err := rdb.db.QueryRowContext(ctx, `
	SELECT id FROM runs
	WHERE seed = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`, seed).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return rdb.GetRun(ctx, id)
}

// ListRuns returns the metadata of stored runs, newest first.
// An empty seed lists the runs of every seed. A limit <= 0 means no limit.
func (rdb *ResultDB) ListRuns(ctx context.Context, seed string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, seed, instruction, timestamp, passes, refined, result_count, mean_score, top_score
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if seed != "" {
		query += " AND seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var meta RunMetadata
		var timestamp string

		if err := rows.Scan(
			&meta.ID,
			&meta.Seed,
			&meta.Instruction,
			&timestamp,
			&meta.Passes,
			&meta.Refined,
			&meta.ResultCount,
			&meta.MeanScore,
			&meta.TopScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		runs = append(runs, meta)
	}

	return runs, rows.Err()
}

// ListSeeds returns every seed that has at least one stored run.
func (rdb *ResultDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// GetResults returns the ranked results of a run in rank order.
func (rdb *ResultDB) GetResults(ctx context.Context, runID int64) ([]ResultRecord, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT rank, url, title, score FROM results
	WHERE run_id = ?
	ORDER BY rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	records := make([]ResultRecord, 0)
	for rows.Next() {
		var rec ResultRecord
		var title sql.NullString
		if err := rows.Scan(&rec.Rank, &rec.URL, &title, &rec.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		rec.Title = title.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetPages returns the harvested pages of a run ordered by relevance.
func (rdb *ResultDB) GetPages(ctx context.Context, runID int64) ([]PageRecord, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT url, relevance, depth, raw_hash FROM pages
	WHERE run_id = ?
	ORDER BY relevance DESC, url
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	records := make([]PageRecord, 0)
	for rows.Next() {
		var rec PageRecord
		var hash sql.NullString
		if err := rows.Scan(&rec.URL, &rec.Relevance, &rec.Depth, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		rec.RawHash = hash.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
