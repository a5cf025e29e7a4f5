package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"doifind/internal/citation"
)

// SQLiteStore keeps live jobs in memory and checkpoints every snapshot to
// SQLite, so finished jobs survive a restart. In-flight jobs are served
// from the memory tier; only jobs missing there are rehydrated from disk.
type SQLiteStore struct {
	db  *sql.DB
	mem *MemoryStore
	mu  sync.Mutex // serializes writes; modernc sqlite is single-writer
}

// OpenSQLiteStore opens or creates the job database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening job database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createJobSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating job schema: %w", err)
	}
	return &SQLiteStore{db: db, mem: NewMemoryStore()}, nil
}

func createJobSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			file_path TEXT NOT NULL,
			style TEXT NOT NULL,
			status TEXT NOT NULL,
			snapshot_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, j *Job) error {
	if err := s.mem.Create(ctx, j); err != nil {
		return err
	}
	return s.Save(ctx, j)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	if j, err := s.mem.Get(ctx, id); err == nil {
		return j, nil
	}

	var (
		filename, filePath, style, snapJSON string
		createdAt                           string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT filename, file_path, style, snapshot_json, created_at FROM jobs WHERE id = ?`, id)
	if err := row.Scan(&filename, &filePath, &style, &snapJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}

	j, err := rehydrate(filename, filePath, style, snapJSON, createdAt)
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	// Cache so subsequent polls skip the database.
	_ = s.mem.Create(ctx, j)
	return j, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, file_path, style, snapshot_json, created_at FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		var id, filename, filePath, style, snapJSON, createdAt string
		if err := rows.Scan(&id, &filename, &filePath, &style, &snapJSON, &createdAt); err != nil {
			return nil, err
		}
		// Prefer the live in-memory job when one exists.
		if j, err := s.mem.Get(ctx, id); err == nil {
			out = append(out, j)
			continue
		}
		j, err := rehydrate(filename, filePath, style, snapJSON, createdAt)
		if err != nil {
			return nil, fmt.Errorf("loading job %s: %w", id, err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, j *Job) error {
	snap := j.Snapshot()
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", j.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, filename, file_path, style, status, snapshot_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			snapshot_json = excluded.snapshot_json,
			updated_at = excluded.updated_at`,
		j.ID, j.Filename, j.FilePath, string(j.Style), string(snap.Status), string(snapJSON),
		j.CreatedAt.Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving job %s: %w", j.ID, err)
	}
	return nil
}

// rehydrate rebuilds a Job from a persisted snapshot row.
func rehydrate(filename, filePath, style, snapJSON, createdAt string) (*Job, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(snapJSON), &snap); err != nil {
		return nil, err
	}

	j := &Job{
		ID:        snap.ID,
		Filename:  filename,
		FilePath:  filePath,
		Style:     citation.Style(style),
		CreatedAt: snap.CreatedAt,
		state:     snap.Status,
		progress:  snap.Progress,
		errMsg:    snap.Error,
		citations: snap.Citations,
	}
	if j.CreatedAt.IsZero() {
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			j.CreatedAt = t
		}
	}
	return j, nil
}
