package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"grove/internal/modules/focus/domain"
	"grove/internal/platform/broadcast"
	"grove/internal/platform/logging"

	_ "modernc.org/sqlite"
)

// SQLiteSessionStore is the append-only history of focus sessions. Inserts
// are idempotent on run_id, so retries and concurrent grove processes settle
// on a single row per run.
type SQLiteSessionStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	hub    *broadcast.Hub[[]domain.Session]

	mu   sync.Mutex
	seen fingerprint
}

type fingerprint struct {
	count int
	maxID int64
}

func NewSQLiteSessionStore(dbPath string, logger *slog.Logger) (*SQLiteSessionStore, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &SQLiteSessionStore{
		db:     db,
		path:   dbPath,
		logger: logger,
		hub:    broadcast.NewHub[[]domain.Session](),
	}
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteSessionStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS focus_sessions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL UNIQUE,
  recorded_at INTEGER NOT NULL,
  planned_minutes INTEGER NOT NULL,
  actual_minutes INTEGER NOT NULL,
  success INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_focus_sessions_recorded_at ON focus_sessions(recorded_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create focus_sessions table: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Insert(ctx context.Context, session domain.Session) (domain.Session, bool, error) {
	if err := session.Validate(); err != nil {
		return domain.Session{}, false, err
	}
	const stmt = `
INSERT INTO focus_sessions (run_id, recorded_at, planned_minutes, actual_minutes, success)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO NOTHING;
`
	res, err := s.db.ExecContext(ctx, stmt,
		session.RunID,
		session.RecordedAt.UnixMilli(),
		session.PlannedMinutes,
		session.ActualMinutes,
		session.Success,
	)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("insert session %s: %w", session.RunID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("insert session %s: %w", session.RunID, err)
	}
	stored, err := s.getByRunID(ctx, session.RunID)
	if err != nil {
		return domain.Session{}, false, err
	}
	if affected == 0 {
		return stored, false, nil
	}
	if err := s.refresh(ctx); err != nil {
		s.logger.Warn("refresh session list", "error", err)
	}
	return stored, true, nil
}

func (s *SQLiteSessionStore) List(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, recorded_at, planned_minutes, actual_minutes, success
FROM focus_sessions
ORDER BY recorded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Observe emits the full list now and again after every change.
func (s *SQLiteSessionStore) Observe(ctx context.Context) (<-chan []domain.Session, error) {
	if _, ok := s.hub.Latest(); !ok {
		if err := s.refresh(ctx); err != nil {
			return nil, err
		}
	}
	return s.hub.Subscribe(ctx), nil
}

// Watch republishes the list when another process writes to the database.
// It blocks until ctx is done.
func (s *SQLiteSessionStore) Watch(ctx context.Context, debounce time.Duration) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	base := filepath.Base(s.path)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if name != base && name != base+"-wal" {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("session watcher error", "error", err)
		case <-timer.C:
			changed, err := s.changed(ctx)
			if err != nil {
				s.logger.Warn("check session changes", "error", err)
				continue
			}
			if !changed {
				continue
			}
			s.logger.Debug("sessions changed on disk")
			if err := s.refresh(ctx); err != nil {
				s.logger.Warn("refresh session list", "error", err)
			}
		}
	}
}

func (s *SQLiteSessionStore) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// refresh holds mu across the read and the publish so concurrent refreshes
// never publish an older list after a newer one.
func (s *SQLiteSessionStore) refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, err := s.fingerprint(ctx)
	if err != nil {
		return err
	}
	list, err := s.List(ctx)
	if err != nil {
		return err
	}
	s.seen = fp
	s.hub.Publish(list)
	return nil
}

func (s *SQLiteSessionStore) changed(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, err := s.fingerprint(ctx)
	if err != nil {
		return false, err
	}
	return fp != s.seen, nil
}

func (s *SQLiteSessionStore) fingerprint(ctx context.Context) (fingerprint, error) {
	fp := fingerprint{}
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(MAX(id), 0) FROM focus_sessions`)
	if err := row.Scan(&fp.count, &fp.maxID); err != nil {
		return fingerprint{}, fmt.Errorf("fingerprint sessions: %w", err)
	}
	return fp, nil
}

func (s *SQLiteSessionStore) getByRunID(ctx context.Context, runID string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, run_id, recorded_at, planned_minutes, actual_minutes, success
FROM focus_sessions
WHERE run_id = ?`, runID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, fmt.Errorf("session %s missing after insert: %w", runID, err)
		}
		return domain.Session{}, err
	}
	return session, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (domain.Session, error) {
	var (
		session    domain.Session
		recordedAt int64
		success    bool
	)
	if err := row.Scan(
		&session.ID,
		&session.RunID,
		&recordedAt,
		&session.PlannedMinutes,
		&session.ActualMinutes,
		&success,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	session.RecordedAt = time.UnixMilli(recordedAt).UTC()
	session.Success = success
	return session, nil
}
