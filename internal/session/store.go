package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"submux/internal/config"
)

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the session database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.SessionDBPath())
}

// OpenPath opens the session database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	// Pragmas ride on the DSN so every pooled connection gets the busy timeout.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Get fetches the session for userID. It returns nil, nil when none exists.
func (s *Store) Get(ctx context.Context, userID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = ?`, userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// PutVideo records a video asset and the output filename derived for it,
// replacing any previous video reference.
func (s *Store) PutVideo(ctx context.Context, userID string, asset Asset, outputName string) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if strings.TrimSpace(asset.StoredName) == "" {
		return errors.New("put video: stored name is required")
	}
	if err := ValidateOutputName(outputName); err != nil {
		return err
	}
	ts := timestamp(s.now())
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (user_id, video_stored, video_original, output_name, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            video_stored = excluded.video_stored,
            video_original = excluded.video_original,
            output_name = excluded.output_name,
            updated_at = excluded.updated_at`,
		userID, asset.StoredName, nullableString(asset.OriginalName), strings.TrimSpace(outputName), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("put video: %w", err)
	}
	return nil
}

// PutSubtitle records a subtitle asset, replacing any previous subtitle reference.
func (s *Store) PutSubtitle(ctx context.Context, userID string, asset Asset) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if strings.TrimSpace(asset.StoredName) == "" {
		return errors.New("put subtitle: stored name is required")
	}
	ts := timestamp(s.now())
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (user_id, subtitle_stored, created_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            subtitle_stored = excluded.subtitle_stored,
            updated_at = excluded.updated_at`,
		userID, asset.StoredName, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("put subtitle: %w", err)
	}
	return nil
}

// SetPreferences stores the user's encoding preferences.
func (s *Store) SetPreferences(ctx context.Context, userID string, prefs Preferences) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	var encoded any
	if !prefs.Empty() {
		data, err := json.Marshal(prefs)
		if err != nil {
			return fmt.Errorf("marshal preferences: %w", err)
		}
		encoded = string(data)
	}
	ts := timestamp(s.now())
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (user_id, preferences_json, created_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            preferences_json = excluded.preferences_json,
            updated_at = excluded.updated_at`,
		userID, encoded, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return nil
}

// SetOutputName overrides the delivered filename for userID.
func (s *Store) SetOutputName(ctx context.Context, userID, name string) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if err := ValidateOutputName(name); err != nil {
		return err
	}
	ts := timestamp(s.now())
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (user_id, output_name, created_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            output_name = excluded.output_name,
            updated_at = excluded.updated_at`,
		userID, strings.TrimSpace(name), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("set output name: %w", err)
	}
	return nil
}

// Erase removes the session for userID. Erasing a missing session is not an error.
func (s *Store) Erase(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("erase session: %w", err)
	}
	return nil
}

// List returns every session ordered by most recent activity.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	return s.query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC`)
}

// ListIdleSince returns sessions untouched since cutoff.
func (s *Store) ListIdleSince(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	return s.query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE updated_at < ? ORDER BY updated_at`, timestamp(cutoff))
}

func (s *Store) query(ctx context.Context, stmt string, args ...any) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return nil
}
