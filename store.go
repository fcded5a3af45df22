package nebula

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store keeps posts and schedules in SQLite. Each collection is a set of
// JSON documents keyed by id; a handful of columns are copied out for
// ordering.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the collections.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the scheduler write while handlers read; writers wait on the
	// busy timeout instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    publish_date TEXT NOT NULL,
    data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS schedules (
    id TEXT PRIMARY KEY,
    next_run TEXT NOT NULL,
    data TEXT NOT NULL
);
`)
	return err
}

func timeKey(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ListPosts returns every post, newest first.
func (s *Store) ListPosts() ([]BlogPost, error) {
	rows, err := s.db.Query(`SELECT data FROM posts ORDER BY publish_date DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []BlogPost
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p BlogPost
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListPostsByStatus returns posts with the given status, newest first. An
// empty status returns everything.
func (s *Store) ListPostsByStatus(status PostStatus) ([]BlogPost, error) {
	posts, err := s.ListPosts()
	if err != nil || status == "" {
		return posts, err
	}
	var out []BlogPost
	for _, p := range posts {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetPost returns a post by id.
func (s *Store) GetPost(id string) (BlogPost, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM posts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return BlogPost{}, ErrNotFound
	}
	if err != nil {
		return BlogPost{}, err
	}
	var p BlogPost
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return BlogPost{}, fmt.Errorf("decode post %s: %w", id, err)
	}
	return p, nil
}

// GetPostBySlug scans all posts and returns the newest with slug. Slugs are
// not unique.
func (s *Store) GetPostBySlug(slug string) (BlogPost, error) {
	posts, err := s.ListPosts()
	if err != nil {
		return BlogPost{}, err
	}
	for _, p := range posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return BlogPost{}, ErrNotFound
}

// SavePost stores p under its id, replacing any existing record.
func (s *Store) SavePost(p BlogPost) error {
	if p.ID == "" {
		return errors.New("save post: empty id")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode post: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO posts (id, publish_date, data) VALUES (?, ?, ?)`,
		p.ID, timeKey(p.PublishDate), string(data))
	return err
}

// DeletePost removes a post by id.
func (s *Store) DeletePost(id string) error {
	res, err := s.db.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSchedules returns every schedule ordered by next run.
func (s *Store) ListSchedules() ([]ScheduleConfig, error) {
	rows, err := s.db.Query(`SELECT data FROM schedules ORDER BY next_run, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduleConfig
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var sc ScheduleConfig
		if err := json.Unmarshal([]byte(data), &sc); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetSchedule returns a schedule by id.
func (s *Store) GetSchedule(id string) (ScheduleConfig, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM schedules WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduleConfig{}, ErrNotFound
	}
	if err != nil {
		return ScheduleConfig{}, err
	}
	var sc ScheduleConfig
	if err := json.Unmarshal([]byte(data), &sc); err != nil {
		return ScheduleConfig{}, fmt.Errorf("decode schedule %s: %w", id, err)
	}
	return sc, nil
}

// SaveSchedule stores sc under its id, replacing any existing record.
func (s *Store) SaveSchedule(sc ScheduleConfig) error {
	if sc.ID == "" {
		return errors.New("save schedule: empty id")
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO schedules (id, next_run, data) VALUES (?, ?, ?)`,
		sc.ID, timeKey(sc.NextRun), string(data))
	return err
}

// DeleteSchedule removes a schedule by id.
func (s *Store) DeleteSchedule(id string) error {
	res, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed inserts the welcome post when there are no posts yet. It reports
// whether anything was written.
func (s *Store) Seed(now time.Time) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	welcome := BlogPost{
		ID:      "1",
		Title:   "Welcome to Nebula",
		Excerpt: "This is an example post to show you what the platform looks like.",
		Content: "# Welcome to Nebula\n\nThis is a sample post. You can edit this or create new ones using the **AI-powered** tools.\n\n" +
			"## Features\n- AI Generation\n- Scheduling\n- Modern UI",
		Author:          "Admin",
		PublishDate:     now.UTC(),
		Status:          StatusPublished,
		Tags:            []string{"Welcome", "Update"},
		Slug:            "welcome-to-nebula",
		CoverImage:      "https://picsum.photos/800/400",
		MetaDescription: "Welcome to the new AI blogging platform.",
	}
	if err := s.SavePost(welcome); err != nil {
		return false, err
	}
	return true, nil
}
