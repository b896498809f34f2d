// Package attendance keeps a sqlite log of every identified person.
package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/recognition"
	_ "modernc.org/sqlite"
)

// DefaultLimit is used when Recent is asked for zero rows.
const DefaultLimit = 100

// MaxLimit caps a single Recent query.
const MaxLimit = 1000

// Sighting is one identification.
type Sighting struct {
	ID     int64     `json:"id"`
	Person string    `json:"person"`
	Faces  int       `json:"faces"`
	Cols   int       `json:"cols"`
	Rows   int       `json:"rows"`
	SeenAt time.Time `json:"seen_at"`
}

// Summary aggregates the sightings of one person.
type Summary struct {
	Person    string    `json:"person"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Log is the attendance store.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path. ":memory:" gives a
// throwaway log.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open attendance db: %w", err)
	}
	// Single connection: sqlite serializes writers and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sightings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			person TEXT NOT NULL,
			faces INTEGER NOT NULL DEFAULT 0,
			cols INTEGER NOT NULL DEFAULT 0,
			rows INTEGER NOT NULL DEFAULT 0,
			seen_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sightings_person ON sightings(person, seen_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create attendance schema: %w", err)
	}

	return &Log{db: db, logger: log.Component("attendance")}, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record stores s. SeenAt defaults to now.
func (l *Log) Record(ctx context.Context, s Sighting) (int64, error) {
	if s.Person == "" {
		return 0, fmt.Errorf("record sighting: empty person")
	}
	if s.SeenAt.IsZero() {
		s.SeenAt = time.Now()
	}
	res, err := l.db.ExecContext(ctx,
		"INSERT INTO sightings (person, faces, cols, rows, seen_at) VALUES (?, ?, ?, ?, ?)",
		s.Person, s.Faces, s.Cols, s.Rows, s.SeenAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("record sighting: %w", err)
	}
	return res.LastInsertId()
}

// Observe records an identification. It implements recognition.Observer.
func (l *Log) Observe(ctx context.Context, id recognition.Identification) {
	_, err := l.Record(ctx, Sighting{
		Person: id.Person,
		Faces:  id.Faces,
		Cols:   id.Cols,
		Rows:   id.Rows,
		SeenAt: id.At,
	})
	if err != nil {
		l.logger.Warn("attendance not recorded", "person", id.Person, "error", err)
	}
}

// Recent returns the latest sightings, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := l.db.QueryContext(ctx,
		"SELECT id, person, faces, cols, rows, seen_at FROM sightings ORDER BY seen_at DESC, id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("query sightings: %w", err)
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var s Sighting
		var seenAt int64
		if err := rows.Scan(&s.ID, &s.Person, &s.Faces, &s.Cols, &s.Rows, &seenAt); err != nil {
			return nil, err
		}
		s.SeenAt = time.UnixMilli(seenAt)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summarize groups sightings since the given time by person, most recently
// seen first.
func (l *Log) Summarize(ctx context.Context, since time.Time) ([]Summary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT person, COUNT(*), MIN(seen_at), MAX(seen_at)
		FROM sightings
		WHERE seen_at >= ?
		GROUP BY person
		ORDER BY MAX(seen_at) DESC`,
		since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("summarize sightings: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var first, last int64
		if err := rows.Scan(&s.Person, &s.Count, &first, &last); err != nil {
			return nil, err
		}
		s.FirstSeen = time.UnixMilli(first)
		s.LastSeen = time.UnixMilli(last)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
