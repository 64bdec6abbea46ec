// Package schedule stores calendar events created through the agent.
package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/duckling-go/internal/logger"
)

// Event is a scheduled calendar entry.
type Event struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	CreatorID string     `json:"creator_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// Store keeps events in sqlite. Times are stored as RFC 3339 UTC text so that
// string order is chronological order.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the events database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("open events db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT NOT NULL,
        start_time TEXT NOT NULL,
        end_time TEXT,
        creator_id TEXT NOT NULL,
        created_at TEXT NOT NULL
    );`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_events_creator_start ON events (creator_id, start_time);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events index: %w", err)
	}
	logger.L.Info("sqlite events store initialized", "path", path)
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Create inserts e and returns it with id and creation time set.
func (s *Store) Create(ctx context.Context, e Event) (*Event, error) {
	if e.Title == "" || e.CreatorID == "" {
		return nil, fmt.Errorf("event needs a title and a creator")
	}
	if e.StartTime.IsZero() {
		return nil, fmt.Errorf("event needs a start time")
	}
	if e.EndTime != nil && e.EndTime.Before(e.StartTime) {
		return nil, fmt.Errorf("event ends before it starts")
	}
	e.CreatedAt = s.now().UTC()

	var end sql.NullString
	if e.EndTime != nil {
		end = sql.NullString{String: formatTime(*e.EndTime), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (title, start_time, end_time, creator_id, created_at) VALUES (?,?,?,?,?);`,
		e.Title, formatTime(e.StartTime), end, e.CreatorID, formatTime(e.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &e, nil
}

// Upcoming returns creatorID's events starting after now, soonest first.
func (s *Store) Upcoming(ctx context.Context, creatorID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_time, end_time, creator_id, created_at FROM events
        WHERE creator_id = ? AND start_time > ? ORDER BY start_time ASC LIMIT ?;`,
		creatorID, formatTime(s.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e              Event
			start, created string
			end            sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Title, &start, &end, &e.CreatorID, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.StartTime, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("event %d start_time: %w", e.ID, err)
		}
		if end.Valid {
			t, err := time.Parse(time.RFC3339, end.String)
			if err != nil {
				return nil, fmt.Errorf("event %d end_time: %w", e.ID, err)
			}
			e.EndTime = &t
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("event %d created_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
