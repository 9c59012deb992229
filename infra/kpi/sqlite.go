// Package kpi persists daily berth usage records.
package kpi

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/berthplan/core/metrics/usage"
)

// SQLiteStore persists berth usage records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ usage.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS berth_usage (
        berth_id TEXT,
        day INTEGER,
        service_hours REAL,
        wait_hours REAL,
        calls INTEGER,
        PRIMARY KEY(berth_id, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or accumulates the record for its berth and day.
func (s *SQLiteStore) Add(r usage.Record) error {
	d := usage.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO berth_usage (berth_id, day, service_hours, wait_hours, calls)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(berth_id, day) DO UPDATE SET
            service_hours = service_hours + excluded.service_hours,
            wait_hours = wait_hours + excluded.wait_hours,
            calls = calls + excluded.calls`,
		r.BerthID, d.Unix(), r.ServiceHours, r.WaitHours, r.Calls)
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(berthID string, start, end time.Time) ([]usage.Record, error) {
	start = usage.Day(start)
	end = usage.Day(end)
	rows, err := s.db.Query(`SELECT berth_id, day, service_hours, wait_hours, calls
        FROM berth_usage WHERE berth_id = ? AND day >= ? AND day <= ? ORDER BY day`,
		berthID, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []usage.Record
	for rows.Next() {
		var (
			bid           string
			ts            int64
			service, wait float64
			calls         int
		)
		if err := rows.Scan(&bid, &ts, &service, &wait, &calls); err != nil {
			return nil, err
		}
		res = append(res, usage.Record{
			BerthID:      bid,
			Date:         time.Unix(ts, 0).UTC(),
			ServiceHours: service,
			WaitHours:    wait,
			Calls:        calls,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
