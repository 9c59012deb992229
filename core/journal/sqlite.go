package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS schedule_journal (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER,
        update_id TEXT,
        trigger_kind TEXT,
        record TEXT
    );
    CREATE TABLE IF NOT EXISTS schedule_journal_vessels (
        journal_id INTEGER,
        vessel_id TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_journal_vessel ON schedule_journal_vessels(vessel_id);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record and indexes the vessels it touches.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO schedule_journal (ts, update_id, trigger_kind, record) VALUES (?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.UpdateID, rec.Trigger, string(b))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, vid := range vesselIDs(rec) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_journal_vessels (journal_id, vessel_id) VALUES (?, ?)`, id, vid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q ordered by time.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT record FROM schedule_journal j WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Trigger != "" {
		query += ` AND trigger_kind = ?`
		args = append(args, q.Trigger)
	}
	if q.VesselID != "" {
		query += ` AND EXISTS (SELECT 1 FROM schedule_journal_vessels v WHERE v.journal_id = j.id AND v.vessel_id = ?)`
		args = append(args, q.VesselID)
	}
	query += ` ORDER BY ts, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func vesselIDs(rec Record) []string {
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, a := range rec.Placed {
		add(a.VesselID)
	}
	for _, id := range rec.Released {
		add(id)
	}
	for _, id := range rec.Cancelled {
		add(id)
	}
	for _, u := range rec.Unplaced {
		add(u.VesselID)
	}
	return out
}
