package usage

import "time"

// Store persists daily berth usage records.
type Store interface {
	Add(Record) error
	Query(berthID string, start, end time.Time) ([]Record, error)
}

// Helper to align time to start of day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
