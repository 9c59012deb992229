package usage

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore stores records in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[time.Time]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[time.Time]*Record{}}
}

// Add inserts or updates the record aggregated by day and berth.
func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.BerthID] == nil {
		s.data[r.BerthID] = map[time.Time]*Record{}
	}
	d := Day(r.Date)
	rec := s.data[r.BerthID][d]
	if rec == nil {
		rec = &Record{BerthID: r.BerthID, Date: d}
		s.data[r.BerthID][d] = rec
	}
	rec.ServiceHours += r.ServiceHours
	rec.WaitHours += r.WaitHours
	rec.Calls += r.Calls
	return nil
}

// Query returns records between start and end inclusive.
func (s *MemoryStore) Query(berthID string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start = Day(start)
	end = Day(end)
	var res []Record
	for d, r := range s.data[berthID] {
		if d.Before(start) || d.After(end) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}
