package engine

import (
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

// Summary reports the effect of a planning pass or disruption event.
type Summary struct {
	UpdateID     string              `json:"update_id"`
	Trigger      string              `json:"trigger"`
	Applied      bool                `json:"applied"`
	Placed       []model.Assignment  `json:"placed"`
	Cleared      []string            `json:"cleared,omitempty"`
	StillPending []string            `json:"still_pending"`
	Reasons      []schedule.Unplaced `json:"reasons"`
	Escalated    bool                `json:"escalated"`
	Objective    float64             `json:"objective"`
	Version      uint64              `json:"version"`
}

func pendingIDs(s *schedule.Schedule) []string {
	vs := s.Pending()
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.ID)
	}
	return out
}
