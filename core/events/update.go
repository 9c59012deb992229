package events

import (
	"time"

	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

// UpdateEvent is published after an update is committed to the store.
type UpdateEvent struct {
	UpdateID  string              `json:"update_id"`
	Trigger   string              `json:"trigger"`
	Version   uint64              `json:"version"`
	Placed    []model.Assignment  `json:"placed"`
	Unplaced  []schedule.Unplaced `json:"unplaced"`
	Cleared   []string            `json:"cleared,omitempty"`
	Escalated bool                `json:"escalated"`
	Objective float64             `json:"objective"`
	Duration  time.Duration       `json:"duration"`
	Time      time.Time           `json:"time"`
}
