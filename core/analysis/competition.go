package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

const (
	// DefaultCompetitionWindow is the half width around the target ETA.
	DefaultCompetitionWindow = 60 * time.Minute
	// AccelerationLead is how far ahead of the earliest competitor an
	// accelerating vessel should aim to arrive.
	AccelerationLead = 30 * time.Minute
)

// Level grades how crowded the arrival window is.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Competitor is a vessel arriving close to the target ETA.
type Competitor struct {
	VesselID string    `json:"vessel_id"`
	Name     string    `json:"name,omitempty"`
	BerthID  string    `json:"berth_id,omitempty"`
	Arrival  time.Time `json:"arrival"`
	// DiffMinutes is negative when the competitor arrives first.
	DiffMinutes float64 `json:"diff_minutes"`
	LengthM     float64 `json:"length_m"`
}

// CompetitionResult summarises the arrivals around a target ETA.
type CompetitionResult struct {
	ETA              time.Time     `json:"eta"`
	Window           time.Duration `json:"window"`
	Level            Level         `json:"level"`
	Competitors      []Competitor  `json:"competitors"`
	ShouldAccelerate bool          `json:"should_accelerate"`
	RecommendedETA   time.Time     `json:"recommended_eta"`
	Adjustment       time.Duration `json:"adjustment"`
}

// Competition lists the active vessels whose arrival lies within
// [eta-window, eta+window]. The arrival of a placed vessel is the start of
// its window, otherwise its ETA. exclude is skipped, typically the vessel
// being analysed. A non-positive window uses DefaultCompetitionWindow.
func Competition(s *schedule.Schedule, eta time.Time, window time.Duration, exclude string) CompetitionResult {
	if window <= 0 {
		window = DefaultCompetitionWindow
	}
	res := CompetitionResult{ETA: eta, Window: window, RecommendedETA: eta}
	from, to := eta.Add(-window), eta.Add(window)
	for _, v := range s.VesselsWithStatus(model.VesselPending, model.VesselAssigned, model.VesselServicing) {
		if v.ID == exclude {
			continue
		}
		c := Competitor{VesselID: v.ID, Name: v.Name, Arrival: v.ETA, LengthM: v.LengthM}
		if a, ok := s.AssignmentOf(v.ID); ok {
			c.BerthID = a.BerthID
			c.Arrival = a.Window.Start
		}
		if c.Arrival.Before(from) || c.Arrival.After(to) {
			continue
		}
		c.DiffMinutes = c.Arrival.Sub(eta).Minutes()
		res.Competitors = append(res.Competitors, c)
	}
	sort.SliceStable(res.Competitors, func(i, j int) bool {
		di, dj := math.Abs(res.Competitors[i].DiffMinutes), math.Abs(res.Competitors[j].DiffMinutes)
		if di != dj {
			return di < dj
		}
		return res.Competitors[i].VesselID < res.Competitors[j].VesselID
	})

	switch n := len(res.Competitors); {
	case n == 0:
		res.Level = LevelLow
	case n <= 2:
		res.Level = LevelMedium
	default:
		res.Level = LevelHigh
	}

	var earliest *Competitor
	for i := range res.Competitors {
		if earliest == nil || res.Competitors[i].Arrival.Before(earliest.Arrival) {
			earliest = &res.Competitors[i]
		}
	}
	if earliest != nil && earliest.Arrival.Before(eta) {
		res.ShouldAccelerate = true
		res.RecommendedETA = earliest.Arrival.Add(-AccelerationLead)
	}
	res.Adjustment = res.RecommendedETA.Sub(eta)
	return res
}
