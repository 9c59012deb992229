// Package scenarios loads port scenarios from YAML and replays them
// through the engine.
package scenarios

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/reschedule"
)

// WindowDef is a maintenance or closure window. Hours is used when End is
// omitted.
type WindowDef struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
	Hours float64   `yaml:"hours"`
}

func (w WindowDef) ToModel() model.TimeWindow {
	if w.End.IsZero() {
		return model.NewWindow(w.Start, time.Duration(w.Hours*float64(time.Hour)))
	}
	return model.TimeWindow{Start: w.Start, End: w.End}
}

type BerthDef struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	MaxLengthM  float64     `yaml:"max_length_m"`
	MaxDraftM   float64     `yaml:"max_draft_m"`
	Categories  []string    `yaml:"categories"`
	Maintenance []WindowDef `yaml:"maintenance,omitempty"`
}

func (b BerthDef) ToModel() model.Berth {
	out := model.Berth{
		ID:         b.ID,
		Name:       b.Name,
		MaxLengthM: b.MaxLengthM,
		MaxDraftM:  b.MaxDraftM,
		Categories: b.Categories,
	}
	for _, m := range b.Maintenance {
		out.Maintenance = append(out.Maintenance, m.ToModel())
	}
	return out
}

type VesselDef struct {
	ID           string    `yaml:"id"`
	Name         string    `yaml:"name"`
	LengthM      float64   `yaml:"length_m"`
	DraftM       float64   `yaml:"draft_m"`
	Category     string    `yaml:"category"`
	ETA          time.Time `yaml:"eta"`
	ServiceHours float64   `yaml:"service_hours"`
	Priority     float64   `yaml:"priority"`
}

func (v VesselDef) ToInput() model.VesselInput {
	return model.VesselInput{
		ID:           v.ID,
		Name:         v.Name,
		LengthM:      v.LengthM,
		DraftM:       v.DraftM,
		Category:     v.Category,
		ETA:          v.ETA,
		ServiceHours: v.ServiceHours,
		Priority:     v.Priority,
	}
}

// EventDef is a disruption event in its JSON envelope shape, for example
// {type: berth_closed, berth_id: B1, window: {start: ..., end: ...}}.
type EventDef map[string]any

// ToEvent decodes the definition through the event codec.
func (e EventDef) ToEvent() (reschedule.Event, error) {
	data, err := json.Marshal(map[string]any(e))
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return reschedule.DecodeEvent(data)
}

// CheckerDef tunes the feasibility checker.
type CheckerDef struct {
	HorizonHours  float64 `yaml:"horizon_hours"`
	SafetyBufferM float64 `yaml:"safety_buffer_m"`
	UnderKeelM    float64 `yaml:"under_keel_m"`
}

func (c CheckerDef) ToChecker() feasibility.Checker {
	return feasibility.New(feasibility.Config{
		HorizonHours:  c.HorizonHours,
		SafetyBufferM: c.SafetyBufferM,
		UnderKeelM:    c.UnderKeelM,
	})
}

// Expected describes the end state a scenario must reach.
type Expected struct {
	Placed   int      `yaml:"placed"`
	Pending  []string `yaml:"pending,omitempty"`
	Rejected int      `yaml:"rejected"`
	// Unplaced maps vessel ids to their reason in the last summary.
	Unplaced  map[string]string `yaml:"unplaced,omitempty"`
	Escalated bool              `yaml:"escalated"`
	// Berths maps vessel ids to the berth they must end on.
	Berths map[string]string `yaml:"berths,omitempty"`
}

type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Now         time.Time   `yaml:"now"`
	Checker     CheckerDef  `yaml:"checker"`
	Berths      []BerthDef  `yaml:"berths"`
	Vessels     []VesselDef `yaml:"vessels"`
	Events      []EventDef  `yaml:"events,omitempty"`
	Expected    Expected    `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario: name is required")
	}
	return &sc, nil
}
