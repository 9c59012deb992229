package solver

import (
	"fmt"

	"github.com/kilianp07/berthplan/core/factory"
	"github.com/kilianp07/berthplan/core/model"
)

// Scorer ranks vessels for construction and prices a candidate placement.
// Lower cost is better. Implementations must be pure functions of their
// arguments.
type Scorer interface {
	Rank(v model.Vessel) float64
	Cost(v model.Vessel, b model.Berth, w model.TimeWindow) float64
}

// WeightedWait prices a placement as priority times hours waited past ETA.
type WeightedWait struct{}

// Rank returns the vessel priority.
func (WeightedWait) Rank(v model.Vessel) float64 { return float64(v.Priority) }

// Cost returns priority * (start - ETA) in hours.
func (WeightedWait) Cost(v model.Vessel, _ model.Berth, w model.TimeWindow) float64 {
	return float64(v.Priority) * w.Start.Sub(v.ETA).Hours()
}

// CategoryAffinity adds a penalty for every extra category a berth handles,
// keeping versatile berths free for vessels that need them.
type CategoryAffinity struct {
	WeightedWait
	Penalty float64 `json:"penalty"`
}

// Cost returns the weighted wait plus the affinity penalty.
func (c CategoryAffinity) Cost(v model.Vessel, b model.Berth, w model.TimeWindow) float64 {
	extra := len(b.Categories) - 1
	if extra < 0 {
		extra = 0
	}
	return c.WeightedWait.Cost(v, b, w) + c.Penalty*float64(extra)
}

var scorers = factory.NewRegistry[Scorer]()

func init() {
	scorers.MustRegister("weighted_wait", func(map[string]any) (Scorer, error) {
		return WeightedWait{}, nil
	})
	scorers.MustRegister("category_affinity", func(conf map[string]any) (Scorer, error) {
		c := CategoryAffinity{Penalty: 1}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Penalty < 0 {
			return nil, fmt.Errorf("category_affinity: penalty must be >= 0")
		}
		return c, nil
	})
}

// RegisterScorer makes a custom scorer available to NewScorer.
func RegisterScorer(name string, f factory.Factory[Scorer]) error {
	return scorers.Register(name, f)
}

// NewScorer instantiates a registered scorer. An empty type selects
// weighted_wait.
func NewScorer(cfg factory.ModuleConfig) (Scorer, error) {
	if cfg.Type == "" {
		cfg.Type = "weighted_wait"
	}
	return scorers.Create(cfg)
}

// Scorers lists the registered scorer names.
func Scorers() []string { return scorers.Names() }
