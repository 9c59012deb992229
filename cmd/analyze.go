package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/berthplan/core/analysis"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/solver"
	"github.com/kilianp07/berthplan/qa/scenarios"
)

var (
	analyzeScenario string
	analyzeVessel   string
	analyzeETA      string
	analyzeWindow   time.Duration
	analyzeSpan     time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Plan a scenario and report competition, occupancy and KPIs",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeScenario, "scenario", "s", "", "scenario file")
	analyzeCmd.Flags().StringVar(&analyzeVessel, "vessel", "", "vessel to analyse; its ETA is used when --eta is empty")
	analyzeCmd.Flags().StringVar(&analyzeETA, "eta", "", "target arrival (RFC3339)")
	analyzeCmd.Flags().DurationVar(&analyzeWindow, "window", analysis.DefaultCompetitionWindow, "competition half width")
	analyzeCmd.Flags().DurationVar(&analyzeSpan, "span", 24*time.Hour, "occupancy and KPI window length")
	_ = analyzeCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeReport struct {
	Competition    *analysis.CompetitionResult `json:"competition,omitempty"`
	Recommendation *analysis.Recommendation    `json:"recommendation,omitempty"`
	Occupancy      []analysis.BerthOccupancy   `json:"occupancy"`
	KPI            analysis.KPI                `json:"kpi"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	sc, err := scenarios.Load(analyzeScenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	eng, err := scenarios.Engine(sc, solver.Config{}, nil)
	if err != nil {
		return err
	}
	out, err := scenarios.Run(cmd.Context(), eng, sc)
	if err != nil {
		return err
	}
	snap := out.Schedule
	now := eng.Now()
	win := model.NewWindow(now, analyzeSpan)
	rep := analyzeReport{
		Occupancy: analysis.Occupancy(snap, win),
		KPI:       analysis.KPIs(snap, win),
	}

	var eta time.Time
	if analyzeETA != "" {
		if eta, err = time.Parse(time.RFC3339, analyzeETA); err != nil {
			return fmt.Errorf("--eta: %w", err)
		}
	}
	if analyzeVessel != "" {
		v, ok := snap.Vessel(analyzeVessel)
		if !ok {
			return fmt.Errorf("vessel %s: %w", analyzeVessel, model.ErrNotFound)
		}
		if eta.IsZero() {
			eta = v.ETA
		}
		rec, err := analysis.Recommend(eng.Checker(), snap, v, now)
		if err != nil {
			return err
		}
		rep.Recommendation = &rec
	}
	if !eta.IsZero() {
		comp := analysis.Competition(snap, eta, analyzeWindow, analyzeVessel)
		rep.Competition = &comp
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
