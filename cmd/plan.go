package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/berthplan/core/solver"
	"github.com/kilianp07/berthplan/pkg/export"
	"github.com/kilianp07/berthplan/qa/scenarios"
)

var (
	planScenario string
	planFormat   string
	planOutput   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a scenario file and print the resulting schedule",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planScenario, "scenario", "s", "", "scenario file")
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "json", "output format: json, csv or xml")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "output file (default stdout)")
	_ = planCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	f, err := export.ParseFormat(planFormat)
	if err != nil {
		return err
	}
	sc, err := scenarios.Load(planScenario)
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
	for _, rerr := range out.Rejected {
		fmt.Fprintf(cmd.ErrOrStderr(), "rejected: %v\n", rerr)
	}
	for _, u := range out.Last().Reasons {
		fmt.Fprintf(cmd.ErrOrStderr(), "unplaced %s: %s (%s)\n", u.VesselID, u.Reason, u.Detail)
	}

	var w io.Writer = cmd.OutOrStdout()
	if planOutput != "" {
		file, err := os.Create(planOutput)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	return export.Write(w, f, export.NewReport(out.Schedule, eng.Now()))
}
