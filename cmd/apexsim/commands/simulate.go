package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"apexsim/internal/lineup"
	"apexsim/internal/orchestrator"
	"apexsim/internal/simulation"

	"github.com/spf13/cobra"
)

var (
	simCSVPath    string
	simTrack      string
	simWeather    string
	simTyreStress string
	simSafetyCar  string
	simRuns       int
	simRandomness float64
	simSeed       int64
	simOutPath    string
	simNoFactors  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one simulation over a lineup CSV and print the ranking",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(simCSVPath)
		if err != nil {
			return fmt.Errorf("failed to read lineup: %w", err)
		}
		drivers, err := lineup.ParseCSV(string(data))
		if err != nil {
			return err
		}

		raceCtx := simulation.RaceContext{
			TrackProfile: simulation.TrackProfile(simTrack),
			Weather:      simulation.Weather(simWeather),
			TyreStress:   simulation.TyreStress(simTyreStress),
			SafetyCar:    simulation.SafetyCar(simSafetyCar),
			Runs:         simRuns,
			Randomness:   simRandomness,
		}
		if cmd.Flags().Changed("seed") {
			raceCtx.Seed = &simSeed
		}

		facs := orch.Factors()
		if simNoFactors {
			facs = nil
		}

		run, err := orch.Submit(drivers, raceCtx, facs)
		if err != nil {
			return err
		}
		orch.Wait()

		final := orch.CurrentRun()
		if final == nil || final.Status != orchestrator.StatusCompleted {
			status, message := "unknown", ""
			if final != nil {
				status, message = string(final.Status), final.Message
			}
			return fmt.Errorf("simulation %s: %s", status, message)
		}
		summary := final.Result

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "POS\tCODE\tDRIVER\tTEAM\tWIN%\tPODIUM%\tDNF%\tAVG\tPTS")
		for i, r := range summary.Results {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%.1f\t%.1f\t%.2f\t%.1f\n",
				i+1, r.Code, r.Name, r.Team,
				r.WinProbability*100, r.PodiumProbability*100, r.DNFProbability*100,
				r.AverageFinish, r.ExpectedPoints)
		}
		w.Flush()
		fmt.Printf("\nPredicted winner: %s (run %s, %d samples, %.0f runs/s)\n",
			summary.PredictedWinner, run.ID, summary.Runs, summary.Performance.RunsPerSecond)

		if simOutPath != "" {
			data, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(simOutPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write summary: %w", err)
			}
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simCSVPath, "csv", "", "path to the lineup CSV (required)")
	simulateCmd.Flags().StringVar(&simTrack, "track", "balanced", "track profile: balanced, power, technical")
	simulateCmd.Flags().StringVar(&simWeather, "weather", "dry", "weather: dry, mixed, wet")
	simulateCmd.Flags().StringVar(&simTyreStress, "tyre-stress", "medium", "tyre stress: low, medium, high")
	simulateCmd.Flags().StringVar(&simSafetyCar, "safety-car", "medium", "safety car tendency: low, medium, high")
	simulateCmd.Flags().IntVar(&simRuns, "runs", 5000, "number of race samples")
	simulateCmd.Flags().Float64Var(&simRandomness, "randomness", 0.5, "noise level in [0,1]")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "RNG seed for reproducible results")
	simulateCmd.Flags().StringVar(&simOutPath, "out", "", "write the summary JSON to this path")
	simulateCmd.Flags().BoolVar(&simNoFactors, "no-factors", false, "ignore the current variation factors")
	_ = simulateCmd.MarkFlagRequired("csv")

	rootCmd.AddCommand(simulateCmd)
}
