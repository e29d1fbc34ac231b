package main

import (
	"flag"
	"fmt"
	"os"

	"apexsim/cmd/gridgen/engine"
)

func main() {
	scenario := flag.String("scenario", "balanced", "Scenario to generate: balanced, spread, chaos")
	outDir := flag.String("out", "./.cache", "Output directory for lineup files")
	count := flag.Int("count", 20, "Number of drivers to generate")
	seed := flag.Int64("seed", 1, "RNG seed for the generator")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Count:    *count,
		Seed:     *seed,
	}

	fmt.Printf("Generating scenario '%s' (Count: %d) to %s...\n", cfg.Scenario, cfg.Count, *outDir)

	drivers := engine.Generate(cfg)

	name := fmt.Sprintf("lineup_%s", cfg.Scenario)
	if err := engine.Save(*outDir, name, drivers); err != nil {
		fmt.Printf("Failed to save lineup: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
