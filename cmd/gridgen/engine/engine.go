package engine

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"apexsim/internal/lineup"
)

// GeneratorConfig controls the synthetic lineup shape.
type GeneratorConfig struct {
	Scenario string // "balanced", "spread" or "chaos"
	Count    int
	Seed     int64
}

var lastNames = []string{
	"Varga", "Okafor", "Lindqvist", "Moreau", "Castellano",
	"Ishida", "Petrov", "Donnelly", "Araujo", "Kowalski",
	"Bergmann", "Fontaine", "Rinaldi", "Svensson", "Marquez",
	"Novak", "Hartley", "Duarte", "Keller", "Oliveira",
}

var firstNames = []string{
	"Luca", "Mika", "Theo", "Nico", "Jules",
	"Oscar", "Felix", "Andre", "Marco", "Elias",
	"Ivan", "Dario", "Hugo", "Emil", "Rafael",
	"Tomas", "Jonas", "Victor", "Bruno", "Pablo",
}

var teamNames = []string{
	"Vortex Racing", "Meridian GP", "Apex Dynamics", "Borealis F1",
	"Solaris Motorsport", "Kestrel Racing", "Delta Corse", "Polaris GP",
	"Aurora Racing", "Zenith Motorsport",
}

// Generate builds a synthetic lineup of Count drivers. Two drivers share
// each team and grid order follows generation order (fastest team first);
// the random qualifying jitter can leave a driver with a smaller gap than
// someone ahead of them on the grid.
func Generate(cfg GeneratorConfig) []lineup.Driver {
	if cfg.Count <= 0 {
		cfg.Count = 20
	}
	if cfg.Count > len(lastNames) {
		cfg.Count = len(lastNames)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	// Scenario parameters: pace spread between the best and worst car,
	// and the baseline retirement risk.
	paceSpread := 0.8
	dnfBase := 0.05
	dnfSpread := 0.08
	switch cfg.Scenario {
	case "spread":
		paceSpread = 2.0
	case "chaos":
		paceSpread = 0.5
		dnfBase = 0.12
		dnfSpread = 0.3
	}

	drivers := make([]lineup.Driver, cfg.Count)
	for i := range drivers {
		name := fmt.Sprintf("%s %s", firstNames[i], lastNames[i])
		teamRank := i / 2

		// teamRank 0 is the fastest car; strength grows down the grid.
		// The jitter keeps teammates from being clones.
		strength := float64(teamRank) / float64(len(teamNames)-1)
		jitter := func(spread float64) float64 { return (rng.Float64() - 0.5) * spread }

		d := lineup.Driver{
			Name:              name,
			Team:              teamNames[teamRank%len(teamNames)],
			GridPosition:      i + 1,
			QualyGapMs:        strength*1200*paceSpread/0.8 + rng.Float64()*150,
			LongRunPaceDelta:  strength*paceSpread + jitter(0.15),
			StraightlineIndex: 95 - strength*12 + jitter(4),
			CorneringIndex:    95 - strength*12 + jitter(4),
			SpeedTrapKph:      345 - strength*12 + jitter(3),
			PitStopMedian:     2.2 + strength*0.5 + rng.Float64()*0.2,
			DNFRate:           clamp01(dnfBase + rng.Float64()*dnfSpread),
			WetSkill:          clamp01(0.6 + rng.Float64()*0.4),
			Consistency:       clamp01(0.9 - strength*0.2 + jitter(0.1)),
			TyreManagement:    clamp01(0.6 + rng.Float64()*0.4),
			Aggression:        clamp01(0.4 + rng.Float64()*0.5),
			Experience:        clamp01(0.3 + rng.Float64()*0.7),
			PaceFactor:        1,
		}
		drivers[i] = d
	}
	return drivers
}

// Save writes the lineup CSV into outDir.
func Save(outDir, name string, drivers []lineup.Driver) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(outDir, name+".csv")
	if err := os.WriteFile(path, []byte(lineup.ExportCSV(drivers)), 0644); err != nil {
		return fmt.Errorf("failed to write lineup: %w", err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
