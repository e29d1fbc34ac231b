package factors

import (
	"math"
	"strings"

	"apexsim/internal/lineup"
	"apexsim/internal/simulation"
	"github.com/rs/zerolog/log"
)

// Apply folds the enabled factors into a fresh (lineup, context) pair.
// Inputs are never mutated; the engine only ever sees the result.
//
// pace factors scale the driver's team-strength weight (PaceFactor),
// which the pace scorer multiplies the base score by. reliability
// factors move DNFRate against the magnitude sign, so a negative
// magnitude means more retirements. qualifying factors improve or worsen
// the grid slot. strategy factors aggregate into context randomness.
func Apply(drivers []lineup.Driver, ctx simulation.RaceContext, all []Factor) ([]lineup.Driver, simulation.RaceContext) {
	out := lineup.Clone(drivers)
	enabled := EnabledOnly(all)

	strategyShift := 0.0

	for _, f := range enabled {
		switch f.ImpactType {
		case ImpactStrategy:
			strategyShift += 0.15 * f.Magnitude
		case ImpactPace:
			scale := clampF(1+0.12*f.Magnitude, 0.6, 1.5)
			for i := range out {
				if matches(f, out[i]) {
					if out[i].PaceFactor == 0 {
						out[i].PaceFactor = 1
					}
					out[i].PaceFactor *= scale
				}
			}
		case ImpactReliability:
			for i := range out {
				if matches(f, out[i]) {
					out[i].DNFRate = clampF(out[i].DNFRate-0.05*f.Magnitude, 0, 0.6)
				}
			}
		case ImpactQualifying:
			shift := int(math.Round(2 * f.Magnitude))
			for i := range out {
				if matches(f, out[i]) {
					grid := out[i].GridPosition - shift
					if grid < 1 {
						grid = 1
					}
					out[i].GridPosition = grid
				}
			}
		default:
			log.Debug().Str("factor", f.ID).Str("impactType", string(f.ImpactType)).Msg("Skipping factor with unknown impact type")
		}
	}

	if strategyShift != 0 {
		ctx.Randomness = clampF(ctx.Randomness+strategyShift, 0, 1)
	}

	if len(enabled) > 0 {
		log.Debug().Int("factors", len(enabled)).Float64("strategyShift", strategyShift).Msg("Applied variation factors")
	}
	return out, ctx
}

// matches reports whether a factor targets the given driver. Driver
// targets compare against the three-letter code, team targets substring-
// match the team name; both case-insensitive. No targets means global.
func matches(f Factor, d lineup.Driver) bool {
	if len(f.Targets) == 0 {
		return true
	}
	for _, t := range f.Targets {
		switch t.Type {
		case TargetDriver:
			if strings.EqualFold(t.ID, d.Code) {
				return true
			}
		case TargetTeam:
			if strings.Contains(strings.ToLower(d.Team), strings.ToLower(t.ID)) {
				return true
			}
		}
	}
	return false
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
