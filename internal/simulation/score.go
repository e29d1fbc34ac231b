package simulation

import (
	"math"

	"apexsim/internal/lineup"
)

// paceModel holds everything the run loop needs that is fixed across runs:
// the deterministic base score per driver, the per-driver finish
// probability, and the shared noise sigma.
type paceModel struct {
	base        []float64
	reliability []float64
	noiseSigma  float64
}

// Score a DNF receives so non-finishers rank below every finisher with
// probability ~1.
const dnfScoreFloor = -5.0

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// buildPaceModel normalises the lineup's metrics and folds them into one
// scalar base score per driver using the context-derived weights.
func buildPaceModel(drivers []lineup.Driver, ctx RaceContext) paceModel {
	n := len(drivers)

	collect := func(get func(lineup.Driver) float64) []float64 {
		vals := make([]float64, n)
		for i, d := range drivers {
			vals[i] = get(d)
		}
		return vals
	}

	longRun := Describe(collect(func(d lineup.Driver) float64 { return d.LongRunPaceDelta }))
	qualy := Describe(collect(func(d lineup.Driver) float64 { return d.QualyGapMs }))
	grid := Describe(collect(func(d lineup.Driver) float64 { return float64(d.GridPosition) }))
	straight := Describe(collect(func(d lineup.Driver) float64 { return d.StraightlineIndex }))
	corner := Describe(collect(func(d lineup.Driver) float64 { return d.CorneringIndex }))
	pit := Describe(collect(func(d lineup.Driver) float64 { return d.PitStopMedian }))
	trap := Describe(collect(func(d lineup.Driver) float64 { return d.SpeedTrapKph }))

	wStr, wCor := trackWeights(ctx.TrackProfile)
	wWet, wNoise := weatherWeights(ctx.Weather)
	tyreF := tyreFactor(ctx.TyreStress)
	scF := safetyCarFactor(ctx.SafetyCar)

	m := paceModel{
		base:        make([]float64, n),
		reliability: make([]float64, n),
		noiseSigma:  (0.35 + 0.45*ctx.Randomness) * wNoise * scF,
	}

	amp := reliabilityAmplifier(ctx)

	for i, d := range drivers {
		base := 0.28*longRun.Linear(d.LongRunPaceDelta, true) +
			0.20*qualy.Linear(d.QualyGapMs, true) +
			0.10*grid.Linear(float64(d.GridPosition), true) +
			0.10*straight.Linear(d.StraightlineIndex, false)*wStr +
			0.10*corner.Linear(d.CorneringIndex, false)*wCor +
			0.06*(1-pit.Linear(d.PitStopMedian, false)) +
			0.05*trap.Linear(d.SpeedTrapKph, false)*wStr +
			0.05*d.Consistency +
			0.03*d.Aggression +
			0.03*clamp(d.TyreManagement*tyreF, 0, 1.1) +
			0.04*d.WetSkill*wWet

		// Team-strength weight; the factor applicator is the only writer.
		pf := d.PaceFactor
		if pf == 0 {
			pf = 1
		}
		m.base[i] = base * pf

		m.reliability[i] = finishProbability(d.DNFRate, amp)
	}
	return m
}

// reliabilityAmplifier inflates the effective DNF risk under wet weather,
// abrasive circuits and frequent neutralisations. The increments are
// summed in hundredths so the result is the float64 nearest the decimal
// sum (adding 0.08, 0.05 and 0.02 to 1.0 directly overshoots 1.15).
func reliabilityAmplifier(ctx RaceContext) float64 {
	amp := 100
	if ctx.Weather == WeatherWet {
		amp += 8
	}
	if ctx.TyreStress == TyreStressHigh {
		amp += 5
	}
	switch ctx.SafetyCar {
	case SafetyCarMedium:
		amp += 1
	case SafetyCarHigh:
		amp += 2
	}
	return float64(amp) / 100
}

// finishProbability clamps into [0.04, 0.98]: nobody is a guaranteed
// finisher or a guaranteed retirement. A driver with a clean record is
// exempt from the upper clamp so a zero DNF rate stays a zero DNF rate.
func finishProbability(dnfRate, amp float64) float64 {
	if dnfRate <= 0 {
		return 1
	}
	return clamp(1-dnfRate*amp, 0.04, 0.98)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
