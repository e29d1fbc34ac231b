package simulation

import (
	"testing"

	"apexsim/internal/lineup"
)

func TestTrackWeights(t *testing.T) {
	cases := []struct {
		profile    TrackProfile
		wStr, wCor float64
	}{
		{TrackBalanced, 1, 1},
		{TrackPower, 1.25, 0.9},
		{TrackTechnical, 0.92, 1.25},
	}
	for _, c := range cases {
		ws, wc := trackWeights(c.profile)
		if ws != c.wStr || wc != c.wCor {
			t.Errorf("%s: got (%v,%v), want (%v,%v)", c.profile, ws, wc, c.wStr, c.wCor)
		}
	}
}

func TestWeatherWeights(t *testing.T) {
	cases := []struct {
		weather      Weather
		wWet, wNoise float64
	}{
		{WeatherDry, 0.85, 0.85},
		{WeatherMixed, 1, 1},
		{WeatherWet, 1.25, 1.2},
	}
	for _, c := range cases {
		ww, wn := weatherWeights(c.weather)
		if ww != c.wWet || wn != c.wNoise {
			t.Errorf("%s: got (%v,%v), want (%v,%v)", c.weather, ww, wn, c.wWet, c.wNoise)
		}
	}
}

func TestContextFactors(t *testing.T) {
	if got := tyreFactor(TyreStressLow); got != 0.92 {
		t.Errorf("low tyre stress factor %v, want 0.92", got)
	}
	if got := tyreFactor(TyreStressHigh); got != 1.12 {
		t.Errorf("high tyre stress factor %v, want 1.12", got)
	}
	if got := safetyCarFactor(SafetyCarLow); got != 0.88 {
		t.Errorf("low safety car factor %v, want 0.88", got)
	}
	if got := safetyCarFactor(SafetyCarHigh); got != 1.18 {
		t.Errorf("high safety car factor %v, want 1.18", got)
	}
}

func TestReliabilityAmplifier(t *testing.T) {
	base := testContext(1000, 1)
	if got := reliabilityAmplifier(base); got != 1.01 {
		t.Errorf("dry/medium/medium amplifier %v, want 1.01", got)
	}

	harsh := base
	harsh.Weather = WeatherWet
	harsh.TyreStress = TyreStressHigh
	harsh.SafetyCar = SafetyCarHigh
	if got := reliabilityAmplifier(harsh); got != 1.15 {
		t.Errorf("wet/high/high amplifier %v, want 1.15", got)
	}
}

func TestFinishProbability(t *testing.T) {
	if got := finishProbability(0, 1.15); got != 1 {
		t.Errorf("Clean record should never retire, got %v", got)
	}
	if got := finishProbability(1, 1); got != 0.04 {
		t.Errorf("Certain retirement clamps to floor 0.04, got %v", got)
	}
	if got := finishProbability(0.1, 1); got != 0.9 {
		t.Errorf("dnfRate 0.1 yields finish probability %v, want 0.9", got)
	}
}

func TestBuildPaceModel_EqualDriversEqualBase(t *testing.T) {
	a, b := driverA(), driverA()
	b.ID, b.Code = "b", "BBB"

	m := buildPaceModel([]lineup.Driver{a, b}, testContext(1000, 1))
	if m.base[0] != m.base[1] {
		t.Errorf("Identical metrics must yield identical base scores: %v vs %v", m.base[0], m.base[1])
	}
}

func TestBuildPaceModel_PaceFactorScalesBase(t *testing.T) {
	a, b := driverA(), driverB()
	plain := buildPaceModel([]lineup.Driver{a, b}, testContext(1000, 1))

	a.PaceFactor = 1.2
	boosted := buildPaceModel([]lineup.Driver{a, b}, testContext(1000, 1))

	if boosted.base[0] <= plain.base[0] {
		t.Errorf("PaceFactor 1.2 should raise the base score: %v vs %v", boosted.base[0], plain.base[0])
	}
	if boosted.base[1] != plain.base[1] {
		t.Errorf("Untouched driver's base changed: %v vs %v", boosted.base[1], plain.base[1])
	}
}

func TestBuildPaceModel_NoiseSigma(t *testing.T) {
	ctx := testContext(1000, 1)
	m := buildPaceModel([]lineup.Driver{driverA(), driverB()}, ctx)

	// dry weather noise weight 0.85, medium safety car 1.0, randomness 0.
	want := 0.35 * 0.85
	if diff := m.noiseSigma - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("noiseSigma %v, want %v", m.noiseSigma, want)
	}

	ctx.Randomness = 1
	ctx.Weather = WeatherWet
	ctx.SafetyCar = SafetyCarHigh
	m = buildPaceModel([]lineup.Driver{driverA(), driverB()}, ctx)
	want = (0.35 + 0.45) * 1.2 * 1.18
	if diff := m.noiseSigma - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("noiseSigma %v, want %v", m.noiseSigma, want)
	}
}
