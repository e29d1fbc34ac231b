package simulation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"apexsim/internal/lineup"
	"github.com/rs/zerolog/log"
)

// ErrCancelled is the canonical marker returned when the host's cancel
// hook fires at a progress tick.
var ErrCancelled = errors.New("simulation cancelled")

// PointsTable awards the top ten sorted positions of every run,
// irrespective of finish status.
var PointsTable = [10]float64{25, 18, 15, 12, 10, 8, 6, 4, 2, 1}

// Hooks is the engine's only channel back to its host. OnProgress fires
// roughly every 5% of runs with an integer percent; ShouldCancel is
// consulted at the same cadence. Either may be nil.
type Hooks struct {
	OnProgress   func(percent int)
	ShouldCancel func() bool
}

// DriverResult is the per-driver statistical summary over all runs.
type DriverResult struct {
	DriverID string `json:"driverId"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Team     string `json:"team"`

	WinProbability    float64 `json:"winProbability"`
	PodiumProbability float64 `json:"podiumProbability"`
	DNFProbability    float64 `json:"dnfProbability"`
	AverageFinish     float64 `json:"averageFinish"`
	ExpectedPoints    float64 `json:"expectedPoints"`
	BestFinish        int     `json:"bestFinish"`
	WorstFinish       int     `json:"worstFinish"`
	ConsistencyIndex  float64 `json:"consistencyIndex"`
}

// Performance reports how the sampling itself went.
type Performance struct {
	ElapsedMs     int64   `json:"elapsedMs"`
	RunsPerSecond float64 `json:"runsPerSecond"`
}

// Summary is the final ranked outcome of a simulation.
type Summary struct {
	Results         []DriverResult `json:"results"`
	PredictedWinner string         `json:"predictedWinner"`
	PredictedPodium []string       `json:"predictedPodium"`
	Context         RaceContext    `json:"context"`
	Runs            int            `json:"runs"`
	Performance     Performance    `json:"performanceMetrics"`
}

// Engine samples race outcomes for a fixed lineup and context.
type Engine struct {
	drivers []lineup.Driver
	ctx     RaceContext
	rng     *RNG
}

// NewEngine builds an engine over an already-sanitised context. The seed
// fully pins the RNG stream.
func NewEngine(drivers []lineup.Driver, ctx RaceContext, seed uint32) *Engine {
	return &Engine{drivers: drivers, ctx: ctx, rng: NewRNG(seed)}
}

type accumulator struct {
	totalFinish   int64
	totalFinishSq int64
	bestFinish    int
	worstFinish   int
	wins          int
	podiums       int
	dnfs          int
	points        float64
}

// Run executes the full Monte-Carlo loop. The RNG draw order is fixed:
// per run, one reliability uniform per driver in input order, then one
// noise batch covering the whole lineup.
func (e *Engine) Run(hooks Hooks) (*Summary, error) {
	n := len(e.drivers)
	if n < 2 {
		return nil, fmt.Errorf("at least two drivers required, got %d", n)
	}

	model := buildPaceModel(e.drivers, e.ctx)
	for i, b := range model.base {
		if !isFinite(b) {
			return nil, fmt.Errorf("internal invariant pace-base: non-finite base score for %s", e.drivers[i].Name)
		}
	}

	runs := e.ctx.Runs
	interval := runs / 20
	if interval < 1 {
		interval = 1
	}

	accs := make([]accumulator, n)
	for i := range accs {
		accs[i].bestFinish = n + 1
	}

	scores := make([]float64, n)
	finished := make([]bool, n)
	order := make([]int, n)

	started := time.Now()

	for run := 0; run < runs; run++ {
		for i := 0; i < n; i++ {
			finished[i] = e.rng.Next() < model.reliability[i]
		}
		noise := e.rng.NormalBatch(n, 0, model.noiseSigma)

		for i := 0; i < n; i++ {
			if finished[i] {
				scores[i] = model.base[i] + noise[i]
			} else {
				scores[i] = dnfScoreFloor + 0.5*noise[i]
			}
			if !isFinite(scores[i]) {
				return nil, fmt.Errorf("internal invariant pace-noise: non-finite score for %s", e.drivers[i].Name)
			}
			order[i] = i
		}

		// Larger score = better position; equal scores keep input order.
		sort.SliceStable(order, func(a, b int) bool {
			return scores[order[a]] > scores[order[b]]
		})

		for pos, idx := range order {
			p := pos + 1
			acc := &accs[idx]
			acc.totalFinish += int64(p)
			acc.totalFinishSq += int64(p) * int64(p)
			if p < acc.bestFinish {
				acc.bestFinish = p
			}
			if p > acc.worstFinish {
				acc.worstFinish = p
			}
			if p == 1 {
				acc.wins++
			}
			if p <= 3 {
				acc.podiums++
			}
			if p <= len(PointsTable) {
				acc.points += PointsTable[p-1]
			}
			if !finished[idx] {
				acc.dnfs++
			}
		}

		if (run+1)%interval == 0 || run+1 == runs {
			if hooks.OnProgress != nil {
				hooks.OnProgress((run + 1) * 100 / runs)
			}
			if hooks.ShouldCancel != nil && hooks.ShouldCancel() {
				log.Debug().Int("completedRuns", run+1).Msg("Simulation cancelled at progress tick")
				return nil, ErrCancelled
			}
		}
	}

	elapsed := time.Since(started)
	summary := e.buildSummary(accs, elapsed)
	log.Info().
		Int("drivers", n).
		Int("runs", runs).
		Dur("elapsed", elapsed).
		Str("winner", summary.PredictedWinner).
		Msg("Simulation complete")
	return summary, nil
}

func (e *Engine) buildSummary(accs []accumulator, elapsed time.Duration) *Summary {
	runs := float64(e.ctx.Runs)
	results := make([]DriverResult, len(accs))

	for i, acc := range accs {
		d := e.drivers[i]
		avg := float64(acc.totalFinish) / runs
		variance := float64(acc.totalFinishSq)/runs - avg*avg
		if variance < 0 {
			variance = 0
		}

		results[i] = DriverResult{
			DriverID:          d.ID,
			Code:              d.Code,
			Name:              d.Name,
			Team:              d.Team,
			WinProbability:    float64(acc.wins) / runs,
			PodiumProbability: float64(acc.podiums) / runs,
			DNFProbability:    float64(acc.dnfs) / runs,
			AverageFinish:     avg,
			ExpectedPoints:    acc.points / runs,
			BestFinish:        acc.bestFinish,
			WorstFinish:       acc.worstFinish,
			ConsistencyIndex:  clamp(1-variance/12, 0, 1),
		}
	}

	// Win probability decides the ranking; gaps inside one per mille fall
	// through to average finish.
	sort.SliceStable(results, func(a, b int) bool {
		wa, wb := results[a].WinProbability, results[b].WinProbability
		diff := wa - wb
		if diff > 1e-3 || diff < -1e-3 {
			return wa > wb
		}
		return results[a].AverageFinish < results[b].AverageFinish
	})

	podium := make([]string, 0, 3)
	for i := 0; i < len(results) && i < 3; i++ {
		podium = append(podium, results[i].Code)
	}

	runsPerSec := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		runsPerSec = runs / secs
	}

	return &Summary{
		Results:         results,
		PredictedWinner: results[0].Code,
		PredictedPodium: podium,
		Context:         e.ctx,
		Runs:            e.ctx.Runs,
		Performance: Performance{
			ElapsedMs:     elapsed.Milliseconds(),
			RunsPerSecond: runsPerSec,
		},
	}
}
