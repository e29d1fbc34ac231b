package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"apexsim/internal/factors"
	"apexsim/internal/lineup"
	"apexsim/internal/simulation"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultCooldown     = 30 * time.Second
	DefaultHistoryLimit = 10
)

// Persistence keys.
const (
	keyLastRun = "last_run"
	keyHistory = "history"
)

var (
	// ErrBusy is returned when a submission arrives while a run is in flight.
	ErrBusy = errors.New("busy")
	// ErrCooldown is returned for a premature factor refresh; no network
	// call is made.
	ErrCooldown = errors.New("factor refresh cooling down")
)

// Options configures an Orchestrator. Zero values pick the defaults;
// Store may be nil for in-memory operation.
type Options struct {
	Timeout      time.Duration
	Cooldown     time.Duration
	HistoryLimit int
	Executor     Executor
	Store        Store
	FactorClient *factors.Client
}

// Orchestrator drives the engine off the caller's thread, streams
// progress, services cancellation and timeout, and records history.
// All observable state is handed out as snapshots.
type Orchestrator struct {
	timeout      time.Duration
	cooldown     time.Duration
	historyLimit int
	executor     Executor
	store        Store
	factorClient *factors.Client

	mu      sync.Mutex
	current *Run
	history []Run
	running bool
	done    chan struct{}

	factorSet       []factors.Factor
	lastFactorFetch time.Time

	cancelRequested atomic.Bool
	progress        atomic.Int64 // -1 when no run has ever started
}

// New builds an orchestrator and restores persisted history if a store
// is attached.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		timeout:      opts.Timeout,
		cooldown:     opts.Cooldown,
		historyLimit: opts.HistoryLimit,
		executor:     opts.Executor,
		store:        opts.Store,
		factorClient: opts.FactorClient,
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.cooldown <= 0 {
		o.cooldown = DefaultCooldown
	}
	if o.historyLimit <= 0 {
		o.historyLimit = DefaultHistoryLimit
	}
	if o.executor == nil {
		o.executor = GoroutineExecutor{}
	}
	o.progress.Store(-1)
	o.restore()
	return o
}

// Submit validates and launches a simulation. It returns the freshly
// created run record, or ErrBusy while another run is in flight.
func (o *Orchestrator) Submit(drivers []lineup.Driver, raceCtx simulation.RaceContext, facs []factors.Factor) (*Run, error) {
	raceCtx = raceCtx.Sanitize()
	if err := raceCtx.Validate(); err != nil {
		return nil, err
	}
	if err := validateLineup(drivers); err != nil {
		return nil, err
	}

	// Snapshot inputs, then fold the enabled factors in. The engine
	// never observes the factor list itself.
	applied, appliedCtx := factors.Apply(lineup.Clone(drivers), raceCtx, facs)

	var seed uint32
	if appliedCtx.Seed != nil {
		seed = uint32(*appliedCtx.Seed)
	} else {
		seed = simulation.TimeSeed()
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	run := &Run{
		ID:        strconv.FormatInt(time.Now().UnixMilli(), 10),
		Status:    StatusRunning,
		Context:   appliedCtx,
		Lineup:    applied,
		Factors:   factors.EnabledOnly(facs),
		Seed:      seed,
		StartedAt: time.Now(),
	}
	o.current = run
	o.running = true
	o.done = make(chan struct{})
	o.cancelRequested.Store(false)
	o.progress.Store(0)
	done := o.done
	o.mu.Unlock()

	log.Info().
		Str("runId", run.ID).
		Int("drivers", len(applied)).
		Int("runs", appliedCtx.Runs).
		Uint32("seed", seed).
		Msg("Simulation submitted")

	o.executor.Execute(func() {
		defer close(done)
		o.execute(run.ID, applied, appliedCtx, seed)
	})

	return run.snapshot(), nil
}

// execute runs the engine under the wall-clock budget and performs the
// single terminal transition.
func (o *Orchestrator) execute(runID string, drivers []lineup.Driver, raceCtx simulation.RaceContext, seed uint32) {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	var summary *simulation.Summary
	g, gctx := errgroup.WithContext(timeoutCtx)
	g.Go(func() error {
		engine := simulation.NewEngine(drivers, raceCtx, seed)
		s, err := engine.Run(simulation.Hooks{
			OnProgress: func(percent int) {
				o.progress.Store(int64(percent))
			},
			ShouldCancel: func() bool {
				return o.cancelRequested.Load() || gctx.Err() != nil
			},
		})
		summary = s
		return err
	})
	err := g.Wait()

	status := StatusCompleted
	message := ""
	switch {
	case err == nil:
	case o.cancelRequested.Load() && errors.Is(err, simulation.ErrCancelled):
		status = StatusCancelled
	case errors.Is(err, simulation.ErrCancelled) && timeoutCtx.Err() != nil:
		status = StatusFailed
		message = fmt.Sprintf("timeout after %d ms", o.timeout.Milliseconds())
	default:
		status = StatusFailed
		message = err.Error()
	}

	o.finish(runID, status, message, summary)
}

// finish applies the terminal transition, then appends to history, then
// persists. Ordering is part of the contract.
func (o *Orchestrator) finish(runID string, status Status, message string, summary *simulation.Summary) {
	now := time.Now()

	o.mu.Lock()
	run := o.current
	if run == nil || run.ID != runID {
		o.mu.Unlock()
		return
	}
	run.Status = status
	run.FinishedAt = &now
	run.Message = message
	if status == StatusCompleted {
		run.Result = summary
	}
	o.running = false

	o.history = append(o.history, *run)
	if len(o.history) > o.historyLimit {
		o.history = o.history[len(o.history)-o.historyLimit:]
	}
	snapshot := run.snapshot()
	historyCopy := make([]Run, len(o.history))
	copy(historyCopy, o.history)
	o.mu.Unlock()

	log.Info().Str("runId", runID).Str("status", string(status)).Str("message", message).Msg("Simulation finished")
	o.persist(snapshot, historyCopy)
}

// Cancel requests cooperative cancellation of the in-flight run. The
// engine observes the flag at its next progress tick.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	running := o.running
	o.mu.Unlock()
	if running {
		o.cancelRequested.Store(true)
		log.Info().Msg("Cancellation requested")
	}
}

// Wait blocks until the in-flight run (if any) reaches a terminal state.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Progress returns the latest integer percent and whether any run has
// ever produced one. The value persists after the run finishes.
func (o *Orchestrator) Progress() (int, bool) {
	p := o.progress.Load()
	if p < 0 {
		return 0, false
	}
	return int(p), true
}

// CurrentRun returns a snapshot of the most recent run, or nil.
func (o *Orchestrator) CurrentRun() *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current.snapshot()
}

// History returns the retained runs, oldest first.
func (o *Orchestrator) History() []Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Run, len(o.history))
	copy(out, o.history)
	return out
}

// RefreshFactors fetches a fresh factor set from the analysis endpoint,
// honouring the cooldown. The fetched set replaces the orchestrator's
// working set.
func (o *Orchestrator) RefreshFactors(ctx context.Context) (*factors.FetchResult, error) {
	if o.factorClient == nil {
		return nil, fmt.Errorf("no factor source configured")
	}

	o.mu.Lock()
	since := time.Since(o.lastFactorFetch)
	if !o.lastFactorFetch.IsZero() && since < o.cooldown {
		remaining := o.cooldown - since
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: retry in %ds", ErrCooldown, int(math.Ceil(remaining.Seconds())))
	}
	o.lastFactorFetch = time.Now()
	o.mu.Unlock()

	result, err := o.factorClient.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.factorSet = result.Factors
	o.mu.Unlock()
	return result, nil
}

// Factors returns the current working factor set.
func (o *Orchestrator) Factors() []factors.Factor {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]factors.Factor, len(o.factorSet))
	copy(out, o.factorSet)
	return out
}

// SetFactorEnabled toggles one factor by id.
func (o *Orchestrator) SetFactorEnabled(id string, enabled bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.factorSet {
		if o.factorSet[i].ID == id {
			o.factorSet[i].Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("unknown factor %q", id)
}

// SetFactors replaces the working set (manual import path).
func (o *Orchestrator) SetFactors(set []factors.Factor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.factorSet = set
}

func (o *Orchestrator) persist(run *Run, history []Run) {
	if o.store == nil {
		return
	}
	if data, err := json.Marshal(run); err == nil {
		o.store.SetItem(keyLastRun, string(data))
	}
	if data, err := json.Marshal(history); err == nil {
		o.store.SetItem(keyHistory, string(data))
	}
}

func (o *Orchestrator) restore() {
	if o.store == nil {
		return
	}
	if data, ok := o.store.GetItem(keyHistory); ok {
		var history []Run
		if err := json.Unmarshal([]byte(data), &history); err != nil {
			log.Warn().Err(err).Msg("Discarding unreadable persisted history")
		} else {
			if len(history) > o.historyLimit {
				history = history[len(history)-o.historyLimit:]
			}
			o.history = history
		}
	}
	if data, ok := o.store.GetItem(keyLastRun); ok {
		var run Run
		if err := json.Unmarshal([]byte(data), &run); err == nil {
			o.current = &run
		}
	}
}

func validateLineup(drivers []lineup.Driver) error {
	if len(drivers) < 2 {
		return fmt.Errorf("at least two drivers required, got %d", len(drivers))
	}
	for _, d := range drivers {
		for _, v := range []float64{
			d.QualyGapMs, d.LongRunPaceDelta, d.StraightlineIndex,
			d.CorneringIndex, d.SpeedTrapKph, d.PitStopMedian, d.DNFRate,
			d.WetSkill, d.Consistency, d.TyreManagement, d.Aggression,
			d.Experience, d.PaceFactor,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("driver %s has a non-finite metric", d.Name)
			}
		}
		if d.GridPosition < 1 {
			return fmt.Errorf("driver %s has grid position %d, want >= 1", d.Name, d.GridPosition)
		}
	}
	return nil
}
