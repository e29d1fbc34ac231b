package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"apexsim/internal/factors"
	"apexsim/internal/lineup"
	"apexsim/internal/simulation"
)

// manualExecutor holds the body until the test decides to run it, making
// the running state observable without races.
type manualExecutor struct {
	fn func()
}

func (m *manualExecutor) Execute(fn func()) { m.fn = fn }

func (m *manualExecutor) runPending() {
	fn := m.fn
	m.fn = nil
	fn()
}

func testLineup() []lineup.Driver {
	return []lineup.Driver{
		{
			ID: "a", Code: "AAA", Name: "Driver A", Team: "Alpha",
			GridPosition: 1, QualyGapMs: 0, LongRunPaceDelta: -0.2,
			StraightlineIndex: 92, CorneringIndex: 96, SpeedTrapKph: 342,
			PitStopMedian: 2.27, DNFRate: 0,
			WetSkill: 0.95, Consistency: 0.97, TyreManagement: 0.9,
			Aggression: 0.68, Experience: 0.83, PaceFactor: 1,
		},
		{
			ID: "b", Code: "BBB", Name: "Driver B", Team: "Beta",
			GridPosition: 2, QualyGapMs: 120, LongRunPaceDelta: 0,
			StraightlineIndex: 92, CorneringIndex: 96, SpeedTrapKph: 342,
			PitStopMedian: 2.27, DNFRate: 0,
			WetSkill: 0.95, Consistency: 0.97, TyreManagement: 0.9,
			Aggression: 0.68, Experience: 0.83, PaceFactor: 1,
		},
	}
}

func testRaceContext(runs int, seed int64) simulation.RaceContext {
	return simulation.RaceContext{
		TrackProfile: simulation.TrackBalanced,
		Weather:      simulation.WeatherDry,
		TyreStress:   simulation.TyreStressMedium,
		SafetyCar:    simulation.SafetyCarMedium,
		Runs:         runs,
		Randomness:   0,
		Seed:         &seed,
	}
}

func TestOrchestrator_CompletedRun(t *testing.T) {
	o := New(Options{Executor: SyncExecutor{}})

	if _, ok := o.Progress(); ok {
		t.Error("Progress should be unobservable before any run")
	}

	run, err := o.Submit(testLineup(), testRaceContext(1000, 42), nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	final := o.CurrentRun()
	if final == nil || final.ID != run.ID {
		t.Fatalf("Current run missing or mismatched: %+v", final)
	}
	if final.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", final.Status, final.Message)
	}
	if final.Result == nil || len(final.Result.Results) != 2 {
		t.Fatalf("Completed run must carry a summary: %+v", final.Result)
	}
	if final.FinishedAt == nil {
		t.Error("FinishedAt not set on terminal transition")
	}
	if p, ok := o.Progress(); !ok || p != 100 {
		t.Errorf("Progress after success should read 100, got %d (%v)", p, ok)
	}
	if h := o.History(); len(h) != 1 || h[0].Status != StatusCompleted {
		t.Errorf("History should hold the completed run, got %+v", h)
	}
}

func TestOrchestrator_BusyRejection(t *testing.T) {
	exec := &manualExecutor{}
	o := New(Options{Executor: exec})

	if _, err := o.Submit(testLineup(), testRaceContext(1000, 1), nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := o.Submit(testLineup(), testRaceContext(1000, 2), nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("Second submission while running should be busy, got %v", err)
	}

	exec.runPending()

	if _, err := o.Submit(testLineup(), testRaceContext(1000, 3), nil); err != nil {
		t.Errorf("Submission after completion should succeed, got %v", err)
	}
	exec.runPending()
}

func TestOrchestrator_Cancellation(t *testing.T) {
	exec := &manualExecutor{}
	o := New(Options{Executor: exec})

	ctx := testRaceContext(20000, 1)
	ctx.Randomness = 0.5
	if _, err := o.Submit(testLineup(), ctx, nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	o.Cancel()
	exec.runPending()

	final := o.CurrentRun()
	if final.Status != StatusCancelled {
		t.Fatalf("Expected cancelled, got %s (%s)", final.Status, final.Message)
	}
	if final.Result != nil {
		t.Error("Cancelled run must not carry a result")
	}
	if p, ok := o.Progress(); !ok || p > 15 {
		t.Errorf("Cancellation should land within the first ticks, progress %d (%v)", p, ok)
	}
	if h := o.History(); len(h) != 1 || h[0].Status != StatusCancelled {
		t.Errorf("History should grow by one cancelled run, got %+v", h)
	}
}

func TestOrchestrator_Timeout(t *testing.T) {
	o := New(Options{Executor: SyncExecutor{}, Timeout: time.Nanosecond})

	if _, err := o.Submit(testLineup(), testRaceContext(20000, 1), nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	final := o.CurrentRun()
	if final.Status != StatusFailed {
		t.Fatalf("Expected failed on timeout, got %s", final.Status)
	}
	if !strings.Contains(final.Message, "timeout after") {
		t.Errorf("Timeout message missing diagnostic: %q", final.Message)
	}
}

func TestOrchestrator_ValidationRejectsBeforeStart(t *testing.T) {
	o := New(Options{Executor: SyncExecutor{}})

	if _, err := o.Submit(testLineup()[:1], testRaceContext(1000, 1), nil); err == nil {
		t.Error("Single-driver lineup should be rejected")
	}

	bad := testRaceContext(1000, 1)
	bad.Weather = "snow"
	if _, err := o.Submit(testLineup(), bad, nil); err == nil {
		t.Error("Unknown weather should be rejected")
	}

	if len(o.History()) != 0 {
		t.Error("Rejected submissions must not reach history")
	}
}

func TestOrchestrator_SanitizesContext(t *testing.T) {
	o := New(Options{Executor: SyncExecutor{}})

	ctx := testRaceContext(1, 1)
	ctx.Randomness = 7
	run, err := o.Submit(testLineup(), ctx, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	if run.Context.Runs != simulation.MinRuns {
		t.Errorf("Runs should clamp to %d, got %d", simulation.MinRuns, run.Context.Runs)
	}
	if run.Context.Randomness != 1 {
		t.Errorf("Randomness should clamp to 1, got %v", run.Context.Randomness)
	}
}

func TestOrchestrator_HistoryRing(t *testing.T) {
	o := New(Options{Executor: SyncExecutor{}, HistoryLimit: 2})

	for i := 0; i < 3; i++ {
		if _, err := o.Submit(testLineup(), testRaceContext(1000, int64(i)), nil); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		o.Wait()
	}

	h := o.History()
	if len(h) != 2 {
		t.Fatalf("History should retain 2 runs, got %d", len(h))
	}
	for _, run := range h {
		if run.Status != StatusCompleted {
			t.Errorf("Retained run has status %s", run.Status)
		}
	}
}

func TestOrchestrator_ReproducibleWithSeed(t *testing.T) {
	o := New(Options{Executor: SyncExecutor{}})

	var results [2]*simulation.Summary
	for i := range results {
		if _, err := o.Submit(testLineup(), testRaceContext(1000, 42), nil); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		o.Wait()
		results[i] = o.CurrentRun().Result
	}

	if !reflect.DeepEqual(results[0].Results, results[1].Results) {
		t.Error("Same lineup, context and seed must reproduce identical results")
	}
}

func TestOrchestrator_PersistenceRestore(t *testing.T) {
	store := NewMemoryStore()

	o := New(Options{Executor: SyncExecutor{}, Store: store})
	if _, err := o.Submit(testLineup(), testRaceContext(1000, 42), nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	o.Wait()

	restored := New(Options{Executor: SyncExecutor{}, Store: store})
	if h := restored.History(); len(h) != 1 || h[0].Status != StatusCompleted {
		t.Fatalf("Restored history wrong: %+v", h)
	}
	if run := restored.CurrentRun(); run == nil || run.Result == nil {
		t.Error("Last run should restore with its result")
	}
}

func TestOrchestrator_NoStoreIsFine(t *testing.T) {
	o := New(Options{Executor: SyncExecutor{}})
	if _, err := o.Submit(testLineup(), testRaceContext(1000, 1), nil); err != nil {
		t.Fatalf("Submit without a store failed: %v", err)
	}
	o.Wait()
	if o.CurrentRun().Status != StatusCompleted {
		t.Error("Run should complete without persistence")
	}
}

func TestOrchestrator_FactorCooldown(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"factors": [{"id": "f1", "label": "l", "impactType": "pace", "magnitude": 0.1}], "source": "llm", "updatedAt": "now"}`))
	}))
	defer server.Close()

	o := New(Options{
		Executor:     SyncExecutor{},
		Cooldown:     time.Hour,
		FactorClient: factors.NewClient(factors.Config{Endpoint: server.URL}),
	})

	if _, err := o.RefreshFactors(context.Background()); err != nil {
		t.Fatalf("First refresh failed: %v", err)
	}
	if len(o.Factors()) != 1 {
		t.Fatalf("Working set should hold the fetched factor, got %d", len(o.Factors()))
	}

	_, err := o.RefreshFactors(context.Background())
	if !errors.Is(err, ErrCooldown) {
		t.Fatalf("Premature refresh should hit the cooldown, got %v", err)
	}
	if requests != 1 {
		t.Errorf("Cooldown must prevent the network call, saw %d requests", requests)
	}
}

func TestOrchestrator_SetFactorEnabled(t *testing.T) {
	o := New(Options{Executor: SyncExecutor{}})
	o.SetFactors([]factors.Factor{{ID: "f1", Label: "l", ImpactType: factors.ImpactPace, Magnitude: 0.5, Enabled: true}})

	if err := o.SetFactorEnabled("f1", false); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if o.Factors()[0].Enabled {
		t.Error("Factor should be disabled")
	}
	if err := o.SetFactorEnabled("nope", true); err == nil {
		t.Error("Unknown factor id should error")
	}
}
