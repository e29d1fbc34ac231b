package simulation

import (
	"math"
	"testing"
)

func TestRNG_DeterministicSequence(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)

	for i := 0; i < 1000; i++ {
		va, vb := a.Next(), b.Next()
		if va != vb {
			t.Fatalf("Draw %d diverged: %v vs %v", i, va, vb)
		}
		if va < 0 || va >= 1 {
			t.Fatalf("Draw %d out of [0,1): %v", i, va)
		}
	}
}

func TestRNG_SeedsDiffer(t *testing.T) {
	a := NewRNG(1)
	b := NewRNG(2)

	same := 0
	for i := 0; i < 100; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	if same > 2 {
		t.Errorf("Seeds 1 and 2 produced %d identical draws out of 100", same)
	}
}

func TestRNG_NormalBatchDeterministic(t *testing.T) {
	a := NewRNG(7)
	b := NewRNG(7)

	ba := a.NormalBatch(21, 0, 1)
	bb := b.NormalBatch(21, 0, 1)

	if len(ba) != 21 {
		t.Fatalf("Expected 21 variates, got %d", len(ba))
	}
	for i := range ba {
		if ba[i] != bb[i] {
			t.Fatalf("Variate %d diverged: %v vs %v", i, ba[i], bb[i])
		}
		if math.IsNaN(ba[i]) || math.IsInf(ba[i], 0) {
			t.Fatalf("Variate %d not finite: %v", i, ba[i])
		}
	}
}

// An odd batch still consumes a whole Box-Muller pair, so the stream
// position afterwards is the same as after ceil(n/2)*2 uniform draws.
func TestRNG_NormalBatchUniformConsumption(t *testing.T) {
	a := NewRNG(99)
	b := NewRNG(99)

	a.NormalBatch(3, 0, 1)
	for i := 0; i < 4; i++ {
		b.Next()
	}

	if got, want := a.Next(), b.Next(); got != want {
		t.Errorf("Stream position after NormalBatch(3) != after 4 uniforms: %v vs %v", got, want)
	}
}

func TestRNG_NormalMoments(t *testing.T) {
	r := NewRNG(1234)
	const n = 20000

	sum, sumSq := 0.0, 0.0
	for i := 0; i < n; i++ {
		v := r.Normal(2, 3)
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)

	if math.Abs(mean-2) > 0.1 {
		t.Errorf("Sample mean %v too far from 2", mean)
	}
	if math.Abs(std-3) > 0.15 {
		t.Errorf("Sample std %v too far from 3", std)
	}
}

func TestRNG_UniformMean(t *testing.T) {
	r := NewRNG(5)
	const n = 20000

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += r.Next()
	}
	mean := sum / n
	if math.Abs(mean-0.5) > 0.02 {
		t.Errorf("Uniform sample mean %v too far from 0.5", mean)
	}
}
