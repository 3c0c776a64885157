package engine

import (
	"math"
	"testing"
)

func rollingStats(vals []float64) (float64, float64) {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(vals)-1))
}

func TestSignalRequiresMinimumSamples(t *testing.T) {
	sig := NewSignalEngine(600, 10)
	for i := 0; i < 9; i++ {
		if _, ok := sig.Observe("p", int64(i), float64(i)); ok {
			t.Fatalf("z defined with %d samples", i+1)
		}
	}
	if _, ok := sig.Observe("p", 9, 9); !ok {
		t.Fatal("z undefined with 10 samples and non-degenerate spread")
	}
}

func TestSignalMatchesIndependentRollingStats(t *testing.T) {
	sig := NewSignalEngine(600, 10)
	devs := []float64{0.1, -0.2, 0.3, 0.05, -0.12, 0.22, -0.31, 0.18, 0.02, -0.4, 0.27, -0.09}

	var window []float64
	for i, d := range devs {
		ts := int64(i * 10)
		window = append(window, d)

		z, ok := sig.Observe("p", ts, d)
		if len(window) < 10 {
			if ok {
				t.Fatalf("sample %d: z defined too early", i)
			}
			continue
		}
		if !ok {
			t.Fatalf("sample %d: z undefined", i)
		}

		mean, sd := rollingStats(window)
		want := (d - mean) / sd
		if math.Abs(z-want) > 1e-12 {
			t.Fatalf("sample %d: z = %v, want %v", i, z, want)
		}
	}
}

func TestSignalEvictsByElapsedTime(t *testing.T) {
	sig := NewSignalEngine(600, 2)

	sig.Observe("p", 0, 1)
	sig.Observe("p", 100, 2)
	if got := sig.Samples("p"); got != 2 {
		t.Fatalf("samples = %d, want 2", got)
	}

	// 600s elapsed is still inside the window; eviction is strictly >.
	sig.Observe("p", 600, 3)
	if got := sig.Samples("p"); got != 3 {
		t.Fatalf("samples = %d, want 3", got)
	}

	// 701-0 and 701-100 both exceed the window; only ts 600 and 701 survive.
	sig.Observe("p", 701, 4)
	if got := sig.Samples("p"); got != 2 {
		t.Fatalf("after eviction samples = %d, want 2", got)
	}
}

func TestSignalDegenerateSpread(t *testing.T) {
	sig := NewSignalEngine(600, 3)
	sig.Observe("p", 0, 0.5)
	sig.Observe("p", 1, 0.5)
	if _, ok := sig.Observe("p", 2, 0.5); ok {
		t.Fatal("z defined with zero standard deviation")
	}
}

func TestSignalWindowsAreIndependentPerPool(t *testing.T) {
	sig := NewSignalEngine(600, 2)
	sig.Observe("a", 0, 1)
	sig.Observe("b", 0, 9)
	if got := sig.Samples("a"); got != 1 {
		t.Fatalf("pool a samples = %d, want 1", got)
	}
}
