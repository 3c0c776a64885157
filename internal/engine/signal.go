package engine

import "math"

type deviationSample struct {
	ts  int64
	dev float64
}

// SignalEngine keeps a time-windowed deviation series per pool and turns the
// latest deviation into a rolling z-score. Samples are frozen at recording
// time: a later shift in the reference price does not rewrite history.
type SignalEngine struct {
	windowSec  int64
	minSamples int
	windows    map[string][]deviationSample
}

func NewSignalEngine(windowSec int64, minSamples int) *SignalEngine {
	return &SignalEngine{
		windowSec:  windowSec,
		minSamples: minSamples,
		windows:    make(map[string][]deviationSample),
	}
}

// Observe appends a deviation sample for a pool, evicts samples older than
// the window, and returns the z-score of the new sample against the window.
// The second return is false while the window is too short or its standard
// deviation is degenerate.
func (s *SignalEngine) Observe(pool string, ts int64, dev float64) (float64, bool) {
	w := append(s.windows[pool], deviationSample{ts: ts, dev: dev})

	start := 0
	for start < len(w) && ts-w[start].ts > s.windowSec {
		start++
	}
	w = w[start:]
	s.windows[pool] = w

	if len(w) < s.minSamples {
		return 0, false
	}

	var sum float64
	for _, sample := range w {
		sum += sample.dev
	}
	mean := sum / float64(len(w))

	var sq float64
	for _, sample := range w {
		d := sample.dev - mean
		sq += d * d
	}
	sd := math.Sqrt(sq / float64(len(w)-1))
	if sd <= 1e-12 {
		return 0, false
	}
	return (dev - mean) / sd, true
}

// Samples returns the current window length for a pool.
func (s *SignalEngine) Samples(pool string) int {
	return len(s.windows[pool])
}
