package main

import (
	"math"
	"testing"

	"github.com/gopxl/beep/v2"
)

func rampSamples(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) / float64(n-1)
	}
	return out
}

// testAggregators covers both the resampler-backed path and the pure
// linear fallback.
func testAggregators() map[string]BarAggregator {
	return map[string]BarAggregator{
		"soxr":   NewBarAggregator("very_high"),
		"linear": linearAggregator{},
	}
}

func TestNewBarAggregatorSelectsResamplerPath(t *testing.T) {
	agg := NewBarAggregator("very_high")
	if _, ok := agg.(*soxrAggregator); !ok {
		t.Fatalf("startup probing rejected a working resampler: got %T", agg)
	}
	bars := agg.Bars(rampSamples(barWindow*4), 3)
	if len(bars) != 3 {
		t.Fatalf("len(Bars) = %d, want 3", len(bars))
	}
}

func TestSoxrAggregatorNeverReturnsNil(t *testing.T) {
	agg := &soxrAggregator{preset: getResamplingQuality("quick")}
	for _, tc := range []struct {
		samples  int
		barCount int
	}{
		{barWindow, 1},
		{barWindow + 1, 200},
		{100000, 2},
		{33, 1000},
	} {
		bars := agg.Bars(rampSamples(tc.samples), tc.barCount)
		if bars == nil || len(bars) != tc.barCount {
			t.Errorf("Bars(%d, %d) = %v bars, want %d non-nil",
				tc.samples, tc.barCount, len(bars), tc.barCount)
		}
	}
}

func TestBarAggregatorOutputLength(t *testing.T) {
	for name, agg := range testAggregators() {
		for _, barCount := range []int{1, 2, 17, 120} {
			bars := agg.Bars(rampSamples(4096), barCount)
			if len(bars) != barCount {
				t.Errorf("%s: len(Bars(4096, %d)) = %d", name, barCount, len(bars))
			}
		}
	}
}

func TestBarAggregatorDegenerateInputs(t *testing.T) {
	agg := linearAggregator{}
	if got := agg.Bars(nil, 8); len(got) != 8 {
		t.Errorf("empty input: len = %d, want 8", len(got))
	}
	if got := agg.Bars(rampSamples(100), 0); len(got) != 0 {
		t.Errorf("zero bars: len = %d, want 0", len(got))
	}
	if got := agg.Bars(rampSamples(100), -3); len(got) != 0 {
		t.Errorf("negative bars: len = %d, want 0", len(got))
	}
	// Fewer samples than one aggregation window still yields barCount bars.
	if got := agg.Bars(rampSamples(5), 12); len(got) != 12 {
		t.Errorf("tiny input: len = %d, want 12", len(got))
	}
}

func TestPeaksNormalizedToUnitRange(t *testing.T) {
	for name, agg := range testAggregators() {
		samples := make([]float64, 8192)
		for i := range samples {
			samples[i] = math.Sin(float64(i)/7) * 0.3
		}
		peaks := Peaks(agg, samples, 60)
		var max float64
		for i, p := range peaks {
			if p < 0 || p > 1 {
				t.Fatalf("%s: peaks[%d] = %v out of [0,1]", name, i, p)
			}
			if p > max {
				max = p
			}
		}
		// Non-silent input normalizes so the loudest bar hits 1.
		if math.Abs(max-1) > 1e-9 {
			t.Errorf("%s: max peak = %v, want 1", name, max)
		}
	}
}

func TestPeaksSilenceStaysZero(t *testing.T) {
	agg := linearAggregator{}
	peaks := Peaks(agg, make([]float64, 4096), 30)
	for i, p := range peaks {
		if p != 0 {
			t.Errorf("peaks[%d] = %v, want 0 for silence", i, p)
		}
	}
}

func TestEnvelopeAttackRamp(t *testing.T) {
	agg := linearAggregator{}
	samples := make([]float64, 8192)
	for i := range samples {
		samples[i] = 0.5
	}
	env := Envelope(agg, samples, 40)
	if len(env) != 40 {
		t.Fatalf("len = %d, want 40", len(env))
	}
	// Constant input: the attack curve makes early bars strictly smaller.
	if !(env[0] < env[1] && env[1] < env[2]) {
		t.Errorf("attack not increasing: %v %v %v", env[0], env[1], env[2])
	}
	if env[0] >= env[len(env)-1] {
		t.Errorf("first bar %v not below settled tail %v", env[0], env[len(env)-1])
	}
}

func TestEnvelopeCacheReusesByIdentity(t *testing.T) {
	cache := NewEnvelopeCache(linearAggregator{})
	samples := make([][2]float64, 4096)
	for i := range samples {
		v := math.Sin(float64(i) / 11)
		samples[i] = [2]float64{v, v}
	}
	buf := NewAudioBuffer(beep.SampleRate(44100), samples)

	a := cache.Peaks(buf, 48)
	b := cache.Peaks(buf, 48)
	if &a[0] != &b[0] {
		t.Error("second lookup did not hit the cache")
	}

	c := cache.Peaks(buf, 64)
	if len(c) != 64 {
		t.Errorf("len = %d, want 64", len(c))
	}

	cache.Clear()
	d := cache.Peaks(buf, 48)
	if &a[0] == &d[0] {
		t.Error("Clear did not drop cached entries")
	}
}

func TestEnvelopeCacheDistinctBuffers(t *testing.T) {
	cache := NewEnvelopeCache(linearAggregator{})
	mk := func(scale float64) *AudioBuffer {
		samples := make([][2]float64, 2048)
		for i := range samples {
			v := math.Sin(float64(i)/5) * scale
			samples[i] = [2]float64{v, v}
		}
		return NewAudioBuffer(beep.SampleRate(44100), samples)
	}
	a := cache.Envelope(mk(0.9), 32)
	b := cache.Envelope(mk(0.1), 32)
	if &a[0] == &b[0] {
		t.Error("distinct buffers shared a cache entry")
	}
}
