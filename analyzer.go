package main

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/madelynnblue/go-dsp/fft"
)

const (
	// fftSize is the analysis window. Half of it becomes the frequency
	// bin count, mirroring the fixed-length magnitude array the
	// visualizer consumes every frame.
	fftSize  = 2048
	freqBins = fftSize / 2

	// analyzer output is scaled into bytes on a dB-like range.
	minDecibels = -90.0
	maxDecibels = -10.0
)

// Analyzer is the time-domain tap and spectral snapshot source. It sits at
// the end of the playback chain and copies a mono mix of everything routed
// through it into a ring buffer; frequency and time snapshots are computed
// on demand from that ring.
type Analyzer struct {
	mu   sync.Mutex
	ring []float64
	pos  int
}

// NewAnalyzer creates an analyzer with a ring sized to the FFT window.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		ring: make([]float64, fftSize*2),
	}
}

// Attach wraps a streamer so its output is captured by the analyzer on the
// way to the output device.
func (a *Analyzer) Attach(s beep.Streamer) beep.Streamer {
	return &analyzerTap{a: a, s: s}
}

type analyzerTap struct {
	a *Analyzer
	s beep.Streamer
}

func (t *analyzerTap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.s.Stream(samples)
	t.a.mu.Lock()
	for i := 0; i < n; i++ {
		t.a.ring[t.a.pos] = (samples[i][0] + samples[i][1]) / 2
		t.a.pos = (t.a.pos + 1) % len(t.a.ring)
	}
	t.a.mu.Unlock()
	return n, ok
}

func (t *analyzerTap) Err() error { return t.s.Err() }

// window copies the most recent fftSize samples in chronological order.
func (a *Analyzer) window() []float64 {
	out := make([]float64, fftSize)
	a.mu.Lock()
	start := (a.pos - fftSize + len(a.ring)) % len(a.ring)
	for i := 0; i < fftSize; i++ {
		out[i] = a.ring[(start+i)%len(a.ring)]
	}
	a.mu.Unlock()
	return out
}

// FrequencyData returns one byte per analysis bin, 0..255 over a dB range,
// computed from a Hann-windowed FFT of the latest samples.
func (a *Analyzer) FrequencyData() []byte {
	// window already returns a private copy, so it doubles as the
	// per-call FFT scratch; concurrent snapshots never share state.
	samples := a.window()

	for i := range samples {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
		samples[i] *= w
	}
	spectrum := fft.FFTReal(samples)

	out := make([]byte, freqBins)
	for i := 0; i < freqBins; i++ {
		mag := cmplx.Abs(spectrum[i]) / float64(fftSize)
		db := minDecibels
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		v := (db - minDecibels) / (maxDecibels - minDecibels)
		out[i] = byte(255 * clamp01(v))
	}
	return out
}

// TimeData returns the latest time-domain samples as bytes centered at 128.
func (a *Analyzer) TimeData() []byte {
	samples := a.window()
	out := make([]byte, fftSize)
	for i, s := range samples {
		out[i] = byte(128 + 127*clampUnit(s))
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
