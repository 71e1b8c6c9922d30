package main

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	resampling "github.com/tphakala/go-audio-resampler"
)

// barWindow is the number of resampled samples reduced into one bar.
const barWindow = 32

// envelopeAttackBars controls how quickly the envelope curve ramps up from
// the first bar. A larger value attenuates more of the leading bars.
const envelopeAttackBars = 4.0

// BarAggregator reduces a raw sample buffer to one RMS amplitude per bar.
// Both implementations must satisfy the same anchoring behavior: the final
// bar is always derived from a window that ends on the true last sample.
type BarAggregator interface {
	Bars(samples []float64, barCount int) []float64
}

// NewBarAggregator probes the high-quality resampler and returns it when it
// works, falling back to the pure linear implementation otherwise. The probe
// input is long enough to reach the resampler itself rather than the tiny-
// buffer delegation.
func NewBarAggregator(quality string) BarAggregator {
	agg := &soxrAggregator{preset: getResamplingQuality(quality)}
	probe := make([]float64, barWindow*2)
	for i := range probe {
		probe[i] = math.Sin(float64(i) / 3)
	}
	if _, ok := agg.resample(probe, barWindow); ok {
		return agg
	}
	return linearAggregator{}
}

// getResamplingQuality converts the quality string from config to the
// corresponding resampling quality preset.
func getResamplingQuality(quality string) resampling.QualityPreset {
	switch quality {
	case "quick":
		return resampling.QualityQuick
	case "low":
		return resampling.QualityLow
	case "medium":
		return resampling.QualityMedium
	case "high":
		return resampling.QualityHigh
	case "very_high":
		return resampling.QualityVeryHigh
	default:
		return resampling.QualityVeryHigh
	}
}

// linearAggregator is the pure Go fallback: linear-interpolation resample to
// barCount x barWindow samples, then one RMS value per window.
type linearAggregator struct{}

func (linearAggregator) Bars(samples []float64, barCount int) []float64 {
	if barCount <= 0 {
		return []float64{}
	}
	return windowRMS(Resample(samples, barCount*barWindow), barCount)
}

// soxrAggregator resamples through go-audio-resampler before the RMS
// reduction. The library targets a rate ratio rather than an exact length, so
// the output is trimmed or padded to barCount x barWindow and the final
// sample is re-anchored to the true last input sample, keeping this path
// visually identical to the fallback at the buffer edges.
type soxrAggregator struct {
	preset resampling.QualityPreset
}

func (a *soxrAggregator) Bars(samples []float64, barCount int) []float64 {
	if barCount <= 0 {
		return []float64{}
	}
	target := barCount * barWindow
	if len(samples) == 0 {
		return make([]float64, barCount)
	}
	if len(samples) < barWindow {
		// Too short for the FIR filter to make sense; the linear path
		// handles tiny buffers exactly.
		return linearAggregator{}.Bars(samples, barCount)
	}

	out, ok := a.resample(samples, target)
	if !ok {
		// A runtime resampler failure must not blank the visualizer.
		return linearAggregator{}.Bars(samples, barCount)
	}
	out[target-1] = samples[len(samples)-1]
	return windowRMS(out, barCount)
}

// resample runs the library resampler toward an exact output length,
// trimming or padding its ratio-based result.
func (a *soxrAggregator) resample(samples []float64, target int) ([]float64, bool) {
	out, err := resampling.ResampleMono(samples, float64(len(samples)), float64(target), a.preset)
	if err != nil || len(out) == 0 {
		return nil, false
	}
	if len(out) > target {
		out = out[:target]
	}
	for len(out) < target {
		out = append(out, out[len(out)-1])
	}
	return out, true
}

// windowRMS reduces len(samples)/barCount windows to their root mean square.
func windowRMS(samples []float64, barCount int) []float64 {
	bars := make([]float64, barCount)
	window := len(samples) / barCount
	if window == 0 {
		return bars
	}
	for b := 0; b < barCount; b++ {
		var sum float64
		for i := b * window; i < (b+1)*window; i++ {
			sum += samples[i] * samples[i]
		}
		bars[b] = math.Sqrt(sum / float64(window))
	}
	return bars
}

// Envelope computes per-bar amplitudes with an exponential attack curve that
// attenuates the leading bars, avoiding a visual pop at the start of playback.
func Envelope(agg BarAggregator, samples []float64, barCount int) []float64 {
	bars := agg.Bars(samples, barCount)
	for i := range bars {
		bars[i] *= 1 - math.Exp(-float64(i)/envelopeAttackBars)
	}
	return bars
}

// Peaks computes per-bar amplitudes normalized by the maximum so the result
// spans [0, 1]. A silent buffer yields all zeros.
func Peaks(agg BarAggregator, samples []float64, barCount int) []float64 {
	bars := agg.Bars(samples, barCount)
	var peak float64
	for _, v := range bars {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return bars
	}
	for i := range bars {
		bars[i] /= peak
	}
	return bars
}

type envelopeKind uint8

const (
	kindEnvelope envelopeKind = iota
	kindPeaks
)

type envelopeKey struct {
	bufferID string
	barCount int
	kind     envelopeKind
}

// envelopeCacheSize bounds the number of memoized results. Entries for
// replaced buffers simply age out; the cache holds buffer IDs, never the
// PCM data itself.
const envelopeCacheSize = 64

// EnvelopeCache memoizes aggregator results per (buffer identity, bar count).
// Decoded buffers are immutable once produced, so identity keying is
// sufficient and cheap.
type EnvelopeCache struct {
	agg     BarAggregator
	entries *lru.Cache[envelopeKey, []float64]
}

// NewEnvelopeCache creates a cache in front of the given aggregator.
func NewEnvelopeCache(agg BarAggregator) *EnvelopeCache {
	entries, _ := lru.New[envelopeKey, []float64](envelopeCacheSize)
	return &EnvelopeCache{agg: agg, entries: entries}
}

// Envelope returns the memoized envelope bars for the buffer.
func (c *EnvelopeCache) Envelope(buf *AudioBuffer, barCount int) []float64 {
	return c.lookup(buf, barCount, kindEnvelope)
}

// Peaks returns the memoized normalized peak bars for the buffer.
func (c *EnvelopeCache) Peaks(buf *AudioBuffer, barCount int) []float64 {
	return c.lookup(buf, barCount, kindPeaks)
}

func (c *EnvelopeCache) lookup(buf *AudioBuffer, barCount int, kind envelopeKind) []float64 {
	if buf == nil || barCount <= 0 {
		return []float64{}
	}
	key := envelopeKey{bufferID: buf.ID(), barCount: barCount, kind: kind}
	if bars, ok := c.entries.Get(key); ok {
		return bars
	}
	var bars []float64
	switch kind {
	case kindPeaks:
		bars = Peaks(c.agg, buf.Mono(), barCount)
	default:
		bars = Envelope(c.agg, buf.Mono(), barCount)
	}
	c.entries.Add(key, bars)
	return bars
}

// Clear drops every memoized result. Used by tests and when smoothing
// parameters change under the cache.
func (c *EnvelopeCache) Clear() {
	c.entries.Purge()
}
