package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
)

// AudioBuffer is an immutable, decoded PCM buffer. The engine owns at most
// one "current" buffer at a time and replaces it wholesale when a new track
// loads; nothing mutates the samples after decoding.
type AudioBuffer struct {
	id      string
	rate    beep.SampleRate
	samples [][2]float64

	mono []float64 // computed on first use
}

// NewAudioBuffer wraps decoded stereo samples at the given rate.
func NewAudioBuffer(rate beep.SampleRate, samples [][2]float64) *AudioBuffer {
	return &AudioBuffer{id: uuid.NewString(), rate: rate, samples: samples}
}

// ID is the buffer's identity, used as the envelope cache key.
func (b *AudioBuffer) ID() string { return b.id }

// Len returns the number of sample frames.
func (b *AudioBuffer) Len() int { return len(b.samples) }

// SampleRate returns the buffer's fixed sample rate.
func (b *AudioBuffer) SampleRate() beep.SampleRate { return b.rate }

// Duration returns the buffer's play time.
func (b *AudioBuffer) Duration() time.Duration {
	return b.rate.D(len(b.samples))
}

// Mono returns the channel-averaged samples used by the envelope pipeline.
func (b *AudioBuffer) Mono() []float64 {
	if b.mono == nil {
		mono := make([]float64, len(b.samples))
		for i, s := range b.samples {
			mono[i] = (s[0] + s[1]) / 2
		}
		b.mono = mono
	}
	return b.mono
}

// Streamer returns a fresh seekable source over the buffer starting at the
// given frame. Each Play gets its own source; stopping one never disturbs
// the buffer.
func (b *AudioBuffer) Streamer(from int) beep.StreamSeeker {
	if from < 0 {
		from = 0
	}
	if from > len(b.samples) {
		from = len(b.samples)
	}
	return &bufferSource{buf: b, pos: from}
}

// bufferSource streams an AudioBuffer from a position.
type bufferSource struct {
	buf *AudioBuffer
	pos int
}

func (s *bufferSource) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.buf.samples) {
		return 0, false
	}
	n := copy(samples, s.buf.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *bufferSource) Err() error { return nil }

func (s *bufferSource) Len() int { return len(s.buf.samples) }

func (s *bufferSource) Position() int { return s.pos }

func (s *bufferSource) Seek(p int) error {
	if p < 0 {
		p = 0
	}
	if p > len(s.buf.samples) {
		p = len(s.buf.samples)
	}
	s.pos = p
	return nil
}
