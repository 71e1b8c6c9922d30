package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

var (
	// ErrLoadSuperseded marks a load that was cancelled because a newer
	// load arrived. It is not a failure; callers discard it silently.
	ErrLoadSuperseded = errors.New("load superseded by a newer load")

	// ErrGraphUnavailable means the audio output could not be created.
	// Playback is not possible until the host environment changes.
	ErrGraphUnavailable = errors.New("audio graph unavailable")

	// ErrNothingLoaded is returned by Play when no buffer is loaded.
	ErrNothingLoaded = errors.New("no track loaded")
)

// DecodeError reports track bytes that could not be turned into PCM. The
// engine's state is untouched when it is returned.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportState is the snapshot pushed to subscribers. Playing and Paused
// are mutually exclusive; Stopped implies neither.
type TransportState struct {
	Playing bool
	Paused  bool
	Stopped bool

	CurrentTime time.Duration
	Duration    time.Duration
	Volume      float64
	Muted       bool
}

// tickInterval is the cadence of time notifications while playing.
const tickInterval = 200 * time.Millisecond

// Engine owns the audio graph and the current decoded buffer, schedules and
// stops sources, and tracks transport state. All mutating operations notify
// subscribers exactly once per logical change.
//
// The graph's mixer pulls samples on its own goroutine while holding the
// graph lock, so nothing reachable from the streaming path (gain stage, end
// callback) may take the engine mutex. The gain is an atomic and the end
// callback only posts to a channel drained by the engine's own goroutine.
type Engine struct {
	graph Graph
	rate  beep.SampleRate

	gain atomic.Uint64 // math.Float64bits of the effective linear gain

	mu       sync.Mutex
	analyzer *Analyzer

	buf    *AudioBuffer
	ctrl   *beep.Ctrl
	source beep.StreamSeeker

	// loadSeq is the request id: only the load whose id is still current
	// may commit its buffer. loadCancel cancels the in-flight load.
	loadSeq    uint64
	loadCancel context.CancelFunc

	// playSeq tags each scheduled source so a stale end-of-buffer
	// callback from a superseded source is ignored.
	playSeq  uint64
	tickStop chan struct{}

	state     TransportState
	micActive bool
	micStream beep.Streamer

	subs    map[int]func(TransportState)
	nextSub int

	done  chan uint64 // raw end callbacks, tagged with playSeq
	ended chan struct{}
	quit  chan struct{}
}

// NewEngine initializes the graph at the given rate and returns the engine.
// Graph initialization failures are not retried; they surface to the caller.
func NewEngine(graph Graph, rate beep.SampleRate) (*Engine, error) {
	if err := graph.Init(rate, rate.N(graphBufferLen)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphUnavailable, err)
	}
	e := &Engine{
		graph:    graph,
		rate:     rate,
		analyzer: NewAnalyzer(),
		state:    TransportState{Stopped: true, Volume: 1},
		subs:     make(map[int]func(TransportState)),
		done:     make(chan uint64, 4),
		ended:    make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
	e.gain.Store(math.Float64bits(1))
	go e.endLoop()
	return e, nil
}

// Close stops playback and the engine's internal goroutine. The graph
// handle stays usable for a future engine.
func (e *Engine) Close() {
	e.Stop()
	close(e.quit)
}

// endLoop turns raw end callbacks into transport changes and Ended events.
// It runs off the mixer goroutine so it can take the engine mutex safely.
func (e *Engine) endLoop() {
	for {
		select {
		case <-e.quit:
			return
		case seq := <-e.done:
			e.sourceEnded(seq)
		}
	}
}

// Subscribe registers a transport state observer and returns its
// unsubscribe function. Callbacks run on the engine's goroutines and must
// not call back into the engine.
func (e *Engine) Subscribe(fn func(TransportState)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Ended signals natural end-of-buffer, once per finished source. Manual
// stops and skips never fire it.
func (e *Engine) Ended() <-chan struct{} { return e.ended }

// State returns the current transport snapshot.
func (e *Engine) State() TransportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// notifyLocked pushes the current state to every subscriber. Callers batch
// field changes and call this once per logical change.
func (e *Engine) notifyLocked() {
	st := e.state
	for _, fn := range e.subs {
		fn(st)
	}
}

// Load reads and decodes the track into a fresh buffer. It cancels any
// earlier uncompleted Load; the superseded call returns ErrLoadSuperseded
// and leaves engine state alone. Decode and read failures are typed and the
// engine keeps whatever buffer it had before.
func (e *Engine) Load(ctx context.Context, track *Track) error {
	e.mu.Lock()
	e.loadSeq++
	seq := e.loadSeq
	if e.loadCancel != nil {
		e.loadCancel()
	}
	lctx, cancel := context.WithCancel(ctx)
	e.loadCancel = cancel
	e.stopSourceLocked()
	e.state.Playing = false
	e.state.Paused = false
	e.state.Stopped = true
	e.notifyLocked()
	e.mu.Unlock()
	defer cancel()

	data, err := track.ReadAll(lctx)
	if err != nil {
		if lctx.Err() != nil {
			return ErrLoadSuperseded
		}
		return fmt.Errorf("read track: %w", err)
	}

	buf, err := decodeBuffer(lctx, track.Path, data, e.rate)
	if err != nil {
		if lctx.Err() != nil {
			return ErrLoadSuperseded
		}
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.loadSeq {
		return ErrLoadSuperseded
	}
	e.loadCancel = nil
	e.buf = buf
	e.state.CurrentTime = 0
	e.state.Duration = buf.Duration()
	e.notifyLocked()
	return nil
}

// Buffer returns the current decoded buffer, or nil.
func (e *Engine) Buffer() *AudioBuffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf
}

// Play schedules a fresh source over the loaded buffer from the given
// offset, clamped into [0, duration].
func (e *Engine) Play(offset time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buf == nil {
		return ErrNothingLoaded
	}
	offset = clampDuration(offset, e.buf.Duration())
	e.startSourceLocked(offset)
	e.state.Playing = true
	e.state.Paused = false
	e.state.Stopped = false
	e.state.CurrentTime = offset
	e.notifyLocked()
	return nil
}

// startSourceLocked tears down any existing source and schedules a new one
// with an end callback tagged by the current play request id.
func (e *Engine) startSourceLocked(offset time.Duration) {
	e.stopSourceLocked()
	e.playSeq++
	seq := e.playSeq

	src := e.buf.Streamer(e.rate.N(offset))
	ctrl := &beep.Ctrl{Streamer: src}
	chain := e.analyzer.Attach(&gainStreamer{s: ctrl, gain: &e.gain})

	e.source = src
	e.ctrl = ctrl
	e.graph.Play(beep.Seq(chain, beep.Callback(func() {
		// Runs on the mixer goroutine; hand off without locking.
		select {
		case e.done <- seq:
		default:
		}
	})))
	e.startTickerLocked()
}

// stopSourceLocked clears the graph and invalidates outstanding end
// callbacks and the time-notification loop.
func (e *Engine) stopSourceLocked() {
	e.playSeq++
	e.stopTickerLocked()
	if e.source != nil || e.micActive {
		e.graph.Clear()
	}
	e.source = nil
	e.ctrl = nil
	e.micActive = false
	if c, ok := e.micStream.(io.Closer); ok {
		c.Close()
	}
	e.micStream = nil
}

// sourceEnded handles a natural end-of-buffer. A stale id means the source
// was superseded and the event is dropped. The stop is a single atomic
// transport update: subscribers never observe a half-updated state.
func (e *Engine) sourceEnded(seq uint64) {
	e.mu.Lock()
	if seq != e.playSeq {
		e.mu.Unlock()
		return
	}
	e.stopTickerLocked()
	e.source = nil
	e.ctrl = nil
	e.state.Playing = false
	e.state.Paused = false
	e.state.Stopped = true
	e.state.CurrentTime = e.state.Duration
	e.notifyLocked()
	e.mu.Unlock()

	select {
	case e.ended <- struct{}{}:
	default:
	}
}

// Pause suspends the playing source and the time-notification loop. The
// buffer is kept; Resume continues from the paused offset.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Playing || e.ctrl == nil {
		return
	}
	e.graph.Lock()
	e.ctrl.Paused = true
	pos := e.source.Position()
	e.graph.Unlock()
	e.stopTickerLocked()
	e.state.CurrentTime = e.rate.D(pos)
	e.state.Playing = false
	e.state.Paused = true
	e.notifyLocked()
}

// Resume continues playback from the paused offset.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Paused || e.ctrl == nil {
		return
	}
	e.graph.Lock()
	e.ctrl.Paused = false
	e.graph.Unlock()
	e.startTickerLocked()
	e.state.Playing = true
	e.state.Paused = false
	e.notifyLocked()
}

// Stop fully resets transport state and discards the buffer reference. The
// graph itself stays alive for the next load.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopSourceLocked()
	e.buf = nil
	e.state.Playing = false
	e.state.Paused = false
	e.state.Stopped = true
	e.state.CurrentTime = 0
	e.state.Duration = 0
	e.notifyLocked()
}

// Seek moves the playback position, clamped into [0, duration]. Buffer
// sources seek in place, so the paused case updates the offset without
// resuming and the playing case continues from the new position.
func (e *Engine) Seek(t time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buf == nil {
		return
	}
	t = clampDuration(t, e.buf.Duration())
	if e.source != nil {
		e.graph.Lock()
		_ = e.source.Seek(e.rate.N(t))
		e.graph.Unlock()
	}
	e.state.CurrentTime = t
	e.notifyLocked()
}

// SetVolume sets the gain, clamped into [0, 1]. Non-finite values fall back
// to full volume.
func (e *Engine) SetVolume(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Volume = v
	e.state.Muted = v == 0
	e.applyGainLocked()
	e.notifyLocked()
}

// ToggleMute flips between silence and full volume. Toggling twice lands on
// full volume, not the pre-mute level.
func (e *Engine) ToggleMute() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Muted {
		e.state.Muted = false
		e.state.Volume = 1
	} else {
		e.state.Muted = true
		e.state.Volume = 0
	}
	e.applyGainLocked()
	e.notifyLocked()
}

func (e *Engine) applyGainLocked() {
	gain := e.state.Volume
	if e.state.Muted {
		gain = 0
	}
	e.gain.Store(math.Float64bits(gain))
}

// StartMicrophone routes a live input stream through the same gain and
// analysis chain used for file playback. File playback and microphone input
// are mutually exclusive; starting one stops the other.
func (e *Engine) StartMicrophone(stream beep.Streamer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopSourceLocked()
	e.micActive = true
	e.micStream = stream
	e.state.Playing = false
	e.state.Paused = false
	e.state.Stopped = true
	e.state.CurrentTime = 0
	e.graph.Play(e.analyzer.Attach(&gainStreamer{s: stream, gain: &e.gain}))
	e.notifyLocked()
}

// StopMicrophone stops the live input, if any.
func (e *Engine) StopMicrophone() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.micActive {
		return
	}
	e.graph.Clear()
	e.micActive = false
	if c, ok := e.micStream.(io.Closer); ok {
		c.Close()
	}
	e.micStream = nil
	e.notifyLocked()
}

// MicrophoneActive reports whether a live input stream is routed through
// the graph.
func (e *Engine) MicrophoneActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.micActive
}

// FrequencyData returns a snapshot of frequency-domain magnitudes, one byte
// per analysis bin, or nil if the graph has not been initialized.
func (e *Engine) FrequencyData() []byte {
	if e == nil || e.analyzer == nil {
		return nil
	}
	return e.analyzer.FrequencyData()
}

// TimeData returns a snapshot of time-domain samples as bytes, or nil if
// the graph has not been initialized.
func (e *Engine) TimeData() []byte {
	if e == nil || e.analyzer == nil {
		return nil
	}
	return e.analyzer.TimeData()
}

// startTickerLocked begins the periodic time-notification loop. It runs
// only while a source is actively playing.
func (e *Engine) startTickerLocked() {
	e.stopTickerLocked()
	stop := make(chan struct{})
	e.tickStop = stop
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.tick(stop)
			}
		}
	}()
}

// stopTickerLocked invalidates the loop: a tick racing the shutdown sees a
// stale stop channel and changes nothing.
func (e *Engine) stopTickerLocked() {
	if e.tickStop != nil {
		close(e.tickStop)
		e.tickStop = nil
	}
}

func (e *Engine) tick(stop chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tickStop != stop || e.source == nil {
		return
	}
	e.graph.Lock()
	pos := e.source.Position()
	e.graph.Unlock()
	e.state.CurrentTime = e.rate.D(pos)
	e.notifyLocked()
}

// gainStreamer applies the engine's linear volume to the chain. The gain is
// read atomically per call so volume changes take effect without rebuilding
// the chain and without touching the engine mutex from the mixer goroutine.
type gainStreamer struct {
	s    beep.Streamer
	gain *atomic.Uint64
}

func (g *gainStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := g.s.Stream(samples)
	gain := math.Float64frombits(g.gain.Load())
	for i := 0; i < n; i++ {
		samples[i][0] *= gain
		samples[i][1] *= gain
	}
	return n, ok
}

func (g *gainStreamer) Err() error { return g.s.Err() }

// decodeChunk is the frame count pulled per decode step; cancellation is
// checked between chunks.
const decodeChunk = 4096

// decodeBuffer sniffs the container format, decodes the bytes, and
// resamples them to the graph rate.
func decodeBuffer(ctx context.Context, path string, data []byte, rate beep.SampleRate) (*AudioBuffer, error) {
	streamer, format, err := decodeBytes(data)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if format.SampleRate != rate {
		src = beep.Resample(4, format.SampleRate, rate, streamer)
	}

	var samples [][2]float64
	chunk := make([][2]float64, decodeChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := src.Stream(chunk)
		samples = append(samples, chunk[:n]...)
		if !ok {
			break
		}
	}
	if err := src.Err(); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if len(samples) == 0 {
		return nil, &DecodeError{Path: path, Err: errors.New("no audio frames")}
	}
	return NewAudioBuffer(rate, samples), nil
}

// decodeBytes picks a decoder from the container magic bytes, ignoring the
// file extension, which lies often enough to matter.
func decodeBytes(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return flac.Decode(newByteSource(data))
	case bytes.HasPrefix(data, []byte("OggS")):
		return vorbis.Decode(newByteSource(data))
	case bytes.HasPrefix(data, []byte("RIFF")):
		return wav.Decode(newByteSource(data))
	default:
		return mp3.Decode(newByteSource(data))
	}
}

// byteSource adapts a byte slice to the union of reader shapes the beep
// decoders expect (read, seek, close).
type byteSource struct {
	*bytes.Reader
}

func newByteSource(data []byte) byteSource {
	return byteSource{bytes.NewReader(data)}
}

func (byteSource) Close() error { return nil }

func clampDuration(t, max time.Duration) time.Duration {
	if t < 0 {
		return 0
	}
	if t > max {
		return max
	}
	return t
}
