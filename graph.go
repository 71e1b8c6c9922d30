package main

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Graph is the platform audio output. Exactly one is constructed per running
// application and handed to the Engine at startup; tests substitute a fake.
type Graph interface {
	// Init prepares the output device at the given sample rate.
	Init(rate beep.SampleRate, bufferSize int) error
	// Play starts streaming the given streamers, mixed over whatever is
	// already playing.
	Play(s ...beep.Streamer)
	// Clear drops every playing streamer.
	Clear()
	// Lock and Unlock guard reads and writes of streamers the graph is
	// actively pulling from.
	Lock()
	Unlock()
}

// SpeakerGraph drives the real audio device through beep's speaker package.
// The speaker is process-wide, which is why the Graph handle is a singleton
// rather than a per-engine resource.
type SpeakerGraph struct {
	inited bool
}

// NewSpeakerGraph returns an uninitialized speaker graph.
func NewSpeakerGraph() *SpeakerGraph {
	return &SpeakerGraph{}
}

func (g *SpeakerGraph) Init(rate beep.SampleRate, bufferSize int) error {
	if g.inited {
		return nil
	}
	if err := speaker.Init(rate, bufferSize); err != nil {
		return fmt.Errorf("speaker init: %w", err)
	}
	g.inited = true
	return nil
}

func (g *SpeakerGraph) Play(s ...beep.Streamer) { speaker.Play(s...) }

func (g *SpeakerGraph) Clear() { speaker.Clear() }

func (g *SpeakerGraph) Lock() { speaker.Lock() }

func (g *SpeakerGraph) Unlock() { speaker.Unlock() }

// graphBufferLen is the speaker buffer duration. A tenth of a second keeps
// control latency low without audible dropouts.
const graphBufferLen = time.Second / 10
