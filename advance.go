package main

import "math/rand"

// LoopMode controls what happens when a track finishes naturally.
type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopOne
	LoopAll
)

func (m LoopMode) String() string {
	switch m {
	case LoopOne:
		return "one"
	case LoopAll:
		return "all"
	default:
		return "off"
	}
}

// ParseLoopMode maps a config string to a LoopMode, defaulting to off.
func ParseLoopMode(s string) LoopMode {
	switch s {
	case "one":
		return LoopOne
	case "all":
		return LoopAll
	default:
		return LoopOff
	}
}

// ActionKind is the terminal decision of the advancement logic.
type ActionKind int

const (
	ActionStop ActionKind = iota
	ActionReplay
	ActionAdvance
)

// Action is what the playlist should do after a track ends: replay the
// current index, advance to Index, or stop. Exactly one is chosen per
// invocation.
type Action struct {
	Kind  ActionKind
	Index int
}

// ShuffleHistory records the indices visited while shuffle is active, with a
// cursor for stable back/forward navigation. It exists only while shuffle is
// on; toggling shuffle off discards it.
type ShuffleHistory struct {
	visited []int
	cursor  int
}

// NewShuffleHistory starts a history at the given index, or empty when the
// index is out of range.
func NewShuffleHistory(current int) *ShuffleHistory {
	h := &ShuffleHistory{cursor: -1}
	if current >= 0 {
		h.visited = []int{current}
		h.cursor = 0
	}
	return h
}

// Forward returns the next recorded index when the cursor is not at the end
// of history yet.
func (h *ShuffleHistory) Forward() (int, bool) {
	if h == nil || h.cursor+1 >= len(h.visited) {
		return 0, false
	}
	h.cursor++
	return h.visited[h.cursor], true
}

// Back returns the previously visited index, if any.
func (h *ShuffleHistory) Back() (int, bool) {
	if h == nil || h.cursor <= 0 {
		return 0, false
	}
	h.cursor--
	return h.visited[h.cursor], true
}

// Push appends a freshly drawn index at the cursor, truncating any forward
// tail so the history stays a single timeline.
func (h *ShuffleHistory) Push(index int) {
	if h == nil {
		return
	}
	h.visited = append(h.visited[:h.cursor+1], index)
	h.cursor = len(h.visited) - 1
}

// Drop removes every occurrence of index from the history, keeping the
// cursor on the entry it pointed at. Used when a track is removed from the
// playlist.
func (h *ShuffleHistory) Drop(index int) {
	if h == nil {
		return
	}
	kept := h.visited[:0]
	cursor := h.cursor
	for i, v := range h.visited {
		if v == index {
			if i <= h.cursor {
				cursor--
			}
			continue
		}
		if v > index {
			v--
		}
		kept = append(kept, v)
	}
	h.visited = kept
	if cursor >= len(h.visited) {
		cursor = len(h.visited) - 1
	}
	h.cursor = cursor
}

// NextAction decides what plays after the current source finishes naturally.
// hist and rng are consulted only when shuffle is on.
func NextAction(length, current int, mode LoopMode, shuffle bool, hist *ShuffleHistory, rng *rand.Rand) Action {
	if length == 0 {
		return Action{Kind: ActionStop}
	}
	if mode == LoopOne {
		return Action{Kind: ActionReplay, Index: current}
	}
	if shuffle {
		if length == 1 && mode == LoopOff {
			return Action{Kind: ActionStop}
		}
		if next, ok := hist.Forward(); ok {
			return Action{Kind: ActionAdvance, Index: next}
		}
		next := drawShuffleIndex(length, current, rng)
		hist.Push(next)
		return Action{Kind: ActionAdvance, Index: next}
	}
	if current+1 < length {
		return Action{Kind: ActionAdvance, Index: current + 1}
	}
	if mode == LoopAll {
		return Action{Kind: ActionAdvance, Index: 0}
	}
	return Action{Kind: ActionStop}
}

// drawShuffleIndex picks a random index distinct from current. With a single
// track the only choice is that track; with no current selection every index
// is a candidate.
func drawShuffleIndex(length, current int, rng *rand.Rand) int {
	if length == 1 {
		return 0
	}
	if current < 0 || current >= length {
		return rng.Intn(length)
	}
	next := rng.Intn(length - 1)
	if next >= current {
		next++
	}
	return next
}
