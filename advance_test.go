package main

import (
	"math/rand"
	"testing"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

func TestNextActionEmptyPlaylist(t *testing.T) {
	for _, mode := range []LoopMode{LoopOff, LoopOne, LoopAll} {
		for _, shuffle := range []bool{false, true} {
			a := NextAction(0, -1, mode, shuffle, NewShuffleHistory(-1), testRand())
			if a.Kind != ActionStop {
				t.Errorf("mode=%v shuffle=%v: got %v, want stop", mode, shuffle, a.Kind)
			}
		}
	}
}

func TestNextActionLoopOneAlwaysReplays(t *testing.T) {
	for _, shuffle := range []bool{false, true} {
		for _, current := range []int{0, 2, 4} {
			a := NextAction(5, current, LoopOne, shuffle, NewShuffleHistory(current), testRand())
			if a.Kind != ActionReplay || a.Index != current {
				t.Errorf("shuffle=%v current=%d: got %+v, want replay %d", shuffle, current, a, current)
			}
		}
	}
}

func TestNextActionSequentialAdvance(t *testing.T) {
	for current := 0; current < 4; current++ {
		a := NextAction(5, current, LoopOff, false, nil, testRand())
		if a.Kind != ActionAdvance || a.Index != current+1 {
			t.Errorf("current=%d: got %+v, want advance %d", current, a, current+1)
		}
	}
}

func TestNextActionLastTrackStops(t *testing.T) {
	a := NextAction(5, 4, LoopOff, false, nil, testRand())
	if a.Kind != ActionStop {
		t.Errorf("got %+v, want stop", a)
	}
}

func TestNextActionLoopAllWrapsAround(t *testing.T) {
	a := NextAction(5, 4, LoopAll, false, nil, testRand())
	if a.Kind != ActionAdvance || a.Index != 0 {
		t.Errorf("got %+v, want advance 0", a)
	}
}

func TestNextActionSingleTrackLoopAllReplaysViaWrap(t *testing.T) {
	// loop=all with one track advances back to index 0, not stop.
	a := NextAction(1, 0, LoopAll, false, nil, testRand())
	if a.Kind != ActionAdvance || a.Index != 0 {
		t.Errorf("got %+v, want advance 0", a)
	}
}

func TestNextActionSingleTrackShuffleStops(t *testing.T) {
	a := NextAction(1, 0, LoopOff, true, NewShuffleHistory(0), testRand())
	if a.Kind != ActionStop {
		t.Errorf("got %+v, want stop", a)
	}
}

func TestNextActionShufflePicksDistinctIndex(t *testing.T) {
	rng := testRand()
	for i := 0; i < 50; i++ {
		hist := NewShuffleHistory(2)
		a := NextAction(5, 2, LoopOff, true, hist, rng)
		if a.Kind != ActionAdvance {
			t.Fatalf("got %+v, want advance", a)
		}
		if a.Index == 2 {
			t.Fatalf("shuffle drew the current index")
		}
		if a.Index < 0 || a.Index >= 5 {
			t.Fatalf("shuffle drew out-of-range index %d", a.Index)
		}
	}
}

func TestDrawShuffleNoSelectionCoversAllIndices(t *testing.T) {
	rng := testRand()
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		idx := drawShuffleIndex(3, -1, rng)
		if idx < 0 || idx >= 3 {
			t.Fatalf("out-of-range index %d", idx)
		}
		seen[idx] = true
	}
	// With no current selection every index, including 0, must be drawable.
	for want := 0; want < 3; want++ {
		if !seen[want] {
			t.Errorf("index %d never drawn", want)
		}
	}
}

func TestNextActionShuffleConsultsHistoryFirst(t *testing.T) {
	// Walk forward, step back, and confirm the next advance replays the
	// recorded index instead of drawing a fresh one.
	hist := NewShuffleHistory(0)
	rng := testRand()

	a1 := NextAction(6, 0, LoopOff, true, hist, rng)
	a2 := NextAction(6, a1.Index, LoopOff, true, hist, rng)

	back, ok := hist.Back()
	if !ok || back != a1.Index {
		t.Fatalf("Back() = %d,%v, want %d,true", back, ok, a1.Index)
	}

	again := NextAction(6, back, LoopOff, true, hist, rng)
	if again.Kind != ActionAdvance || again.Index != a2.Index {
		t.Errorf("forward after back = %+v, want advance %d", again, a2.Index)
	}
}

func TestShuffleHistoryPushTruncatesForwardTail(t *testing.T) {
	hist := NewShuffleHistory(0)
	hist.Push(3)
	hist.Push(1)
	hist.Back()
	hist.Back()
	hist.Push(4)

	if got, ok := hist.Forward(); ok {
		t.Errorf("Forward after truncating push = %d, want none", got)
	}
	if back, ok := hist.Back(); !ok || back != 0 {
		t.Errorf("Back = %d,%v, want 0,true", back, ok)
	}
}

func TestShuffleHistoryDropShiftsIndices(t *testing.T) {
	hist := NewShuffleHistory(0)
	hist.Push(2)
	hist.Push(4)

	hist.Drop(2)

	// 0 stays, 4 shifts down to 3, cursor still points at the last entry.
	if back, ok := hist.Back(); !ok || back != 0 {
		t.Errorf("Back after drop = %d,%v, want 0,true", back, ok)
	}
	if next, ok := hist.Forward(); !ok || next != 3 {
		t.Errorf("Forward after drop = %d,%v, want 3,true", next, ok)
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		in   string
		want LoopMode
	}{
		{"off", LoopOff},
		{"one", LoopOne},
		{"all", LoopAll},
		{"bogus", LoopOff},
		{"", LoopOff},
	}
	for _, tt := range tests {
		if got := ParseLoopMode(tt.in); got != tt.want {
			t.Errorf("ParseLoopMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
