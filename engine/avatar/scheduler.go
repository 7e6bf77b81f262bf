package avatar

import (
	"fmt"
	"sync"
	"time"
)

// Phase is the playback state of an animated key.
type Phase int

const (
	// PhaseUninitialized means no PlaybackState exists for the key yet.
	PhaseUninitialized Phase = iota

	// PhaseWarmup means every frame is being pushed through the renderer once, one per query.
	PhaseWarmup

	// PhasePlaying means frames advance by elapsed time.
	PhasePlaying
)

// String returns the lowercase name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseWarmup:
		return "warmup"
	case PhasePlaying:
		return "playing"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// PlaybackState is the mutable playback position of one animated key.
// While WarmedUp is false CurrentFrame does not move with time.
type PlaybackState struct {
	CurrentFrame int
	LastAdvance  time.Time
	WarmedUp     bool
	WarmupCursor int
}

// Phase returns the phase this state is in.
func (s PlaybackState) Phase() Phase {
	if s.WarmedUp {
		return PhasePlaying
	}
	return PhaseWarmup
}

// Tick is the outcome of one scheduler query.
type Tick struct {
	// Frame is the index to display.
	Frame int

	// Warm is the index warmed by this query, or -1 outside warmup.
	Warm int

	// Phase is the phase the query ran in.
	Phase Phase

	// WarmupDone is true on the query that completed warmup.
	WarmupDone bool
}

// scheduler owns the PlaybackState of every animated key.
type scheduler struct {
	mu sync.Mutex

	states map[Key]*PlaybackState
}

func newScheduler() *scheduler {
	return &scheduler{
		mu:     sync.Mutex{},
		states: make(map[Key]*PlaybackState),
	}
}

// seed creates a fresh state for key unless one already exists.
// It reports whether a state was created.
func (s *scheduler) seed(key Key, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[key]; ok {
		return false
	}
	s.states[key] = &PlaybackState{LastAdvance: now}
	return true
}

// advance runs one query against the state of key.
// During warmup the cursor moves by exactly one; once it reaches len(delays) the state
// switches to playing with frame 0 and LastAdvance reset to now. While playing the frame
// advances by at most one when its delay has elapsed.
func (s *scheduler) advance(key Key, delays []time.Duration, now time.Time) (Tick, bool) {
	n := len(delays)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[key]
	if !ok || n == 0 {
		return Tick{Warm: -1, Phase: PhaseUninitialized}, false
	}

	if !st.WarmedUp {
		warm := st.WarmupCursor
		st.WarmupCursor++
		tick := Tick{Frame: st.CurrentFrame, Warm: warm % n, Phase: PhaseWarmup}
		if st.WarmupCursor >= n {
			st.WarmedUp = true
			st.CurrentFrame = 0
			st.LastAdvance = now
			tick.WarmupDone = true
		}
		return tick, true
	}

	st.CurrentFrame %= n
	if now.Sub(st.LastAdvance) >= delays[st.CurrentFrame] {
		st.CurrentFrame = (st.CurrentFrame + 1) % n
		st.LastAdvance = now
	}
	return Tick{Frame: st.CurrentFrame, Warm: -1, Phase: PhasePlaying}, true
}

// state returns a copy of the state of key.
func (s *scheduler) state(key Key) (PlaybackState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		return PlaybackState{}, false
	}
	return *st, true
}

// counts returns how many keys are in warmup and how many are playing.
func (s *scheduler) counts() (warming, playing int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st.WarmedUp {
			playing++
		} else {
			warming++
		}
	}
	return warming, playing
}
