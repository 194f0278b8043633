package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// timerKind names the three single-shot timers a venue can hold. Arming a
// kind replaces any pending timer of the same kind for that venue.
type timerKind int

const (
	timerRollAnimation timerKind = iota
	timerQuestion
	timerResults
)

func (k timerKind) String() string {
	switch k {
	case timerRollAnimation:
		return "roll_animation"
	case timerQuestion:
		return "question"
	case timerResults:
		return "results"
	default:
		return "unknown"
	}
}

type timerKey struct {
	venueID string
	kind    timerKind
}

type scheduledTimer struct {
	timer clockwork.Timer
	done  chan struct{}
}

// timerSet schedules cancellable one-shot timers keyed by (venue, kind).
// Fired timers call back into the engine by posting a command; they never
// mutate state themselves.
type timerSet struct {
	clock clockwork.Clock

	mu     sync.Mutex
	active map[timerKey]*scheduledTimer
}

func newTimerSet(clock clockwork.Clock) *timerSet {
	return &timerSet{
		clock:  clock,
		active: make(map[timerKey]*scheduledTimer),
	}
}

// schedule arms a timer, replacing any pending timer with the same key.
func (ts *timerSet) schedule(key timerKey, d time.Duration, fire func()) {
	st := &scheduledTimer{
		timer: ts.clock.NewTimer(d),
		done:  make(chan struct{}),
	}

	ts.mu.Lock()
	if prev, exists := ts.active[key]; exists {
		stopAndDrainTimer(prev.timer)
		close(prev.done)
		log.Debug().Str("venue_id", key.venueID).Str("kind", key.kind.String()).Msg("replaced pending timer")
	}
	ts.active[key] = st
	ts.mu.Unlock()

	go func() {
		select {
		case <-st.timer.Chan():
			ts.remove(key, st)
			fire()
		case <-st.done:
		}
	}()

	log.Debug().
		Str("venue_id", key.venueID).
		Str("kind", key.kind.String()).
		Dur("duration", d).
		Msg("armed one-shot timer")
}

// cancel stops a pending timer. Cancelling an absent key is a no-op.
func (ts *timerSet) cancel(key timerKey) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if st, exists := ts.active[key]; exists {
		stopAndDrainTimer(st.timer)
		close(st.done)
		delete(ts.active, key)
		log.Debug().Str("venue_id", key.venueID).Str("kind", key.kind.String()).Msg("cancelled timer")
	}
}

// cancelVenue stops every pending timer for a venue. Used on reset.
func (ts *timerSet) cancelVenue(venueID string) {
	for _, kind := range []timerKind{timerRollAnimation, timerQuestion, timerResults} {
		ts.cancel(timerKey{venueID: venueID, kind: kind})
	}
}

// remove drops a fired timer from the active map, unless it was already
// replaced by a newer one.
func (ts *timerSet) remove(key timerKey, st *scheduledTimer) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.active[key] == st {
		delete(ts.active, key)
	}
}

// stopAndDrainTimer stops a timer and drains its channel so no stale fire
// is observed later, per the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
