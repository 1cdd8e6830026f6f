package orchestrate

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdplatform/graphload/core"
)

// Snapshot is a point-in-time view of run progress. Completed counts every
// terminal decision, including skips.
type Snapshot struct {
	Total       int64
	Completed   int64
	Succeeded   int64
	Skipped     int64
	Quarantined int64
	CurrentLane int
	StartedAt   time.Time
}

// tracker accumulates run progress with atomic counters so workers never
// contend on a lock for bookkeeping.
type tracker struct {
	total       atomic.Int64
	succeeded   atomic.Int64
	skipped     atomic.Int64
	quarantined atomic.Int64
	currentLane atomic.Int64
	startedAt   time.Time
}

func (t *tracker) snapshot() Snapshot {
	s := Snapshot{
		Total:       t.total.Load(),
		Succeeded:   t.succeeded.Load(),
		Skipped:     t.skipped.Load(),
		Quarantined: t.quarantined.Load(),
		CurrentLane: int(t.currentLane.Load()),
		StartedAt:   t.startedAt,
	}
	s.Completed = s.Succeeded + s.Skipped + s.Quarantined
	return s
}

// Observer receives progress callbacks during a run. Callbacks may arrive
// from multiple goroutines; implementations must be thread-safe. Callbacks
// must not block: they run on the submission path.
type Observer interface {
	// EpisodeDone is called after each episode reaches a terminal decision.
	EpisodeDone(identity core.Identity, status core.Status, attempts int)

	// LaneDone is called after a lane's barrier, before the next lane starts.
	LaneDone(outcome core.LaneOutcome)
}

// CollectingObserver is an Observer that records every callback. Intended
// for tests and for the CLI's end-of-run summary.
type CollectingObserver struct {
	mu       sync.Mutex
	episodes []EpisodeEvent
	lanes    []core.LaneOutcome
}

// EpisodeEvent is one recorded EpisodeDone callback.
type EpisodeEvent struct {
	Identity core.Identity
	Status   core.Status
	Attempts int
}

var _ Observer = (*CollectingObserver)(nil)

func (o *CollectingObserver) EpisodeDone(identity core.Identity, status core.Status, attempts int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.episodes = append(o.episodes, EpisodeEvent{Identity: identity, Status: status, Attempts: attempts})
}

func (o *CollectingObserver) LaneDone(outcome core.LaneOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lanes = append(o.lanes, outcome)
}

// Episodes returns the recorded episode events in callback order.
func (o *CollectingObserver) Episodes() []EpisodeEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]EpisodeEvent, len(o.episodes))
	copy(out, o.episodes)
	return out
}

// Lanes returns the recorded lane outcomes in callback order.
func (o *CollectingObserver) Lanes() []core.LaneOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.LaneOutcome, len(o.lanes))
	copy(out, o.lanes)
	return out
}
