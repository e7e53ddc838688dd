package events

import (
	"context"
	"sync"
)

// Recorder is an EventHandler that keeps every event it receives, in
// arrival order. It is used to reconstruct and assert on batch timelines.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// HandleEvent implements EventHandler.
func (r *Recorder) HandleEvent(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of the given kind.
func (r *Recorder) OfKind(kind Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// ForItem returns the recorded events of a single item.
func (r *Recorder) ForItem(itemID string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.ItemID == itemID {
			out = append(out, ev)
		}
	}
	return out
}

// Count returns how many events of the given kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	return len(r.OfKind(kind))
}

// MaxActive returns the highest Active value among attempt-started events.
func (r *Recorder) MaxActive() int {
	peak := 0
	for _, ev := range r.OfKind(KindAttemptStarted) {
		if ev.Active > peak {
			peak = ev.Active
		}
	}
	return peak
}
