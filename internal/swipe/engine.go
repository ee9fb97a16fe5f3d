// Package swipe implements the interaction engine behind the swipe screen:
// a cursor over a feed plus a drag state machine that turns pointer
// gestures into like/reject decisions.
//
// An Engine has a single owner. It is not safe for concurrent use; callers
// that share one across goroutines must serialize access.
package swipe

import (
	"math"
	"time"

	"github.com/kalambet/creatorswipe/internal/feed"
	"github.com/kalambet/creatorswipe/internal/profile"
)

// restWindow is how long, in milliseconds, the pointer may stay still
// before release without the pause being counted.
const restWindow = 32

type sample struct {
	x, y, t float64
}

// Engine tracks the cursor and drag state for one browsing session.
type Engine struct {
	feed      feed.Feed
	cursor    int
	exhausted bool

	state  DragState
	origin sample
	prev   sample
	last   sample

	threshold float64
	policy    EndPolicy
	sink      Sink
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold sets the release velocity a gesture must exceed to swipe.
// Non-positive values are ignored.
func WithThreshold(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.threshold = v
		}
	}
}

// WithEndPolicy sets the behaviour after the last record.
func WithEndPolicy(p EndPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock sets the time source used to stamp decision events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine positioned on the first record of f. sink may be nil.
func New(f feed.Feed, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		feed:      f,
		threshold: DefaultVelocityThreshold,
		policy:    Wrap,
		sink:      sink,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Len returns the number of records in the feed.
func (e *Engine) Len() int { return len(e.feed) }

// Threshold returns the configured swipe velocity threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// Current returns the record under the cursor. ok is false when the feed is
// empty or, under the Stop policy, exhausted.
func (e *Engine) Current() (r profile.Record, ok bool) {
	if len(e.feed) == 0 || e.exhausted {
		return profile.Record{}, false
	}
	return e.feed[e.cursor], true
}

// Cursor returns the cursor position; ok is false for an empty feed.
func (e *Engine) Cursor() (int, bool) {
	if len(e.feed) == 0 {
		return 0, false
	}
	return e.cursor, true
}

// State returns the current drag state.
func (e *Engine) State() DragState { return e.state }

// Exhausted reports whether the Stop policy has reached the end of the feed.
func (e *Engine) Exhausted() bool { return e.exhausted }

// Offset returns the visual displacement of the current card. It is zero
// whenever the engine is idle.
func (e *Engine) Offset() Offset {
	if e.state != Dragging {
		return Offset{}
	}
	dx := e.last.x - e.origin.x
	dy := e.last.y - e.origin.y
	return Offset{X: dx, Y: dy, Rotation: dx / rotationDivisor}
}

// Snapshot returns a presentation view of the engine. Cursor is -1 for an
// empty feed.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Cursor:    -1,
		Total:     len(e.feed),
		Dragging:  e.state == Dragging,
		Offset:    e.Offset(),
		Exhausted: e.exhausted,
	}
	if c, ok := e.Cursor(); ok {
		s.Cursor = c
	}
	if r, ok := e.Current(); ok {
		r = r.Clone()
		s.Current = &r
	}
	return s
}

// SetFeed replaces the feed, e.g. after local records change or a fetch
// completes. The cursor is kept when still in range and reset to 0
// otherwise. An active drag is cancelled. If the engine was exhausted and
// the new feed extends past the cursor, browsing resumes on the next record.
func (e *Engine) SetFeed(f feed.Feed) {
	e.feed = f
	e.state = Idle
	switch {
	case len(f) == 0:
		e.cursor = 0
		e.exhausted = false
	case e.cursor >= len(f):
		e.cursor = 0
		e.exhausted = false
	case e.exhausted && e.cursor+1 < len(f):
		e.cursor++
		e.exhausted = false
	}
}

// Reset moves the cursor back to the first record and cancels any drag.
func (e *Engine) Reset() {
	e.cursor = 0
	e.exhausted = false
	e.state = Idle
}

// Handle dispatches a gesture event to Start, Move or End.
func (e *Engine) Handle(g Gesture) (Outcome, error) {
	switch g.Type {
	case GestureStart:
		return Outcome{}, e.Start(g.X, g.Y, g.T)
	case GestureMove:
		e.Move(g.X, g.Y, g.T)
		return Outcome{}, nil
	case GestureEnd:
		return e.End(g.X, g.Y, g.T, g.Velocity)
	}
	return Outcome{}, ErrUnknownGesture
}

// Start begins a drag at (x, y). Starting while already dragging restarts
// the gesture from the new position.
func (e *Engine) Start(x, y, t float64) error {
	if _, ok := e.Current(); !ok {
		return e.unavailable()
	}
	s := sample{x: x, y: y, t: t}
	e.state = Dragging
	e.origin, e.prev, e.last = s, s, s
	return nil
}

// Move updates the cumulative displacement. It is ignored while idle.
func (e *Engine) Move(x, y, t float64) {
	if e.state != Dragging {
		return
	}
	e.push(sample{x: x, y: y, t: t})
}

// End releases the drag. If the release velocity exceeds the threshold the
// gesture becomes a decision in its horizontal direction; otherwise the
// offset snaps back and nothing else changes. velocity <= 0 means "derive it
// from the samples". End while idle is a no-op.
func (e *Engine) End(x, y, t, velocity float64) (Outcome, error) {
	if e.state != Dragging {
		return Outcome{}, nil
	}
	// A release after the pointer rested in place counts the rest, so the
	// derived velocity falls to zero instead of replaying the last move.
	if x != e.last.x || y != e.last.y || t-e.last.t > restWindow {
		e.push(sample{x: x, y: y, t: t})
	}
	if velocity <= 0 {
		velocity = e.releaseVelocity()
	}
	dir := e.direction()
	e.state = Idle

	out := Outcome{Velocity: velocity}
	if velocity <= e.threshold {
		return out, nil
	}

	d := Like
	if dir < 0 {
		d = Reject
	}
	ev, err := e.decide(d)
	if err != nil {
		return out, err
	}
	out.Swiped = true
	out.Event = &ev
	return out, nil
}

// Like records a like for the current record and advances the cursor.
func (e *Engine) Like() (DecisionEvent, error) {
	return e.explicit(Like)
}

// Reject records a reject for the current record and advances the cursor.
func (e *Engine) Reject() (DecisionEvent, error) {
	return e.explicit(Reject)
}

// Decide applies d as if the matching button had been pressed.
func (e *Engine) Decide(d Decision) (DecisionEvent, error) {
	return e.explicit(d)
}

func (e *Engine) explicit(d Decision) (DecisionEvent, error) {
	if e.state == Dragging {
		return DecisionEvent{}, ErrGestureActive
	}
	return e.decide(d)
}

func (e *Engine) decide(d Decision) (DecisionEvent, error) {
	r, ok := e.Current()
	if !ok {
		return DecisionEvent{}, e.unavailable()
	}
	ev := DecisionEvent{
		ProfileID: string(r.ID),
		Decision:  d,
		At:        e.now().UTC(),
	}
	if e.sink != nil {
		e.sink.Deliver(ev)
	}
	e.advance()
	return ev, nil
}

func (e *Engine) advance() {
	if e.cursor < len(e.feed)-1 {
		e.cursor++
		return
	}
	if e.policy == Stop {
		e.exhausted = true
		return
	}
	e.cursor = 0
}

func (e *Engine) unavailable() error {
	if e.exhausted {
		return ErrFeedExhausted
	}
	return ErrNoProfile
}

func (e *Engine) push(s sample) {
	e.prev = e.last
	e.last = s
}

// releaseVelocity is the speed of the last movement segment, falling back
// to the average over the whole gesture when that segment has no duration.
func (e *Engine) releaseVelocity() float64 {
	if dt := e.last.t - e.prev.t; dt > 0 {
		return distance(e.prev, e.last) / dt
	}
	if dt := e.last.t - e.origin.t; dt > 0 {
		return distance(e.origin, e.last) / dt
	}
	return 0
}

// direction is the sign of the last horizontal movement, or of the total
// horizontal displacement when the last segment was purely vertical.
func (e *Engine) direction() float64 {
	if dx := e.last.x - e.prev.x; dx != 0 {
		return dx
	}
	return e.last.x - e.origin.x
}

func distance(a, b sample) float64 {
	return math.Hypot(b.x-a.x, b.y-a.y)
}
