package swipe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/creatorswipe/internal/profile"
)

// DefaultVelocityThreshold is the release velocity (distance units per
// millisecond) a gesture must exceed to count as a swipe.
const DefaultVelocityThreshold = 0.2

// rotationDivisor maps horizontal drag offset to card rotation in degrees.
const rotationDivisor = 10

var (
	// ErrNoProfile is returned when a decision or gesture needs a current
	// record but the feed is empty.
	ErrNoProfile = errors.New("no current profile")
	// ErrGestureActive is returned for an explicit decision while a drag is in progress.
	ErrGestureActive = errors.New("gesture in progress")
	// ErrFeedExhausted is returned under the Stop policy once every record has been decided.
	ErrFeedExhausted = errors.New("no more profiles")
	// ErrUnknownGesture is returned by Handle for an unrecognised event type.
	ErrUnknownGesture = errors.New("unknown gesture type")
)

// Decision is the outcome of a swipe or button action.
type Decision string

const (
	Like   Decision = "like"
	Reject Decision = "reject"
)

// ParseDecision accepts "like" or "reject" in any case.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(s))) {
	case Like:
		return Like, nil
	case Reject:
		return Reject, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// DecisionEvent is emitted exactly once per decision.
type DecisionEvent struct {
	ProfileID string    `json:"profileId"`
	Decision  Decision  `json:"decision"`
	At        time.Time `json:"at"`
}

// Sink receives decision events. Delivery is fire-and-forget: the engine
// neither waits for nor retries a sink.
type Sink interface {
	Deliver(ev DecisionEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev DecisionEvent)

func (f SinkFunc) Deliver(ev DecisionEvent) { f(ev) }

// DragState is the gesture half of the engine state.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// EndPolicy decides what happens after a decision on the last record.
type EndPolicy int

const (
	// Wrap restarts at the first record.
	Wrap EndPolicy = iota
	// Stop keeps the cursor on the last record and reports the feed as exhausted.
	Stop
)

func (p EndPolicy) String() string {
	if p == Stop {
		return "stop"
	}
	return "wrap"
}

// ParseEndPolicy accepts "wrap" or "stop".
func ParseEndPolicy(s string) (EndPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wrap":
		return Wrap, nil
	case "stop":
		return Stop, nil
	}
	return Wrap, fmt.Errorf("unknown end policy %q (want wrap or stop)", s)
}

// Offset is the presentational card displacement. It carries no decision.
type Offset struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// GestureType names the phase of a pointer interaction.
type GestureType string

const (
	GestureStart GestureType = "start"
	GestureMove  GestureType = "move"
	GestureEnd   GestureType = "end"
)

// Gesture is one pointer event. T is a timestamp in milliseconds on any
// monotonic scale. Velocity, when positive, is taken as the release velocity
// of an end event instead of deriving it from the samples.
type Gesture struct {
	Type     GestureType `json:"type"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	T        float64     `json:"t"`
	Velocity float64     `json:"velocity,omitempty"`
}

// Outcome reports what a gesture end produced.
type Outcome struct {
	Swiped   bool           `json:"swiped"`
	Velocity float64        `json:"velocity"`
	Event    *DecisionEvent `json:"event,omitempty"`
}

// Snapshot is a read-only view of the engine for presentation.
type Snapshot struct {
	Cursor    int             `json:"cursor"`
	Total     int             `json:"total"`
	Current   *profile.Record `json:"current,omitempty"`
	Dragging  bool            `json:"dragging"`
	Offset    Offset          `json:"offset"`
	Exhausted bool            `json:"exhausted"`
}
