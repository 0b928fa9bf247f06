package ui

import (
	"github.com/pkg/errors"
)

// ErrQueueFull is returned when the overlay loop is not keeping up with UI input.
var ErrQueueFull = errors.New("ui event queue full")

// Event is one user action. Events are applied in arrival order by the overlay loop.
type Event interface {
	isEvent()
}

// ToggleEvent switches a named toggle.
type ToggleEvent struct {
	Name string
	On   bool
}

// SelectPlayerEvent changes the player dropdown selection.
type SelectPlayerEvent struct {
	Index int
}

// RotateEvent rotates the scene by Delta degrees (rotate-left/right buttons).
type RotateEvent struct {
	Delta float64
}

// ResetRotationEvent clears the scene rotation (reset button).
type ResetRotationEvent struct{}

// SelectMapEvent switches the base map.
type SelectMapEvent struct {
	Name string
}

func (ToggleEvent) isEvent()        {}
func (SelectPlayerEvent) isEvent()  {}
func (RotateEvent) isEvent()        {}
func (ResetRotationEvent) isEvent() {}
func (SelectMapEvent) isEvent()     {}

// DefaultQueueSize bounds pending UI events.
const DefaultQueueSize = 64

// Queue is the single input queue between UI handlers and the overlay loop.
type Queue struct {
	ch chan Event
}

// NewQueue creates a queue holding up to size pending events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Event, size)}
}

// Push enqueues ev without blocking.
func (q *Queue) Push(ev Event) error {
	select {
	case q.ch <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// C is the receive side for the overlay loop.
func (q *Queue) C() <-chan Event {
	return q.ch
}

// Drain removes every pending event without blocking.
func (q *Queue) Drain() []Event {
	var events []Event
	for {
		select {
		case ev := <-q.ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}
