package match

// DefaultPrevailCount is how many redraws a dead-player marker survives.
const DefaultPrevailCount = 5

// DeadMarker is a fading "killed" marker at a death position.
type DeadMarker struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	PrevailCount int     `json:"prevail_count"`
}

// Alpha is the draw opacity, proportional to the remaining count.
func (m DeadMarker) Alpha() float64 {
	a := 0.2 * float64(m.PrevailCount)
	if a > 1 {
		return 1
	}
	return a
}

// DecayTracker ages dead-player markers once per redraw.
// It is not safe for concurrent use; Store serializes access to it.
type DecayTracker struct {
	markers []DeadMarker
	prevail int
}

// NewDecayTracker creates a tracker whose markers live for prevail redraws.
func NewDecayTracker(prevail int) *DecayTracker {
	if prevail <= 0 {
		prevail = DefaultPrevailCount
	}
	return &DecayTracker{prevail: prevail}
}

// RegisterDeath adds a marker at (x, y) with a full count.
func (d *DecayTracker) RegisterDeath(x, y float64) {
	d.markers = append(d.markers, DeadMarker{X: x, Y: y, PrevailCount: d.prevail})
}

// Tick decrements every marker and removes those that reach zero.
// Returns the number of markers removed.
func (d *DecayTracker) Tick() int {
	kept := d.markers[:0]
	for _, m := range d.markers {
		m.PrevailCount--
		if m.PrevailCount > 0 {
			kept = append(kept, m)
		}
	}
	removed := len(d.markers) - len(kept)
	// Clear the tail so dropped markers don't linger in the backing array
	for i := len(kept); i < len(d.markers); i++ {
		d.markers[i] = DeadMarker{}
	}
	d.markers = kept
	return removed
}

// Markers returns a copy of the live markers.
func (d *DecayTracker) Markers() []DeadMarker {
	out := make([]DeadMarker, len(d.markers))
	copy(out, d.markers)
	return out
}
