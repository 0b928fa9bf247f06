// Package ui holds the spectator's control state (toggles, selected player, map)
// and the queue that feeds UI events into the overlay loop.
package ui

import (
	"sort"
	"sync"

	"spike-overlay/internal/assets"

	"github.com/pkg/errors"
)

// Toggle names
const (
	ToggleOrientation = "orientation_toggle"
	ToggleLabel       = "label_toggle"
	ToggleDormant     = "dormant_player_toggle"
	TogglePlayerTable = "player_info_table_toggle"
)

var (
	ErrUnknownToggle = errors.New("unknown toggle")
	ErrInvalidIndex  = errors.New("invalid player index")
)

// Rotator is the scene rotation owner.
type Rotator interface {
	AddRotation(delta float64) float64
	SetRotation(degrees float64)
}

// State is a copy of the controls for display.
type State struct {
	Toggles  map[string]bool `json:"toggles"`
	Selected int             `json:"selected"`
	Map      string          `json:"map"`
}

// Controls is the toggle/selection state read by the render pipeline.
type Controls struct {
	mu       sync.RWMutex
	toggles  map[string]bool
	selected int
	mapName  string
}

// NewControls creates controls with every toggle off and player 0 selected.
func NewControls(defaultMap string) *Controls {
	return &Controls{
		toggles: map[string]bool{
			ToggleOrientation: false,
			ToggleLabel:       false,
			ToggleDormant:     false,
			TogglePlayerTable: false,
		},
		mapName: defaultMap,
	}
}

// ToggleState reports whether the named toggle is on. Unknown names are off.
func (c *Controls) ToggleState(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.toggles[name]
}

// SetToggle switches a named toggle.
func (c *Controls) SetToggle(name string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.toggles[name]; !ok {
		return errors.Wrapf(ErrUnknownToggle, "%q", name)
	}
	c.toggles[name] = on
	return nil
}

// SelectedIndex is the player dropdown selection, an index into the draw order.
func (c *Controls) SelectedIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// Select changes the selected player index.
func (c *Controls) Select(index int) error {
	if index < 0 {
		return errors.Wrapf(ErrInvalidIndex, "%d", index)
	}
	c.mu.Lock()
	c.selected = index
	c.mu.Unlock()
	return nil
}

// MapName is the selected base map.
func (c *Controls) MapName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mapName
}

// SetMap selects a base map by name.
func (c *Controls) SetMap(name string) error {
	key, err := assets.Map(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.mapName = key.Name()
	c.mu.Unlock()
	return nil
}

// ToggleNames lists the known toggles, sorted.
func (c *Controls) ToggleNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.toggles))
	for name := range c.toggles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State returns a copy of the controls.
func (c *Controls) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	toggles := make(map[string]bool, len(c.toggles))
	for k, v := range c.toggles {
		toggles[k] = v
	}
	return State{Toggles: toggles, Selected: c.selected, Map: c.mapName}
}

// Apply performs ev against the controls and the scene rotation.
func (c *Controls) Apply(ev Event, rot Rotator) error {
	switch e := ev.(type) {
	case ToggleEvent:
		return c.SetToggle(e.Name, e.On)
	case SelectPlayerEvent:
		return c.Select(e.Index)
	case RotateEvent:
		rot.AddRotation(e.Delta)
		return nil
	case ResetRotationEvent:
		rot.SetRotation(0)
		return nil
	case SelectMapEvent:
		return c.SetMap(e.Name)
	}
	return errors.Errorf("unsupported event %T", ev)
}
