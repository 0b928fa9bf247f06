package assets

import (
	"image"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrUnknownKey = errors.New("unknown asset key")
	ErrNotLoaded  = errors.New("asset not loaded")
)

// Table stores decoded images by key.
// Lookups never substitute a fallback image; unresolved keys are errors.
type Table struct {
	mu     sync.RWMutex
	images map[Key]image.Image
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{images: make(map[Key]image.Image)}
}

// Set stores img under key.
func (t *Table) Set(key Key, img image.Image) {
	t.mu.Lock()
	t.images[key] = img
	t.mu.Unlock()
}

// Image returns the image for key.
func (t *Table) Image(key Key) (image.Image, error) {
	if !key.Valid() {
		return nil, errors.Wrapf(ErrUnknownKey, "%s", key)
	}

	t.mu.RLock()
	img, ok := t.images[key]
	t.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrNotLoaded, "%s", key)
	}
	return img, nil
}

// Len returns the number of loaded images.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.images)
}

// Missing lists enumerated keys with no image.
func (t *Table) Missing() []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var missing []Key
	for _, k := range AllKeys() {
		if _, ok := t.images[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}
