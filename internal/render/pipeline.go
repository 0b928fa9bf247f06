package render

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"spike-overlay/internal/assets"
	"spike-overlay/internal/match"
	"spike-overlay/internal/observability"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
)

// Controls is the UI state a redraw reads.
type Controls interface {
	ToggleState(name string) bool
	SelectedIndex() int
	MapName() string
}

// DrawError is a recovered failure inside one pass. Drawing continues past it.
type DrawError struct {
	Pass    string
	Element string
	Err     error
}

func (e *DrawError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("draw %s: %v", e.Pass, e.Err)
	}
	return fmt.Sprintf("draw %s (%s): %v", e.Pass, e.Element, e.Err)
}

func (e *DrawError) Unwrap() error {
	return e.Err
}

// Report summarises one redraw.
type Report struct {
	Sequence uint64
	Duration time.Duration
	Errors   []*DrawError
}

// Options configure a pipeline.
type Options struct {
	CanvasSize int            // Map layer edge; default 1024
	NewSurface SurfaceFactory // Default NewGGSurface
}

// Pipeline owns the surfaces, fonts and assets and repaints the whole scene per call.
// Render is not safe for concurrent use. Image may be called from any goroutine.
type Pipeline struct {
	assets     *assets.Table
	fonts      *Fonts
	newSurface SurfaceFactory
	size       int

	surfaces map[Layer]*stack
	scaled   map[scaledKey]scaledImage

	mu     sync.RWMutex
	images map[Layer]image.Image // Snapshot of the last completed redraw
}

type scaledKey struct {
	key  assets.Key
	w, h int
}

type scaledImage struct {
	src image.Image
	out image.Image
}

// NewPipeline creates a pipeline drawing with table's assets.
func NewPipeline(table *assets.Table, opts Options) (*Pipeline, error) {
	if opts.CanvasSize <= 0 {
		opts.CanvasSize = 1024
	}
	if opts.NewSurface == nil {
		opts.NewSurface = NewGGSurface
	}

	fonts, err := NewFonts()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		assets:     table,
		fonts:      fonts,
		newSurface: opts.NewSurface,
		size:       opts.CanvasSize,
		surfaces:   make(map[Layer]*stack),
		scaled:     make(map[scaledKey]scaledImage),
		images:     make(map[Layer]image.Image),
	}
	p.surfaces[LayerMap] = &stack{Surface: p.newSurface(p.size, p.size)}
	p.surfaces[LayerRounds] = &stack{Surface: p.newSurface(RoundStripWidth(match.RegulationRounds), RoundStripHeight)}
	p.surfaces[LayerStatus] = &stack{Surface: p.newSurface(StatusWidth, StatusHeight)}
	p.surfaces[LayerTable] = &stack{Surface: p.newSurface(TableWidth, p.size)}
	return p, nil
}

// Surface returns the surface backing layer.
func (p *Pipeline) Surface(layer Layer) Surface {
	if s, ok := p.surfaces[layer]; ok {
		return s.Surface
	}
	return nil
}

// stack tracks Push/Pop depth so a recovered panic can drop the transforms it left behind.
type stack struct {
	Surface
	depth int
}

func (s *stack) Push() {
	s.Surface.Push()
	s.depth++
}

func (s *stack) Pop() {
	s.Surface.Pop()
	s.depth--
}

// unwind pops back to depth.
func (s *stack) unwind(depth int) {
	for s.depth > depth {
		s.Pop()
	}
}

// frame carries one redraw's inputs and collects its failures.
type frame struct {
	view     *match.View
	controls Controls
	report   *Report
	pass     string
}

// fail records a recovered drawing failure.
func (f *frame) fail(element string, err error) {
	derr := &DrawError{Pass: f.pass, Element: element, Err: err}
	f.report.Errors = append(f.report.Errors, derr)
	observability.RecordDrawError(f.pass)
	log.Warn().Err(err).Msgf("⚠️ Draw %s failed for %s", f.pass, element)
}

// Render clears every surface and redraws the full scene from view.
func (p *Pipeline) Render(view *match.View, controls Controls) *Report {
	start := time.Now()
	report := &Report{Sequence: view.Sequence}
	f := &frame{view: view, controls: controls, report: report}

	p.resizeRoundStrip(view.Info.MaxRounds)
	for _, layer := range Layers {
		s := p.surfaces[layer]
		s.unwind(0)
		s.Identity()
		s.SetColor(color.Transparent)
		s.Clear()
	}

	mapSurface := p.surfaces[LayerMap]
	if view.Rotation != 0 {
		RotateScene(mapSurface, view.Rotation)
	}

	p.run(f, "map", p.drawMap)
	p.run(f, "players", p.drawPlayers)
	p.run(f, "markers", p.drawMarkers)
	p.run(f, "spike", p.drawSpike)
	p.run(f, "rounds", p.drawRounds)
	p.run(f, "status", p.drawStatus)
	p.run(f, "table", p.drawTable)

	mapSurface.Identity()

	p.mu.Lock()
	for _, layer := range Layers {
		p.images[layer] = copyImage(p.surfaces[layer].Image())
	}
	p.mu.Unlock()

	report.Duration = time.Since(start)
	observability.RecordRender(report.Duration)
	return report
}

// run executes one pass, converting a panic into a DrawError and restoring
// every surface's transform stack to where the pass found it.
func (p *Pipeline) run(f *frame, pass string, fn func(f *frame)) {
	f.pass = pass
	depths := make(map[Layer]int, len(p.surfaces))
	for layer, s := range p.surfaces {
		depths[layer] = s.depth
	}
	defer func() {
		if r := recover(); r != nil {
			for layer, s := range p.surfaces {
				s.unwind(depths[layer])
			}
			f.fail("", errors.Errorf("panic: %v", r))
		}
	}()
	fn(f)
}

// guard draws one element on s. A panic is recorded against element and the
// caller moves on to the next one.
func (p *Pipeline) guard(f *frame, s *stack, element string, fn func()) {
	depth := s.depth
	defer func() {
		if r := recover(); r != nil {
			s.unwind(depth)
			f.fail(element, errors.Errorf("panic: %v", r))
		}
	}()
	fn()
}

// Image returns the last completed redraw of layer.
func (p *Pipeline) Image(layer Layer) image.Image {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.images[layer]
}

// icon resolves key at w x h, caching scaled copies.
func (p *Pipeline) icon(key assets.Key, w, h int) (image.Image, error) {
	src, err := p.assets.Image(key)
	if err != nil {
		return nil, err
	}

	sk := scaledKey{key: key, w: w, h: h}
	if cached, ok := p.scaled[sk]; ok && cached.src == src {
		return cached.out, nil
	}

	out := src
	if b := src.Bounds(); b.Dx() != w || b.Dy() != h {
		out = assets.Resize(src, w, h)
	}
	p.scaled[sk] = scaledImage{src: src, out: out}
	return out, nil
}

func (p *Pipeline) resizeRoundStrip(maxRounds int) {
	w := RoundStripWidth(maxRounds)
	if s := p.surfaces[LayerRounds]; s.Width() != w {
		p.surfaces[LayerRounds] = &stack{Surface: p.newSurface(w, RoundStripHeight)}
	}
}

func (p *Pipeline) drawMap(f *frame) {
	key, err := assets.Map(f.controls.MapName())
	if err != nil {
		f.fail(f.controls.MapName(), err)
		return
	}
	img, err := p.icon(key, p.size, p.size)
	if err != nil {
		f.fail(key.Name(), err)
		return
	}
	p.surfaces[LayerMap].DrawImage(img, 0, 0)
}

func copyImage(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}
