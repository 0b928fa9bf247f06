package render

import (
	"fmt"

	"spike-overlay/internal/assets"
)

const (
	KilledIconSize = 32
	SpikeIconSize  = 32
	SpikeFontSize  = 12.0
	SpikeAlarmTime = 8.0 // Seconds left below which the spike turns red
)

// drawMarkers draws every fading dead-player marker, upright regardless of scene rotation.
func (p *Pipeline) drawMarkers(f *frame) {
	if len(f.view.Markers) == 0 {
		return
	}
	icon, err := p.icon(assets.IconKilled, KilledIconSize, KilledIconSize)
	if err != nil {
		f.fail("killed icon", err)
		return
	}

	s := p.surfaces[LayerMap]
	for _, m := range f.view.Markers {
		s.Push()
		CounterRotate(s, m.X, m.Y, f.view.Rotation)
		s.DrawImageAnchored(assets.Fade(icon, m.Alpha()), 0, 0, 0.5, 0.5)
		s.Pop()
	}
}

// drawSpike draws the planted spike and its countdown.
func (p *Pipeline) drawSpike(f *frame) {
	spike := f.view.Spike
	if spike == nil {
		return
	}

	c := ColorText
	if spike.Time < SpikeAlarmTime {
		c = ColorCurrent
	}

	s := p.surfaces[LayerMap]
	s.Push()
	defer s.Pop()
	CounterRotate(s, spike.X, spike.Y, f.view.Rotation)

	if icon, err := p.icon(assets.IconSpike, SpikeIconSize, SpikeIconSize); err != nil {
		f.fail("spike icon", err)
	} else {
		s.DrawImage(assets.Tint(icon, c), -SpikeIconSize/2, SpikeIconSize/2)
	}

	face, err := p.fonts.Face(SpikeFontSize)
	if err != nil {
		f.fail("spike timer", err)
		return
	}
	s.SetFontFace(face)
	s.SetColor(c)
	s.DrawStringAnchored(fmt.Sprintf("%.1f", spike.Time), -SpikeFontSize, SpikeIconSize/2, 0, 0)
}
