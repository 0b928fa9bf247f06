package render

import (
	"image/color"
	"math"
	"strconv"

	"spike-overlay/internal/assets"
	"spike-overlay/internal/match"
	"spike-overlay/internal/ui"
)

// Player glyph geometry, in map units.
const (
	BodyRadius        = 10.0
	HealthArcRadius   = 13.0
	HealthArcWidth    = 3.0
	ViewLineLength    = 30.0
	ScopedLineBonus   = 20.0
	ViewLineWidth     = 3.0
	AgentIconSize     = 20
	DormantIconSize   = 32
	DormantIconAlpha  = 0.4
	WeaponIconScale   = 0.25
	LabelFontSize     = 16.0
	SelectedRingWidth = 2.0
)

// drawPlayers draws every player in store order, so earlier wire entries end up on top.
func (p *Pipeline) drawPlayers(f *frame) {
	s := p.surfaces[LayerMap]
	labels := f.controls.ToggleState(ui.ToggleLabel)
	dormant := f.controls.ToggleState(ui.ToggleDormant)
	follow := f.controls.ToggleState(ui.ToggleOrientation)
	selected := f.controls.SelectedIndex()

	for i, pl := range f.view.Players {
		p.guard(f, s, "player "+strconv.Itoa(pl.ID), func() {
			p.drawViewLine(s, pl)
			p.drawBody(s, pl)
			p.drawAgentIcon(f, s, pl, dormant && pl.Dormant)
			p.drawHealthArc(s, pl)
			p.drawWeaponIcon(f, s, pl)
			if follow && i == selected {
				s.SetColor(ColorText)
				s.SetLineWidth(SelectedRingWidth)
				s.DrawCircle(pl.X, pl.Y, HealthArcRadius+4)
				s.Stroke()
			}
			if labels {
				p.drawLabel(f, s, pl)
			}
		})
	}
}

// drawViewLine draws the facing direction, longer when scoped.
func (p *Pipeline) drawViewLine(s Surface, pl match.PlayerSnapshot) {
	length := ViewLineLength
	if pl.Scoped {
		length += ScopedLineBonus
	}
	angle := ToRadians(pl.Rotation)

	s.Push()
	s.Translate(pl.X, pl.Y)
	s.SetColor(TeamColor(pl.Team))
	s.SetLineWidth(ViewLineWidth)
	s.DrawLine(0, 0, length*math.Cos(angle), length*math.Sin(angle))
	s.Stroke()
	s.Pop()
}

func (p *Pipeline) drawBody(s Surface, pl match.PlayerSnapshot) {
	s.DrawCircle(pl.X, pl.Y, BodyRadius)
	s.SetColor(TeamColor(pl.Team))
	s.FillPreserve()
	s.SetColor(color.White)
	s.SetLineWidth(1)
	s.Stroke()
}

// drawAgentIcon draws the agent portrait, or a large dimmed one for a dormant player.
func (p *Pipeline) drawAgentIcon(f *frame, s Surface, pl match.PlayerSnapshot, dormant bool) {
	key := assets.Agent(pl.ID)
	size := AgentIconSize
	if dormant {
		size = DormantIconSize
	}

	img, err := p.icon(key, size, size)
	if err != nil {
		f.fail("agent "+strconv.Itoa(pl.ID), err)
		return
	}
	if dormant {
		img = assets.Fade(img, DormantIconAlpha)
	} else {
		img = assets.Circular(img)
	}

	s.Push()
	CounterRotate(s, pl.X, pl.Y, f.view.Rotation)
	s.DrawImageAnchored(img, 0, 0, 0.5, 0.5)
	if dormant {
		if badge, err := p.icon(assets.IconDormant, 12, 12); err == nil {
			s.DrawImageAnchored(badge, size/2, -size/2, 0.5, 0.5)
		} else {
			f.fail("dormant badge", err)
		}
	}
	s.Pop()
}

func (p *Pipeline) drawHealthArc(s Surface, pl match.PlayerSnapshot) {
	if pl.Health <= 0 {
		return
	}
	health := math.Min(pl.Health, 100)

	s.SetColor(TeamColor(pl.Team))
	s.SetLineWidth(HealthArcWidth)
	s.DrawArc(pl.X, pl.Y, HealthArcRadius, HealthArcStart(health), HealthArcEnd(health))
	s.Stroke()
}

// drawWeaponIcon draws the held weapon under the body at a quarter of its natural size.
func (p *Pipeline) drawWeaponIcon(f *frame, s Surface, pl match.PlayerSnapshot) {
	key := assets.Weapon(pl.Weapon)
	src, err := p.assets.Image(key)
	if err != nil {
		f.fail("weapon "+strconv.Itoa(pl.Weapon), err)
		return
	}
	b := src.Bounds()
	w := int(float64(b.Dx())*WeaponIconScale + 0.5)
	h := int(float64(b.Dy())*WeaponIconScale + 0.5)
	img, err := p.icon(key, w, h)
	if err != nil {
		f.fail("weapon "+strconv.Itoa(pl.Weapon), err)
		return
	}

	s.Push()
	CounterRotate(s, pl.X, pl.Y, f.view.Rotation)
	s.DrawImageAnchored(img, 0, int(HealthArcRadius)+4, 0.5, 0)
	s.Pop()
}

func (p *Pipeline) drawLabel(f *frame, s Surface, pl match.PlayerSnapshot) {
	face, err := p.fonts.Face(LabelFontSize)
	if err != nil {
		f.fail("label", err)
		return
	}

	s.Push()
	CounterRotate(s, pl.X, pl.Y, f.view.Rotation)
	s.SetFontFace(face)
	s.SetColor(ColorText)
	s.DrawStringAnchored(strconv.Itoa(pl.ID), 0, 0, 0.5, 0.5)
	s.Pop()
}
