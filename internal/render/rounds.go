package render

import (
	"fmt"
	"image/color"
	"strconv"

	"spike-overlay/internal/assets"
	"spike-overlay/internal/match"
)

// Round strip layout, before StripScale is applied.
const (
	RoundTextSize    = 20.0
	RoundRectSize    = 30.0
	RoundGapSize     = 50.0
	StripScale       = 0.8
	StripTranslateX  = 20.0
	StripTranslateY  = 2.0
	OvertimeShift    = 21.0
	RegulationHalf   = 12
	StripBaseWidth   = 1000
	RoundStripHeight = 40
)

// RoundStripWidth grows the strip by one scaled cell per round beyond regulation,
// up to match.MaxMatchRounds.
func RoundStripWidth(maxRounds int) int {
	if maxRounds <= match.RegulationRounds {
		return StripBaseWidth
	}
	if maxRounds > match.MaxMatchRounds {
		maxRounds = match.MaxMatchRounds
	}
	return StripBaseWidth + (maxRounds-match.RegulationRounds)*int(60*StripScale)
}

// RoundColor colours a cell by its outcome.
func RoundColor(status int) color.RGBA {
	return TeamColor(status)
}

// drawRounds draws one numbered cell per round, with a side-switch marker after the
// first half and an OT label every two overtime rounds.
func (p *Pipeline) drawRounds(f *frame) {
	s := p.surfaces[LayerRounds]
	statuses := f.view.Info.RoundWinStatus

	text, err := p.fonts.Face(RoundTextSize * StripScale)
	if err != nil {
		f.fail("round font", err)
		return
	}
	bold, err := p.fonts.Bold(RoundTextSize * StripScale)
	if err != nil {
		f.fail("overtime font", err)
		return
	}

	var (
		switchDrawn bool
		present     bool
		overtime    = match.RegulationRounds - 1
		otCount     = 0
		gap         = RoundGapSize * StripScale
		rect        = RoundRectSize * StripScale
		textY       = RoundTextSize * StripScale * 1.125
	)

	for i, status := range statuses {
		x := float64(i) * gap

		s.Push()
		s.Translate(StripTranslateX, StripTranslateY)

		if i >= RegulationHalf {
			if !switchDrawn {
				p.drawSwitchIcon(f, s, x+3-rect, int(rect))
				switchDrawn = true
			}
			s.Translate(StripTranslateX, 0)
		}

		if i >= overtime {
			if overtime%2 == 0 {
				s.SetFontFace(bold)
				s.SetColor(ColorText)
				s.DrawStringAnchored(fmt.Sprintf("OT%d", otCount+1), x+20*float64(otCount)-rect, textY, 0, 0)
				otCount++
			}
			overtime++
			s.Translate(OvertimeShift*float64(otCount), 0)
		}

		textColor := RoundColor(status)
		if status == match.RoundUndecided && !present {
			textColor = ColorCurrent
			present = true
		}
		s.SetFontFace(text)
		s.SetColor(textColor)
		s.DrawStringAnchored(strconv.Itoa(i+1), x, textY, 0.5, 0)

		s.SetColor(RoundColor(status))
		s.SetLineWidth(1)
		s.DrawRectangle(x-rect/2, 0, rect, rect)
		s.Stroke()

		s.Pop()
	}
}

func (p *Pipeline) drawSwitchIcon(f *frame, s Surface, x float64, size int) {
	icon, err := p.icon(assets.IconSwitch, size, size)
	if err != nil {
		f.fail("switch icon", err)
		return
	}
	s.DrawImage(assets.Tint(icon, ColorText), int(x), 0)
}
