package render

import (
	"fmt"
	"math"
	"strconv"
)

const (
	StatusWidth     = 300
	StatusHeight    = 150
	StatusTextSize  = 20.0
	StatusRoundSize = StatusTextSize / 2
	StatusScoreSize = StatusTextSize * 2
)

// FormatClock renders seconds as M:SS, rounding to the nearest second.
func FormatClock(seconds float64) string {
	total := int(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// drawStatus draws the round timer, round number and per-side scores.
func (p *Pipeline) drawStatus(f *frame) {
	s := p.surfaces[LayerStatus]
	info := f.view.Info
	w := float64(s.Width())
	h := float64(s.Height())

	timerFace, err := p.fonts.Face(StatusTextSize)
	if err != nil {
		f.fail("timer font", err)
		return
	}
	timerColor := ColorText
	if f.view.Spike != nil {
		timerColor = ColorCurrent
	}
	s.SetFontFace(timerFace)
	s.SetColor(timerColor)
	s.DrawStringAnchored(FormatClock(info.RoundTime), w/2-StatusTextSize*1.5, h/2, 0, 0)

	a, b := info.Score()

	roundFace, err := p.fonts.Face(StatusRoundSize)
	if err != nil {
		f.fail("round font", err)
		return
	}
	s.SetFontFace(roundFace)
	s.SetColor(ColorText)
	s.DrawStringAnchored(fmt.Sprintf("Round %d", info.CurrentRound()), w/2-StatusTextSize/2, h*0.9, 0.5, 0)

	scoreFace, err := p.fonts.Face(StatusScoreSize)
	if err != nil {
		f.fail("score font", err)
		return
	}
	s.SetFontFace(scoreFace)
	s.SetColor(ColorSideA)
	s.DrawStringAnchored(strconv.Itoa(a), w*0.5-60, h*0.9, 0.5, 0)
	s.SetColor(ColorSideB)
	s.DrawStringAnchored(strconv.Itoa(b), w*0.5+57.5-StatusTextSize, h*0.9, 0.5, 0)
}
