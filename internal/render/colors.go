package render

import (
	"image/color"

	"spike-overlay/internal/match"
)

var (
	ColorSideA     = color.RGBA{255, 0, 0, 255}
	ColorSideB     = color.RGBA{0, 0, 255, 255}
	ColorNeutral   = color.RGBA{0, 0, 0, 255}
	ColorCurrent   = color.RGBA{0xBC, 0x54, 0x4B, 255} // Current round, spike alarm, planted timer
	ColorText      = color.RGBA{255, 255, 255, 255}
	ColorSideADark = color.RGBA{90, 0, 0, 255}
	ColorSideBDark = color.RGBA{0, 0, 90, 255}
	ColorNeutralBg = color.RGBA{40, 40, 40, 255}
)

// TeamColor is the display colour of a side. Unknown sides are neutral.
func TeamColor(team int) color.RGBA {
	switch team {
	case match.TeamA:
		return ColorSideA
	case match.TeamB:
		return ColorSideB
	}
	return ColorNeutral
}

// TeamBackground is the dark variant used behind health bars.
func TeamBackground(team int) color.RGBA {
	switch team {
	case match.TeamA:
		return ColorSideADark
	case match.TeamB:
		return ColorSideBDark
	}
	return ColorNeutralBg
}
