package render

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"spike-overlay/internal/assets"
	"spike-overlay/internal/match"
	"spike-overlay/internal/ui"

	"github.com/dustin/go-humanize"
)

// Player table layout.
const (
	TableWidth      = 520
	TableRowHeight  = 36.0
	TableHeaderSize = 18.0
	TableTextSize   = 14.0
	TableIconSize   = 24
	TableMargin     = 8.0

	healthBarX     = 40.0
	healthBarWidth = 100.0
	shieldIconX    = 150.0
	shieldBarX     = 172.0
	shieldBarWidth = 30.0
	weaponIconX    = 212.0
	weaponIconH    = 16
	kdaX           = 300.0
	acsX           = 380.0
	creditsX       = 440.0

	MaxShield       = 50
	HeavyShieldFrom = 25 // Shield above this shows the heavy icon
)

// neutralSide groups players whose team is neither side A nor side B.
const neutralSide = -1

// drawTable draws per-player rows grouped by side, in wire order within a side.
// Players on an unknown team follow under a neutral header.
func (p *Pipeline) drawTable(f *frame) {
	if !f.controls.ToggleState(ui.TogglePlayerTable) {
		return
	}

	s := p.surfaces[LayerTable]
	header, err := p.fonts.Bold(TableHeaderSize)
	if err != nil {
		f.fail("table header font", err)
		return
	}
	text, err := p.fonts.Face(TableTextSize)
	if err != nil {
		f.fail("table font", err)
		return
	}

	y := TableMargin
	for _, side := range []int{match.TeamA, match.TeamB, neutralSide} {
		rows := sideRows(f.view.Players, side)
		if side == neutralSide && len(rows) == 0 {
			continue
		}

		s.SetFontFace(header)
		s.SetColor(sideTitleColor(side))
		s.DrawStringAnchored(sideTitle(side), TableMargin, y, 0, 1)
		y += TableHeaderSize + TableMargin

		for _, pl := range rows {
			s.SetFontFace(text)
			p.drawTableRow(f, s, pl, y)
			y += TableRowHeight
		}
		y += TableMargin
	}
}

// sideRows returns side's players in wire order. Store order is reversed.
func sideRows(players []match.PlayerSnapshot, side int) []match.PlayerSnapshot {
	var rows []match.PlayerSnapshot
	for i := len(players) - 1; i >= 0; i-- {
		if sideOf(players[i].Team) == side {
			rows = append(rows, players[i])
		}
	}
	return rows
}

func sideOf(team int) int {
	if team == match.TeamA || team == match.TeamB {
		return team
	}
	return neutralSide
}

func sideTitle(side int) string {
	switch side {
	case match.TeamA:
		return "Team A"
	case match.TeamB:
		return "Team B"
	}
	return "Neutral"
}

func sideTitleColor(side int) color.RGBA {
	if side == neutralSide {
		return ColorText
	}
	return TeamColor(side)
}

func (p *Pipeline) drawTableRow(f *frame, s Surface, pl match.PlayerSnapshot, y float64) {
	mid := y + TableRowHeight/2

	if img, err := p.icon(assets.Agent(pl.ID), TableIconSize, TableIconSize); err != nil {
		f.fail("table agent "+strconv.Itoa(pl.ID), err)
	} else {
		s.DrawImageAnchored(img, int(TableMargin), int(mid), 0, 0.5)
	}

	// Health bar
	health := math.Max(0, math.Min(pl.Health, 100))
	s.SetColor(TeamBackground(pl.Team))
	s.DrawRectangle(healthBarX, mid-5, healthBarWidth, 10)
	s.Fill()
	s.SetColor(TeamColor(pl.Team))
	s.DrawRectangle(healthBarX, mid-5, healthBarWidth*health/100, 10)
	s.Fill()

	// Shield
	shieldKey := assets.IconLightShield
	if pl.Shield > HeavyShieldFrom {
		shieldKey = assets.IconHeavyShield
	}
	if img, err := p.icon(shieldKey, 16, 16); err != nil {
		f.fail("shield icon", err)
	} else {
		s.DrawImageAnchored(img, int(shieldIconX), int(mid), 0, 0.5)
	}
	shield := math.Max(0, math.Min(float64(pl.Shield), MaxShield))
	s.SetColor(ColorNeutralBg)
	s.DrawRectangle(shieldBarX, mid-3, shieldBarWidth, 6)
	s.Fill()
	s.SetColor(ColorText)
	s.DrawRectangle(shieldBarX, mid-3, shieldBarWidth*shield/MaxShield, 6)
	s.Fill()

	// Weapon
	p.drawTableWeapon(f, s, pl.Weapon, mid)

	s.SetColor(ColorText)
	s.DrawStringAnchored(fmt.Sprintf("%d/%d/%d", pl.Kills, pl.Deaths, pl.Assists), kdaX, mid, 0, 0.5)
	s.DrawStringAnchored(strconv.Itoa(pl.ACS), acsX, mid, 0, 0.5)
	s.DrawStringAnchored(humanize.Comma(int64(pl.Credits)), creditsX, mid, 0, 0.5)
}

func (p *Pipeline) drawTableWeapon(f *frame, s Surface, weapon int, mid float64) {
	key := assets.Weapon(weapon)
	src, err := p.assets.Image(key)
	if err != nil {
		f.fail("table weapon "+strconv.Itoa(weapon), err)
		return
	}
	b := src.Bounds()
	w := weaponIconH
	if b.Dy() > 0 {
		w = b.Dx() * weaponIconH / b.Dy()
	}
	img, err := p.icon(key, w, weaponIconH)
	if err != nil {
		f.fail("table weapon "+strconv.Itoa(weapon), err)
		return
	}
	s.DrawImageAnchored(img, int(weaponIconX), int(mid), 0, 0.5)
}
