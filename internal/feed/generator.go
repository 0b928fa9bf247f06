// Package feed produces synthetic match snapshots for exercising the relay and overlay
// without a live game client.
package feed

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"spike-overlay/internal/assets"
	"spike-overlay/internal/match"
	"spike-overlay/internal/relay"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Generation bounds
const (
	MaxPlayers    = 10
	MapExtent     = 1000.0
	MaxRoundTime  = 150.0
	MaxSpikeTime  = 35.0
	MaxDefuseTime = 8.0
	MaxPlayed     = 30
)

// Players is the column-oriented player block of a snapshot document.
type Players struct {
	ID       []int     `json:"id" msgpack:"id"`
	X        []float64 `json:"x" msgpack:"x"`
	Y        []float64 `json:"y" msgpack:"y"`
	Health   []int     `json:"health" msgpack:"health"`
	Team     []int     `json:"team" msgpack:"team"`
	Dormant  []int     `json:"dormant" msgpack:"dormant"`
	Rotation []float64 `json:"rotation" msgpack:"rotation"`
	Scoped   []int     `json:"scoped" msgpack:"scoped"`
	Weapon   []int     `json:"weapon" msgpack:"weapon"`
	Kill     []int     `json:"kill" msgpack:"kill"`
	Death    []int     `json:"death" msgpack:"death"`
	Assist   []int     `json:"assist" msgpack:"assist"`
	ACS      []int     `json:"acs" msgpack:"acs"`
	Shield   []int     `json:"shield" msgpack:"shield"`
	Credits  []int     `json:"credits" msgpack:"credits"`
}

// GameInfo is the round block. Spike and timer fields are one-element arrays, as
// game clients send them.
type GameInfo struct {
	SpikePlanted   int       `json:"spike_planted" msgpack:"spike_planted"`
	SpikeX         []float64 `json:"spike_x" msgpack:"spike_x"`
	SpikeY         []float64 `json:"spike_y" msgpack:"spike_y"`
	SpikeTime      []float64 `json:"spike_time" msgpack:"spike_time"`
	DefuseTime     []float64 `json:"defuse_time" msgpack:"defuse_time"`
	RoundWinStatus []int     `json:"round_win_status" msgpack:"round_win_status"`
	PlayedRounds   int       `json:"played_rounds" msgpack:"played_rounds"`
	MaxRounds      int       `json:"max_rounds" msgpack:"max_rounds"`
	RoundTime      []float64 `json:"round_time" msgpack:"round_time"`
}

// Document is one snapshot in wire form.
type Document struct {
	Players  Players  `json:"players" msgpack:"players"`
	GameInfo GameInfo `json:"game_info" msgpack:"game_info"`
}

// Generator builds random but well-formed snapshots.
type Generator struct {
	rng    *rand.Rand
	binary bool
}

// NewGenerator creates a generator. binary selects MessagePack frames instead of JSON.
func NewGenerator(seed int64, binary bool) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		binary: binary,
	}
}

// Next returns a fresh random document.
func (g *Generator) Next() *Document {
	r := g.rng
	n := 1 + r.Intn(MaxPlayers)

	var p Players
	for i := 0; i < n; i++ {
		p.ID = append(p.ID, r.Intn(assets.AgentCount()))
		p.X = append(p.X, r.Float64()*MapExtent)
		p.Y = append(p.Y, r.Float64()*MapExtent)
		p.Health = append(p.Health, r.Intn(101))
		p.Team = append(p.Team, r.Intn(2))
		p.Dormant = append(p.Dormant, r.Intn(2))
		p.Rotation = append(p.Rotation, r.Float64()*360)
		p.Scoped = append(p.Scoped, r.Intn(2))
		p.Weapon = append(p.Weapon, r.Intn(assets.WeaponCount()))
		p.Kill = append(p.Kill, r.Intn(30))
		p.Death = append(p.Death, r.Intn(30))
		p.Assist = append(p.Assist, r.Intn(30))
		p.ACS = append(p.ACS, r.Intn(400))
		p.Shield = append(p.Shield, r.Intn(51))
		p.Credits = append(p.Credits, r.Intn(16000))
	}

	info := GameInfo{
		SpikePlanted: r.Intn(2),
		DefuseTime:   []float64{r.Float64() * MaxDefuseTime},
		RoundTime:    []float64{r.Float64() * MaxRoundTime},
		PlayedRounds: r.Intn(MaxPlayed),
		MaxRounds:    match.RegulationRounds,
	}
	if info.SpikePlanted == 1 {
		info.SpikeX = []float64{r.Float64() * MapExtent}
		info.SpikeY = []float64{r.Float64() * MapExtent}
		info.SpikeTime = []float64{r.Float64() * MaxSpikeTime}
	} else {
		info.SpikeX = []float64{0}
		info.SpikeY = []float64{0}
		info.SpikeTime = []float64{0}
	}

	// Overtime extends the match two rounds at a time
	for info.PlayedRounds > info.MaxRounds {
		info.MaxRounds += 2
	}
	info.RoundWinStatus = make([]int, info.MaxRounds)
	for i := range info.RoundWinStatus {
		if i < info.PlayedRounds {
			info.RoundWinStatus[i] = r.Intn(2)
		} else {
			info.RoundWinStatus[i] = match.RoundUndecided
		}
	}

	return &Document{Players: p, GameInfo: info}
}

// Encode serialises doc and returns the WebSocket frame type to send it with.
func (g *Generator) Encode(doc *Document) (int, []byte, error) {
	if g.binary {
		data, err := msgpack.Marshal(doc)
		if err != nil {
			return 0, nil, errors.Wrap(err, "encode msgpack snapshot")
		}
		return websocket.BinaryMessage, data, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return 0, nil, errors.Wrap(err, "encode json snapshot")
	}
	return websocket.TextMessage, data, nil
}

// Sender is the producer side of a relay connection.
type Sender interface {
	Send(msgType int, data []byte) error
}

var _ Sender = (*relay.Client)(nil)

// Run sends one snapshot per interval until ctx is cancelled. Send failures are
// logged; the relay client reconnects on its own.
func (g *Generator) Run(ctx context.Context, out Sender, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var sent int64
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("🎲 Feed stopped after %d snapshots", sent)
			return ctx.Err()
		case <-ticker.C:
			msgType, data, err := g.Encode(g.Next())
			if err != nil {
				return err
			}
			if err := out.Send(msgType, data); err != nil {
				if errors.Is(err, relay.ErrNotConnected) {
					log.Debug().Msg("🎲 Relay not connected, snapshot skipped")
					continue
				}
				log.Warn().Err(err).Msg("⚠️ Snapshot send failed")
				continue
			}
			sent++
		}
	}
}
