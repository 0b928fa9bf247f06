// Package match holds the spectator's view of a live match: the decoded snapshot model,
// the state store the renderer reads from and the decay of dead-player markers.
package match

// Team identifiers as sent on the wire. Any other value is neutral/unknown.
const (
	TeamA = 0
	TeamB = 1
)

// Round outcomes in round_win_status.
const (
	RoundWonA      = 0
	RoundWonB      = 1
	RoundUndecided = 2
)

// RegulationRounds is the round count of a match without overtime.
const RegulationRounds = 24

// MaxMatchRounds bounds max_rounds, overtime included. Larger values are rejected.
const MaxMatchRounds = 100

// PlayerSnapshot is one active combatant in a snapshot.
// It is a value type and is replaced wholesale by every snapshot.
type PlayerSnapshot struct {
	ID       int     `json:"id"` // Agent identity, 0..21
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Health   float64 `json:"health"`
	Team     int     `json:"team"`
	Dormant  bool    `json:"dormant"`
	Rotation float64 `json:"rotation"` // Facing, degrees
	Scoped   bool    `json:"scoped"`
	Weapon   int     `json:"weapon"`
	Kills    int     `json:"kill"`
	Deaths   int     `json:"death"`
	Assists  int     `json:"assist"`
	ACS      int     `json:"acs"`
	Shield   int     `json:"shield"` // Armor points, 0..50
	Credits  int     `json:"credits"`
}

// IsDead reports whether the player has no health left.
func (p PlayerSnapshot) IsDead() bool {
	return p.Health <= 0
}

// GameInfo is the match/round metadata of a snapshot.
type GameInfo struct {
	RoundWinStatus []int   `json:"round_win_status"`
	MaxRounds      int     `json:"max_rounds"`
	PlayedRounds   int     `json:"played_rounds"`
	RoundTime      float64 `json:"round_time"` // Seconds
	SpikePlanted   bool    `json:"spike_planted"`
	SpikeX         float64 `json:"spike_x"`
	SpikeY         float64 `json:"spike_y"`
	SpikeTime      float64 `json:"spike_time"` // Countdown seconds
	DefuseTime     float64 `json:"defuse_time"`
}

// Score counts rounds won by each side.
func (g GameInfo) Score() (a, b int) {
	for _, status := range g.RoundWinStatus {
		switch status {
		case RoundWonA:
			a++
		case RoundWonB:
			b++
		}
	}
	return a, b
}

// CurrentRound is the 1-based number of the round being played.
func (g GameInfo) CurrentRound() int {
	a, b := g.Score()
	return a + b + 1
}

// Spike returns the planted spike, or nil when none is planted.
func (g GameInfo) Spike() *SpikeStatus {
	if !g.SpikePlanted {
		return nil
	}
	return &SpikeStatus{X: g.SpikeX, Y: g.SpikeY, Time: g.SpikeTime}
}

// MatchSnapshot is one fully parsed and validated payload.
type MatchSnapshot struct {
	Players []PlayerSnapshot `json:"players"`
	Info    GameInfo         `json:"game_info"`
}

// SpikeStatus mirrors the planted spike of the latest snapshot.
type SpikeStatus struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Time float64 `json:"time"`
}
