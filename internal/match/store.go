package match

import (
	"math"
	"sync"
	"time"
)

// playerKey identifies a combatant across snapshots.
// Agent ids repeat across teams, so the team is part of the key.
type playerKey struct {
	Team int
	ID   int
}

// View is an immutable copy of the store for one redraw.
// Uses value types and copied slices so renderers can read it without locks.
type View struct {
	Sequence  uint64    // Monotonic, bumped by every Apply
	Timestamp time.Time // When the latest snapshot was applied
	Players   []PlayerSnapshot
	Info      GameInfo
	Spike     *SpikeStatus
	Markers   []DeadMarker
	Rotation  float64 // Scene rotation, degrees in [0, 360)
}

// Store is the single authoritative copy of the latest match state.
// Writers are the snapshot path and UI rotation controls; readers take a View.
type Store struct {
	mu sync.RWMutex

	sequence  uint64
	timestamp time.Time
	players   []PlayerSnapshot
	info      GameInfo
	spike     *SpikeStatus
	rotation  int64 // Micro-degrees in [0, fullTurn)

	decay      *DecayTracker
	lastHealth map[playerKey]float64
	lastTicked uint64
}

// NewStore creates an empty store whose dead markers live for prevail redraws.
func NewStore(prevail int) *Store {
	return &Store{
		decay:      NewDecayTracker(prevail),
		lastHealth: make(map[playerKey]float64),
	}
}

// Apply replaces the match state with snap and registers new deaths.
// Players are stored in reverse wire order so the first wire entry is drawn last (on top).
// A death is registered only on the transition to health <= 0; a player never seen
// before counts as previously alive. Returns the new sequence number and the number
// of deaths registered.
func (s *Store) Apply(snap *MatchSnapshot) (seq uint64, deaths int) {
	players := make([]PlayerSnapshot, len(snap.Players))
	for i, p := range snap.Players {
		players[len(players)-1-i] = p
	}

	info := snap.Info
	info.RoundWinStatus = append([]int(nil), snap.Info.RoundWinStatus...)

	s.mu.Lock()
	defer s.mu.Unlock()

	health := make(map[playerKey]float64, len(snap.Players))
	for _, p := range snap.Players {
		key := playerKey{Team: p.Team, ID: p.ID}
		prev, seen := health[key]
		if !seen {
			prev, seen = s.lastHealth[key]
		}
		if p.IsDead() && (!seen || prev > 0) {
			s.decay.RegisterDeath(p.X, p.Y)
			deaths++
		}
		health[key] = p.Health
	}

	s.lastHealth = health
	s.players = players
	s.info = info
	s.spike = info.Spike()
	s.sequence++
	s.timestamp = time.Now()

	return s.sequence, deaths
}

// Tick ages dead markers for the redraw of snapshot seq.
// Each sequence number decays markers at most once; repeated or stale calls are no-ops.
// Returns whether the markers were aged.
func (s *Store) Tick(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq <= s.lastTicked {
		return false
	}
	s.lastTicked = seq
	s.decay.Tick()
	return true
}

// View returns an immutable copy of the current state.
func (s *Store) View() *View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := &View{
		Sequence:  s.sequence,
		Timestamp: s.timestamp,
		Players:   append([]PlayerSnapshot(nil), s.players...),
		Info:      s.info,
		Markers:   s.decay.Markers(),
		Rotation:  fromMicro(s.rotation),
	}
	v.Info.RoundWinStatus = append([]int(nil), s.info.RoundWinStatus...)
	if s.spike != nil {
		spike := *s.spike
		v.Spike = &spike
	}
	return v
}

// Sequence returns the number of snapshots applied so far.
func (s *Store) Sequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequence
}

// Players returns the players in draw order.
func (s *Store) Players() []PlayerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PlayerSnapshot(nil), s.players...)
}

// GameInfo returns the latest match metadata.
func (s *Store) GameInfo() GameInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := s.info
	info.RoundWinStatus = append([]int(nil), s.info.RoundWinStatus...)
	return info
}

// Spike returns the planted spike, or nil.
func (s *Store) Spike() *SpikeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.spike == nil {
		return nil
	}
	spike := *s.spike
	return &spike
}

// Markers returns the live dead-player markers.
func (s *Store) Markers() []DeadMarker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decay.Markers()
}

// Rotation returns the scene rotation in degrees, within [0, 360).
func (s *Store) Rotation() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fromMicro(s.rotation)
}

// SetRotation sets the scene rotation.
func (s *Store) SetRotation(degrees float64) {
	s.mu.Lock()
	s.rotation = toMicro(degrees)
	s.mu.Unlock()
}

// AddRotation rotates the scene by delta degrees and returns the new angle.
// Angles are kept on a micro-degree grid, so opposite deltas cancel exactly.
func (s *Store) AddRotation(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = wrapMicro(s.rotation + toMicro(delta))
	return fromMicro(s.rotation)
}

const (
	microPerDegree = 1e6
	fullTurn       = 360 * microPerDegree
)

// NormalizeDegrees maps any finite angle into [0, 360), rounded to a micro-degree.
// Non-finite input yields 0.
func NormalizeDegrees(degrees float64) float64 {
	return fromMicro(toMicro(degrees))
}

func toMicro(degrees float64) int64 {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return 0
	}
	return wrapMicro(int64(math.Round(math.Mod(degrees, 360) * microPerDegree)))
}

func wrapMicro(m int64) int64 {
	m %= fullTurn
	if m < 0 {
		m += fullTurn
	}
	return m
}

func fromMicro(m int64) float64 {
	return float64(m) / microPerDegree
}
