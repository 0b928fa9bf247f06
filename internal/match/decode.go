package match

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Decode failure causes. A *DecodeError always wraps exactly one of these.
var (
	ErrMalformed      = errors.New("malformed payload")
	ErrMissingField   = errors.New("missing required field")
	ErrLengthMismatch = errors.New("per-player arrays differ in length")
	ErrInvalidNumber  = errors.New("invalid number")
)

// DecodeError describes why a payload was rejected.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return "decode snapshot: " + e.Err.Error()
	}
	return fmt.Sprintf("decode snapshot: %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Reason is a bounded label for metrics.
func (e *DecodeError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrMissingField):
		return "missing_field"
	case errors.Is(e.Err, ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(e.Err, ErrInvalidNumber):
		return "invalid_number"
	default:
		return "malformed"
	}
}

// wireNumber accepts a bare number or a one-element array holding one.
// The producer wraps round_time and the spike fields in arrays.
type wireNumber float64

func (n *wireNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var arr []float64
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		if len(arr) > 0 {
			*n = wireNumber(arr[0])
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = wireNumber(f)
	return nil
}

func (n *wireNumber) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	if arr, ok := v.([]interface{}); ok {
		if len(arr) == 0 {
			return nil
		}
		v = arr[0]
	}
	if v == nil {
		// Same as JSON null
		*n = 0
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return errors.Errorf("msgpack: %T is not a number", v)
	}
	*n = wireNumber(f)
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}

// wireSnapshot is the column-oriented document producers send.
type wireSnapshot struct {
	Players  *wirePlayers  `json:"players" msgpack:"players"`
	GameInfo *wireGameInfo `json:"game_info" msgpack:"game_info"`
}

type wirePlayers struct {
	ID       []float64 `json:"id" msgpack:"id"`
	X        []float64 `json:"x" msgpack:"x"`
	Y        []float64 `json:"y" msgpack:"y"`
	Health   []float64 `json:"health" msgpack:"health"`
	Team     []float64 `json:"team" msgpack:"team"`
	Dormant  []float64 `json:"dormant" msgpack:"dormant"`
	Rotation []float64 `json:"rotation" msgpack:"rotation"`
	Scoped   []float64 `json:"scoped" msgpack:"scoped"`
	Weapon   []float64 `json:"weapon" msgpack:"weapon"`
	Kill     []float64 `json:"kill" msgpack:"kill"`
	Death    []float64 `json:"death" msgpack:"death"`
	Assist   []float64 `json:"assist" msgpack:"assist"`
	ACS      []float64 `json:"acs" msgpack:"acs"`
	Shield   []float64 `json:"shield" msgpack:"shield"`
	Credits  []float64 `json:"credits" msgpack:"credits"`
}

type wireGameInfo struct {
	RoundWinStatus []float64   `json:"round_win_status" msgpack:"round_win_status"`
	MaxRounds      *wireNumber `json:"max_rounds" msgpack:"max_rounds"`
	PlayedRounds   *wireNumber `json:"played_rounds" msgpack:"played_rounds"`
	RoundTime      wireNumber  `json:"round_time" msgpack:"round_time"`
	SpikePlanted   wireNumber  `json:"spike_planted" msgpack:"spike_planted"`
	SpikeX         wireNumber  `json:"spike_x" msgpack:"spike_x"`
	SpikeY         wireNumber  `json:"spike_y" msgpack:"spike_y"`
	SpikeTime      wireNumber  `json:"spike_time" msgpack:"spike_time"`
	DefuseTime     wireNumber  `json:"defuse_time" msgpack:"defuse_time"`
}

// column is one per-player array with its semantic type.
type column struct {
	name     string
	values   []float64
	integral bool
}

// Decode parses a JSON text frame into a validated snapshot.
// It never touches shared state; callers decide what to do with the result.
func Decode(payload []byte) (*MatchSnapshot, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &DecodeError{Err: errors.Wrap(ErrMalformed, "empty payload")}
	}
	var doc wireSnapshot
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &DecodeError{Err: errors.Wrap(ErrMalformed, err.Error())}
	}
	return doc.validate()
}

// DecodeBinary parses a MessagePack binary frame carrying the same document as Decode.
func DecodeBinary(payload []byte) (*MatchSnapshot, error) {
	if len(payload) == 0 {
		return nil, &DecodeError{Err: errors.Wrap(ErrMalformed, "empty payload")}
	}
	var doc wireSnapshot
	if err := msgpack.Unmarshal(payload, &doc); err != nil {
		return nil, &DecodeError{Err: errors.Wrap(ErrMalformed, err.Error())}
	}
	return doc.validate()
}

func (doc *wireSnapshot) validate() (*MatchSnapshot, error) {
	if doc.Players == nil {
		return nil, &DecodeError{Field: "players", Err: ErrMissingField}
	}
	if doc.GameInfo == nil {
		return nil, &DecodeError{Field: "game_info", Err: ErrMissingField}
	}

	wp := doc.Players
	columns := []column{
		{"players.id", wp.ID, true},
		{"players.x", wp.X, false},
		{"players.y", wp.Y, false},
		{"players.health", wp.Health, false},
		{"players.team", wp.Team, true},
		{"players.dormant", wp.Dormant, true},
		{"players.rotation", wp.Rotation, false},
		{"players.scoped", wp.Scoped, true},
		{"players.weapon", wp.Weapon, true},
		{"players.kill", wp.Kill, true},
		{"players.death", wp.Death, true},
		{"players.assist", wp.Assist, true},
		{"players.acs", wp.ACS, true},
		{"players.shield", wp.Shield, true},
		{"players.credits", wp.Credits, true},
	}

	n := len(wp.ID)
	for _, col := range columns {
		if len(col.values) != n {
			return nil, &DecodeError{
				Field: col.name,
				Err:   errors.Wrapf(ErrLengthMismatch, "got %d entries, want %d", len(col.values), n),
			}
		}
		for i, v := range col.values {
			if err := checkNumber(v, col.integral); err != nil {
				return nil, &DecodeError{Field: fmt.Sprintf("%s[%d]", col.name, i), Err: err}
			}
		}
	}

	players := make([]PlayerSnapshot, n)
	for i := range players {
		players[i] = PlayerSnapshot{
			ID:       int(wp.ID[i]),
			X:        wp.X[i],
			Y:        wp.Y[i],
			Health:   wp.Health[i],
			Team:     int(wp.Team[i]),
			Dormant:  wp.Dormant[i] != 0,
			Rotation: wp.Rotation[i],
			Scoped:   wp.Scoped[i] != 0,
			Weapon:   int(wp.Weapon[i]),
			Kills:    int(wp.Kill[i]),
			Deaths:   int(wp.Death[i]),
			Assists:  int(wp.Assist[i]),
			ACS:      int(wp.ACS[i]),
			Shield:   int(wp.Shield[i]),
			Credits:  int(wp.Credits[i]),
		}
	}

	info, err := doc.GameInfo.toGameInfo()
	if err != nil {
		return nil, err
	}

	return &MatchSnapshot{Players: players, Info: info}, nil
}

func (g *wireGameInfo) toGameInfo() (GameInfo, error) {
	info := GameInfo{
		RoundWinStatus: make([]int, len(g.RoundWinStatus)),
		MaxRounds:      RegulationRounds,
	}

	for i, v := range g.RoundWinStatus {
		if err := checkNumber(v, true); err != nil {
			return GameInfo{}, &DecodeError{Field: fmt.Sprintf("game_info.round_win_status[%d]", i), Err: err}
		}
		info.RoundWinStatus[i] = int(v)
	}

	scalars := []struct {
		name     string
		value    float64
		integral bool
		dst      *float64
	}{
		{"game_info.round_time", float64(g.RoundTime), false, &info.RoundTime},
		{"game_info.spike_x", float64(g.SpikeX), false, &info.SpikeX},
		{"game_info.spike_y", float64(g.SpikeY), false, &info.SpikeY},
		{"game_info.spike_time", float64(g.SpikeTime), false, &info.SpikeTime},
		{"game_info.defuse_time", float64(g.DefuseTime), false, &info.DefuseTime},
		{"game_info.spike_planted", float64(g.SpikePlanted), true, nil},
	}
	for _, s := range scalars {
		if err := checkNumber(s.value, s.integral); err != nil {
			return GameInfo{}, &DecodeError{Field: s.name, Err: err}
		}
		if s.dst != nil {
			*s.dst = s.value
		}
	}
	info.SpikePlanted = g.SpikePlanted != 0

	if g.MaxRounds != nil {
		if err := checkNumber(float64(*g.MaxRounds), true); err != nil {
			return GameInfo{}, &DecodeError{Field: "game_info.max_rounds", Err: err}
		}
		if m := int(*g.MaxRounds); m < 0 || m > MaxMatchRounds {
			return GameInfo{}, &DecodeError{
				Field: "game_info.max_rounds",
				Err:   errors.Wrapf(ErrInvalidNumber, "%d outside 0..%d", m, MaxMatchRounds),
			}
		}
		info.MaxRounds = int(*g.MaxRounds)
	}

	if g.PlayedRounds != nil {
		if err := checkNumber(float64(*g.PlayedRounds), true); err != nil {
			return GameInfo{}, &DecodeError{Field: "game_info.played_rounds", Err: err}
		}
		info.PlayedRounds = int(*g.PlayedRounds)
	} else {
		a, b := info.Score()
		info.PlayedRounds = a + b
	}

	return info, nil
}

// checkNumber rejects values the declared type cannot represent. It never clamps.
func checkNumber(v float64, integral bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Wrapf(ErrInvalidNumber, "%v is not finite", v)
	}
	if !integral {
		return nil
	}
	if v != math.Trunc(v) {
		return errors.Wrapf(ErrInvalidNumber, "%v is not an integer", v)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return errors.Wrapf(ErrInvalidNumber, "%v overflows int32", v)
	}
	return nil
}
