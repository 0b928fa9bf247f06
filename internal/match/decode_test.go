package match

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// samplePayload builds a two-player document shaped like the producer's output
func samplePayload() map[string]interface{} {
	return map[string]interface{}{
		"players": map[string]interface{}{
			"id":       []float64{8, 3},
			"x":        []float64{100, 400.5},
			"y":        []float64{100, 220},
			"health":   []float64{0, 87},
			"team":     []float64{0, 1},
			"dormant":  []float64{0, 1},
			"rotation": []float64{90, 270},
			"scoped":   []float64{0, 1},
			"weapon":   []float64{12, 5},
			"kill":     []float64{3, 1},
			"death":    []float64{1, 2},
			"assist":   []float64{0, 4},
			"acs":      []float64{210, 180},
			"shield":   []float64{50, 25},
			"credits":  []float64{3900, 800},
		},
		"game_info": map[string]interface{}{
			"round_win_status": []float64{0, 1, 2},
			"max_rounds":       24,
			"played_rounds":    2,
			"round_time":       []float64{74.6},
			"spike_planted":    1,
			"spike_x":          []float64{512},
			"spike_y":          []float64{300},
			"spike_time":       []float64{7.5},
			"defuse_time":      []float64{0},
		},
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestDecodeValidPayload(t *testing.T) {
	snap, err := Decode(mustJSON(t, samplePayload()))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(snap.Players) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(snap.Players))
	}

	p := snap.Players[0]
	if p.ID != 8 || p.X != 100 || p.Y != 100 || p.Health != 0 {
		t.Errorf("Unexpected first player: %+v", p)
	}
	if snap.Players[1].Dormant != true || snap.Players[1].Scoped != true {
		t.Errorf("Expected second player dormant and scoped, got %+v", snap.Players[1])
	}
	if snap.Players[1].Credits != 800 {
		t.Errorf("Expected 800 credits, got %d", snap.Players[1].Credits)
	}

	info := snap.Info
	if info.RoundTime != 74.6 {
		t.Errorf("Expected round time 74.6, got %v", info.RoundTime)
	}
	if !info.SpikePlanted || info.SpikeTime != 7.5 {
		t.Errorf("Expected planted spike with 7.5s, got %+v", info)
	}
	if info.CurrentRound() != 3 {
		t.Errorf("Expected round 3, got %d", info.CurrentRound())
	}
}

func TestDecodeAcceptsBareScalars(t *testing.T) {
	payload := samplePayload()
	gi := payload["game_info"].(map[string]interface{})
	gi["round_time"] = 12
	gi["spike_planted"] = 0
	delete(gi, "max_rounds")
	delete(gi, "played_rounds")

	snap, err := Decode(mustJSON(t, payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if snap.Info.RoundTime != 12 {
		t.Errorf("Expected round time 12, got %v", snap.Info.RoundTime)
	}
	if snap.Info.MaxRounds != RegulationRounds {
		t.Errorf("Expected default max rounds %d, got %d", RegulationRounds, snap.Info.MaxRounds)
	}
	if snap.Info.PlayedRounds != 2 {
		t.Errorf("Expected played rounds derived from score, got %d", snap.Info.PlayedRounds)
	}
	if snap.Info.Spike() != nil {
		t.Error("Spike should be nil when not planted")
	}
}

func TestDecodeRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p map[string]interface{})
		want   error
	}{
		{
			name:   "missing players",
			mutate: func(p map[string]interface{}) { delete(p, "players") },
			want:   ErrMissingField,
		},
		{
			name:   "missing game_info",
			mutate: func(p map[string]interface{}) { delete(p, "game_info") },
			want:   ErrMissingField,
		},
		{
			name: "short health array",
			mutate: func(p map[string]interface{}) {
				p["players"].(map[string]interface{})["health"] = []float64{100}
			},
			want: ErrLengthMismatch,
		},
		{
			name: "missing credits array",
			mutate: func(p map[string]interface{}) {
				delete(p["players"].(map[string]interface{}), "credits")
			},
			want: ErrLengthMismatch,
		},
		{
			name: "non-numeric health",
			mutate: func(p map[string]interface{}) {
				p["players"].(map[string]interface{})["health"] = []interface{}{"full", 10}
			},
			want: ErrMalformed,
		},
		{
			name: "fractional team",
			mutate: func(p map[string]interface{}) {
				p["players"].(map[string]interface{})["team"] = []float64{0.5, 1}
			},
			want: ErrInvalidNumber,
		},
		{
			name: "out of range credits",
			mutate: func(p map[string]interface{}) {
				p["players"].(map[string]interface{})["credits"] = []float64{1e12, 0}
			},
			want: ErrInvalidNumber,
		},
		{
			name: "max rounds beyond overtime bound",
			mutate: func(p map[string]interface{}) {
				p["game_info"].(map[string]interface{})["max_rounds"] = math.MaxInt32
			},
			want: ErrInvalidNumber,
		},
		{
			name: "negative max rounds",
			mutate: func(p map[string]interface{}) {
				p["game_info"].(map[string]interface{})["max_rounds"] = -2
			},
			want: ErrInvalidNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := samplePayload()
			tt.mutate(payload)

			snap, err := Decode(mustJSON(t, payload))
			if err == nil {
				t.Fatalf("Expected error, got snapshot %+v", snap)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}

			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("Expected *DecodeError, got %T", err)
			}
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	for _, payload := range []string{"", "   ", "not json", "[1,2,3]", `{"players": 5}`} {
		_, err := Decode([]byte(payload))
		if err == nil {
			t.Errorf("Expected error for %q", payload)
			continue
		}
		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			t.Errorf("Expected *DecodeError for %q, got %T", payload, err)
		}
	}
}

func TestDecodeErrorReason(t *testing.T) {
	payload := samplePayload()
	delete(payload, "players")

	_, err := Decode(mustJSON(t, payload))
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("Expected *DecodeError, got %v", err)
	}
	if decErr.Reason() != "missing_field" {
		t.Errorf("Expected reason missing_field, got %s", decErr.Reason())
	}
	if decErr.Field != "players" {
		t.Errorf("Expected field players, got %s", decErr.Field)
	}
}

func TestDecodeBinaryMatchesJSON(t *testing.T) {
	payload := samplePayload()

	bin, err := msgpack.Marshal(payload)
	if err != nil {
		t.Fatalf("msgpack marshal: %v", err)
	}

	fromBin, err := DecodeBinary(bin)
	if err != nil {
		t.Fatalf("DecodeBinary failed: %v", err)
	}
	fromJSON, err := Decode(mustJSON(t, payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(fromBin.Players) != len(fromJSON.Players) {
		t.Fatalf("Player count differs: %d vs %d", len(fromBin.Players), len(fromJSON.Players))
	}
	for i := range fromBin.Players {
		if fromBin.Players[i] != fromJSON.Players[i] {
			t.Errorf("Player %d differs: %+v vs %+v", i, fromBin.Players[i], fromJSON.Players[i])
		}
	}
	if fromBin.Info.SpikeTime != fromJSON.Info.SpikeTime || fromBin.Info.MaxRounds != fromJSON.Info.MaxRounds {
		t.Errorf("Game info differs: %+v vs %+v", fromBin.Info, fromJSON.Info)
	}
}

func TestDecodeBinaryGarbage(t *testing.T) {
	_, err := DecodeBinary([]byte{0xc1})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}

func TestDecodeAcceptsLongOvertime(t *testing.T) {
	payload := samplePayload()
	payload["game_info"].(map[string]interface{})["max_rounds"] = MaxMatchRounds

	snap, err := Decode(mustJSON(t, payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if snap.Info.MaxRounds != MaxMatchRounds {
		t.Errorf("Expected max rounds %d, got %d", MaxMatchRounds, snap.Info.MaxRounds)
	}
}

func TestDecodeBinaryRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p map[string]interface{})
	}{
		{
			name: "NaN x",
			mutate: func(p map[string]interface{}) {
				p["players"].(map[string]interface{})["x"] = []float64{math.NaN(), 1}
			},
		},
		{
			name: "infinite x",
			mutate: func(p map[string]interface{}) {
				p["players"].(map[string]interface{})["x"] = []float64{math.Inf(1), 1}
			},
		},
		{
			name: "NaN round time",
			mutate: func(p map[string]interface{}) {
				p["game_info"].(map[string]interface{})["round_time"] = []float64{math.NaN()}
			},
		},
		{
			name: "infinite round time",
			mutate: func(p map[string]interface{}) {
				p["game_info"].(map[string]interface{})["round_time"] = []float64{math.Inf(1)}
			},
		},
		{
			name: "negative infinite bare round time",
			mutate: func(p map[string]interface{}) {
				p["game_info"].(map[string]interface{})["round_time"] = math.Inf(-1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := samplePayload()
			tt.mutate(payload)

			bin, err := msgpack.Marshal(payload)
			if err != nil {
				t.Fatalf("msgpack marshal: %v", err)
			}
			snap, err := DecodeBinary(bin)
			if err == nil {
				t.Fatalf("Expected error, got snapshot %+v", snap)
			}
			if !errors.Is(err, ErrInvalidNumber) {
				t.Errorf("Expected ErrInvalidNumber, got %v", err)
			}
		})
	}
}

func TestDecodeBinaryNilNumbers(t *testing.T) {
	payload := samplePayload()
	gi := payload["game_info"].(map[string]interface{})
	gi["round_time"] = []interface{}{nil}
	gi["spike_time"] = nil

	bin, err := msgpack.Marshal(payload)
	if err != nil {
		t.Fatalf("msgpack marshal: %v", err)
	}
	snap, err := DecodeBinary(bin)
	if err != nil {
		t.Fatalf("DecodeBinary failed: %v", err)
	}
	if snap.Info.RoundTime != 0 || snap.Info.SpikeTime != 0 {
		t.Errorf("Expected nil numbers to read as 0, got round %v spike %v", snap.Info.RoundTime, snap.Info.SpikeTime)
	}

	// JSON null reads the same way
	gi["round_time"] = []interface{}{nil}
	gi["spike_time"] = nil
	fromJSON, err := Decode(mustJSON(t, payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if fromJSON.Info.RoundTime != snap.Info.RoundTime || fromJSON.Info.SpikeTime != snap.Info.SpikeTime {
		t.Errorf("JSON and binary differ: %+v vs %+v", fromJSON.Info, snap.Info)
	}
}
