package overlay

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"testing"
	"time"

	"spike-overlay/internal/assets"
	"spike-overlay/internal/match"
	"spike-overlay/internal/render"
	"spike-overlay/internal/ui"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

func newTestViewer(t *testing.T) *Viewer {
	t.Helper()
	pipeline, err := render.NewPipeline(assets.NewTable(), render.Options{CanvasSize: 256})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return NewViewer(match.NewStore(match.DefaultPrevailCount), ui.NewControls("Ascent"), ui.NewQueue(8), pipeline)
}

// snapshot has player 8 dead at (300,300) and player 3 alive facing 270
func snapshot() map[string]interface{} {
	return map[string]interface{}{
		"players": map[string]interface{}{
			"id":       []int{8, 3},
			"x":        []float64{300, 120},
			"y":        []float64{300, 80},
			"health":   []float64{0, 100},
			"team":     []int{0, 1},
			"dormant":  []int{0, 0},
			"rotation": []float64{90, 270},
			"scoped":   []int{0, 0},
			"weapon":   []int{12, 5},
			"kill":     []int{1, 0},
			"death":    []int{0, 1},
			"assist":   []int{0, 0},
			"acs":      []int{150, 90},
			"shield":   []int{25, 50},
			"credits":  []int{1200, 4500},
		},
		"game_info": map[string]interface{}{
			"round_win_status": []int{0, 1, 2},
			"max_rounds":       24,
			"round_time":       65.0,
			"spike_planted":    0,
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

func TestHandleMessageAppliesAndRenders(t *testing.T) {
	v := newTestViewer(t)

	if err := v.HandleMessage(websocket.TextMessage, mustJSON(t, snapshot())); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if seq := v.Store().Sequence(); seq != 1 {
		t.Errorf("Expected sequence 1, got %d", seq)
	}

	// One death registered, aged once by this cycle
	markers := v.Store().Markers()
	if len(markers) != 1 || markers[0].PrevailCount != match.DefaultPrevailCount-1 {
		t.Errorf("Expected one marker at count %d, got %+v", match.DefaultPrevailCount-1, markers)
	}

	frame := v.LatestFrame()
	if frame == nil || frame.Sequence != 1 {
		t.Fatalf("Expected frame for sequence 1, got %+v", frame)
	}
	if _, err := png.Decode(bytes.NewReader(frame.PNG)); err != nil {
		t.Errorf("Frame is not a valid PNG: %v", err)
	}
}

func TestHandleMessageBinary(t *testing.T) {
	v := newTestViewer(t)

	data, err := msgpack.Marshal(snapshot())
	if err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	if err := v.HandleMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if len(v.Store().Players()) != 2 {
		t.Errorf("Expected 2 players, got %d", len(v.Store().Players()))
	}
}

func TestRejectedMessageLeavesState(t *testing.T) {
	v := newTestViewer(t)
	if err := v.HandleMessage(websocket.TextMessage, mustJSON(t, snapshot())); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	before := v.LatestFrame()

	err := v.HandleMessage(websocket.TextMessage, []byte(`{"players":`))
	var derr *match.DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}

	if v.Store().Sequence() != 1 {
		t.Errorf("Rejected payload should not be applied")
	}
	if v.LatestFrame() != before {
		t.Error("Rejected payload should not redraw")
	}
	if applied, rejected := v.Stats(); applied != 1 || rejected != 1 {
		t.Errorf("Expected 1 applied and 1 rejected, got %d/%d", applied, rejected)
	}
}

func TestOversizedMaxRoundsRejected(t *testing.T) {
	v := newTestViewer(t)
	if err := v.HandleMessage(websocket.TextMessage, mustJSON(t, snapshot())); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	before := v.LatestFrame()

	huge := snapshot()
	huge["game_info"].(map[string]interface{})["max_rounds"] = 2147483647
	err := v.HandleMessage(websocket.TextMessage, mustJSON(t, huge))
	if !errors.Is(err, match.ErrInvalidNumber) {
		t.Fatalf("Expected ErrInvalidNumber, got %v", err)
	}

	if v.Store().Sequence() != 1 {
		t.Error("Oversized max_rounds should not be applied")
	}
	if v.Store().View().Info.MaxRounds != 24 {
		t.Errorf("Expected max rounds 24, got %d", v.Store().View().Info.MaxRounds)
	}
	if v.LatestFrame() != before {
		t.Error("Oversized max_rounds should not redraw")
	}
}

func TestOrientationFollowsSelectedPlayer(t *testing.T) {
	v := newTestViewer(t)
	v.Controls().SetToggle(ui.ToggleOrientation, true)
	v.Controls().Select(0) // store order is reversed, index 0 is player 3

	if err := v.HandleMessage(websocket.TextMessage, mustJSON(t, snapshot())); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if got := v.Store().Rotation(); got != 270 {
		t.Errorf("Expected rotation 270, got %v", got)
	}
}

func TestHandleEventDoesNotAgeMarkers(t *testing.T) {
	v := newTestViewer(t)
	if err := v.HandleMessage(websocket.TextMessage, mustJSON(t, snapshot())); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := v.HandleEvent(ui.RotateEvent{Delta: 10}); err != nil {
			t.Fatalf("HandleEvent failed: %v", err)
		}
	}

	if got := v.Store().Rotation(); got != 100 {
		t.Errorf("Expected rotation 100, got %v", got)
	}
	if markers := v.Store().Markers(); len(markers) != 1 {
		t.Errorf("UI redraws should not age markers, got %+v", markers)
	}

	if err := v.HandleEvent(ui.ToggleEvent{Name: "nope", On: true}); !errors.Is(err, ui.ErrUnknownToggle) {
		t.Errorf("Expected ErrUnknownToggle, got %v", err)
	}
}

func TestRunProcessesFramesAndEvents(t *testing.T) {
	v := newTestViewer(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- v.Run(ctx) }()

	v.Deliver(websocket.TextMessage, mustJSON(t, snapshot()))
	waitFor(t, func() bool { return v.Store().Sequence() == 1 })

	if err := v.Queue().Push(ui.RotateEvent{Delta: 45}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	waitFor(t, func() bool { return v.Store().Rotation() == 45 })

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	// Delivery after shutdown must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < InboundBuffer+2; i++ {
			v.Deliver(websocket.TextMessage, []byte("{}"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver blocked after Run exited")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
