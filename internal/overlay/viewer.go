// Package overlay runs the consumer loop: every relay frame is decoded, applied to the
// match store and redrawn; every UI event is applied and redrawn.
package overlay

import (
	"context"
	"sync/atomic"

	"spike-overlay/internal/match"
	"spike-overlay/internal/observability"
	"spike-overlay/internal/render"
	"spike-overlay/internal/ui"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// InboundBuffer bounds frames waiting for the loop.
const InboundBuffer = 16

type inbound struct {
	msgType int
	data    []byte
}

// Frame is an encoded composite of the last redraw.
type Frame struct {
	Sequence uint64
	PNG      []byte
}

// Viewer owns one consumer's store, controls and pipeline.
// All mutation happens on the Run goroutine; readers use Store, Controls and LatestFrame.
type Viewer struct {
	store    *match.Store
	controls *ui.Controls
	queue    *ui.Queue
	pipeline *render.Pipeline

	inbound chan inbound
	done    chan struct{}

	latest atomic.Value // *Frame

	// Stats
	applied  int64 // atomic
	rejected int64 // atomic
}

// NewViewer wires the loop's collaborators.
func NewViewer(store *match.Store, controls *ui.Controls, queue *ui.Queue, pipeline *render.Pipeline) *Viewer {
	return &Viewer{
		store:    store,
		controls: controls,
		queue:    queue,
		pipeline: pipeline,
		inbound:  make(chan inbound, InboundBuffer),
		done:     make(chan struct{}),
	}
}

// Store returns the match store.
func (v *Viewer) Store() *match.Store { return v.store }

// Controls returns the UI controls.
func (v *Viewer) Controls() *ui.Controls { return v.controls }

// Queue returns the UI event queue.
func (v *Viewer) Queue() *ui.Queue { return v.queue }

// Pipeline returns the render pipeline.
func (v *Viewer) Pipeline() *render.Pipeline { return v.pipeline }

// Deliver hands a relay frame to the loop. It blocks while the loop is busy and
// drops the frame once the loop has exited. Suitable as a relay.Handler.
func (v *Viewer) Deliver(msgType int, data []byte) {
	select {
	case v.inbound <- inbound{msgType: msgType, data: data}:
	case <-v.done:
	}
}

// Run processes frames and UI events until ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	defer close(v.done)

	log.Info().Msg("🎬 Overlay loop started")
	v.Redraw()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("🎬 Overlay loop stopped")
			return ctx.Err()

		case msg := <-v.inbound:
			// Errors are logged and counted inside the cycle
			_ = v.HandleMessage(msg.msgType, msg.data)

		case ev := <-v.queue.C():
			v.handleEvents(append([]ui.Event{ev}, v.queue.Drain()...))
		}
	}
}

// HandleMessage runs one decode-apply-render cycle. A rejected payload leaves the
// store and the last frame untouched.
func (v *Viewer) HandleMessage(msgType int, data []byte) error {
	var (
		snap *match.MatchSnapshot
		err  error
	)
	if msgType == websocket.BinaryMessage {
		snap, err = match.DecodeBinary(data)
	} else {
		snap, err = match.Decode(data)
	}
	if err != nil {
		reason := "malformed"
		var derr *match.DecodeError
		if errors.As(err, &derr) {
			reason = derr.Reason()
		}
		observability.RecordDecodeError(reason)
		atomic.AddInt64(&v.rejected, 1)
		log.Warn().Err(err).Msg("⚠️ Snapshot rejected")
		return err
	}

	seq, deaths := v.store.Apply(snap)
	observability.RecordSnapshotApplied()
	atomic.AddInt64(&v.applied, 1)
	if deaths > 0 {
		log.Debug().Msgf("💀 %d death(s) in snapshot %d", deaths, seq)
	}

	v.Redraw()

	v.store.Tick(seq)
	observability.UpdateDeadMarkers(len(v.store.Markers()))
	return nil
}

// HandleEvent applies one UI event and redraws. Markers do not age.
func (v *Viewer) HandleEvent(ev ui.Event) error {
	if err := v.controls.Apply(ev, v.store); err != nil {
		log.Warn().Err(err).Msgf("⚠️ UI event %T ignored", ev)
		return err
	}
	v.Redraw()
	return nil
}

// handleEvents applies a batch of queued events with a single redraw
func (v *Viewer) handleEvents(events []ui.Event) {
	for _, ev := range events {
		if err := v.controls.Apply(ev, v.store); err != nil {
			log.Warn().Err(err).Msgf("⚠️ UI event %T ignored", ev)
		}
	}
	v.Redraw()
}

// Redraw repaints every layer from the current store and caches the composite PNG.
func (v *Viewer) Redraw() *render.Report {
	v.faceSelected()

	view := v.store.View()
	report := v.pipeline.Render(view, v.controls)

	img := v.pipeline.Compose(v.controls.ToggleState(ui.TogglePlayerTable))
	png, err := render.EncodePNG(img)
	if err != nil {
		log.Error().Err(err).Msg("❌ Frame encode failed")
		return report
	}
	v.latest.Store(&Frame{Sequence: view.Sequence, PNG: png})
	return report
}

// faceSelected points the scene along the selected player's view while the
// orientation toggle is on
func (v *Viewer) faceSelected() {
	if !v.controls.ToggleState(ui.ToggleOrientation) {
		return
	}
	players := v.store.Players()
	idx := v.controls.SelectedIndex()
	if idx < 0 || idx >= len(players) {
		return
	}
	v.store.SetRotation(players[idx].Rotation)
}

// LatestFrame returns the last encoded composite, or nil before the first redraw.
func (v *Viewer) LatestFrame() *Frame {
	if f, ok := v.latest.Load().(*Frame); ok {
		return f
	}
	return nil
}

// Stats returns applied and rejected snapshot counts.
func (v *Viewer) Stats() (applied, rejected int64) {
	return atomic.LoadInt64(&v.applied), atomic.LoadInt64(&v.rejected)
}
