package api

import (
	"encoding/json"
	"net/http"
	"time"

	"spike-overlay/internal/assets"
	"spike-overlay/internal/render"
	"spike-overlay/internal/ui"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// OVERLAY HANDLERS
// =============================================================================

type overlayHandlers struct {
	overlay OverlayInterface
	limiter *ClientLimiter
}

func (h *overlayHandlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame := h.overlay.LatestFrame()
	if frame == nil {
		writeError(w, "No frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	writePNG(w, frame.PNG)
}

func (h *overlayHandlers) handleLayer(w http.ResponseWriter, r *http.Request) {
	layer, ok := render.ParseLayer(chi.URLParam(r, "layer"))
	if !ok {
		writeError(w, "Unknown layer", http.StatusNotFound)
		return
	}
	img := h.overlay.Pipeline().Image(layer)
	if img == nil {
		writeError(w, "No frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	data, err := render.EncodePNG(img)
	if err != nil {
		log.Error().Err(err).Msgf("❌ Encode layer %s failed", layer)
		writeError(w, "Encode failed", http.StatusInternalServerError)
		return
	}
	writePNG(w, data)
}

func (h *overlayHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	view := h.overlay.Store().View()
	scoreA, scoreB := view.Info.Score()

	writeJSON(w, map[string]interface{}{
		"sequence":  view.Sequence,
		"timestamp": view.Timestamp,
		"players":   view.Players,
		"game_info": view.Info,
		"spike":     view.Spike,
		"markers":   view.Markers,
		"rotation":  view.Rotation,
		"round":     view.Info.CurrentRound(),
		"score":     []int{scoreA, scoreB},
	})
}

func (h *overlayHandlers) handleGetMaps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, assets.MapNames())
}

func (h *overlayHandlers) handleGetControls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"controls": h.overlay.Controls().State(),
		"rotation": h.overlay.Store().Rotation(),
	})
}

func (h *overlayHandlers) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		On   bool   `json:"on"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !isToggle(h.overlay.Controls(), req.Name) {
		writeError(w, "Unknown toggle", http.StatusBadRequest)
		return
	}
	h.enqueue(w, ui.ToggleEvent{Name: req.Name, On: req.On})
}

func (h *overlayHandlers) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Index < 0 {
		writeError(w, "Index must be non-negative", http.StatusBadRequest)
		return
	}
	h.enqueue(w, ui.SelectPlayerEvent{Index: req.Index})
}

func (h *overlayHandlers) handleRotate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta float64 `json:"delta"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.enqueue(w, ui.RotateEvent{Delta: req.Delta})
}

func (h *overlayHandlers) handleResetRotation(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, ui.ResetRotationEvent{})
}

func (h *overlayHandlers) handleSelectMap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := assets.Map(req.Name); err != nil {
		writeError(w, "Unknown map", http.StatusBadRequest)
		return
	}
	h.enqueue(w, ui.SelectMapEvent{Name: req.Name})
}

func (h *overlayHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	applied, rejected := h.overlay.Stats()
	status := map[string]interface{}{
		"status":     "ok",
		"sequence":   h.overlay.Store().Sequence(),
		"applied":    applied,
		"rejected":   rejected,
		"rate_limit": h.limiter.Stats(),
	}
	if frame := h.overlay.LatestFrame(); frame != nil {
		status["frame_sequence"] = frame.Sequence
	}
	writeJSON(w, status)
}

// enqueue hands ev to the overlay loop. Controls change on the next cycle.
func (h *overlayHandlers) enqueue(w http.ResponseWriter, ev ui.Event) {
	if err := h.overlay.Queue().Push(ev); err != nil {
		if errors.Is(err, ui.ErrQueueFull) {
			writeError(w, "Control queue full", http.StatusServiceUnavailable)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]bool{"accepted": true})
}

func isToggle(c *ui.Controls, name string) bool {
	for _, n := range c.ToggleNames() {
		if n == name {
			return true
		}
	}
	return false
}

// =============================================================================
// RELAY HANDLERS
// =============================================================================

type relayHandlers struct {
	hub     RelayInterface
	limiter *ClientLimiter
}

func (h *relayHandlers) handleGetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.hub.Peers())
}

func (h *relayHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	reg := h.hub.Registry()
	writeJSON(w, map[string]interface{}{
		"status":     "ok",
		"peers":      reg.Len(),
		"capacity":   reg.Cap(),
		"rate_limit": h.limiter.Stats(),
		"time":       time.Now().UTC(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
