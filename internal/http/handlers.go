// Package http hosts the thin reference HTTP surface used to exercise the
// live stream core from the command line daemon. The actual MPEG-TS
// framing layer that streams bytes to viewers is an out-of-scope
// collaborator; these handlers only expose read-side status and the
// start/stop recording operations, mirroring the shape of handlers HTTP
// routing code would call in a full deployment.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmylchreest/relaycore/internal/relaycore"
)

// Handlers wires chi routes onto a Registry.
type Handlers struct {
	Registry *relaycore.Registry
}

// Routes returns a chi.Router exposing the reference endpoints.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	r.Get("/streams", h.listStreams)
	r.Get("/streams/{channel}/{quality}", h.streamStatus)
	r.Post("/streams/{channel}/{quality}/recording", h.startRecording)
	r.Delete("/streams/{channel}/{quality}/recording", h.stopRecording)
	return r
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type streamStatusResponse struct {
	Channel            string `json:"channel"`
	Quality            string `json:"quality"`
	Status             string `json:"status"`
	Detail             string `json:"detail"`
	ClientCount        int    `json:"client_count"`
	IsRecording        bool   `json:"is_recording"`
	RecordingFilePath  string `json:"recording_file_path,omitempty"`
	RecordingSessionID string `json:"recording_session_id,omitempty"`
}

func (h *Handlers) listStreams(w http.ResponseWriter, r *http.Request) {
	streams := h.Registry.GetAllLiveStreams()
	resp := make([]streamStatusResponse, 0, len(streams))
	for _, ls := range streams {
		resp = append(resp, toStatusResponse(ls))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) streamStatus(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channel")
	quality := chi.URLParam(r, "quality")
	ls := h.Registry.Get(channelID, quality)
	writeJSON(w, http.StatusOK, toStatusResponse(ls))
}

func (h *Handlers) startRecording(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channel")
	quality := chi.URLParam(r, "quality")
	ls := h.Registry.Get(channelID, quality)
	ok, msg := ls.StartRecording()
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"success": ok, "message": msg})
}

func (h *Handlers) stopRecording(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channel")
	quality := chi.URLParam(r, "quality")
	ls := h.Registry.Get(channelID, quality)
	ok, msg := ls.StopRecording()
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"success": ok, "message": msg})
}

func toStatusResponse(ls *relaycore.LiveStream) streamStatusResponse {
	snap := ls.GetStatus()
	return streamStatusResponse{
		Channel:            ls.ChannelID,
		Quality:            ls.Quality,
		Status:             string(snap.Status),
		Detail:             snap.Detail,
		ClientCount:        snap.ClientCount,
		IsRecording:        snap.IsRecording,
		RecordingFilePath:  snap.RecordingFilePath,
		RecordingSessionID: snap.RecordingSessionID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
