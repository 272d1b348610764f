package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/book-expert/kokoro-studio/internal/core"
	"github.com/book-expert/kokoro-studio/internal/session"
	"github.com/book-expert/kokoro-studio/internal/voices"
)

type batchRequest struct {
	Lines    []string `json:"lines"`
	Voice    string   `json:"voice"`
	Language string   `json:"language"`
	Speed    float64  `json:"speed"`
}

type statsRequest struct {
	Text  string  `json:"text"`
	Speed float64 `json:"speed"`
}

type presetRequest struct {
	Name     string  `json:"name"`
	Language string  `json:"language"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
}

type voicesResponse struct {
	Languages []voices.Language `json:"languages"`
	MinSpeed  float64           `json:"min_speed"`
	MaxSpeed  float64           `json:"max_speed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	minSpeed, maxSpeed := s.session.SpeedBounds()

	s.writeJSON(w, http.StatusOK, voicesResponse{
		Languages: voices.Catalog(),
		MinSpeed:  minSpeed,
		MaxSpeed:  maxSpeed,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req core.GenerationRequest

	if !s.decodeJSON(w, r, &req) {
		return
	}

	entry, err := s.session.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest

	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.session.GenerateBatch(r.Context(), req.Lines, req.Voice, req.Language, req.Speed)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var req statsRequest

	if !s.decodeJSON(w, r, &req) {
		return
	}

	s.writeJSON(w, http.StatusOK, s.session.Stats(req.Text, req.Speed))
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	entry, err := s.session.Entry(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	filename := fmt.Sprintf("kokoro_%s_%d.wav", sanitizeFilename(entry.Request.Voice), entry.Seq)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(entry.WAV)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	archiveID := r.PathValue("id")

	archive, err := s.session.Archive(archiveID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	filename := fmt.Sprintf("kokoro_batch_%s.zip", sanitizeFilename(archiveID))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(archive)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.History())
}

func (s *Server) handleClearHistory(w http.ResponseWriter, _ *http.Request) {
	s.session.ClearHistory()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Presets())
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest

	if !s.decodeJSON(w, r, &req) {
		return
	}

	err := s.session.SavePreset(req.Name, session.Preset{
		Language: req.Language,
		Voice:    req.Voice,
		Speed:    req.Speed,
	})
	if err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	err := s.session.DeletePreset(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	err := json.NewDecoder(r.Body).Decode(target)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})

		return false
	}

	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		s.log.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	if status == http.StatusBadGateway {
		s.log.Error("Request failed: %v", err)
	}

	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// sanitizeFilename keeps download names safe for Content-Disposition and
// ordinary filesystems.
func sanitizeFilename(name string) string {
	var builder strings.Builder

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}

	return builder.String()
}
