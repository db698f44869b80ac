package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eike-heimpel/forge/internal/session"
)

// Legacy whole-document endpoints. These drive the role-chat and briefing
// flow that predates the webhook pipeline and operate on the forge state
// document as a unit.

type chatRequest struct {
	ForgeID    string `json:"forge_id"`
	RoleID     string `json:"role_id"`
	Message    string `json:"message"`
	IsQuestion bool   `json:"is_question"`
}

type chatResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	AIResponse *string `json:"ai_response"`
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.logger.Info("Processing chat",
		"forge_id", req.ForgeID, "role_id", req.RoleID, "is_question", req.IsQuestion)

	reply, err := s.sessions.Chat(r.Context(), req.ForgeID, req.RoleID, req.Message, req.IsQuestion)
	if err != nil {
		if errors.Is(err, session.ErrRoleNotFound) {
			writeError(w, http.StatusNotFound, "Role not found")
			return
		}
		s.logger.Error("Chat processing failed", "forge_id", req.ForgeID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := chatResponse{
		Success: true,
		Message: "Chat message processed successfully",
	}
	if reply != "" {
		resp.AIResponse = &reply
	}
	writeJSON(w, http.StatusOK, resp)
}

type synthesizeRequest struct {
	ForgeID string `json:"forge_id"`
}

func (s *Server) synthesizeHandler(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.logger.Info("Starting synthesis", "forge_id", req.ForgeID)

	synthesisID, err := s.sessions.Synthesize(r.Context(), req.ForgeID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoContributions):
			writeError(w, http.StatusBadRequest, "No contributions found to synthesize")
		case errors.Is(err, session.ErrSynthesisFailed):
			s.logger.Error("Synthesis failed", "forge_id", req.ForgeID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to generate synthesis")
		default:
			s.logger.Error("Synthesis failed", "forge_id", req.ForgeID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	s.logger.Info("Synthesis completed", "forge_id", req.ForgeID, "synthesis_id", synthesisID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Synthesis completed successfully",
		"synthesis_id": synthesisID,
	})
}
