package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/eike-heimpel/forge/internal/prompt"
	"github.com/eike-heimpel/forge/internal/prompttest"
	"github.com/eike-heimpel/forge/internal/storage"
)

const templatePreviewLength = 200

// promptInfo is the wire representation of one prompt version.
type promptInfo struct {
	Name               string                   `json:"name"`
	Version            int                      `json:"version"`
	Description        string                   `json:"description"`
	ExpectedVars       []string                 `json:"expected_vars"`
	Parameters         storage.PromptParameters `json:"parameters"`
	AssertivenessLevel *int                     `json:"assertivenessLevel,omitempty"`
}

func toPromptInfo(p *storage.AIPrompt) promptInfo {
	return promptInfo{
		Name:               p.Name,
		Version:            p.Version,
		Description:        p.Description,
		ExpectedVars:       p.ExpectedVars,
		Parameters:         p.Parameters,
		AssertivenessLevel: p.AssertivenessLevel,
	}
}

func (s *Server) listPromptsHandler(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.store.ListActivePrompts(r.Context())
	if err != nil {
		s.logger.Error("Failed to list prompts", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve prompts")
		return
	}

	infos := make([]promptInfo, 0, len(prompts))
	for i := range prompts {
		infos = append(infos, toPromptInfo(&prompts[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prompts":     infos,
		"total_count": len(infos),
	})
}

// resolvePrompt loads a prompt by path name and optional ?version= query.
// Writes the error response itself and returns nil on failure.
func (s *Server) resolvePrompt(w http.ResponseWriter, r *http.Request) *storage.AIPrompt {
	name := r.PathValue("name")

	var version *int
	if raw := r.URL.Query().Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid version number")
			return nil
		}
		version = &v
	}

	p, err := s.store.GetPromptByNameAndVersion(r.Context(), name, version)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Prompt '%s' not found", name))
			return nil
		}
		s.logger.Error("Failed to load prompt", "prompt", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve prompt details")
		return nil
	}
	return p
}

func (s *Server) promptDetailHandler(w http.ResponseWriter, r *http.Request) {
	p := s.resolvePrompt(w, r)
	if p == nil {
		return
	}

	preview := p.Template
	if len(preview) > templatePreviewLength {
		preview = preview[:templatePreviewLength] + "..."
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prompt":           toPromptInfo(p),
		"template_preview": preview,
		"sample_variables": prompt.SampleVariables(p.ExpectedVars),
	})
}

func (s *Server) promptSampleHandler(w http.ResponseWriter, r *http.Request) {
	p := s.resolvePrompt(w, r)
	if p == nil {
		return
	}

	samples := prompt.SampleVariables(p.ExpectedVars)

	sampleJSON, _ := json.Marshal(map[string]any{"variables": samples})
	curlExample := fmt.Sprintf(
		"curl -X POST /prompts/%s/test -H 'Content-Type: application/json' -d '%s'",
		p.Name, sampleJSON,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"prompt_name":      p.Name,
		"prompt_version":   p.Version,
		"sample_variables": samples,
		"usage_example": map[string]string{
			"curl":        curlExample,
			"description": "Copy the sample_variables above and modify them as needed for testing",
		},
	})
}

type promptTestRequest struct {
	Variables prompt.Vars `json:"variables"`
}

func (s *Server) testPromptHandler(w http.ResponseWriter, r *http.Request) {
	p := s.resolvePrompt(w, r)
	if p == nil {
		return
	}

	var req promptTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.harness.Test(r.Context(), p, req.Variables)
	if err != nil {
		var missing *prompttest.MissingVariablesError
		if errors.As(err, &missing) {
			writeError(w, http.StatusBadRequest, missing.Error())
			return
		}
		s.logger.Error("Prompt test failed", "prompt", p.Name, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to test prompt: %s", err))
		return
	}

	s.logger.Info("Tested prompt",
		"prompt", p.Name, "execution_time_ms", result.ExecutionTimeMS)
	writeJSON(w, http.StatusOK, result)
}
