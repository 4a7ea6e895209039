package server

import (
	"encoding/json"
	"net/http"

	"github.com/moorline/moorline/internal/ingest"
	"github.com/moorline/moorline/pkg/provider/llm"
)

const askSystemPrompt = `You answer questions about Greek harbours and anchorages for sailors.
Be concise and practical. If you do not know, say so.`

// handleAsk forwards a question to the completion backend and returns the
// reply unmodified.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:   "error",
			Category: ingest.CategoryMissingInput,
			Message:  "question is required",
		})
		return
	}

	resp, err := s.llm.Complete(r.Context(), llm.CompletionRequest{
		SystemPrompt: askSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: req.Question},
		},
		Temperature: 0.7,
	})
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), "llm", "complete")
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Status:   "error",
			Category: "provider_failure",
			Message:  "completion backend unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"answer": resp.Content,
	})
}

// handleSearch embeds the query and returns the nearest qna rows by cosine
// distance. No ranking beyond the raw similarity order.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:   "error",
			Category: ingest.CategoryMissingInput,
			Message:  "query is required",
		})
		return
	}

	if s.embeddings == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Status:   "error",
			Category: "provider_failure",
			Message:  "no embeddings provider configured",
		})
		return
	}

	vec, err := s.embeddings.Embed(r.Context(), req.Query)
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), s.embeddings.ModelID(), "embed")
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Status:   "error",
			Category: "provider_failure",
			Message:  "embedding backend unavailable",
		})
		return
	}

	matches, err := s.searcher.SearchQnA(r.Context(), vec, req.Limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Status:   "error",
			Category: ingest.CategoryPersistenceFailure,
			Message:  "search failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"results": matches,
	})
}
