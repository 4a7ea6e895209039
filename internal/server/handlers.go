package server

import (
	"encoding/json"
	"net/http"

	"github.com/moorline/moorline/internal/ingest"
)

// ingestResponse is the success envelope of POST /v1/ingest.
type ingestResponse struct {
	Status             string        `json:"status"`
	Shape              ingest.Shape  `json:"shape"`
	ID                 string        `json:"id"`
	Confidence         float64       `json:"confidence"`
	Method             ingest.Method `json:"method"`
	ReferenceID        *string       `json:"reference_id"`
	EmbeddingTriggered bool          `json:"embedding_triggered"`
	Cleaned            any           `json:"cleaned"`
}

// handleIngest runs the full ingestion pipeline for one transcript.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var t ingest.Transcript
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:   "error",
			Category: ingest.CategoryMissingInput,
			Message:  "request body is not valid JSON",
		})
		return
	}

	res, err := s.ingestor.Ingest(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}

	var refID *string
	if res.ReferenceID != "" {
		refID = &res.ReferenceID
	}
	writeJSON(w, http.StatusOK, ingestResponse{
		Status:             "ok",
		Shape:              res.Shape,
		ID:                 res.ID,
		Confidence:         res.Confidence,
		Method:             res.Method,
		ReferenceID:        refID,
		EmbeddingTriggered: res.EmbeddingTriggered,
		Cleaned:            res.Cleaned.Payload(),
	})
}
