package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/moorline/moorline/internal/ingest"
)

// errorResponse is the single JSON error envelope every failure returns. The
// category name is stable API surface.
type errorResponse struct {
	Status   string          `json:"status"`
	Category ingest.Category `json:"category"`
	Message  string          `json:"message"`
	Detail   map[string]any  `json:"detail,omitempty"`
	ReviewID string          `json:"review_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

// writeError maps err to the taxonomy envelope. Errors without a taxonomy
// category become a plain 500.
func writeError(w http.ResponseWriter, err error) {
	var ie *ingest.Error
	if !errors.As(err, &ie) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Status:   "error",
			Category: ingest.CategoryPersistenceFailure,
			Message:  "internal error",
		})
		return
	}

	writeJSON(w, ie.Category.HTTPStatus(), errorResponse{
		Status:   "error",
		Category: ie.Category,
		Message:  ie.Message,
		Detail:   ie.Detail,
		ReviewID: ie.ReviewID,
	})
}
