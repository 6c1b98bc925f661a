package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/pipeline"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeStoreError maps domain errors to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "update already resolved")
	case errors.Is(err, model.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid decision")
	case errors.Is(err, pipeline.ErrCrawlingDisabled):
		writeError(w, http.StatusForbidden, "crawling is disabled")
	default:
		zap.L().Error("api: internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
