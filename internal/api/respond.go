package api

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ozark-survey/cavedb/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondError maps the domain error taxonomy onto HTTP statuses. Anything
// outside the taxonomy surfaces as an opaque 500.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, model.ErrValidation), eris.Is(err, model.ErrInvariant):
		writeError(w, http.StatusBadRequest, userMessage(err))
	case eris.Is(err, model.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, userMessage(err))
	case eris.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, userMessage(err))
	case eris.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, userMessage(err))
	default:
		zap.L().Error("api: internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func userMessage(err error) string {
	return err.Error()
}
