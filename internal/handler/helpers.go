package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jthomaz/cartwise/internal/engine"
)

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeEngineError translates the engine's error taxonomy into HTTP status
// codes. Anything unrecognized is a 500 with a generic message.
func writeEngineError(w http.ResponseWriter, err error) {
	var missing *engine.MissingPriceError
	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "checked lines are missing a unit price",
			"line_ids": missing.LineIDs,
		})
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrInvalidState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
