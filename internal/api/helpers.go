package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/graphloom/loom/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a structured error to an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch schema.CodeOf(err) {
	case schema.ErrCodeNotFound:
		status = http.StatusNotFound
	case schema.ErrCodeValidation, schema.ErrCodeDefinition:
		status = http.StatusUnprocessableEntity
	case schema.ErrCodeConflict:
		status = http.StatusConflict
	}

	var loomErr *schema.Error
	if errors.As(err, &loomErr) {
		writeJSON(w, status, map[string]any{
			"error":   loomErr.Message,
			"code":    loomErr.Code,
			"details": loomErr.Details,
		})
		return
	}
	writeError(w, status, err.Error())
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
