package v1

import (
	"encoding/json"
	"net/http"
)

// toJSON writes v as a JSON response with the given status code.
func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
