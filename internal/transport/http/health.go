package http

import (
	"encoding/json"
	stdhttp "net/http"
)

// HealthHandler reports basic liveness for the booking core.
func HealthHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(stdhttp.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "auraesthetics-api",
	})
}
