package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/keepmind9/telebloc/internal/logger"
)

// HealthStatus is the body served by the liveness probe.
type HealthStatus struct {
	Status string `json:"status"`
}

// Rejection is the body written for requests the server refuses.
type Rejection struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HealthHandler always answers 200 {"status":"OK"}.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{Status: "OK"})
}

func reject(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, Rejection{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithField("error", err).Debug("failed-to-write-webhook-response")
	}
}
