package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// runIDHeader carries the assessment run ID on finance responses.
const runIDHeader = "X-Run-ID"

type financeResponse struct {
	Analysis    string `json:"analysis"`
	Advice      string `json:"advice"`
	SavingsPlan string `json:"savings_plan"`
	Savings     int64  `json:"savings"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write JSON response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
