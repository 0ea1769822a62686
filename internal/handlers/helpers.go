package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"truckmeasure/internal/logger"
)

// atoiDefault parses a positive integer, falling back to def on anything else.
func atoiDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// parseDate parses a yyyy-mm-dd query value; empty or malformed gives a zero time.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// writeJSON encodes the payload, logging instead of failing on encode errors.
func writeJSON(w http.ResponseWriter, status int, payload interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
