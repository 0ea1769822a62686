package handlers

import (
	"net/http"

	"truckmeasure/internal/logger"
	"truckmeasure/internal/services"
)

// GetClassesHandler returns the classification table: every truck type with
// its nominal real-world height.
func GetClassesHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.GetClassifier().Classes(), logger)
	}
}
