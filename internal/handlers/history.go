package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"truckmeasure/internal/config"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/models"
	"truckmeasure/internal/services"
	"truckmeasure/internal/services/storage"
)

// HistoryData is a paginated response payload for the measurement history.
type HistoryData struct {
	Measurements []models.Measurement `json:"measurements"`
	Length       int                  `json:"length"`
	TotalPages   int                  `json:"totalPages"`
	CurrentPage  int                  `json:"currentPage"`
	Limit        int                  `json:"pageSize"`
}

// GetMeasurementsHandler lists stored measurements, supports filtering by
// truck type and date range plus pagination.
func GetMeasurementsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &models.MeasurementFilter{
			TruckType:  q.Get("type"),
			DateAfter:  parseDate(q.Get("from")),
			DateBefore: parseDate(q.Get("to")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		repo := manager.GetRepository()

		measurements, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying measurements: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		total, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting measurements: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if measurements == nil {
			measurements = []models.Measurement{}
		}

		data := HistoryData{
			Measurements: measurements,
			Length:       total,
			TotalPages:   (total + limit - 1) / limit,
			CurrentPage:  page,
			Limit:        limit,
		}

		writeJSON(w, http.StatusOK, data, logger)
	}
}

// GetStatsHandler returns aggregate statistics over the history.
func GetStatsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := manager.GetRepository().GetStats()
		if err != nil {
			logger.Error("Error querying stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats, logger)
	}
}

// GetFiltersHandler returns the truck types present in the history, for
// populating the filter dropdown.
func GetFiltersHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, err := manager.GetRepository().GetTruckTypes()
		if err != nil {
			logger.Error("Error querying truck types: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if types == nil {
			types = []string{}
		}
		writeJSON(w, http.StatusOK, map[string][]string{"types": types}, logger)
	}
}

// DeleteMeasurementHandler removes one measurement and its stored images.
func DeleteMeasurementHandler(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "Invalid id", http.StatusBadRequest)
			return
		}

		repo := manager.GetRepository()

		m, err := repo.GetByID(id)
		if err != nil {
			logger.Error("Error loading measurement %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if m == nil {
			http.Error(w, "Measurement not found", http.StatusNotFound)
			return
		}

		if err := repo.Delete(id); err != nil {
			logger.Error("Error deleting measurement %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		removeStoredImages(cfg.ImageDirectory, m.Filename, logger)

		logger.Info("Deleted measurement %d (%s)", id, m.Filename)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearMeasurementsHandler wipes the history and the image directory.
func ClearMeasurementsHandler(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := manager.GetRepository().DeleteAll(); err != nil {
			logger.Error("Error clearing measurements: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		files, err := os.ReadDir(cfg.ImageDirectory)
		if err == nil {
			for _, file := range files {
				if file.IsDir() {
					continue
				}
				if err := os.Remove(filepath.Join(cfg.ImageDirectory, file.Name())); err != nil {
					logger.Error("Error deleting file %s: %v", file.Name(), err)
				}
			}
		}

		logger.Info("Measurement history cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

// removeStoredImages deletes an annotated image and its thumbnail, ignoring
// files that were never flushed.
func removeStoredImages(imageDir, filename string, logger *logger.Logger) {
	for _, name := range []string{filename, storage.ThumbnailName(filename)} {
		err := os.Remove(filepath.Join(imageDir, name))
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error deleting file %s: %v", name, err)
		}
	}
}
