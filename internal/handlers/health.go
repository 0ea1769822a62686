package handlers

import (
	"net/http"
	"os"

	"truckmeasure/internal/config"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/services"
)

// HealthStatus reports whether the pipeline can take measurements and how
// much of the image storage allowance is used.
type HealthStatus struct {
	Status            string `json:"status"`
	DetectorReady     bool   `json:"detector_ready"`
	Viewers           int    `json:"viewers"`
	StorageUsedBytes  int64  `json:"storage_used_bytes"`
	StorageLimitBytes int64  `json:"storage_limit_bytes"`
}

// HealthHandler reports detector, feed and storage status.
func HealthHandler(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:            "ok",
			DetectorReady:     manager.Ready(),
			Viewers:           manager.GetWebsocketService().GetClientCount(),
			StorageUsedBytes:  directorySize(cfg.ImageDirectory),
			StorageLimitBytes: cfg.MaxImageDirectorySize << 30,
		}
		if !status.DetectorReady {
			status.Status = "degraded"
		}
		writeJSON(w, http.StatusOK, status, logger)
	}
}

// directorySize sums the file sizes in a directory. A directory that does
// not exist yet counts as empty.
func directorySize(dir string) int64 {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	var total int64
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if info, err := file.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}
