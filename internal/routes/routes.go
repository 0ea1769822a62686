package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"truckmeasure/internal/config"
	"truckmeasure/internal/handlers"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/middleware"
	"truckmeasure/internal/services"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", path+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Measurement endpoints
	mux.HandleFunc("/api/measure", handlers.MeasureHandler(manager, cfg, logger))
	mux.HandleFunc("/api/measure/async", handlers.MeasureAsyncHandler(manager, cfg, logger))
	mux.HandleFunc("/api/measurements", handlers.GetMeasurementsHandler(manager, logger))
	mux.HandleFunc("/api/measurements/stats", handlers.GetStatsHandler(manager, logger))
	mux.HandleFunc("/api/measurements/filters", handlers.GetFiltersHandler(manager, logger))
	mux.HandleFunc("/api/measurements/delete", handlers.DeleteMeasurementHandler(manager, cfg, logger))
	mux.HandleFunc("/api/measurements/clear", handlers.ClearMeasurementsHandler(manager, cfg, logger))
	mux.HandleFunc("/api/classes", handlers.GetClassesHandler(manager, logger))
	mux.HandleFunc("/api/pictures/view", handlers.ViewPictureHandler(cfg))
	mux.HandleFunc("/api/health", handlers.HealthHandler(manager, cfg, logger))
	mux.HandleFunc("/api/feed", handlers.FeedWebsocketHandler(manager, logger))

	// Log endpoints
	mux.HandleFunc("/logs/info", handlers.ShowInfoLogsHandler(cfg))
	mux.HandleFunc("/logs/warning", handlers.ShowWarningLogsHandler(cfg))
	mux.HandleFunc("/logs/error", handlers.ShowErrorLogsHandler(cfg))

	mux.HandleFunc("/logs/info/clear", handlers.ClearInfoLogsHandler(logger))
	mux.HandleFunc("/logs/warning/clear", handlers.ClearWarningLogsHandler(logger))
	mux.HandleFunc("/logs/error/clear", handlers.ClearErrorLogsHandler(logger))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handlers.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler)

	// Automatic HTML handler mapping for example: /history -> /static/history.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.AuthMiddleware(mux)
}
