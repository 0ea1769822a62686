package handlers

import (
	"encoding/base64"
	"io"
	"net/http"

	"truckmeasure/internal/config"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/models"
	"truckmeasure/internal/services"
)

// MeasureResponse is the payload returned for a measurement request.
type MeasureResponse struct {
	Detected    bool                `json:"detected"`
	Measurement *models.Measurement `json:"measurement,omitempty"`
	Image       string              `json:"image,omitempty"` // annotated image, base64 JPEG
}

// MeasureHandler accepts a multipart image upload, runs the measurement
// pipeline and returns the result together with the annotated image.
// Optional x,y,w,h form fields select a region of interest; without them the
// truck's own bounding box is measured.
func MeasureHandler(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if !manager.Ready() {
			http.Error(w, "Detector not available", http.StatusServiceUnavailable)
			return
		}

		imageBytes, roi, ok := readUpload(w, r, cfg, logger)
		if !ok {
			return
		}

		result, err := manager.Measure(imageBytes, roi)
		if err != nil {
			logger.Error("Measurement failed: %v", err)
			http.Error(w, "Measurement failed", http.StatusInternalServerError)
			return
		}

		response := MeasureResponse{Detected: result.Detected}
		if result.Detected {
			response.Measurement = &result.Measurement
			response.Image = base64.StdEncoding.EncodeToString(result.Annotated)
		}

		writeJSON(w, http.StatusOK, response, logger)
	}
}

// MeasureAsyncHandler queues a measurement without waiting for the outcome.
// The result shows up in the history and on the websocket feed.
func MeasureAsyncHandler(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if !manager.Ready() {
			http.Error(w, "Detector not available", http.StatusServiceUnavailable)
			return
		}

		imageBytes, roi, ok := readUpload(w, r, cfg, logger)
		if !ok {
			return
		}

		if !manager.Enqueue(imageBytes, roi) {
			http.Error(w, "Processing queue full", http.StatusTooManyRequests)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

// readUpload extracts the image bytes and optional ROI from a multipart
// request. On failure it writes the error response and returns ok=false.
func readUpload(w http.ResponseWriter, r *http.Request, cfg *config.Config, logger *logger.Logger) ([]byte, *models.Rect, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(cfg.MaxUploadBytes); err != nil {
		logger.Warning("Rejected upload: %v", err)
		http.Error(w, "Invalid or oversized upload", http.StatusBadRequest)
		return nil, nil, false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Missing image file", http.StatusBadRequest)
		return nil, nil, false
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Error reading upload: %v", err)
		http.Error(w, "Error reading upload", http.StatusBadRequest)
		return nil, nil, false
	}

	roi := parseROI(r)
	return imageBytes, roi, true
}

// parseROI reads the optional region fields. The ROI is only accepted when
// all four fields are present and the region has positive size.
func parseROI(r *http.Request) *models.Rect {
	xs, ys := r.FormValue("x"), r.FormValue("y")
	ws, hs := r.FormValue("w"), r.FormValue("h")
	if xs == "" || ys == "" || ws == "" || hs == "" {
		return nil
	}

	roi := models.Rect{
		X:      atoiDefault(xs, -1),
		Y:      atoiDefault(ys, -1),
		Width:  atoiDefault(ws, -1),
		Height: atoiDefault(hs, -1),
	}
	// X/Y of zero are valid positions; atoiDefault treats 0 as a miss.
	if xs == "0" {
		roi.X = 0
	}
	if ys == "0" {
		roi.Y = 0
	}

	if roi.X < 0 || roi.Y < 0 || roi.Width <= 0 || roi.Height <= 0 {
		return nil
	}
	return &roi
}
