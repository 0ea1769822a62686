package ai

import (
	"fmt"

	"truckmeasure/internal/config"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/models"
)

// Backend names accepted in DETECTOR_BACKEND.
const (
	BackendDNN = "dnn"
	BackendORT = "ort"
)

// Detector finds trucks in an encoded image. Implementations wrap a
// pretrained model loaded through an external inference runtime; the model
// itself is an external artifact.
type Detector interface {
	// DetectTrucks returns every truck detection at or above the confidence
	// threshold. An image without trucks yields an empty slice, not an error.
	DetectTrucks(imageBytes []byte) ([]models.Detection, error)
	// Ready reports whether the underlying model loaded successfully.
	Ready() bool
	Close() error
}

// NewDetector constructs the detector backend selected in the configuration.
func NewDetector(cfg *config.Config, log *logger.Logger) (Detector, error) {
	switch cfg.DetectorBackend {
	case BackendDNN:
		return NewDNNDetector(cfg, log), nil
	case BackendORT:
		return NewORTDetector(cfg, log)
	default:
		return nil, fmt.Errorf("unknown detector backend: %q", cfg.DetectorBackend)
	}
}

// BestDetection returns the detection with the highest confidence.
func BestDetection(detections []models.Detection) (models.Detection, bool) {
	if len(detections) == 0 {
		return models.Detection{}, false
	}

	best := detections[0]
	for _, det := range detections[1:] {
		if det.Confidence > best.Confidence {
			best = det
		}
	}
	return best, true
}
