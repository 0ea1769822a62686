package ai

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"truckmeasure/internal/config"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/models"
)

// SSD MobileNet COCO class id for "truck".
const ssdTruckClassID = 8

// DNNDetector runs an SSD MobileNet frozen graph through the OpenCV DNN
// module. Output rows are [batch, classID, confidence, x1, y1, x2, y2] with
// normalized coordinates.
type DNNDetector struct {
	net        gocv.Net
	modelPath  string
	configPath string
	threshold  float32
	ready      bool
	logger     *logger.Logger
}

// NewDNNDetector loads the network. A missing model is logged, not fatal:
// the server still starts and reports the detector as unavailable.
func NewDNNDetector(cfg *config.Config, log *logger.Logger) *DNNDetector {
	detector := &DNNDetector{
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		threshold:  float32(cfg.ConfidenceThreshold),
		logger:     log,
	}

	if err := detector.initializeNet(); err != nil {
		detector.logger.Warning("Could not initialize detection network: %v", err)
		return detector
	}

	return detector
}

// initializeNet loads the network from the model and graph config files.
func (d *DNNDetector) initializeNet() error {
	if _, err := os.Stat(d.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", d.modelPath)
	}

	if _, err := os.Stat(d.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", d.configPath)
	}

	net := gocv.ReadNet(d.modelPath, d.configPath)

	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		return fmt.Errorf("failed to set preferable backend or target")
	}

	d.net = net
	d.ready = true
	d.logger.Info("Detection network initialized successfully (model: %s)", d.modelPath)
	return nil
}

// Ready reports whether the network loaded.
func (d *DNNDetector) Ready() bool {
	return d.ready
}

// DetectTrucks runs the network and keeps only truck detections at or above
// the confidence threshold.
func (d *DNNDetector) DetectTrucks(imageBytes []byte) ([]models.Detection, error) {
	if !d.ready || d.net.Empty() {
		return nil, fmt.Errorf("detection network not initialized")
	}

	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	var results []models.Detection

	outputReshaped := output.Reshape(1, output.Total()/7)
	defer outputReshaped.Close()
	for i := 0; i < outputReshaped.Rows(); i++ {
		confidence := outputReshaped.GetFloatAt(i, 2)
		if confidence < d.threshold {
			continue
		}

		classID := int(outputReshaped.GetFloatAt(i, 1))
		if classID != ssdTruckClassID {
			continue
		}

		x := int(outputReshaped.GetFloatAt(i, 3) * float32(mat.Cols()))
		y := int(outputReshaped.GetFloatAt(i, 4) * float32(mat.Rows()))
		width := int(outputReshaped.GetFloatAt(i, 5)*float32(mat.Cols())) - x
		height := int(outputReshaped.GetFloatAt(i, 6)*float32(mat.Rows())) - y

		if width <= 0 || height <= 0 {
			continue
		}

		results = append(results, models.Detection{
			Label:      "truck",
			Confidence: float64(confidence),
			X:          x,
			Y:          y,
			Width:      width,
			Height:     height,
		})
		d.logger.Info("Detected truck (%.2f) at %d,%d %dx%d", confidence, x, y, width, height)
	}

	return results, nil
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	if !d.ready {
		return nil
	}
	d.ready = false
	return d.net.Close()
}
