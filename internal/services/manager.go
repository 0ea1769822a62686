package services

import (
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"truckmeasure/internal/config"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/models"
	"truckmeasure/internal/repository"
	"truckmeasure/internal/services/ai"
	"truckmeasure/internal/services/classify"
	"truckmeasure/internal/services/measure"
	"truckmeasure/internal/services/render"
	"truckmeasure/internal/services/storage"
	"truckmeasure/internal/services/websocket"
)

// Result is the outcome of one measurement pass.
type Result struct {
	Detected    bool
	Measurement models.Measurement
	Annotated   []byte
}

// MeasurementTask is a queued fire-and-forget measurement job.
type MeasurementTask struct {
	Image []byte
	ROI   *models.Rect
}

// Manager orchestrates the measurement pipeline: detect, classify, measure,
// render, store, broadcast. Detector instances are pooled because the
// underlying inference sessions are not safe for concurrent use.
type Manager struct {
	detectors        chan ai.Detector
	allDetectors     []ai.Detector
	classifier       *classify.Classifier
	calculator       *measure.Calculator
	overlay          *render.Overlay
	bufferService    *storage.BufferService
	websocketService *websocket.HubService
	repo             repository.MeasurementRepository
	logger           *logger.Logger

	resizeScale float64
	queue       chan MeasurementTask
	wg          sync.WaitGroup
}

func NewManager(detectors []ai.Detector, buffer *storage.BufferService, hub *websocket.HubService,
	repo repository.MeasurementRepository, cfg *config.Config, log *logger.Logger) *Manager {

	pool := make(chan ai.Detector, len(detectors))
	for _, d := range detectors {
		pool <- d
	}

	manager := &Manager{
		detectors:        pool,
		allDetectors:     detectors,
		classifier:       classify.NewClassifier(),
		calculator:       measure.NewCalculator(),
		overlay:          render.NewOverlay(cfg.GridSpacing),
		bufferService:    buffer,
		websocketService: hub,
		repo:             repo,
		logger:           log,
		resizeScale:      cfg.ResizeScale,
		queue:            make(chan MeasurementTask, cfg.QueueSize),
	}

	for i := 0; i < cfg.ProcessingWorkers; i++ {
		manager.wg.Add(1)
		go manager.processingWorker(i)
	}

	manager.logger.Info("🎬 Manager started with %d worker(s)", cfg.ProcessingWorkers)
	return manager
}

// Ready reports whether at least one detector backend loaded its model.
func (m *Manager) Ready() bool {
	for _, d := range m.allDetectors {
		if d.Ready() {
			return true
		}
	}
	return false
}

// Measure runs the full pipeline on an uploaded image. When roi is nil the
// truck's own bounding box is measured. A truck-free image yields a Result
// with Detected=false, not an error.
func (m *Manager) Measure(imageBytes []byte, roi *models.Rect) (*Result, error) {
	processed, err := m.resizeForProcessing(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	detector := <-m.detectors
	detections, err := detector.DetectTrucks(processed)
	m.detectors <- detector
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	best, ok := ai.BestDetection(detections)
	if !ok {
		m.logger.Info("No truck detected in uploaded image")
		return &Result{Detected: false}, nil
	}

	class, err := m.classifier.Classify(best.Width, best.Height)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	truckBox := models.Rect{X: best.X, Y: best.Y, Width: best.Width, Height: best.Height}
	region := truckBox
	if roi != nil {
		region = *roi
	}

	scale, err := m.calculator.Scale(float64(truckBox.Height), class.HeightM)
	if err != nil {
		return nil, fmt.Errorf("scale computation failed: %w", err)
	}

	widthM, heightM, err := m.calculator.Region(region, truckBox, class.HeightM)
	if err != nil {
		return nil, fmt.Errorf("measurement failed: %w", err)
	}

	annotated, err := m.overlay.Annotate(processed, best, class, region, widthM, heightM, scale)
	if err != nil {
		m.logger.Error("Failed to render overlay: %v", err)
		annotated = processed
	}

	filename := m.bufferService.AddImage(annotated, class.Name)

	measurement := models.Measurement{
		Filename:   filename,
		TruckType:  class.Name,
		Confidence: best.Confidence,
		Box:        truckBox,
		ROI:        region,
		Scale:      scale,
		WidthM:     widthM,
		HeightM:    heightM,
		AreaM2:     m.calculator.Area(widthM, heightM),
		Plausible:  m.calculator.Plausible(widthM, heightM),
		CreatedAt:  time.Now(),
	}

	if !measurement.Plausible {
		m.logger.Warning("Measurement %.2fm x %.2fm looks implausible, storing flagged", widthM, heightM)
	}

	id, err := m.repo.Insert(&measurement)
	if err != nil {
		m.logger.Error("Failed to store measurement: %v", err)
	} else {
		measurement.ID = id
	}

	m.websocketService.BroadcastMeasurement(measurement)

	m.logger.Info("📏 Measured %s: %.2fm x %.2fm (scale %.4f m/px)",
		class.Name, widthM, heightM, scale)

	return &Result{Detected: true, Measurement: measurement, Annotated: annotated}, nil
}

// Enqueue schedules a measurement without waiting for the result. Returns
// false when the queue is full.
func (m *Manager) Enqueue(imageBytes []byte, roi *models.Rect) bool {
	select {
	case m.queue <- MeasurementTask{Image: imageBytes, ROI: roi}:
		return true
	default:
		m.logger.Warning("⚠️  Processing queue full - dropping measurement task")
		return false
	}
}

// resizeForProcessing scales the image down before detection. A scale of 1
// (or an unset scale) keeps the original bytes.
func (m *Manager) resizeForProcessing(imageBytes []byte) ([]byte, error) {
	if m.resizeScale <= 0 || m.resizeScale == 1.0 {
		return imageBytes, nil
	}

	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(0, 0), m.resizeScale, m.resizeScale, gocv.InterpolationLinear)

	buf, err := gocv.IMEncode(".jpg", resized)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}

func (m *Manager) GetRepository() repository.MeasurementRepository {
	return m.repo
}

func (m *Manager) GetClassifier() *classify.Classifier {
	return m.classifier
}

// processingWorker drains the fire-and-forget queue.
func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Info("🔧 Processing worker %d started", workerID)

	for task := range m.queue {
		if _, err := m.Measure(task.Image, task.ROI); err != nil {
			m.logger.Error("Worker %d: measurement failed: %v", workerID, err)
		}
	}

	m.logger.Info("🔧 Processing worker %d stopped", workerID)
}

// Stop drains the queue and shuts down the workers and detectors.
func (m *Manager) Stop() {
	close(m.queue)
	m.wg.Wait()

	for _, d := range m.allDetectors {
		if err := d.Close(); err != nil {
			m.logger.Error("Failed to close detector: %v", err)
		}
	}
	m.logger.Info("🛑 All processing workers stopped")
}
