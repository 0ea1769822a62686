package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"truckmeasure/internal/config"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/models"
	"truckmeasure/internal/repository/sqlite"
	"truckmeasure/internal/services"
	"truckmeasure/internal/services/ai"
	"truckmeasure/internal/services/storage"
	"truckmeasure/internal/services/websocket"
)

// fakeDetector returns canned detections so the pipeline can run without a
// model file.
type fakeDetector struct {
	detections []models.Detection
	ready      bool
}

func (d *fakeDetector) DetectTrucks(imageBytes []byte) ([]models.Detection, error) {
	return d.detections, nil
}

func (d *fakeDetector) Ready() bool { return d.ready }

func (d *fakeDetector) Close() error { return nil }

type testEnv struct {
	manager *services.Manager
	cfg     *config.Config
	logger  *logger.Logger
}

func newTestEnv(t *testing.T, detector ai.Detector) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Password:              "testpass",
		ResizeScale:           1.0,
		ImageDirectory:        filepath.Join(dir, "images"),
		DatabasePath:          filepath.Join(dir, "data.db"),
		ImageBufferLimit:      10,
		ThumbnailWidth:        64,
		ProcessingWorkers:     1,
		QueueSize:             4,
		MaxUploadBytes:        20 << 20,
		MaxImageDirectorySize: 4,
		LogDirectory:          filepath.Join(dir, "logs"),
	}

	log := logger.NewLogger(cfg.LogDirectory)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	buffer := storage.NewBufferService(cfg.ImageDirectory, cfg.ImageBufferLimit, cfg.ThumbnailWidth, log)
	hub := websocket.NewHubService(log)
	repo := sqlite.NewMeasurementRepository(db)

	manager := services.NewManager([]ai.Detector{detector}, buffer, hub, repo, cfg, log)
	t.Cleanup(manager.Stop)

	return &testEnv{manager: manager, cfg: cfg, logger: log}
}

func uploadRequest(t *testing.T, imageBytes []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if imageBytes != nil {
		part, err := writer.CreateFormFile("image", "upload.jpg")
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := part.Write(imageBytes); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	for key, value := range fields {
		writer.WriteField(key, value)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/measure", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 60, G: 90, B: 120, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestMeasureHandlerMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: true})
	handler := MeasureHandler(env.manager, env.cfg, env.logger)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/measure", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestMeasureHandlerDetectorNotReady(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: false})
	handler := MeasureHandler(env.manager, env.cfg, env.logger)

	rec := httptest.NewRecorder()
	handler(rec, uploadRequest(t, testJPEG(t, 64, 48), nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestMeasureHandlerMissingImage(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: true})
	handler := MeasureHandler(env.manager, env.cfg, env.logger)

	rec := httptest.NewRecorder()
	handler(rec, uploadRequest(t, nil, map[string]string{"x": "1"}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestMeasureHandlerNoTruck(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: true})
	handler := MeasureHandler(env.manager, env.cfg, env.logger)

	rec := httptest.NewRecorder()
	handler(rec, uploadRequest(t, testJPEG(t, 640, 480), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response MeasureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Detected {
		t.Error("Expected detected=false for a truck-free image")
	}
	if response.Measurement != nil || response.Image != "" {
		t.Error("A truck-free response should carry no measurement or image")
	}
}

func TestMeasureHandlerDetected(t *testing.T) {
	detector := &fakeDetector{
		ready: true,
		detections: []models.Detection{
			{Label: "truck", Confidence: 0.91, X: 40, Y: 120, Width: 560, Height: 220},
		},
	}
	env := newTestEnv(t, detector)
	handler := MeasureHandler(env.manager, env.cfg, env.logger)

	rec := httptest.NewRecorder()
	handler(rec, uploadRequest(t, testJPEG(t, 640, 480), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response MeasureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !response.Detected {
		t.Fatal("Expected a detection")
	}

	// 560x220 box: aspect > 2.5 and height > 200 px classifies as a semi.
	m := response.Measurement
	if m == nil {
		t.Fatal("Expected a measurement in the response")
	}
	if m.TruckType != "Semi Trailer" {
		t.Errorf("Expected 'Semi Trailer', got %s", m.TruckType)
	}
	if m.HeightM < 4.0 || m.HeightM > 4.2 {
		t.Errorf("Expected box height near 4.11m, got %.2f", m.HeightM)
	}
	if !m.Plausible {
		t.Error("A 4m measurement should be plausible")
	}
	if m.Filename == "" {
		t.Error("Expected a stored filename")
	}

	annotated, err := base64.StdEncoding.DecodeString(response.Image)
	if err != nil {
		t.Fatalf("Annotated image is not valid base64: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(annotated)); err != nil {
		t.Errorf("Annotated image is not a valid JPEG: %v", err)
	}

	// The row should be queryable through the history endpoint.
	stored, err := env.manager.GetRepository().GetByFilename(m.Filename)
	if err != nil {
		t.Fatalf("Failed to look up stored measurement: %v", err)
	}
	if stored == nil {
		t.Fatal("Measurement should be persisted")
	}
}

func TestMeasureHandlerWithROI(t *testing.T) {
	detector := &fakeDetector{
		ready: true,
		detections: []models.Detection{
			{Label: "truck", Confidence: 0.85, X: 40, Y: 120, Width: 560, Height: 220},
		},
	}
	env := newTestEnv(t, detector)
	handler := MeasureHandler(env.manager, env.cfg, env.logger)

	fields := map[string]string{"x": "100", "y": "150", "w": "200", "h": "110"}
	rec := httptest.NewRecorder()
	handler(rec, uploadRequest(t, testJPEG(t, 640, 480), fields))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response MeasureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !response.Detected {
		t.Fatal("Expected a detection")
	}
	if response.Measurement.ROI.Width != 200 || response.Measurement.ROI.Height != 110 {
		t.Errorf("Expected the requested ROI to be measured, got %+v", response.Measurement.ROI)
	}

	// 4.11m over 220px gives ~0.0187 m/px; 110px is about half the height.
	if response.Measurement.HeightM < 2.0 || response.Measurement.HeightM > 2.1 {
		t.Errorf("Expected ROI height near 2.05m, got %.2f", response.Measurement.HeightM)
	}
}

func TestParseROI(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  *models.Rect
	}{
		{"all fields", "x=10&y=20&w=30&h=40", &models.Rect{X: 10, Y: 20, Width: 30, Height: 40}},
		{"zero origin", "x=0&y=0&w=30&h=40", &models.Rect{X: 0, Y: 0, Width: 30, Height: 40}},
		{"missing field", "x=10&y=20&w=30", nil},
		{"no fields", "", nil},
		{"zero width", "x=10&y=20&w=0&h=40", nil},
		{"negative position", "x=-5&y=20&w=30&h=40", nil},
		{"garbage", "x=abc&y=20&w=30&h=40", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/measure?"+tt.query, nil)
			got := parseROI(req)

			if tt.want == nil {
				if got != nil {
					t.Errorf("Expected nil ROI, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected an ROI, got nil")
			}
			if *got != *tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: false})
	handler := HealthHandler(env.manager, env.cfg, env.logger)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if status.Status != "degraded" {
		t.Errorf("Expected degraded status without a working detector, got %s", status.Status)
	}
	if status.DetectorReady {
		t.Error("Detector should not be ready")
	}
	if status.StorageUsedBytes != 0 {
		t.Errorf("Expected empty storage before any flush, got %d bytes", status.StorageUsedBytes)
	}
	if status.StorageLimitBytes != 4<<30 {
		t.Errorf("Expected a 4GB storage limit, got %d bytes", status.StorageLimitBytes)
	}
}

func TestHealthHandlerReportsStorageUsage(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: true})

	if err := os.MkdirAll(env.cfg.ImageDirectory, 0755); err != nil {
		t.Fatalf("Failed to create image directory: %v", err)
	}
	data := testJPEG(t, 64, 48)
	if err := os.WriteFile(filepath.Join(env.cfg.ImageDirectory, "a.jpg"), data, 0644); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}

	handler := HealthHandler(env.manager, env.cfg, env.logger)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if status.StorageUsedBytes != int64(len(data)) {
		t.Errorf("Expected %d bytes used, got %d", len(data), status.StorageUsedBytes)
	}
}

func TestGetClassesHandler(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: true})
	handler := GetClassesHandler(env.manager, env.logger)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/classes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var classes []struct {
		Name    string  `json:"name"`
		HeightM float64 `json:"height_m"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &classes); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(classes) != 6 {
		t.Errorf("Expected 6 truck classes, got %d", len(classes))
	}
	for _, class := range classes {
		if class.HeightM <= 0 {
			t.Errorf("Class %s has no height", class.Name)
		}
	}
}

func TestGetMeasurementsHandlerEmpty(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: true})
	handler := GetMeasurementsHandler(env.manager, env.logger)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/measurements", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var data HistoryData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if data.Length != 0 {
		t.Errorf("Expected empty history, got %d", data.Length)
	}
	if data.Measurements == nil {
		t.Error("Measurements should encode as an empty array, not null")
	}
}

func TestGetMeasurementsHandlerPagination(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: true})
	repo := env.manager.GetRepository()

	for i := 0; i < 5; i++ {
		m := &models.Measurement{
			Filename:  time.Now().Format("2006-01-02_15-04-05.000") + "_" + string(rune('a'+i)) + ".jpg",
			TruckType: "Box Truck",
			Box:       models.Rect{Width: 400, Height: 210},
			ROI:       models.Rect{Width: 400, Height: 210},
			Scale:     0.0189,
			WidthM:    7.54,
			HeightM:   3.96,
			AreaM2:    29.86,
			Plausible: true,
			CreatedAt: time.Now(),
		}
		if _, err := repo.Insert(m); err != nil {
			t.Fatalf("Failed to insert measurement: %v", err)
		}
	}

	handler := GetMeasurementsHandler(env.manager, env.logger)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/measurements?page=2&limit=2", nil))

	var data HistoryData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if data.Length != 5 {
		t.Errorf("Expected total of 5, got %d", data.Length)
	}
	if data.TotalPages != 3 {
		t.Errorf("Expected 3 pages, got %d", data.TotalPages)
	}
	if len(data.Measurements) != 2 {
		t.Errorf("Expected 2 measurements on page 2, got %d", len(data.Measurements))
	}
	if data.CurrentPage != 2 {
		t.Errorf("Expected current page 2, got %d", data.CurrentPage)
	}
}

func TestLoginHandler(t *testing.T) {
	env := newTestEnv(t, &fakeDetector{ready: true})
	handler := LoginHandler(env.cfg, env.logger)

	form := bytes.NewBufferString("password=wrong")
	req := httptest.NewRequest(http.MethodPost, "/auth/login", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a wrong password, got %d", rec.Code)
	}

	form = bytes.NewBufferString("password=testpass")
	req = httptest.NewRequest(http.MethodPost, "/auth/login", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusSeeOther && rec.Code != http.StatusOK {
		t.Fatalf("Expected success for the right password, got %d", rec.Code)
	}

	authenticated := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "authenticated" && cookie.Value == "true" {
			authenticated = true
		}
	}
	if !authenticated {
		t.Error("Expected the authenticated cookie to be set")
	}
}
