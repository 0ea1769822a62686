package ai

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"truckmeasure/internal/config"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/models"
)

var ortInitOnce sync.Once

// ORTDetector runs a YOLOv8 ONNX export through ONNX Runtime. The session
// holds fixed-shape input and output tensors that are reused across calls,
// so detection is serialized with a mutex.
type ORTDetector struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	threshold float32
	ready     bool
	mu        sync.Mutex
	logger    *logger.Logger
}

// NewORTDetector initializes the ONNX Runtime environment and creates a
// session for the configured model.
func NewORTDetector(cfg *config.Config, log *logger.Logger) (*ORTDetector, error) {
	if _, err := os.Stat(cfg.OrtLibraryPath); os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "onnxruntime library not found at %s", cfg.OrtLibraryPath)
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "model file not found at %s", cfg.ModelPath)
	}

	var initErr error
	ortInitOnce.Do(func() {
		ort.SetSharedLibraryPath(cfg.OrtLibraryPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, errors.Wrap(initErr, "error initializing ORT environment")
	}

	inputShape := ort.NewShape(1, 3, yoloInputSize, yoloInputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	outputShape := ort.NewShape(1, yoloNumClasses+4, yoloCandidates)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(4)
	options.SetInterOpNumThreads(2)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	log.Info("ONNX Runtime session initialized (model: %s)", cfg.ModelPath)

	return &ORTDetector{
		session:   session,
		input:     inputTensor,
		output:    outputTensor,
		threshold: float32(cfg.ConfidenceThreshold),
		ready:     true,
		logger:    log,
	}, nil
}

// Ready reports whether the session is usable.
func (d *ORTDetector) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// DetectTrucks decodes the image, fills the input tensor, runs the session
// and decodes truck detections from the output tensor.
func (d *ORTDetector) DetectTrucks(imageBytes []byte) ([]models.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return nil, errors.New("detector session is closed")
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()
	if originalWidth == 0 || originalHeight == 0 {
		return nil, errors.New("decoded image is empty")
	}

	if err := d.prepareInput(img); err != nil {
		return nil, errors.Wrap(err, "failed to prepare input tensor")
	}

	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	boxes := decodeYOLOOutput(d.output.GetData(), originalWidth, originalHeight, d.threshold)
	boxes = suppressOverlaps(boxes)

	detections := toDetections(boxes, originalWidth, originalHeight)
	for _, det := range detections {
		d.logger.Info("Detected truck (%.2f) at %d,%d %dx%d", det.Confidence, det.X, det.Y, det.Width, det.Height)
	}

	return detections, nil
}

// prepareInput fills the input tensor with the image in planar RGB order,
// resized to the model resolution and normalized to [0,1].
func (d *ORTDetector) prepareInput(img image.Image) error {
	data := d.input.GetData()
	channelSize := yoloInputSize * yoloInputSize
	if len(data) < channelSize*3 {
		return errors.Errorf("input tensor holds %d floats, needs %d", len(data), channelSize*3)
	}
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	img = resize.Resize(yoloInputSize, yoloInputSize, img, resize.Lanczos3)

	i := 0
	for y := 0; y < yoloInputSize; y++ {
		for x := 0; x < yoloInputSize; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}

// Close destroys the session and its tensors.
func (d *ORTDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return nil
	}
	d.ready = false

	d.input.Destroy()
	d.output.Destroy()
	return d.session.Destroy()
}
