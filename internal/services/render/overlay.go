package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"truckmeasure/internal/models"
	"truckmeasure/internal/services/classify"
)

var (
	truckBoxColor   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	regionBoxColor  = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	textColor       = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	backgroundColor = color.RGBA{R: 0, G: 0, B: 0, A: 0}
	gridColor       = color.RGBA{R: 128, G: 128, B: 128, A: 0}
)

// Overlay draws measurement annotations onto images. A positive gridSpacing
// adds a pixel grid under the annotations.
type Overlay struct {
	font          gocv.HersheyFont
	fontScale     float64
	fontThickness int
	lineThickness int
	gridSpacing   int
}

func NewOverlay(gridSpacing int) *Overlay {
	return &Overlay{
		font:          gocv.FontHersheySimplex,
		fontScale:     0.6,
		fontThickness: 2,
		lineThickness: 2,
		gridSpacing:   gridSpacing,
	}
}

// Annotate draws the full measurement overlay on an encoded image: the truck
// box with its classification label, the measured region with its metric
// dimensions, and a 1m scale bar. Returns the annotated image as JPEG.
func (o *Overlay) Annotate(imageBytes []byte, det models.Detection, class classify.Class,
	roi models.Rect, widthM, heightM, scale float64) ([]byte, error) {

	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	// Grid goes first so the annotations stay on top.
	if o.gridSpacing > 0 {
		if err := o.DrawGrid(&mat, o.gridSpacing); err != nil {
			return nil, err
		}
	}

	if err := o.DrawTruck(&mat, det, class); err != nil {
		return nil, err
	}
	if err := o.DrawRegion(&mat, roi, widthM, heightM); err != nil {
		return nil, err
	}
	if scale > 0 {
		if err := o.DrawScaleBar(&mat, 1.0, 1.0/scale, image.Pt(50, 50)); err != nil {
			return nil, err
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	annotated := make([]byte, len(buf.GetBytes()))
	copy(annotated, buf.GetBytes())

	return annotated, nil
}

// DrawTruck draws the truck bounding box and its classification label.
func (o *Overlay) DrawTruck(mat *gocv.Mat, det models.Detection, class classify.Class) error {
	rect := image.Rect(det.X, det.Y, det.X+det.Width, det.Y+det.Height)
	if err := gocv.Rectangle(mat, rect, truckBoxColor, o.lineThickness); err != nil {
		return fmt.Errorf("failed to draw truck box: %w", err)
	}

	label := fmt.Sprintf("%s (%.2fm)", class.Name, class.HeightM)
	return o.drawTextWithBackground(mat, label, image.Pt(det.X, det.Y-5))
}

// DrawRegion draws the measured region and its real-world dimensions.
func (o *Overlay) DrawRegion(mat *gocv.Mat, roi models.Rect, widthM, heightM float64) error {
	rect := image.Rect(roi.X, roi.Y, roi.X+roi.Width, roi.Y+roi.Height)
	if err := gocv.Rectangle(mat, rect, regionBoxColor, o.lineThickness); err != nil {
		return fmt.Errorf("failed to draw region box: %w", err)
	}

	dimensions := fmt.Sprintf("%.2fm x %.2fm", widthM, heightM)
	return o.drawTextWithBackground(mat, dimensions, image.Pt(roi.X, roi.Y-5))
}

// DrawScaleBar draws a horizontal reference bar of the given metric length
// with end ticks and a caption.
func (o *Overlay) DrawScaleBar(mat *gocv.Mat, lengthM, pixelsPerMeter float64, position image.Point) error {
	x, y := position.X, position.Y
	lengthPx := int(lengthM * pixelsPerMeter)

	if err := gocv.Line(mat, image.Pt(x, y), image.Pt(x+lengthPx, y), textColor, 3); err != nil {
		return fmt.Errorf("failed to draw scale bar: %w", err)
	}
	if err := gocv.Line(mat, image.Pt(x, y-5), image.Pt(x, y+5), textColor, 2); err != nil {
		return fmt.Errorf("failed to draw scale bar tick: %w", err)
	}
	if err := gocv.Line(mat, image.Pt(x+lengthPx, y-5), image.Pt(x+lengthPx, y+5), textColor, 2); err != nil {
		return fmt.Errorf("failed to draw scale bar tick: %w", err)
	}

	return o.drawTextWithBackground(mat, fmt.Sprintf("%.1fm", lengthM), image.Pt(x, y-20))
}

// DrawGrid overlays a pixel grid, useful when eyeballing scale problems.
func (o *Overlay) DrawGrid(mat *gocv.Mat, spacing int) error {
	width := mat.Cols()
	height := mat.Rows()

	for x := 0; x < width; x += spacing {
		if err := gocv.Line(mat, image.Pt(x, 0), image.Pt(x, height), gridColor, 1); err != nil {
			return fmt.Errorf("failed to draw grid: %w", err)
		}
	}
	for y := 0; y < height; y += spacing {
		if err := gocv.Line(mat, image.Pt(0, y), image.Pt(width, y), gridColor, 1); err != nil {
			return fmt.Errorf("failed to draw grid: %w", err)
		}
	}
	return nil
}

// drawTextWithBackground draws text over a filled rectangle so labels stay
// readable on busy images.
func (o *Overlay) drawTextWithBackground(mat *gocv.Mat, text string, position image.Point) error {
	textSize := gocv.GetTextSize(text, o.font, o.fontScale, o.fontThickness)

	padding := 2
	background := image.Rect(
		position.X-padding, position.Y-textSize.Y-padding,
		position.X+textSize.X+padding, position.Y+padding+4,
	)
	if err := gocv.Rectangle(mat, background, backgroundColor, -1); err != nil {
		return fmt.Errorf("failed to draw label background: %w", err)
	}

	if err := gocv.PutText(mat, text, position, o.font, o.fontScale, textColor, o.fontThickness); err != nil {
		return fmt.Errorf("failed to draw label text: %w", err)
	}
	return nil
}
