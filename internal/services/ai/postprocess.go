package ai

import (
	"image"
	"sort"

	"truckmeasure/internal/models"
)

// YOLOv8 export geometry: 640x640 input, 84 rows (4 box + 80 classes)
// by 8400 candidate columns.
const (
	yoloInputSize  = 640
	yoloNumClasses = 80
	yoloCandidates = 8400
	yoloTruckClass = 7
	nmsIOU         = 0.7
)

// boundingBox is a detection candidate in original-image coordinates.
type boundingBox struct {
	classID    int
	confidence float32
	x1, y1     float32
	x2, y2     float32
}

func (b *boundingBox) toRect() image.Rectangle {
	return image.Rect(int(b.x1), int(b.y1), int(b.x2), int(b.y2)).Canon()
}

// iou approximates intersection-over-union on integral rectangles. The
// rounding is fine here, the value only decides whether two boxes overlap
// too much.
func (b *boundingBox) iou(other *boundingBox) float32 {
	r1 := b.toRect()
	r2 := other.toRect()

	intersected := r1.Intersect(r2).Canon().Size()
	intersection := float32(intersected.X * intersected.Y)

	s1 := r1.Size()
	s2 := r2.Size()
	union := float32(s1.X*s1.Y+s2.X*s2.Y) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// decodeYOLOOutput turns the raw 84x8400 tensor into truck detections in
// original-image coordinates. Candidates are laid out column-wise:
// output[row*8400+idx].
func decodeYOLOOutput(output []float32, originalWidth, originalHeight int, threshold float32) []boundingBox {
	boxes := make([]boundingBox, 0, 16)

	for idx := 0; idx < yoloCandidates; idx++ {
		classID := 0
		probability := float32(-1e9)
		for col := 0; col < yoloNumClasses; col++ {
			currentProb := output[yoloCandidates*(col+4)+idx]
			if currentProb > probability {
				probability = currentProb
				classID = col
			}
		}

		if classID != yoloTruckClass || probability < threshold {
			continue
		}

		xc, yc := output[idx], output[yoloCandidates+idx]
		w, h := output[2*yoloCandidates+idx], output[3*yoloCandidates+idx]
		boxes = append(boxes, boundingBox{
			classID:    classID,
			confidence: probability,
			x1:         (xc - w/2) / yoloInputSize * float32(originalWidth),
			y1:         (yc - h/2) / yoloInputSize * float32(originalHeight),
			x2:         (xc + w/2) / yoloInputSize * float32(originalWidth),
			y2:         (yc + h/2) / yoloInputSize * float32(originalHeight),
		})
	}

	return boxes
}

// suppressOverlaps removes candidates overlapping a higher-confidence box
// by more than the NMS threshold. The result stays sorted by confidence,
// highest first.
func suppressOverlaps(boxes []boundingBox) []boundingBox {
	sort.Slice(boxes, func(i, j int) bool {
		return boxes[i].confidence > boxes[j].confidence
	})

	merged := make([]boundingBox, 0, len(boxes))
	for i := range boxes {
		candidate := boxes[i]
		overlaps := false
		for j := range merged {
			if candidate.iou(&merged[j]) > nmsIOU {
				overlaps = true
				break
			}
		}
		if !overlaps {
			merged = append(merged, candidate)
		}
	}

	return merged
}

// toDetections converts bounding boxes to the model layer representation,
// clamping to image bounds and dropping zero-area boxes.
func toDetections(boxes []boundingBox, originalWidth, originalHeight int) []models.Detection {
	var detections []models.Detection
	for _, box := range boxes {
		rect := box.toRect().Intersect(image.Rect(0, 0, originalWidth, originalHeight))
		if rect.Dx() <= 0 || rect.Dy() <= 0 {
			continue
		}

		detections = append(detections, models.Detection{
			Label:      "truck",
			Confidence: float64(box.confidence),
			X:          rect.Min.X,
			Y:          rect.Min.Y,
			Width:      rect.Dx(),
			Height:     rect.Dy(),
		})
	}
	return detections
}
