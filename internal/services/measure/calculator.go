package measure

import (
	"github.com/pkg/errors"

	"truckmeasure/internal/models"
)

// MaxPlausibleMeters is the largest region dimension still considered a
// sensible measurement of something painted on a truck.
const MaxPlausibleMeters = 10.0

// Calculator converts pixel measurements to real-world dimensions using a
// scale factor derived from a reference of known height.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Scale returns the meters-per-pixel ratio for a reference length known in
// both units. Both inputs must be positive.
func (c *Calculator) Scale(referencePixels, referenceMeters float64) (float64, error) {
	if referencePixels <= 0 || referenceMeters <= 0 {
		return 0, errors.Errorf("reference dimensions must be positive, got %.2fpx / %.2fm",
			referencePixels, referenceMeters)
	}
	return referenceMeters / referencePixels, nil
}

// PixelsToMeters converts a pixel measurement using a meters-per-pixel scale.
func (c *Calculator) PixelsToMeters(pixels, scale float64) float64 {
	return pixels * scale
}

// MetersToPixels converts a metric measurement back to pixels.
func (c *Calculator) MetersToPixels(meters, scale float64) (float64, error) {
	if scale <= 0 {
		return 0, errors.Errorf("scale factor must be positive, got %f", scale)
	}
	return meters / scale, nil
}

// Region measures a region of interest against a truck of known real-world
// height. The truck's bounding-box pixel height anchors the scale; the
// region's dimensions are converted with the same ratio.
func (c *Calculator) Region(roi, truckBox models.Rect, truckHeightM float64) (widthM, heightM float64, err error) {
	scale, err := c.Scale(float64(truckBox.Height), truckHeightM)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to derive scale from truck box")
	}

	return c.PixelsToMeters(float64(roi.Width), scale), c.PixelsToMeters(float64(roi.Height), scale), nil
}

// Area returns the region area in square meters.
func (c *Calculator) Area(widthM, heightM float64) float64 {
	return widthM * heightM
}

// Plausible reports whether a measured region has a believable size: both
// dimensions positive and no larger than MaxPlausibleMeters. An implausible
// result is still reported to the caller, just flagged.
func (c *Calculator) Plausible(widthM, heightM float64) bool {
	if widthM <= 0 || heightM <= 0 {
		return false
	}
	return widthM <= MaxPlausibleMeters && heightM <= MaxPlausibleMeters
}
