package classify

import "fmt"

// Pixel-height buckets separating truck size categories.
const (
	LargeHeightPx  = 200
	MediumHeightPx = 150
	SmallHeightPx  = 120
)

// SemiTrailerAspect is the width/height cutoff separating semi trailers
// from box trucks within the large bucket.
const SemiTrailerAspect = 2.5

// Class is a truck type with its nominal real-world height in meters,
// based on industry standard vehicle dimensions. MinHeightPx is the lower
// bound of the pixel-height bucket the type is assigned from.
type Class struct {
	Name        string  `json:"name"`
	HeightM     float64 `json:"height_m"`
	MinHeightPx int     `json:"min_height_px"`
}

const UnknownTruck = "Unknown Truck"

// classes is ordered from largest to smallest, matching the bucket order
// used by Classify. The fallback entry comes last.
var classes = []Class{
	{Name: "Semi Trailer", HeightM: 4.11, MinHeightPx: LargeHeightPx},
	{Name: "Box Truck", HeightM: 3.96, MinHeightPx: LargeHeightPx},
	{Name: "Cube Van", HeightM: 2.90, MinHeightPx: MediumHeightPx},
	{Name: "Sprinter Van", HeightM: 2.74, MinHeightPx: SmallHeightPx},
	{Name: "Cargo Van", HeightM: 2.44, MinHeightPx: 0},
	{Name: UnknownTruck, HeightM: 3.5, MinHeightPx: 0},
}

// Classifier maps bounding-box dimensions to a truck type using static
// pixel-height and aspect-ratio thresholds.
type Classifier struct {
	byName map[string]Class
}

func NewClassifier() *Classifier {
	byName := make(map[string]Class, len(classes))
	for _, c := range classes {
		byName[c.Name] = c
	}
	return &Classifier{byName: byName}
}

// Classify determines the truck type from bounding-box pixel dimensions.
// Both dimensions must be positive.
func (c *Classifier) Classify(widthPx, heightPx int) (Class, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return Class{}, fmt.Errorf("bounding box dimensions must be positive, got %dx%d", widthPx, heightPx)
	}

	aspectRatio := float64(widthPx) / float64(heightPx)
	name := determineType(heightPx, aspectRatio)

	return c.byName[name], nil
}

// determineType picks the truck type for a pixel height and aspect ratio.
// Trucks in the large bucket are separated by aspect ratio: a semi trailer
// is much longer relative to its height than a box truck.
func determineType(heightPx int, aspectRatio float64) string {
	switch {
	case heightPx > LargeHeightPx:
		if aspectRatio > SemiTrailerAspect {
			return "Semi Trailer"
		}
		return "Box Truck"
	case heightPx > MediumHeightPx:
		return "Cube Van"
	case heightPx > SmallHeightPx:
		return "Sprinter Van"
	default:
		return "Cargo Van"
	}
}

// HeightFor returns the nominal height for a truck type, falling back to
// the Unknown Truck height for unrecognized names.
func (c *Classifier) HeightFor(name string) float64 {
	if class, ok := c.byName[name]; ok {
		return class.HeightM
	}
	return c.byName[UnknownTruck].HeightM
}

// IsKnown reports whether the truck type is in the classification table.
func (c *Classifier) IsKnown(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Classes returns the classification table in stable size order.
func (c *Classifier) Classes() []Class {
	out := make([]Class, len(classes))
	copy(out, classes)
	return out
}
