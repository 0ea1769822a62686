package models

import "time"

// Rect is an axis-aligned region in pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Measurement is one completed measurement of a region on a detected truck.
type Measurement struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	TruckType  string    `json:"truck_type"`
	Confidence float64   `json:"confidence"`
	Box        Rect      `json:"box"`
	ROI        Rect      `json:"roi"`
	Scale      float64   `json:"scale"` // meters per pixel
	WidthM     float64   `json:"width_m"`
	HeightM    float64   `json:"height_m"`
	AreaM2     float64   `json:"area_m2"`
	Plausible  bool      `json:"plausible"`
	CreatedAt  time.Time `json:"created_at"`
}

// MeasurementFilter contains filtering options for querying measurements.
type MeasurementFilter struct {
	TruckType  string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}

// MeasurementStats contains aggregate statistics over stored measurements.
type MeasurementStats struct {
	TotalMeasurements int            `json:"total_measurements"`
	PerType           map[string]int `json:"per_type"`
	AvgWidthM         float64        `json:"avg_width_m"`
	AvgHeightM        float64        `json:"avg_height_m"`
	AvgAreaM2         float64        `json:"avg_area_m2"`
}
