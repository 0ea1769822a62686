package repository

import "truckmeasure/internal/models"

// MeasurementRepository defines the interface for measurement history operations.
type MeasurementRepository interface {
	// Create operations
	Insert(m *models.Measurement) (int64, error)

	// Read operations
	GetByID(id int64) (*models.Measurement, error)
	GetByFilename(filename string) (*models.Measurement, error)
	GetAll(filter *models.MeasurementFilter) ([]models.Measurement, error)
	GetTotalCount(filter *models.MeasurementFilter) (int, error)
	GetStats() (*models.MeasurementStats, error)
	GetTruckTypes() ([]string, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}
