package sqlite

import (
	"database/sql"
	"fmt"

	"truckmeasure/internal/models"
)

// MeasurementRepository implements repository.MeasurementRepository for SQLite.
type MeasurementRepository struct {
	db *DB
}

// NewMeasurementRepository creates a new SQLite measurement repository.
func NewMeasurementRepository(db *DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

const measurementColumns = `id, filename, truck_type, confidence,
	box_x, box_y, box_width, box_height,
	roi_x, roi_y, roi_width, roi_height,
	scale, width_m, height_m, area_m2, plausible, created_at`

// Insert adds a new measurement record to the database.
func (r *MeasurementRepository) Insert(m *models.Measurement) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO measurements (filename, truck_type, confidence,
			box_x, box_y, box_width, box_height,
			roi_x, roi_y, roi_width, roi_height,
			scale, width_m, height_m, area_m2, plausible, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.Filename, m.TruckType, m.Confidence,
		m.Box.X, m.Box.Y, m.Box.Width, m.Box.Height,
		m.ROI.X, m.ROI.Y, m.ROI.Width, m.ROI.Height,
		m.Scale, m.WidthM, m.HeightM, m.AreaM2, m.Plausible, m.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert measurement: %w", err)
	}

	return result.LastInsertId()
}

func scanMeasurement(row interface{ Scan(...interface{}) error }) (*models.Measurement, error) {
	var m models.Measurement
	err := row.Scan(&m.ID, &m.Filename, &m.TruckType, &m.Confidence,
		&m.Box.X, &m.Box.Y, &m.Box.Width, &m.Box.Height,
		&m.ROI.X, &m.ROI.Y, &m.ROI.Width, &m.ROI.Height,
		&m.Scale, &m.WidthM, &m.HeightM, &m.AreaM2, &m.Plausible, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID retrieves a measurement by its ID.
func (r *MeasurementRepository) GetByID(id int64) (*models.Measurement, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	m, err := scanMeasurement(r.db.Conn().QueryRow(
		`SELECT `+measurementColumns+` FROM measurements WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get measurement: %w", err)
	}
	return m, nil
}

// GetByFilename retrieves a measurement by its stored image filename.
func (r *MeasurementRepository) GetByFilename(filename string) (*models.Measurement, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	m, err := scanMeasurement(r.db.Conn().QueryRow(
		`SELECT `+measurementColumns+` FROM measurements WHERE filename = ?`, filename))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get measurement: %w", err)
	}
	return m, nil
}

// buildFilter appends WHERE clauses for the filter and returns the args.
func buildFilter(filter *models.MeasurementFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}

	if filter.TruckType != "" {
		query += " AND truck_type = ?"
		args = append(args, filter.TruckType)
	}
	if !filter.DateAfter.IsZero() {
		query += " AND DATE(created_at) >= DATE(?)"
		args = append(args, filter.DateAfter)
	}
	if !filter.DateBefore.IsZero() {
		query += " AND DATE(created_at) <= DATE(?)"
		args = append(args, filter.DateBefore)
	}

	return query, args
}

// GetAll retrieves measurements based on filter criteria, newest first.
func (r *MeasurementRepository) GetAll(filter *models.MeasurementFilter) ([]models.Measurement, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildFilter(filter)
	query := `SELECT ` + measurementColumns + ` FROM measurements` + where + ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite rejects OFFSET without LIMIT; -1 means unlimited.
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var measurements []models.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		measurements = append(measurements, *m)
	}

	return measurements, rows.Err()
}

// GetTotalCount returns the number of measurements matching the filter.
func (r *MeasurementRepository) GetTotalCount(filter *models.MeasurementFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildFilter(filter)

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM measurements`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count measurements: %w", err)
	}
	return count, nil
}

// GetStats returns aggregate statistics over all measurements.
func (r *MeasurementRepository) GetStats() (*models.MeasurementStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.MeasurementStats{
		PerType: make(map[string]int),
	}

	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*),
			COALESCE(AVG(width_m), 0),
			COALESCE(AVG(height_m), 0),
			COALESCE(AVG(area_m2), 0)
		FROM measurements
	`).Scan(&stats.TotalMeasurements, &stats.AvgWidthM, &stats.AvgHeightM, &stats.AvgAreaM2)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}

	rows, err := r.db.Conn().Query(`SELECT truck_type, COUNT(*) FROM measurements GROUP BY truck_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query per-type counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var truckType string
		var count int
		if err := rows.Scan(&truckType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan per-type count: %w", err)
		}
		stats.PerType[truckType] = count
	}

	return stats, rows.Err()
}

// GetTruckTypes returns a list of all truck types present in the history.
func (r *MeasurementRepository) GetTruckTypes() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT truck_type FROM measurements ORDER BY truck_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query truck types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan truck type: %w", err)
		}
		types = append(types, t)
	}

	return types, rows.Err()
}

// Delete removes a measurement by ID.
func (r *MeasurementRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM measurements WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete measurement: %w", err)
	}
	return nil
}

// DeleteAll removes every measurement record.
func (r *MeasurementRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM measurements`); err != nil {
		return fmt.Errorf("failed to clear measurements: %w", err)
	}
	return nil
}
