package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"facecam/internal/models"
)

const sightingColumns = `s.id, s.filename, s.timestamp, s.filepath, s.filesize,
	(SELECT GROUP_CONCAT(DISTINCT f.label) FROM sighting_faces f WHERE f.sighting_id = s.id AND f.known = 1)`

// SightingRepository implements repository.SightingRepository for SQLite.
type SightingRepository struct {
	db *DB
}

// NewSightingRepository creates a new SQLite sighting repository.
func NewSightingRepository(db *DB) *SightingRepository {
	return &SightingRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSighting(row rowScanner) (*models.Sighting, error) {
	var s models.Sighting
	var labels sql.NullString
	if err := row.Scan(&s.ID, &s.Filename, &s.Timestamp, &s.FilePath, &s.FileSize, &labels); err != nil {
		return nil, err
	}
	if labels.Valid && labels.String != "" {
		s.Labels = strings.Split(labels.String, ",")
	}
	return &s, nil
}

// Insert adds a new sighting record to the database.
func (r *SightingRepository) Insert(s *models.Sighting) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO sightings (filename, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?)
	`, s.Filename, s.Timestamp, s.FilePath, s.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sighting: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a sighting by its ID. A missing row yields nil, nil.
func (r *SightingRepository) GetByID(id int64) (*models.Sighting, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	s, err := scanSighting(r.db.Conn().QueryRow(`SELECT `+sightingColumns+` FROM sightings s WHERE s.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sighting: %w", err)
	}
	return s, nil
}

// GetByFilename retrieves a sighting by its filename.
func (r *SightingRepository) GetByFilename(filename string) (*models.Sighting, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	s, err := scanSighting(r.db.Conn().QueryRow(`SELECT `+sightingColumns+` FROM sightings s WHERE s.filename = ?`, filename))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sighting: %w", err)
	}
	return s, nil
}

func applySightingFilter(query string, filter *models.SightingFilter) (string, []any) {
	args := []any{}
	if filter == nil {
		return query, args
	}

	if filter.Label != "" {
		query += " AND s.id IN (SELECT sighting_id FROM sighting_faces WHERE label = ?)"
		args = append(args, filter.Label)
	}

	if !filter.StartDate.IsZero() {
		query += " AND s.timestamp >= ?"
		args = append(args, filter.StartDate)
	}

	if !filter.EndDate.IsZero() {
		query += " AND s.timestamp <= ?"
		args = append(args, filter.EndDate)
	}

	return query, args
}

// GetAll retrieves sightings based on filter criteria, newest first.
func (r *SightingRepository) GetAll(filter *models.SightingFilter) ([]models.Sighting, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applySightingFilter(`SELECT `+sightingColumns+` FROM sightings s WHERE 1=1`, filter)
	query += " ORDER BY s.timestamp DESC, s.id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []models.Sighting
	for rows.Next() {
		s, err := scanSighting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		sightings = append(sightings, *s)
	}

	return sightings, rows.Err()
}

// GetTotalCount returns the total count of sightings matching the filter.
func (r *SightingRepository) GetTotalCount(filter *models.SightingFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applySightingFilter(`SELECT COUNT(*) FROM sightings s WHERE 1=1`, filter)

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sightings: %w", err)
	}

	return count, nil
}

// Exists checks if a sighting with the given filename exists.
func (r *SightingRepository) Exists(filename string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM sightings WHERE filename = ?`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check sighting existence: %w", err)
	}
	return count > 0, nil
}

// GetStats returns statistics about stored sightings.
func (r *SightingRepository) GetStats() (*models.SightingStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.SightingStats{
		LabelCounts: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM sightings`).Scan(&stats.TotalSightings, &stats.TotalSizeBytes); err != nil {
		return nil, fmt.Errorf("failed to count sightings: %w", err)
	}

	// Most seen people
	rows, err := r.db.Conn().Query(`
		SELECT label, COUNT(DISTINCT sighting_id) as cnt
		FROM sighting_faces
		WHERE known = 1
		GROUP BY label
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query label counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		stats.LabelCounts[label] = count
	}

	return stats, rows.Err()
}

// Delete removes a sighting and its faces.
func (r *SightingRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM sighting_faces WHERE sighting_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete faces: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM sightings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sighting: %w", err)
	}
	return nil
}

// DeleteAll removes all sightings and their faces.
func (r *SightingRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM sighting_faces`); err != nil {
		return fmt.Errorf("failed to delete faces: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM sightings`); err != nil {
		return fmt.Errorf("failed to delete sightings: %w", err)
	}

	return nil
}
