package sqlite

import (
	"fmt"

	"facecam/internal/models"
)

// FaceRepository implements repository.FaceRepository for SQLite.
type FaceRepository struct {
	db *DB
}

// NewFaceRepository creates a new SQLite face repository.
func NewFaceRepository(db *DB) *FaceRepository {
	return &FaceRepository{db: db}
}

// InsertBatch adds multiple faces in a single transaction.
func (r *FaceRepository) InsertBatch(faces []models.Face) error {
	if len(faces) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO sighting_faces (sighting_id, label, x, y, width, height, distance, known)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range faces {
		if _, err := stmt.Exec(f.SightingID, f.Label, f.X, f.Y, f.Width, f.Height, f.Distance, f.Known); err != nil {
			return fmt.Errorf("failed to insert face: %w", err)
		}
	}

	return tx.Commit()
}

// GetBySightingID retrieves all faces recorded for a sighting.
func (r *FaceRepository) GetBySightingID(sightingID int64) ([]models.Face, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, sighting_id, label, x, y, width, height, distance, known
		FROM sighting_faces WHERE sighting_id = ? ORDER BY id
	`, sightingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query faces: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		var f models.Face
		if err := rows.Scan(&f.ID, &f.SightingID, &f.Label, &f.X, &f.Y, &f.Width, &f.Height, &f.Distance, &f.Known); err != nil {
			return nil, fmt.Errorf("failed to scan face: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// GetLabelsBySightingID returns the distinct known labels of a sighting.
func (r *FaceRepository) GetLabelsBySightingID(sightingID int64) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.queryLabels(`SELECT DISTINCT label FROM sighting_faces WHERE sighting_id = ? AND known = 1 ORDER BY label`, sightingID)
}

// GetAllLabels returns every known label ever recorded.
func (r *FaceRepository) GetAllLabels() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.queryLabels(`SELECT DISTINCT label FROM sighting_faces WHERE known = 1 ORDER BY label`)
}

func (r *FaceRepository) queryLabels(query string, args ...any) ([]string, error) {
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}
