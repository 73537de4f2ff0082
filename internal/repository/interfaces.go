package repository

import (
	"facecam/internal/models"
)

// SightingRepository defines the interface for stored snapshot operations.
type SightingRepository interface {
	// Create operations
	Insert(s *models.Sighting) (int64, error)

	// Read operations
	GetByID(id int64) (*models.Sighting, error)
	GetByFilename(filename string) (*models.Sighting, error)
	GetAll(filter *models.SightingFilter) ([]models.Sighting, error)
	GetTotalCount(filter *models.SightingFilter) (int, error)
	Exists(filename string) (bool, error)
	GetStats() (*models.SightingStats, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}

// FaceRepository defines the interface for per-sighting face rows.
type FaceRepository interface {
	InsertBatch(faces []models.Face) error
	GetBySightingID(sightingID int64) ([]models.Face, error)
	GetLabelsBySightingID(sightingID int64) ([]string, error)
	GetAllLabels() ([]string, error)
}

// EncodingCache stores reference encodings so unchanged images skip the engine.
type EncodingCache interface {
	Get(path, engine string) (*models.CachedEncoding, error)
	Put(enc *models.CachedEncoding) error
	Prune(engine string, keep []string) (int64, error)
}
