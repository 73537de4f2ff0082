package models

import "time"

// Sighting is a stored annotated snapshot in which at least one known face was seen.
type Sighting struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
	Labels    []string  `json:"labels"`
}

// SightingFilter contains filtering options for querying sightings.
type SightingFilter struct {
	Label     string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// SightingStats contains statistics about stored sightings.
type SightingStats struct {
	TotalSightings int            `json:"total_sightings"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	LabelCounts    map[string]int `json:"label_counts"`
}
