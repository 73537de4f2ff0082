package models

import "time"

// CachedEncoding is a reference image encoding computed by a given engine.
// A row is valid while the file's size and modification time are unchanged.
type CachedEncoding struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Engine   string
	Label    string
	Encoding []float32
}
