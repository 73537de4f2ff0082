package dto

import "time"

// BufferedSnapshot holds an annotated frame and its faces before flushing to disk.
type BufferedSnapshot struct {
	Timestamp time.Time
	Labels    []string
	Faces     []FaceBox
	Data      []byte
}
