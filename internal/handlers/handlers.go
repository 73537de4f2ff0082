// Package handlers holds the HTTP and websocket endpoints of the web view.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"facecam/internal/dto"
	"facecam/internal/logger"
	"facecam/internal/services/gallery"
	"facecam/internal/services/pipeline"
	"facecam/internal/services/recognition"
)

// CaptureController starts and stops the frame loop.
type CaptureController interface {
	StartCapture(ctx context.Context)
	StopCapture(ctx context.Context)
	IsCapturing() bool
	Status() dto.CaptureStatus
}

// FrameSource exposes the last published frame.
type FrameSource interface {
	Latest() (pipeline.Frame, bool)
}

// FaceGallery lists and reloads the reference faces.
type FaceGallery interface {
	References() []recognition.Reference
	ReloadGallery(ctx context.Context) (gallery.Report, error)
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault parses a positive integer, falling back to def.
func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}
