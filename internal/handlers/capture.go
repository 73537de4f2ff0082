package handlers

import (
	"net/http"

	"facecam/internal/logger"
)

// StartCaptureHandler handles POST /api/capture/start.
func StartCaptureHandler(ctrl CaptureController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl.StartCapture(r.Context())
		writeJSON(w, logger, http.StatusOK, ctrl.Status())
	}
}

// StopCaptureHandler handles POST /api/capture/stop.
func StopCaptureHandler(ctrl CaptureController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl.StopCapture(r.Context())
		writeJSON(w, logger, http.StatusOK, ctrl.Status())
	}
}

// CaptureStatusHandler handles GET /api/capture/status.
func CaptureStatusHandler(ctrl CaptureController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, ctrl.Status())
	}
}
