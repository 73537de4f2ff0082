package handlers

import (
	"net/http"

	"facecam/internal/logger"
)

// HealthHandler reports liveness plus the capture state.
func HealthHandler(ctrl CaptureController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]any{
			"status":    "ok",
			"capturing": ctrl.IsCapturing(),
		})
	}
}
