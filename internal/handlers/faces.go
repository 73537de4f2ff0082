package handlers

import (
	"net/http"

	"facecam/internal/logger"
	"facecam/internal/services/recognition"
)

type facesResponse struct {
	Count      int                     `json:"count"`
	References []recognition.Reference `json:"references"`
}

// ListFacesHandler handles GET /api/faces.
func ListFacesHandler(g FaceGallery, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refs := g.References()
		writeJSON(w, logger, http.StatusOK, facesResponse{Count: len(refs), References: refs})
	}
}

// ReloadFacesHandler handles POST /api/faces/reload by rescanning the reference directory.
func ReloadFacesHandler(g FaceGallery, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := g.ReloadGallery(r.Context())
		if err != nil {
			logger.Error("Failed to reload reference faces: %v", err)
			http.Error(w, "Failed to reload reference faces", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, report)
	}
}
