package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"facecam/internal/dto"
	"facecam/internal/logger"
	"facecam/internal/models"
	"facecam/internal/repository"
)

func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetSightingsHandler returns a filtered, paginated list of stored sightings.
// Query: label, dateAfter, dateBefore (YYYY-MM-DD), page or offset, limit.
func GetSightingsHandler(repo repository.SightingRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			http.Error(w, "Database not available", http.StatusServiceUnavailable)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)
		offset := (page - 1) * limit
		if q.Has("offset") {
			offset = atoiDefault(q.Get("offset"), 0)
			page = offset/limit + 1
		}

		filter := &models.SightingFilter{
			Label:     q.Get("label"),
			StartDate: parseDate(q.Get("dateAfter")),
			Limit:     limit,
			Offset:    offset,
		}
		if end := parseDate(q.Get("dateBefore")); !end.IsZero() {
			filter.EndDate = end.Add(24*time.Hour - time.Nanosecond)
		}

		sightings, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying sightings from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting sightings: %v", err)
			totalCount = len(sightings)
		}

		infos := make([]dto.SightingInfo, 0, len(sightings))
		for _, s := range sightings {
			infos = append(infos, dto.SightingInfo{
				ID:        s.ID,
				Name:      s.Filename,
				Date:      s.Timestamp,
				TimeOfDay: s.Timestamp,
				Labels:    s.Labels,
				Size:      s.FileSize,
			})
		}

		writeJSON(w, logger, http.StatusOK, dto.SightingsData{
			Sightings:   infos,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// GetSightingStatsHandler returns sighting statistics.
func GetSightingStatsHandler(repo repository.SightingRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			http.Error(w, "Database not available", http.StatusServiceUnavailable)
			return
		}

		stats, err := repo.GetStats()
		if err != nil {
			logger.Error("Failed to get stats: %v", err)
			http.Error(w, "Failed to retrieve stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// ViewSightingHandler serves a stored snapshot by filename.
func ViewSightingHandler(snapshotDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("filename")
		if name == "" || name != filepath.Base(name) || snapshotDir == "" {
			http.Error(w, "Invalid filename", http.StatusBadRequest)
			return
		}

		path := filepath.Join(snapshotDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}
}
