package dto

import (
	"encoding/json"
	"time"
)

// SightingInfo is a stored sighting as listed by the API.
type SightingInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Labels    []string  `json:"labels"`
	Size      int64     `json:"size"`
}

// MarshalJSON customizes JSON output for SightingInfo to format date and time-of-day.
func (p SightingInfo) MarshalJSON() ([]byte, error) {
	type Alias SightingInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(p),
	})
}

// SightingsData is a paginated response payload for the sightings list.
type SightingsData struct {
	Sightings   []SightingInfo `json:"sightings"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}
