package models

// Face is one recognised face inside a sighting, in full-resolution pixels.
type Face struct {
	ID         int64   `json:"id"`
	SightingID int64   `json:"sighting_id"`
	Label      string  `json:"label"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Distance   float32 `json:"distance"`
	Known      bool    `json:"known"`
}
