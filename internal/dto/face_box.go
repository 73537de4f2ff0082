package dto

// FaceBox is one labelled face in full-resolution pixel coordinates.
type FaceBox struct {
	Label    string  `json:"label"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Distance float32 `json:"distance"`
	Known    bool    `json:"known"`
}
