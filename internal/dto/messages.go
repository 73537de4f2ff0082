package dto

const (
	MessageTypeFrame  = "frame"
	MessageTypeStatus = "status"
	MessageTypeError  = "error"

	ActionStart = "start"
	ActionStop  = "stop"
)

// FrameMessage carries one annotated frame to web viewers. Image is base64 JPEG.
type FrameMessage struct {
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq"`
	Image     string    `json:"image"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Faces     []FaceBox `json:"faces"`
	Capturing bool      `json:"capturing"`
}

// StatusMessage reports the capture state, sent on connect and on every toggle.
type StatusMessage struct {
	Type      string `json:"type"`
	Capturing bool   `json:"capturing"`
	Device    string `json:"device,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ControlMessage is sent by viewers to start or stop capture.
type ControlMessage struct {
	Action string `json:"action"`
}

// CaptureStatus is the JSON body of the capture endpoints.
type CaptureStatus struct {
	Capturing  bool   `json:"capturing"`
	Device     string `json:"device"`
	Available  bool   `json:"available"`
	Error      string `json:"error,omitempty"`
	Engine     string `json:"engine"`
	References int    `json:"references"`
	Viewers    int    `json:"viewers"`
}
